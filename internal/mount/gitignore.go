package mount

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// BundleDirName is the conventional on-disk bundle directory at a
// project root (spec.md §6).
const BundleDirName = ".codeix"

// builtinAlwaysIgnore covers source-control internals, the bundle
// directory, and common editor/OS cruft, seeded into every mount's
// matcher per spec.md §4.4. The bundle directory is always ignored so
// the project's own toolchain output never gets indexed (SPEC_FULL.md
// §6).
var builtinAlwaysIgnore = []string{
	".git/",
	BundleDirName + "/",
	".DS_Store",
	"Thumbs.db",
	".idea/",
	".vscode/",
	"*.swp",
	"*.swo",
	"~*",
}

type pattern struct {
	raw       string
	negate    bool
	dirOnly   bool
	anchored  bool
}

// Gitignore is a mount's built-up gitignore matcher: the built-in
// always-ignore list, plus every .gitignore and .git/info/exclude file
// discovered so far. It is rebuilt whenever a new .gitignore is seen
// (spec.md §4.4's "dynamic gitignore").
type Gitignore struct {
	patterns     []pattern
	builtinCount int
}

// NewGitignore seeds a matcher with the built-in list plus
// .git/info/exclude and the root .gitignore, if present, per
// spec.md §4.4 step 3.
func NewGitignore(root string) *Gitignore {
	g := &Gitignore{}
	for _, p := range builtinAlwaysIgnore {
		g.patterns = append(g.patterns, parsePattern(p))
	}
	g.builtinCount = len(g.patterns)
	g.loadFile(filepath.Join(root, ".git", "info", "exclude"))
	g.loadFile(filepath.Join(root, ".gitignore"))
	return g
}

// AddFile appends the patterns from an additional .gitignore file
// (root or nested) discovered during a walk or watch, per spec.md
// §4.4's dynamic gitignore rule.
func (g *Gitignore) AddFile(path string) {
	g.loadFile(path)
}

func (g *Gitignore) loadFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g.patterns = append(g.patterns, parsePattern(line))
	}
}

func parsePattern(line string) pattern {
	p := pattern{raw: line}
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	p.raw = line
	return p
}

// Match reports whether relPath (slash-separated, relative to the
// mount root) is ignored. isDir indicates whether relPath names a
// directory, needed for directory-only patterns. When respectUser is
// false, only the built-in always-ignore patterns are considered, per
// SPEC_FULL.md §6's respect-gitignore config knob.
func (g *Gitignore) Match(relPath string, isDir bool, respectUser bool) bool {
	relPath = filepath.ToSlash(relPath)
	patterns := g.patterns
	if !respectUser {
		patterns = g.patterns[:g.builtinCount]
	}
	ignored := false
	for _, p := range patterns {
		if p.dirOnly && !isDir {
			// a directory-only pattern can still match a path inside
			// that directory; check containment below.
			if !matchesWithinDir(p, relPath) {
				continue
			}
		} else if !matchesPattern(p, relPath) {
			continue
		}
		if p.negate {
			ignored = false
		} else {
			ignored = true
		}
	}
	return ignored
}

func matchesPattern(p pattern, relPath string) bool {
	if p.anchored {
		ok, _ := doublestar.Match(p.raw, relPath)
		return ok
	}
	if ok, _ := doublestar.Match(p.raw, relPath); ok {
		return true
	}
	if ok, _ := doublestar.Match("**/"+p.raw, relPath); ok {
		return true
	}
	base := filepath.Base(relPath)
	ok, _ := doublestar.Match(p.raw, base)
	return ok
}

func matchesWithinDir(p pattern, relPath string) bool {
	segments := strings.Split(relPath, "/")
	for i := range segments {
		prefix := strings.Join(segments[:i+1], "/")
		if matchesPattern(p, prefix) {
			return true
		}
	}
	return false
}
