// Package config loads the optional .codeix.kdl project configuration
// file, per SPEC_FULL.md §6: a project node, an index node and
// top-level include/exclude pattern lists. A missing file yields
// documented defaults rather than an error.
package config

import (
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/montanetech/codeix-sub000/internal/errx"
)

const defaultFileName = ".codeix.kdl"

// Index holds the index-tuning knobs named in SPEC_FULL.md §6.
type Index struct {
	MaxFileSize      int64
	RespectGitignore bool
	WatchDebounceMs  int
}

// Config is the parsed document plus its resolved defaults.
type Config struct {
	Root    string
	Name    string
	Index   Index
	Include []string
	Exclude []string
}

// Default returns the documented defaults for a project rooted at root.
func Default(root string) Config {
	return Config{
		Root: root,
		Index: Index{
			MaxFileSize:      10 * 1024 * 1024,
			RespectGitignore: true,
			WatchDebounceMs:  500,
		},
	}
}

// Load reads path (defaultFileName under root if path is empty). A
// missing file is not an error: it returns Default(root) unchanged.
func Load(root, path string) (Config, error) {
	cfg := Default(root)

	if path == "" {
		path = filepath.Join(root, defaultFileName)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errx.New(errx.KindIO, "config.load", err).WithPath(path)
	}

	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return cfg, errx.New(errx.KindConfig, "config.load", err).WithPath(path)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "root":
					if s, ok := firstStringArg(cn); ok {
						cfg.Root = resolveRoot(root, s)
					}
				case "name":
					if s, ok := firstStringArg(cn); ok {
						cfg.Name = s
					}
				}
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max-file-size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSize = int64(v)
					}
				case "respect-gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "watch-debounce-ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		}
	}

	return cfg, nil
}

func resolveRoot(projectRoot, configured string) string {
	if filepath.IsAbs(configured) {
		return filepath.Clean(configured)
	}
	return filepath.Clean(filepath.Join(projectRoot, configured))
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	s, ok := n.Arguments[0].Value.(string)
	return s, ok
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	b, ok := n.Arguments[0].Value.(bool)
	return b, ok
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
