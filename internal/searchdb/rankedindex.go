package searchdb

import (
	"math"
	"regexp"
	"strings"

	"github.com/surgebase/porter2"

	"github.com/montanetech/codeix-sub000/internal/model"
)

// rowHandle identifies one row of any of the three searchable tables.
// For file rows, ID is zero and Path is the primary key; for symbol
// and text rows, ID is the internal row id assigned at insertion.
type rowHandle struct {
	Type    model.EntityScope
	Project string
	Path    string
	ID      uint64
}

var tokenRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

// tokenize splits on non-identifier runes, lowercases, splits
// camelCase/snake_case compounds, and stems each piece of three or
// more characters with Porter2 —
// the same stemming library the teacher's semantic package uses for
// word normalization, here driving ranking instead of fuzzy matching.
func tokenize(s string) []string {
	var out []string
	for _, raw := range tokenRe.FindAllString(s, -1) {
		for _, part := range splitCompound(raw) {
			part = strings.ToLower(part)
			if part == "" {
				continue
			}
			if len(part) >= 3 {
				part = porter2.Stem(part)
			}
			out = append(out, part)
		}
	}
	return out
}

// splitCompound breaks camelCase and snake_case identifiers into their
// constituent words, plus the whole identifier itself so an exact
// match on the compound form still hits.
func splitCompound(s string) []string {
	parts := strings.Split(s, "_")
	var words []string
	words = append(words, s)
	for _, p := range parts {
		if p == "" {
			continue
		}
		start := 0
		for i := 1; i < len(p); i++ {
			if isUpper(p[i]) && !isUpper(p[i-1]) {
				words = append(words, p[start:i])
				start = i
			}
		}
		words = append(words, p[start:])
	}
	return words
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

type posting struct {
	handle rowHandle
	tf     int
}

// rankedIndex is the hand-rolled inverted index described in
// spec.md §4.3 and SPEC_FULL.md §4.3: postings per stemmed token, with
// a TF-IDF-style score computed at query time.
type rankedIndex struct {
	postings   map[string][]posting
	docLength  map[rowHandle]int
	totalDocs  int
}

func newRankedIndex() *rankedIndex {
	return &rankedIndex{
		postings:  make(map[string][]posting),
		docLength: make(map[rowHandle]int),
	}
}

func (idx *rankedIndex) reset() {
	idx.postings = make(map[string][]posting)
	idx.docLength = make(map[rowHandle]int)
	idx.totalDocs = 0
}

func (idx *rankedIndex) add(handle rowHandle, content string) {
	tokens := tokenize(content)
	if len(tokens) == 0 {
		return
	}
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	for t, tf := range counts {
		idx.postings[t] = append(idx.postings[t], posting{handle: handle, tf: tf})
	}
	idx.docLength[handle] = len(tokens)
	idx.totalDocs++
}

func (idx *rankedIndex) finalize() {}

// score runs the query against the index and returns matching handles
// sorted by descending rank.
func (idx *rankedIndex) score(query string) []rowHandle {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	totals := make(map[rowHandle]float64)
	seen := make(map[string]bool)
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		plist := idx.postings[term]
		if len(plist) == 0 {
			continue
		}
		idf := math.Log(1 + float64(idx.totalDocs)/float64(len(plist)))
		for _, p := range plist {
			length := idx.docLength[p.handle]
			if length == 0 {
				length = 1
			}
			totals[p.handle] += (float64(p.tf) / float64(length)) * idf
		}
	}
	handles := make([]rowHandle, 0, len(totals))
	for h := range totals {
		handles = append(handles, h)
	}
	sortHandlesByScore(handles, totals)
	return handles
}
