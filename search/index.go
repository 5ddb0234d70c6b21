// Package search keeps a full-text inverted index over the content index.
// It is built once from a snapshot and then kept current from the batches a
// document applies.
package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/skridlevsky/thoughtgraph/parser"
	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
)

const defaultLimit = 20

// Index maps lowercase terms to the thoughts containing them.
type Index struct {
	mu sync.RWMutex
	// term → set of thought keys
	index map[string]map[string]bool
	// thought key → indexed entry, for removal on reindex
	entries map[string]entry
}

type entry struct {
	value    string
	contexts []types.Context
	terms    []string
}

// Result is a thought that matched a query.
type Result struct {
	Value    string          `json:"value"`
	Contexts []types.Context `json:"contexts"`
	Hits     int             `json:"hits"`
}

// New creates an empty index.
func New() *Index {
	return &Index{
		index:   make(map[string]map[string]bool),
		entries: make(map[string]entry),
	}
}

// Build replaces the index contents with every lexeme of s.
func (ix *Index) Build(s *store.Snapshot) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.index = make(map[string]map[string]bool)
	ix.entries = make(map[string]entry)
	s.RangeLexemes(func(key string, l *types.Lexeme) bool {
		ix.addLocked(key, l)
		return true
	})
}

// Update applies the lexeme side of a batch: deleted keys are dropped,
// changed keys are reindexed.
func (ix *Index) Update(b *store.Batch) {
	if b.Empty() {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for key, l := range b.Lexemes {
		ix.removeLocked(key)
		if l != nil {
			ix.addLocked(key, l)
		}
	}
}

// Len returns the number of indexed thoughts.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Search finds thoughts matching all terms in the query (AND semantics),
// most term hits first. Meta attributes are never returned.
func (ix *Index) Search(query string, limit int) []Result {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	// Start with the rarest term.
	rarest := terms[0]
	for _, t := range terms[1:] {
		if len(ix.index[t]) < len(ix.index[rarest]) {
			rarest = t
		}
	}

	var results []Result
	for key := range ix.index[rarest] {
		inAll := true
		for _, t := range terms {
			if !ix.index[t][key] {
				inAll = false
				break
			}
		}
		if !inAll {
			continue
		}
		e := ix.entries[key]
		results = append(results, Result{
			Value:    e.value,
			Contexts: e.contexts,
			Hits:     countTermHits(e.value, terms),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Hits != results[j].Hits {
			return results[i].Hits > results[j].Hits
		}
		return results[i].Value < results[j].Value
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (ix *Index) addLocked(key string, l *types.Lexeme) {
	if store.IsMeta(l.Value) {
		return
	}

	terms := tokenize(l.Value)
	// Link targets are searchable by their own words too.
	for _, link := range parser.Links(l.Value) {
		terms = append(terms, tokenize(link)...)
	}

	seen := make(map[string]bool, len(terms))
	var unique []string
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		unique = append(unique, t)
		set := ix.index[t]
		if set == nil {
			set = make(map[string]bool)
			ix.index[t] = set
		}
		set[key] = true
	}

	contexts := make([]types.Context, len(l.Contexts))
	for i, occ := range l.Contexts {
		contexts[i] = occ.Context.Clone()
	}
	ix.entries[key] = entry{value: l.Value, contexts: contexts, terms: unique}
}

func (ix *Index) removeLocked(key string) {
	e, ok := ix.entries[key]
	if !ok {
		return
	}
	for _, t := range e.terms {
		set := ix.index[t]
		delete(set, key)
		if len(set) == 0 {
			delete(ix.index, t)
		}
	}
	delete(ix.entries, key)
}

// tokenize splits text into lowercase terms for indexing.
// Strips link and emphasis syntax and splits on whitespace and punctuation.
func tokenize(text string) []string {
	text = strings.NewReplacer(
		"[[", " ", "]]", " ",
		"#", " ", "**", " ", "__", " ", "`", " ",
	).Replace(text)
	text = strings.ToLower(text)

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordChar(r)
	})

	var terms []string
	for _, w := range words {
		if len(w) >= 2 { // skip single chars
			terms = append(terms, w)
		}
	}
	return terms
}

// isWordChar returns true for letters and digits (Unicode-aware).
func isWordChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r > 127
}

func countTermHits(content string, terms []string) int {
	lower := strings.ToLower(content)
	count := 0
	for _, t := range terms {
		count += strings.Count(lower, t)
	}
	return count
}
