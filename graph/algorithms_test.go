package graph

import (
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/skridlevsky/thoughtgraph/keys"
	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
)

// --- Helpers ---

// buildSnapshot inserts each entry as a thought: the last element is the
// value, the ones before it its context. Entries get increasing ranks.
func buildSnapshot(t *testing.T, entries ...[]string) *store.Snapshot {
	t.Helper()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := store.New()
	for i, e := range entries {
		ctx := types.Context(e[:len(e)-1])
		b, err := store.InsertChild(s, ctx, e[len(e)-1], float64(i), "", at)
		if err != nil {
			t.Fatalf("insert %v: %v", e, err)
		}
		s = s.Apply(b)
	}
	return s
}

// library is:
//
//	Projects
//	  Graph
//	  Search [[Graph]]
//	Reading
//	  Graph
//	people/alice
func library(t *testing.T) *Graph {
	t.Helper()
	return Build(buildSnapshot(t,
		[]string{"Projects"},
		[]string{"Projects", "Graph"},
		[]string{"Projects", "Search [[Graph]]"},
		[]string{"Reading"},
		[]string{"Reading", "Graph"},
		[]string{"people/alice"},
	))
}

// newGraph builds a Graph from a simple adjacency list, for algorithm cases
// that are awkward to express as an outline.
func newGraph(edges map[string][]string) *Graph {
	g := &Graph{
		Forward:  make(map[string]map[string]bool),
		Backward: make(map[string]map[string]bool),
		Thoughts: make(map[string]Node),
	}
	for src, targets := range edges {
		g.Thoughts[src] = Node{Value: src, Occurrences: 1}
		for _, tgt := range targets {
			g.Thoughts[tgt] = Node{Value: tgt, Occurrences: 1}
		}
	}
	for src, targets := range edges {
		for _, tgt := range targets {
			g.addEdge(src, tgt)
		}
	}
	return g
}

// --- Build ---

func TestBuild_StructuralEdges(t *testing.T) {
	s := buildSnapshot(t,
		[]string{"Projects"},
		[]string{"Projects", "Graph"},
		[]string{"Reading", "Graph"},
		[]string{"Projects", "=readonly"},
	)
	g := Build(s)

	if _, ok := g.Thoughts["=readonly"]; ok {
		t.Error("meta attribute should not be a node")
	}
	if !g.Forward["projects"]["graph"] || !g.Forward["reading"]["graph"] {
		t.Errorf("Forward = %v, want projects→graph and reading→graph", g.Forward)
	}
	if got := g.InDegree("Graph"); got != 2 {
		t.Errorf("InDegree(Graph) = %d, want 2", got)
	}
	if n := g.Thoughts["graph"]; n.Occurrences != 2 || n.TopLevel {
		t.Errorf("graph node = %+v", n)
	}
	if !g.Thoughts["projects"].TopLevel {
		t.Error("Projects should be top-level")
	}
	if g.Links != 0 {
		t.Errorf("Links = %d, want 0", g.Links)
	}
}

func TestBuild_LinkEdges(t *testing.T) {
	s := buildSnapshot(t,
		[]string{"see [[Target]] and [[Other]]"},
		[]string{"Target"},
	)
	g := Build(s)

	src := "see [[target]] and [[other]]"
	if !g.Forward[src]["target"] || !g.Forward[src]["other"] {
		t.Errorf("Forward[%s] = %v", src, g.Forward[src])
	}
	if !g.Backward["target"][src] {
		t.Errorf("Backward[target] = %v", g.Backward["target"])
	}
	if g.Links != 2 {
		t.Errorf("Links = %d, want 2", g.Links)
	}

	// Link targets that are not thoughts do not join clusters.
	for _, c := range g.TopicClusters() {
		for _, v := range c.Thoughts {
			if v == "other" {
				t.Error("missing link target should not be clustered")
			}
		}
	}
}

func TestBuild_RootAndMetaContextsAddNoEdges(t *testing.T) {
	g := Build(buildSnapshot(t,
		[]string{"Notes"},
		[]string{"Notes", "=pinned"},
		[]string{"Notes", "=pinned", "since spring"},
		[]string{types.EMToken, "settings"},
	))

	if _, ok := g.Forward[keys.Thought(types.RootToken)]; ok {
		t.Error("root token should not be a graph node")
	}
	if _, ok := g.Forward[keys.Thought(types.EMToken)]; ok {
		t.Error("meta root should not be a graph node")
	}
	for _, v := range []string{"since spring", "settings"} {
		n, ok := g.Thoughts[v]
		if !ok {
			t.Errorf("%q should still be a node", v)
			continue
		}
		if n.TopLevel {
			t.Errorf("%q should not be top-level", v)
		}
		if got := g.InDegree(v); got != 0 {
			t.Errorf("InDegree(%q) = %d, want 0", v, got)
		}
	}
	if got := g.OutDegree("Notes"); got != 0 {
		t.Errorf("OutDegree(Notes) = %d, want 0 (its only child is a flag)", got)
	}
}

func TestBuild_NormalizedValuesShareANode(t *testing.T) {
	g := Build(buildSnapshot(t,
		[]string{"Projects", "Graph"},
		[]string{"Reading", "  GRAPH "},
	))
	n, ok := g.Thoughts["graph"]
	if !ok {
		t.Fatalf("Thoughts = %v, want a single graph node", g.Thoughts)
	}
	if n.Value != "Graph" || n.Occurrences != 2 {
		t.Errorf("graph node = %+v", n)
	}
	if got := g.InDegree("graph"); got != 2 {
		t.Errorf("InDegree(graph) = %d, want 2", got)
	}
}

// --- Overview ---

func TestOverview_Empty(t *testing.T) {
	stats := Build(store.New()).Overview()
	if stats.TotalThoughts != 0 || stats.TotalEdges != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestOverview_FromOutline(t *testing.T) {
	stats := library(t).Overview()

	checks := []struct {
		name      string
		got, want int
	}{
		{"TotalThoughts", stats.TotalThoughts, 5},
		{"TotalOccurrences", stats.TotalOccurrences, 6},
		{"TotalEdges", stats.TotalEdges, 4},
		{"TotalLinks", stats.TotalLinks, 1},
		{"TopLevel", stats.TopLevel, 3},
		{"Orphans", stats.Orphans, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}

	if !reflect.DeepEqual(stats.Namespaces, map[string]int{"people": 1}) {
		t.Errorf("Namespaces = %v, want people:1", stats.Namespaces)
	}
	if stats.MostReferenced[0].Value != "Graph" || stats.MostReferenced[0].InEdges != 3 {
		t.Errorf("MostReferenced[0] = %+v, want Graph with 3 in-edges", stats.MostReferenced[0])
	}
}

func TestOverview_MostConnectedOrder(t *testing.T) {
	g := newGraph(map[string][]string{
		"hub": {"a", "b", "c"},
		"mid": {"a"},
	})
	stats := g.Overview()
	if stats.MostConnected[0].Value != "hub" {
		t.Errorf("MostConnected[0] = %q, want 'hub'", stats.MostConnected[0].Value)
	}
	if stats.MostReferenced[0].Value != "a" {
		t.Errorf("MostReferenced[0] = %q, want 'a'", stats.MostReferenced[0].Value)
	}
}

// --- FindConnections ---

func TestFindConnections_FromOutline(t *testing.T) {
	g := library(t)

	r := g.FindConnections("projects", "GRAPH", 5)
	if !r.DirectlyLinked {
		t.Error("DirectlyLinked = false, want true")
	}
	if r.From != "Projects" || r.To != "Graph" {
		t.Errorf("From/To = %q/%q, want literal values", r.From, r.To)
	}
	if len(r.Paths) == 0 || !reflect.DeepEqual(r.Paths[0], []string{"Projects", "Graph"}) {
		t.Errorf("Paths = %v, want [Projects Graph] first", r.Paths)
	}

	r = g.FindConnections("Projects", "Reading", 5)
	if r.DirectlyLinked || len(r.Paths) != 0 {
		t.Errorf("Projects and Reading are siblings, got %+v", r)
	}
	if !reflect.DeepEqual(r.SharedConnections, []string{"Graph"}) {
		t.Errorf("SharedConnections = %v, want [Graph]", r.SharedConnections)
	}
}

func TestFindConnections_FindsLongerPath(t *testing.T) {
	g := newGraph(map[string][]string{
		"a": {"b"},
		"b": {"c"},
	})
	r := g.FindConnections("a", "c", 0)
	if r.DirectlyLinked {
		t.Error("DirectlyLinked = true, want false")
	}
	if len(r.Paths) == 0 || len(r.Paths[0]) != 3 {
		t.Errorf("Paths = %v, want [a b c]", r.Paths)
	}
}

func TestFindConnections_NoPath(t *testing.T) {
	g := newGraph(map[string][]string{"a": {}, "b": {}})
	r := g.FindConnections("a", "b", 5)
	if len(r.Paths) != 0 || len(r.SharedConnections) != 0 {
		t.Errorf("got %+v, want no connection", r)
	}
}

// --- KnowledgeGaps ---

func TestKnowledgeGaps_FromOutline(t *testing.T) {
	gaps := library(t).KnowledgeGaps()

	if !reflect.DeepEqual(gaps.Orphans, []string{"people/alice"}) {
		t.Errorf("Orphans = %v, want [people/alice]", gaps.Orphans)
	}
	if !reflect.DeepEqual(gaps.DeadEnds, []string{"Graph"}) {
		t.Errorf("DeadEnds = %v, want [Graph]", gaps.DeadEnds)
	}

	var weak []string
	for _, w := range gaps.WeaklyLinked {
		weak = append(weak, w.Value)
	}
	want := []string{"Reading", "Projects", "Search [[Graph]]"}
	if !reflect.DeepEqual(weak, want) {
		t.Errorf("WeaklyLinked = %v, want %v", weak, want)
	}
}

func TestKnowledgeGaps_SortedAlphabetically(t *testing.T) {
	g := newGraph(map[string][]string{
		"z-orphan": {},
		"a-orphan": {},
		"m-orphan": {},
	})
	gaps := g.KnowledgeGaps()
	if len(gaps.Orphans) != 3 || !sort.StringsAreSorted(gaps.Orphans) {
		t.Errorf("Orphans = %v, want 3 sorted", gaps.Orphans)
	}
}

// --- TopicClusters ---

func TestTopicClusters_FromOutline(t *testing.T) {
	clusters := library(t).TopicClusters()
	if len(clusters) != 1 {
		t.Fatalf("clusters = %v, want 1 (people/alice is a singleton)", clusters)
	}
	c := clusters[0]
	want := []string{"Graph", "Projects", "Reading", "Search [[Graph]]"}
	if !reflect.DeepEqual(c.Thoughts, want) {
		t.Errorf("Thoughts = %v, want %v", c.Thoughts, want)
	}
	if c.Hub != "Graph" {
		t.Errorf("Hub = %q, want Graph", c.Hub)
	}
}

func TestTopicClusters_SortedBySizeDesc(t *testing.T) {
	g := newGraph(map[string][]string{
		"x": {"y"},
		"a": {"b", "c", "d"},
	})
	clusters := g.TopicClusters()
	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(clusters))
	}
	if clusters[0].Size != 4 || clusters[1].Size != 2 {
		t.Errorf("sizes = %d, %d, want 4, 2", clusters[0].Size, clusters[1].Size)
	}
	for i, c := range clusters {
		if c.ID != i {
			t.Errorf("cluster %d has ID %d", i, c.ID)
		}
	}
}
