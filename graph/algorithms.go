package graph

import (
	"sort"
	"strings"

	"github.com/skridlevsky/thoughtgraph/keys"
)

// OverviewStats contains global graph statistics.
type OverviewStats struct {
	TotalThoughts    int            `json:"totalThoughts"`
	TotalOccurrences int            `json:"totalOccurrences"`
	TotalEdges       int            `json:"totalEdges"`
	TotalLinks       int            `json:"totalLinks"`
	TopLevel         int            `json:"topLevel"`
	Orphans          int            `json:"orphans"`
	MostConnected    []ThoughtStat  `json:"mostConnected"`
	MostReferenced   []ThoughtStat  `json:"mostReferenced"`
	Namespaces       map[string]int `json:"namespaces"`
}

// ThoughtStat is a thought with its connectivity score.
type ThoughtStat struct {
	Value       string `json:"value"`
	OutEdges    int    `json:"outEdges"`
	InEdges     int    `json:"inEdges"`
	TotalDegree int    `json:"totalDegree"`
	Occurrences int    `json:"occurrences"`
}

// ConnectionResult describes how two thoughts are connected.
type ConnectionResult struct {
	From              string     `json:"from"`
	To                string     `json:"to"`
	DirectlyLinked    bool       `json:"directlyLinked"`
	Paths             [][]string `json:"paths"`
	SharedConnections []string   `json:"sharedConnections"`
}

// GapInfo describes sparse areas of the outline.
type GapInfo struct {
	Orphans      []string      `json:"orphans"`
	DeadEnds     []string      `json:"deadEnds"`
	WeaklyLinked []ThoughtStat `json:"weaklyLinked"`
}

// Cluster is a group of connected thoughts.
type Cluster struct {
	ID       int      `json:"id"`
	Size     int      `json:"size"`
	Thoughts []string `json:"thoughts"`
	Hub      string   `json:"hub"`
}

// Overview computes global graph statistics.
func (g *Graph) Overview() OverviewStats {
	stats := OverviewStats{
		TotalThoughts: len(g.Thoughts),
		TotalLinks:    g.Links,
		Namespaces:    make(map[string]int),
	}

	var stat []ThoughtStat
	for key, node := range g.Thoughts {
		if node.TopLevel {
			stats.TopLevel++
		}
		stats.TotalOccurrences += node.Occurrences

		s := g.stat(key)
		stats.TotalEdges += s.OutEdges
		if s.TotalDegree == 0 {
			stats.Orphans++
		}
		stat = append(stat, s)

		// Count namespaces
		if strings.Contains(node.Value, "/") {
			ns := strings.SplitN(node.Value, "/", 2)[0]
			stats.Namespaces[ns]++
		}
	}

	// Top 10 most connected
	sort.Slice(stat, func(i, j int) bool {
		if stat[i].TotalDegree != stat[j].TotalDegree {
			return stat[i].TotalDegree > stat[j].TotalDegree
		}
		return stat[i].Value < stat[j].Value
	})
	stats.MostConnected = append([]ThoughtStat(nil), stat[:min(10, len(stat))]...)

	// Top 10 most referenced (by in-degree)
	sort.SliceStable(stat, func(i, j int) bool {
		return stat[i].InEdges > stat[j].InEdges
	})
	stats.MostReferenced = stat[:min(10, len(stat))]

	return stats
}

// FindConnections finds how two thoughts are connected.
func (g *Graph) FindConnections(from, to string, maxDepth int) ConnectionResult {
	fromKey := keys.Thought(from)
	toKey := keys.Thought(to)

	if maxDepth <= 0 {
		maxDepth = 5
	}

	result := ConnectionResult{
		From:           g.DisplayName(fromKey),
		To:             g.DisplayName(toKey),
		DirectlyLinked: g.Forward[fromKey][toKey],
	}

	// BFS for paths
	result.Paths = g.bfsPaths(fromKey, toKey, maxDepth)

	// Thoughts both are connected to, in either direction
	fromNeighbors := g.allNeighbors(fromKey)
	toNeighbors := g.allNeighbors(toKey)
	for n := range fromNeighbors {
		if toNeighbors[n] && n != fromKey && n != toKey {
			result.SharedConnections = append(result.SharedConnections, g.DisplayName(n))
		}
	}
	sort.Strings(result.SharedConnections)

	return result
}

// KnowledgeGaps finds sparse areas in the graph.
func (g *Graph) KnowledgeGaps() GapInfo {
	var gaps GapInfo
	var weak []ThoughtStat

	for key := range g.Thoughts {
		s := g.stat(key)
		switch {
		case s.TotalDegree == 0:
			gaps.Orphans = append(gaps.Orphans, s.Value)
		case s.OutEdges == 0:
			gaps.DeadEnds = append(gaps.DeadEnds, s.Value)
		case s.TotalDegree <= 2:
			weak = append(weak, s)
		}
	}

	sort.Strings(gaps.Orphans)
	sort.Strings(gaps.DeadEnds)
	sort.Slice(weak, func(i, j int) bool {
		if weak[i].TotalDegree != weak[j].TotalDegree {
			return weak[i].TotalDegree < weak[j].TotalDegree
		}
		return weak[i].Value < weak[j].Value
	})
	gaps.WeaklyLinked = weak[:min(20, len(weak))]

	return gaps
}

// TopicClusters finds connected components in the undirected graph.
func (g *Graph) TopicClusters() []Cluster {
	visited := make(map[string]bool)
	var clusters []Cluster

	for _, key := range g.sortedKeys() {
		if visited[key] {
			continue
		}

		component := g.bfsComponent(key, visited)
		if len(component) < 2 {
			continue // skip singletons
		}

		// Hub is the highest degree thought in the component
		hub := component[0]
		hubDegree := g.TotalDegree(hub)
		for _, n := range component[1:] {
			if d := g.TotalDegree(n); d > hubDegree {
				hub = n
				hubDegree = d
			}
		}

		names := make([]string, len(component))
		for i, c := range component {
			names[i] = g.DisplayName(c)
		}
		sort.Strings(names)

		clusters = append(clusters, Cluster{
			Size:     len(component),
			Thoughts: names,
			Hub:      g.DisplayName(hub),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size > clusters[j].Size
	})
	for i := range clusters {
		clusters[i].ID = i
	}
	return clusters
}

// --- Internal helpers ---

func (g *Graph) stat(key string) ThoughtStat {
	out := len(g.Forward[key])
	in := len(g.Backward[key])
	return ThoughtStat{
		Value:       g.DisplayName(key),
		OutEdges:    out,
		InEdges:     in,
		TotalDegree: out + in,
		Occurrences: g.Thoughts[key].Occurrences,
	}
}

func (g *Graph) sortedKeys() []string {
	out := make([]string, 0, len(g.Thoughts))
	for k := range g.Thoughts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) bfsPaths(fromKey, toKey string, maxDepth int) [][]string {
	type node struct {
		key  string
		path []string
	}

	queue := []node{{key: fromKey, path: []string{g.DisplayName(fromKey)}}}
	visited := map[string]bool{fromKey: true}
	var paths [][]string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if len(current.path) > maxDepth+1 {
			break
		}

		next := make([]string, 0, len(g.Forward[current.key]))
		for k := range g.Forward[current.key] {
			next = append(next, k)
		}
		sort.Strings(next)

		for _, linked := range next {
			if linked == toKey {
				path := make([]string, len(current.path)+1)
				copy(path, current.path)
				path[len(path)-1] = g.DisplayName(linked)
				paths = append(paths, path)
				if len(paths) >= 10 {
					return paths
				}
				continue
			}

			if !visited[linked] && len(current.path) < maxDepth {
				visited[linked] = true
				newPath := make([]string, len(current.path)+1)
				copy(newPath, current.path)
				newPath[len(newPath)-1] = g.DisplayName(linked)
				queue = append(queue, node{key: linked, path: newPath})
			}
		}
	}

	return paths
}

func (g *Graph) bfsComponent(start string, visited map[string]bool) []string {
	queue := []string{start}
	visited[start] = true
	var component []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		component = append(component, current)

		for n := range g.allNeighbors(current) {
			if visited[n] {
				continue
			}
			if _, exists := g.Thoughts[n]; exists {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}

	return component
}

func (g *Graph) allNeighbors(key string) map[string]bool {
	neighbors := make(map[string]bool)
	for linked := range g.Forward[key] {
		neighbors[linked] = true
	}
	for linker := range g.Backward[key] {
		neighbors[linker] = true
	}
	return neighbors
}
