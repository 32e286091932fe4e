package temper

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
)

// graph is a directed graph of Nodes. It's used to order templates so that
// every template comes after the templates it includes, and to find
// include cycles.
type graph[Node cmp.Ordered] struct {
	// nodes holds the nodes in the graph.
	nodes []Node

	// edgesTo holds graph edges, keyed by the position of the node the
	// edges point to.
	//
	// if there's a node 1 and a node 2, and an edge from 1->2, edgesTo
	// will have a key of 2 with a value of [1].
	edgesTo map[int]map[int]struct{}

	// edgesFrom holds graph edges, keyed by the position of the node the
	// edges point from.
	//
	// nodes point to their dependencies and dependencies are always
	// walked first; i.e., if there's a node 1 and a node 2, and an edge
	// from 1->2, 2 will always appear before 1 when walking the graph.
	edgesFrom map[int]map[int]struct{}
}

func newGraph[Node cmp.Ordered](nodes []Node) graph[Node] {
	return graph[Node]{
		nodes:     nodes,
		edgesTo:   map[int]map[int]struct{}{},
		edgesFrom: map[int]map[int]struct{}{},
	}
}

func (g graph[Node]) addEdge(from, to int) {
	if g.edgesFrom[from] == nil {
		g.edgesFrom[from] = map[int]struct{}{}
	}
	if g.edgesTo[to] == nil {
		g.edgesTo[to] = map[int]struct{}{}
	}
	g.edgesFrom[from][to] = struct{}{}
	g.edgesTo[to][from] = struct{}{}
}

// buildIncludeGraph creates a graph with a node per template and an edge
// from every template to each template it includes. Include targets the
// collection doesn't hold have no node.
func buildIncludeGraph(programs map[string]*Program) graph[string] {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	slices.Sort(names)
	result := newGraph(names)
	for pos, name := range names {
		for _, target := range programs[name].includes {
			targetPos, ok := slices.BinarySearch(names, target)
			if !ok {
				continue
			}
			result.addEdge(pos, targetPos)
		}
	}
	return result
}

// walkGraph returns the graph's nodes with every node after the nodes it
// points to, breaking ties by sorting. It consumes the graph's edges. If
// the edges form a cycle, walkGraph returns the nodes it could order along
// with an error wrapping ErrIncludeCycle that names the nodes left over.
func walkGraph[Node cmp.Ordered](_ context.Context, g graph[Node]) ([]Node, error) {
	noParents := make([]int, 0, len(g.nodes))
	results := make([]Node, 0, len(g.nodes))
	byNode := func(a, b int) int {
		return cmp.Compare(g.nodes[a], g.nodes[b])
	}
	for pos := range g.nodes {
		if len(g.edgesFrom[pos]) < 1 {
			noParents = append(noParents, pos)
		}
	}
	slices.SortFunc(noParents, byNode)
	for len(noParents) > 0 {
		pos := noParents[0]
		noParents = noParents[1:]
		results = append(results, g.nodes[pos])
		var noParentsChanged bool
		for child := range g.edgesTo[pos] {
			delete(g.edgesFrom[child], pos)
			if len(g.edgesFrom[child]) < 1 {
				delete(g.edgesFrom, child)
				noParents = append(noParents, child)
				noParentsChanged = true
			}
		}
		delete(g.edgesTo, pos)
		if noParentsChanged {
			slices.SortFunc(noParents, byNode)
		}
	}
	if len(g.edgesFrom) > 0 {
		var stuck []string
		for pos := range g.edgesFrom {
			stuck = append(stuck, fmt.Sprint(g.nodes[pos]))
		}
		slices.Sort(stuck)
		return results, fmt.Errorf("%w: %s", ErrIncludeCycle, strings.Join(stuck, ", "))
	}
	return results, nil
}
