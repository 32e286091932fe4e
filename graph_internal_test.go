package temper

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWalkGraph(t *testing.T) {
	t.Parallel()

	g := newGraph([]string{"base", "footer", "header", "page"})
	g.addEdge(3, 1) // page -> footer
	g.addEdge(3, 2) // page -> header
	g.addEdge(2, 0) // header -> base
	g.addEdge(1, 0) // footer -> base

	order, err := walkGraph(context.Background(), g)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"base", "footer", "header", "page"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkGraphCycle(t *testing.T) {
	t.Parallel()

	g := newGraph([]string{"a", "b", "c", "d"})
	g.addEdge(0, 1) // a -> b
	g.addEdge(1, 2) // b -> c
	g.addEdge(2, 1) // c -> b
	g.addEdge(3, 3) // d -> d

	order, err := walkGraph(context.Background(), g)
	if !errors.Is(err, ErrIncludeCycle) {
		t.Fatalf("Expected ErrIncludeCycle, got %v", err)
	}
	if len(order) != 0 {
		t.Errorf("Expected no orderable nodes, got %v", order)
	}
	if msg := err.Error(); msg != "include cycle detected: a, b, c, d" {
		t.Errorf("Unexpected error message %q", msg)
	}
}

func TestBuildIncludeGraph(t *testing.T) {
	t.Parallel()

	programs := map[string]*Program{
		"page":   MustCompile("$(include header)$(include missing)$(include header)"),
		"header": MustCompile("$(title)"),
	}
	g := buildIncludeGraph(programs)
	if diff := cmp.Diff([]string{"header", "page"}, g.nodes); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	want := map[int]map[int]struct{}{1: {0: {}}}
	if diff := cmp.Diff(want, g.edgesFrom); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}
