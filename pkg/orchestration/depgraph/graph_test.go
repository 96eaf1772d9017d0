package depgraph

import (
	"testing"

	"orchestrator/pkg/apperror"
	"orchestrator/pkg/orchestration/restypes"
)

func newTestService(id string, execMs float64) *restypes.Service {
	return restypes.NewService(id, restypes.Requirements{CPU: 1, Mem: 128, Bandwidth: 10}, execMs)
}

func TestGraph_AddDependency_UnknownEndpoint(t *testing.T) {
	g := NewGraph()
	g.AddService(newTestService("a", 10))

	err := g.AddDependency("a", "missing", 100, 1)
	if !apperror.Is(err, apperror.CodeUnknownEdgeEndpoint) {
		t.Fatalf("expected UnknownEdgeEndpoint, got %v", err)
	}
}

func TestGraph_AddDependency_RejectsCycle(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddService(newTestService(id, 10))
	}

	if err := g.AddDependency("a", "b", 100, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddDependency("b", "c", 100, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := g.AddDependency("c", "a", 100, 1)
	if !apperror.Is(err, apperror.CodeCyclicDependency) {
		t.Fatalf("expected CyclicDependency, got %v", err)
	}
}

func TestGraph_AddDependency_RejectsSelfLoop(t *testing.T) {
	g := NewGraph()
	g.AddService(newTestService("a", 10))

	err := g.AddDependency("a", "a", 100, 1)
	if !apperror.Is(err, apperror.CodeCyclicDependency) {
		t.Fatalf("expected CyclicDependency for self-loop, got %v", err)
	}
}

func TestGraph_GetAllPaths_Deterministic(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddService(newTestService(id, 10))
	}
	// a -> b -> d and a -> c -> d, b added before c so b's path should emit first.
	mustAdd := func(src, dst string) {
		t.Helper()
		if err := g.AddDependency(src, dst, 100, 1); err != nil {
			t.Fatalf("AddDependency(%s,%s): %v", src, dst, err)
		}
	}
	mustAdd("a", "b")
	mustAdd("a", "c")
	mustAdd("b", "d")
	mustAdd("c", "d")

	paths := g.GetAllPaths("a", "d")
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0][1] != "b" || paths[1][1] != "c" {
		t.Fatalf("expected insertion-order emission [a b d] then [a c d], got %v", paths)
	}
}

func TestGraph_SequentialLatency(t *testing.T) {
	g := NewGraph()
	g.AddService(newTestService("a", 10))
	g.AddService(newTestService("b", 20))
	if err := g.AddDependency("a", "b", 1000, 1); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	sameNode := func(string) string { return "node1" }
	got := g.SequentialLatency(Path{"a", "b"}, sameNode)
	want := 10.0 + 20.0 + 1000.0/LocalCostDivisor
	if got != want {
		t.Errorf("local-cost latency: got %f, want %f", got, want)
	}

	nodes := map[string]string{"a": "node1", "b": "node2"}
	differentNode := func(id string) string { return nodes[id] }
	got = g.SequentialLatency(Path{"a", "b"}, differentNode)
	want = 10.0 + 20.0 + 1000.0/RemoteCostDivisor
	if got != want {
		t.Errorf("remote-cost latency: got %f, want %f", got, want)
	}
}

func TestGraph_DependenciesOf(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddService(newTestService(id, 10))
	}
	if err := g.AddDependency("a", "b", 10, 1); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDependency("a", "c", 10, 1); err != nil {
		t.Fatal(err)
	}

	deps := g.DependenciesOf("a")
	if len(deps) != 2 || deps[0].To != "b" || deps[1].To != "c" {
		t.Errorf("expected [b c] in insertion order, got %v", deps)
	}
}

func TestGraph_SourcesAndSinks(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddService(newTestService(id, 10))
	}
	if err := g.AddDependency("a", "b", 10, 1); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDependency("b", "c", 10, 1); err != nil {
		t.Fatal(err)
	}

	if got := g.Sources(); len(got) != 1 || got[0] != "a" {
		t.Errorf("expected sources [a], got %v", got)
	}
	if got := g.Sinks(); len(got) != 1 || got[0] != "c" {
		t.Errorf("expected sinks [c], got %v", got)
	}
}
