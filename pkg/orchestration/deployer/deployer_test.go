package deployer

import (
	"testing"

	"orchestrator/pkg/orchestration/depgraph"
	"orchestrator/pkg/orchestration/paramvector"
	"orchestrator/pkg/orchestration/registry"
	"orchestrator/pkg/orchestration/restypes"
)

// buildEdgeVsCloud sets up a two-service linear chain, one edge node
// and one cloud node, default capacities, 30ms delay.
func buildEdgeVsCloud(t *testing.T) (*depgraph.Graph, *registry.Registry) {
	t.Helper()
	g := depgraph.NewGraph()
	a := restypes.NewService("A", restypes.Requirements{CPU: 0.8, Mem: 800, Bandwidth: 15}, 10)
	b := restypes.NewService("B", restypes.Requirements{CPU: 0.3, Mem: 1500, Bandwidth: 40}, 15)
	g.AddService(a)
	g.AddService(b)
	if err := g.AddDependency("A", "B", 50, 0.8); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	reg := registry.NewRegistry()
	edge := restypes.NewNode("edge-1", true)
	cloud := restypes.NewNode("cloud-1", false)
	reg.Register(edge)
	reg.Register(cloud)
	if err := reg.SetDelay("edge-1", "cloud-1", 30); err != nil {
		t.Fatalf("SetDelay: %v", err)
	}

	return g, reg
}

func TestExecuteDeployment_ColocatesOnCloudNode(t *testing.T) {
	g, reg := buildEdgeVsCloud(t)
	params := paramvector.New()
	dep := New(g, reg, params)

	result := dep.ExecuteDeployment()
	if len(result.Unplaced) != 0 {
		t.Fatalf("expected both services placed, unplaced=%v", result.Unplaced)
	}
	if result.Placement["A"] != result.Placement["B"] {
		t.Errorf("expected both services colocated, got A=%s B=%s", result.Placement["A"], result.Placement["B"])
	}
	if result.Placement["A"] != "cloud-1" {
		t.Errorf("expected colocation on cloud-1 (lower resource pressure product), got %s", result.Placement["A"])
	}
}

func TestExecuteDeployment_CapacityExhaustion(t *testing.T) {
	// Three services each requiring (3, 4000, 40) against one edge node
	// (4, 8192, 100); exactly one should place.
	g := depgraph.NewGraph()
	for _, id := range []string{"s1", "s2", "s3"} {
		g.AddService(restypes.NewService(id, restypes.Requirements{CPU: 3, Mem: 4000, Bandwidth: 40}, 10))
	}
	reg := registry.NewRegistry()
	reg.Register(restypes.NewNode("edge-1", true))

	params := paramvector.New()
	dep := New(g, reg, params)

	result := dep.ExecuteDeployment()
	if len(result.Placement) != 1 {
		t.Fatalf("expected exactly 1 placed, got %d (%v)", len(result.Placement), result.Placement)
	}
	if len(result.Unplaced) != 2 {
		t.Fatalf("expected exactly 2 unplaced, got %d (%v)", len(result.Unplaced), result.Unplaced)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a non-fatal warning about insufficient capacity")
	}

	avail := reg.All()[0].Capacity.Available()
	if avail.CPU < 0 || avail.Mem < 0 || avail.Bandwidth < 0 {
		t.Errorf("expected no negative availables, got %+v", avail)
	}
}

func TestRefine_NoopAtZeroIterations(t *testing.T) {
	g, reg := buildEdgeVsCloud(t)
	params := paramvector.New()
	dep := New(g, reg, params)

	phaseCResult := dep.ExecuteDeployment()
	refined := dep.Refine(stubProposer{}, 0)

	if len(refined.Placement) != len(phaseCResult.Placement) {
		t.Fatalf("expected Refine(0) to return Phase C's placement unchanged")
	}
	for k, v := range phaseCResult.Placement {
		if refined.Placement[k] != v {
			t.Errorf("expected placement[%s]=%s unchanged, got %s", k, v, refined.Placement[k])
		}
	}
}

type stubProposer struct{}

func (stubProposer) Aggregate() paramvector.Snapshot {
	return paramvector.Snapshot{
		Alpha: paramvector.DefaultAlpha, Beta: paramvector.DefaultBeta, Gamma: paramvector.DefaultGamma,
		Tau: paramvector.DefaultTau, Uth: paramvector.DefaultUth,
		Scaling: paramvector.DefaultScaling, AdaptRate: paramvector.DefaultAdaptRate,
	}
}

func TestTryMigrate_MovesServiceToCheaperNode(t *testing.T) {
	// Two dependent services, both placed on a tightly-sized node that
	// fits them with little room to spare (high load-balance cost). A
	// roomy node is then registered late, the way a fleet operator might
	// add capacity after initial deployment; tryMigrate should find it
	// strictly cheaper and move the upstream service over.
	g := depgraph.NewGraph()
	s1 := restypes.NewService("s1", restypes.Requirements{CPU: 1, Mem: 1000, Bandwidth: 10}, 5)
	s2 := restypes.NewService("s2", restypes.Requirements{CPU: 1, Mem: 1000, Bandwidth: 10}, 5)
	g.AddService(s1)
	g.AddService(s2)
	if err := g.AddDependency("s1", "s2", 1, 0.01); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	reg := registry.NewRegistry()
	tight := restypes.NewNode("tight", true)
	tight.Capacity = restypes.NewCapacity(2, 2000, 20)
	reg.Register(tight)

	params := paramvector.New()
	dep := New(g, reg, params)

	result := dep.ExecuteDeployment()
	if len(result.Unplaced) != 0 {
		t.Fatalf("expected both services placed on the only node, unplaced=%v", result.Unplaced)
	}
	if result.Placement["s1"] != "tight" || result.Placement["s2"] != "tight" {
		t.Fatalf("expected both services on tight, got %+v", result.Placement)
	}

	roomy := restypes.NewNode("roomy", false)
	roomy.Capacity = restypes.NewCapacity(100, 100000, 1000)
	reg.Register(roomy)
	if err := reg.SetDelay("tight", "roomy", 5); err != nil {
		t.Fatalf("SetDelay: %v", err)
	}

	dep.tryMigrate("s1")

	if got := dep.Placement()["s1"]; got != "roomy" {
		t.Fatalf("expected s1 to migrate to roomy, got %s", got)
	}
	if got := dep.Placement()["s2"]; got != "tight" {
		t.Errorf("expected s2 to stay on tight (not evaluated), got %s", got)
	}

	tightAvail := tight.Capacity.Available()
	if tightAvail.CPU != 1 || tightAvail.Mem != 1000 || tightAvail.Bandwidth != 10 {
		t.Errorf("expected tight's capacity released back to s2-only usage, got %+v", tightAvail)
	}
	roomyAvail := roomy.Capacity.Available()
	if roomyAvail.CPU != 99 || roomyAvail.Mem != 99000 || roomyAvail.Bandwidth != 990 {
		t.Errorf("expected roomy's capacity reduced by s1's requirements, got %+v", roomyAvail)
	}
}

func TestPlacementCost_MigrationThreshold(t *testing.T) {
	// Current cost 100, candidate 85 -> no migration (0.85 > 0.8);
	// candidate 79 -> migrate. Exercised directly against the threshold
	// arithmetic rather than through the full cost model.
	currentCost := 100.0
	ratio := DefaultTuning().MigrationImprovementRatio
	if 85.0 <= ratio*currentCost {
		t.Error("expected 85 to be above the migration threshold (no migration)")
	}
	if 79.0 > ratio*currentCost {
		t.Error("expected 79 to be within the migration threshold")
	}
}
