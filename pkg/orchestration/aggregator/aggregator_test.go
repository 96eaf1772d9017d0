package aggregator

import (
	"testing"

	"orchestrator/pkg/orchestration/paramvector"
)

func TestAggregate_EmptySelection_LeavesGlobalUnchanged(t *testing.T) {
	params := paramvector.New()
	a := New(params)
	a.RegisterNode("n1", 4, 8192, 100)

	before := a.Aggregate()
	after := a.Aggregate()
	if before != after {
		t.Errorf("expected global vector unchanged with no gated nodes, got %+v vs %+v", before, after)
	}
}

func TestAggregate_GatesOnSampleCountAndQuality(t *testing.T) {
	// sampleCount 2 and 5, both qualityScore 0.9. Only the node with
	// sampleCount >= Nmin(3) participates.
	params := paramvector.New()
	a := New(params)
	a.RegisterNode("low", 4, 8192, 100)
	a.RegisterNode("high", 16, 32768, 1000)

	// Drive "low" to sampleCount=2, quality 0.9.
	for i := 0; i < 2; i++ {
		a.LocalUpdate("low", NodeStats{CompletionRate: 1.0})
	}
	// Drive "high" to sampleCount=5, quality 0.9, with a distinctive
	// alpha-shifting chain latency so its participation is observable.
	for i := 0; i < 5; i++ {
		a.LocalUpdate("high", NodeStats{CompletionRate: 1.0, ChainLatencyMs: 500})
	}

	lowQuality := a.nodes["low"].qualityScore
	highQuality := a.nodes["high"].qualityScore
	qualityMin := DefaultTuning().QualityMin
	if lowQuality < qualityMin || highQuality < qualityMin {
		t.Fatalf("expected both nodes above quality gate for this scenario, got low=%f high=%f", lowQuality, highQuality)
	}

	before := a.global.snapshot()
	next := a.Aggregate()

	if next.Alpha == before.Alpha {
		t.Error("expected global alpha to shift toward the participating node's local mirror")
	}

	lowLocalAlpha := a.nodes["low"].local.Alpha
	if lowLocalAlpha != paramvector.DefaultAlpha {
		t.Errorf("expected the non-gated node's local mirror untouched by distribution, got %f", lowLocalAlpha)
	}
}

func TestLocalUpdate_AccumulatesSampleCount(t *testing.T) {
	params := paramvector.New()
	a := New(params)
	a.RegisterNode("n1", 8, 16000, 500)

	a.LocalUpdate("n1", NodeStats{CompletionRate: 0.9})
	a.LocalUpdate("n1", NodeStats{CompletionRate: 0.9})

	if a.nodes["n1"].sampleCount != 2 {
		t.Errorf("expected sampleCount 2, got %d", a.nodes["n1"].sampleCount)
	}
}

func TestCapability_WeightsByResourceTotals(t *testing.T) {
	small := capability(4, 8192, 100)
	large := capability(16, 32768, 1000)
	if large <= small {
		t.Errorf("expected a cloud-class node's capability to exceed an edge-class node's, got small=%f large=%f", small, large)
	}
}
