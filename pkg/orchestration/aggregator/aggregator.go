// Package aggregator implements the federated parameter aggregator:
// per-node local parameter updates gated by sample count and quality
// score, a capability/reliability-weighted combination into a new global
// parameter vector, and a blended distribution back to each node.
package aggregator

import (
	"math"
	"sort"
	"sync"

	"orchestrator/pkg/orchestration/paramvector"
)

// Unconfigurable constants: fixed smoothing/seed values not enumerated
// as tunable options.
const (
	qualityEMAWeight  = 0.3
	failRateEMAWeight = 0.9 // smoothing on the prior
	initialQuality    = 0.8
)

// Tuning holds the gating and blend parameters every round reads.
// DefaultTuning reproduces the documented defaults; callers needing
// different values construct their own and pass it to New via
// WithTuning.
type Tuning struct {
	SampleCountMin int     // Nmin
	QualityMin     float64 // Qmin

	BaseLearningRate float64 // eta0
	AdaptivityFactor float64 // lambda
	LocalBlendRatio  float64 // local share of the distributed mirror
}

// DefaultTuning returns the documented default gating and blend
// parameters.
func DefaultTuning() Tuning {
	return Tuning{
		SampleCountMin:   3,
		QualityMin:       0.7,
		BaseLearningRate: 1e-3,
		AdaptivityFactor: 0.5,
		LocalBlendRatio:  0.2,
	}
}

// NodeStats is the chain/resource telemetry a local update reads for one
// node each round — supplied by the caller (ultimately sourced from the
// Monitor), not computed by the aggregator itself.
type NodeStats struct {
	ChainLatencyVariance float64
	ChainLatencyMs       float64
	AvgUtilization       float64
	CompletionRate       float64
	TotalRequests        int64
	FailedRequests       int64
}

// nodeModel is the aggregator's private per-node collaborator: a local
// parameter mirror, a sample counter, and an EMA quality score. Kept as
// a sibling of Aggregator rather than nested, to avoid a buried
// collaborator class.
type nodeModel struct {
	mu sync.Mutex

	id           string
	capability   float64 // static, set at registration from the node's totals
	local        paramvector.Snapshot
	sampleCount  int
	qualityScore float64
	failRate     float64
}

func newNodeModel(id string, capability float64, initial paramvector.Snapshot) *nodeModel {
	return &nodeModel{id: id, capability: capability, local: initial, qualityScore: initialQuality}
}

// globalModel is process-wide state owned by the aggregator: the current
// globally aggregated parameter vector, shared by value with every
// caller. Readers (the critical-path analyzer and the deployer) take the
// vector by value.
type globalModel struct {
	mu      sync.RWMutex
	current paramvector.Snapshot
}

func newGlobalModel(initial paramvector.Snapshot) *globalModel {
	return &globalModel{current: initial}
}

func (g *globalModel) snapshot() paramvector.Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

func (g *globalModel) set(s paramvector.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = s
}

// Capability is computed at RegisterNode time from a real node's
// resource totals; callers must supply real totals rather than a
// null-returning stand-in.
type Aggregator struct {
	mu     sync.RWMutex
	nodes  map[string]*nodeModel
	global *globalModel
	tuning Tuning
}

// Option configures an optional Aggregator dependency at construction
// time.
type Option func(*Aggregator)

// WithTuning overrides the gating and blend parameters. Without it, New
// uses DefaultTuning.
func WithTuning(t Tuning) Option {
	return func(a *Aggregator) { a.tuning = t }
}

// New creates an Aggregator seeded from params' current values as both
// the initial global model and every future node's local mirror. tuning
// defaults to DefaultTuning unless overridden via WithTuning.
func New(params *paramvector.Vector, opts ...Option) *Aggregator {
	a := &Aggregator{
		nodes:  make(map[string]*nodeModel),
		global: newGlobalModel(params.Snapshot()),
		tuning: DefaultTuning(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// capability is a scalar summarizing a node's raw capacity: 0.5*(Tcpu/10)
// + 0.3*(Tmem/8000) + 0.2*(Tbw/1000).
func capability(totalCPU, totalMem, totalBandwidth float64) float64 {
	return 0.5*(totalCPU/10) + 0.3*(totalMem/8000) + 0.2*(totalBandwidth/1000)
}

// RegisterNode adds a node to the federation, computing its static
// capability from its resource totals and seeding its local mirror from
// the current global vector.
func (a *Aggregator) RegisterNode(nodeID string, totalCPU, totalMem, totalBandwidth float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.nodes[nodeID]; !ok {
		cap := capability(totalCPU, totalMem, totalBandwidth)
		a.nodes[nodeID] = newNodeModel(nodeID, cap, a.global.snapshot())
	}
}

// LocalUpdate runs one per-round local gradient step for a node. It is
// not idempotent: calling it twice in a round applies two steps —
// the scheduler decides cadence, not this method.
func (a *Aggregator) LocalUpdate(nodeID string, stats NodeStats) {
	a.mu.RLock()
	nm, ok := a.nodes[nodeID]
	a.mu.RUnlock()
	if !ok {
		return
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()

	eta := a.tuning.BaseLearningRate / math.Sqrt(1+a.tuning.AdaptivityFactor*stats.ChainLatencyVariance)
	if eta > a.tuning.BaseLearningRate {
		eta = a.tuning.BaseLearningRate
	}

	dAlpha := stats.ChainLatencyMs / 100
	dBeta := (stats.AvgUtilization - 0.7) * 0.5
	dGamma := 0.1
	dTau := (0.95 - stats.CompletionRate) * 0.2
	dScaling := (0.7 - stats.AvgUtilization) * 0.3

	nm.local.Alpha -= eta * dAlpha
	nm.local.Beta -= eta * dBeta
	nm.local.Gamma -= eta * dGamma
	nm.local.Tau -= eta * dTau
	nm.local.Scaling -= eta * dScaling

	nm.sampleCount++
	nm.qualityScore = (1-qualityEMAWeight)*nm.qualityScore + qualityEMAWeight*stats.CompletionRate

	if stats.TotalRequests > 0 {
		observed := float64(stats.FailedRequests) / float64(stats.TotalRequests)
		nm.failRate = failRateEMAWeight*nm.failRate + (1-failRateEMAWeight)*observed
	}
}

// weightedNode is a gated candidate's locked-in snapshot plus its
// combination weight for this round.
type weightedNode struct {
	local  paramvector.Snapshot
	weight float64
}

// Aggregate selects nodes meeting both the sample-count and
// quality-score gates, weights them by capability*(1-failRate) scaled by
// sqrt(sampleCount), and combines into a new global vector one parameter
// at a time, using only the nodes that carry it. It then distributes a
// blended local mirror back to every participating node and returns the
// new global snapshot.
func (a *Aggregator) Aggregate() paramvector.Snapshot {
	a.mu.RLock()
	ids := make([]string, 0, len(a.nodes))
	for id := range a.nodes {
		ids = append(ids, id)
	}
	nodesByID := a.nodes
	a.mu.RUnlock()
	sort.Strings(ids)

	var selected []weightedNode
	var selectedModels []*nodeModel

	for _, id := range ids {
		nm := nodesByID[id]
		nm.mu.Lock()
		sampleCount, quality, local, failRate := nm.sampleCount, nm.qualityScore, nm.local, nm.failRate
		cap := nm.capability
		nm.mu.Unlock()

		if sampleCount < a.tuning.SampleCountMin || quality < a.tuning.QualityMin {
			continue
		}
		weight := cap * (1 - failRate) * math.Sqrt(float64(sampleCount))
		selected = append(selected, weightedNode{local: local, weight: weight})
		selectedModels = append(selectedModels, nm)
	}

	if len(selected) == 0 {
		// Stability: leave the global vector unchanged.
		return a.global.snapshot()
	}

	current := a.global.snapshot()
	next := current

	for _, field := range paramFields {
		var totalWeight, weightedSum float64
		for _, s := range selected {
			totalWeight += s.weight
			weightedSum += s.weight * field.get(s.local)
		}
		if totalWeight == 0 {
			// Fall back to the current global value for this parameter.
			continue
		}
		field.set(&next, weightedSum/totalWeight)
	}

	a.global.set(next)

	for _, nm := range selectedModels {
		nm.mu.Lock()
		nm.local = blend(next, nm.local, a.tuning.LocalBlendRatio)
		nm.mu.Unlock()
	}

	return next
}

// blend combines the new global vector with a node's local mirror as
// (1-localBlendRatio)*global + localBlendRatio*local, preserving
// per-node adaptation.
func blend(global, local paramvector.Snapshot, localBlendRatio float64) paramvector.Snapshot {
	b := func(g, l float64) float64 { return (1-localBlendRatio)*g + localBlendRatio*l }
	return paramvector.Snapshot{
		Alpha:     b(global.Alpha, local.Alpha),
		Beta:      b(global.Beta, local.Beta),
		Gamma:     b(global.Gamma, local.Gamma),
		Tau:       b(global.Tau, local.Tau),
		Uth:       b(global.Uth, local.Uth),
		Scaling:   b(global.Scaling, local.Scaling),
		AdaptRate: b(global.AdaptRate, local.AdaptRate),
	}
}

type paramField struct {
	get func(paramvector.Snapshot) float64
	set func(*paramvector.Snapshot, float64)
}

var paramFields = []paramField{
	{func(s paramvector.Snapshot) float64 { return s.Alpha }, func(s *paramvector.Snapshot, v float64) { s.Alpha = v }},
	{func(s paramvector.Snapshot) float64 { return s.Beta }, func(s *paramvector.Snapshot, v float64) { s.Beta = v }},
	{func(s paramvector.Snapshot) float64 { return s.Gamma }, func(s *paramvector.Snapshot, v float64) { s.Gamma = v }},
	{func(s paramvector.Snapshot) float64 { return s.Tau }, func(s *paramvector.Snapshot, v float64) { s.Tau = v }},
	{func(s paramvector.Snapshot) float64 { return s.Uth }, func(s *paramvector.Snapshot, v float64) { s.Uth = v }},
	{func(s paramvector.Snapshot) float64 { return s.Scaling }, func(s *paramvector.Snapshot, v float64) { s.Scaling = v }},
	{func(s paramvector.Snapshot) float64 { return s.AdaptRate }, func(s *paramvector.Snapshot, v float64) { s.AdaptRate = v }},
}
