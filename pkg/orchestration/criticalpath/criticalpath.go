// Package criticalpath implements the multi-dimensional critical-path
// analyzer: it scores every simple path between a source and a sink on
// temporal, resource, and dependency criticality, normalizes each
// dimension within the call's path set, and ranks the composite.
package criticalpath

import (
	"math"
	"sort"
	"strings"

	"orchestrator/pkg/orchestration/depgraph"
	"orchestrator/pkg/orchestration/paramvector"
	"orchestrator/pkg/orchestration/registry"
	"orchestrator/pkg/orchestration/restypes"
)

// Scored is a path annotated with its raw and normalized criticalities and
// composite score.
type Scored struct {
	Path        depgraph.Path
	Temporal    float64
	Resource    float64
	Dependency  float64
	NormTemporal   float64
	NormResource   float64
	NormDependency float64
	Score       float64
	Critical    bool
}

// Analyzer computes and ranks critical paths for a graph/registry pair,
// tuned by a shared parameter vector.
type Analyzer struct {
	graph    *depgraph.Graph
	nodes    *registry.Registry
	params   *paramvector.Vector
}

// New creates an Analyzer over the given graph and node registry, reading
// weights and threshold from params at call time.
func New(graph *depgraph.Graph, nodes *registry.Registry, params *paramvector.Vector) *Analyzer {
	return &Analyzer{graph: graph, nodes: nodes, params: params}
}

// IdentifyCriticalPaths enumerates every simple path from src to dst,
// scores each on the three criticality dimensions, normalizes within this
// call's path set, and returns them sorted by composite score descending
// (ties break by path length ascending, then lexicographic service-id
// sequence).
func (a *Analyzer) IdentifyCriticalPaths(src, dst string) []Scored {
	paths := a.graph.GetAllPaths(src, dst)
	if len(paths) == 0 {
		return nil
	}

	scored := make([]Scored, len(paths))
	for i, p := range paths {
		scored[i] = Scored{
			Path:       p,
			Temporal:   a.temporal(p),
			Resource:   a.resource(p),
			Dependency: a.dependency(p),
		}
	}

	normalize(scored, func(s *Scored) *float64 { return &s.NormTemporal }, func(s Scored) float64 { return s.Temporal })
	normalize(scored, func(s *Scored) *float64 { return &s.NormResource }, func(s Scored) float64 { return s.Resource })
	normalize(scored, func(s *Scored) *float64 { return &s.NormDependency }, func(s Scored) float64 { return s.Dependency })

	alpha, beta, gamma := a.params.Weights()
	tau := a.params.Threshold()
	for i := range scored {
		s := &scored[i]
		s.Score = alpha*s.NormTemporal + beta*s.NormResource + gamma*s.NormDependency
		s.Critical = s.Score > tau
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if len(scored[i].Path) != len(scored[j].Path) {
			return len(scored[i].Path) < len(scored[j].Path)
		}
		return strings.Join(scored[i].Path, ",") < strings.Join(scored[j].Path, ",")
	})

	return scored
}

// temporal is T(p) = sequentialLatency(p), using the current node
// assignment (if any) for the local/remote communication split.
func (a *Analyzer) temporal(p depgraph.Path) float64 {
	nodeOf := func(serviceID string) string {
		svc, ok := a.graph.Service(serviceID)
		if !ok {
			return ""
		}
		id, placed := svc.NodeID()
		if !placed {
			return ""
		}
		return id
	}
	return a.graph.SequentialLatency(p, nodeOf)
}

// resource is R(p) = sum over services in p of pressure(s) * util(node(s)),
// with unplaced services contributing 0.
func (a *Analyzer) resource(p depgraph.Path) float64 {
	var total float64
	for _, id := range p {
		svc, ok := a.graph.Service(id)
		if !ok {
			continue
		}
		nodeID, placed := svc.NodeID()
		if !placed {
			continue
		}
		node, err := a.nodes.Get(nodeID)
		if err != nil {
			continue
		}
		totals := node.Capacity.Totals()
		pressure := pressureOf(svc.Requirements, totals)
		cpuUtil, _, _ := node.Capacity.Utilization()
		total += pressure * cpuUtil
	}
	return total
}

// pressureOf is pressure(s) = 0.5*(cpu_r/cpu_t) + 0.3*(mem_r/mem_t) +
// 0.2*(bw_r/bw_t), the service's base requirement share of node totals.
func pressureOf(req restypes.Requirements, totals restypes.Requirements) float64 {
	return 0.5*ratio(req.CPU, totals.CPU) + 0.3*ratio(req.Mem, totals.Mem) + 0.2*ratio(req.Bandwidth, totals.Bandwidth)
}

func ratio(num, den float64) float64 {
	if den <= restypes.Epsilon {
		return 0
	}
	return num / den
}

// dependency is D(p) = sum over services in p of |dep(s)| *
// (sum over edges in dep(s) of freq(e)*data(e)) / |dep(s)|, which
// simplifies to the raw sum of freq*data over outgoing edges; the |dep(s)|
// factors cancel but are kept explicit here to mirror the documented
// formula and its zero-dependency guard.
func (a *Analyzer) dependency(p depgraph.Path) float64 {
	var total float64
	for _, id := range p {
		edges := a.graph.DependenciesOf(id)
		n := len(edges)
		if n == 0 {
			continue
		}
		var sum float64
		for _, e := range edges {
			sum += e.Frequency * e.DataVolume
		}
		total += float64(n) * (sum / float64(n))
	}
	return total
}

// UpdateWeights replaces the analyzer's criticality weights. The three
// proposals are scored by their population stdev: if it is nonzero, each
// proposal is divided by it (a z-score against zero) and the results are
// rescaled so they sum to 1; otherwise, or if that post-normalization sum
// is too close to zero to divide by, the weights snap to the documented
// defaults.
func (a *Analyzer) UpdateWeights(alphaProposal, betaProposal, gammaProposal float64) {
	vals := [3]float64{alphaProposal, betaProposal, gammaProposal}
	mean := (vals[0] + vals[1] + vals[2]) / 3
	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	variance /= 3
	stdev := math.Sqrt(variance)

	if stdev <= restypes.Epsilon {
		a.params.ResetWeightsToDefault()
		return
	}

	z := [3]float64{vals[0] / stdev, vals[1] / stdev, vals[2] / stdev}
	sum := z[0] + z[1] + z[2]
	if math.Abs(sum) <= 1e-6 {
		a.params.ResetWeightsToDefault()
		return
	}
	normalized := [3]float64{z[0] / sum, z[1] / sum, z[2] / sum}
	if err := a.params.UpdateWeights(normalized[0], normalized[1], normalized[2]); err != nil {
		a.params.ResetWeightsToDefault()
	}
}

// SetThreshold replaces tau with no clamping beyond the [0,1] range the
// parameter vector itself enforces.
func (a *Analyzer) SetThreshold(tau float64) error {
	return a.params.SetThreshold(tau)
}

// normalize performs min-max scaling of one dimension across scored into
// [0,1], writing through the getter's pointer. When min equals max every
// value normalizes to 0.5.
func normalize(scored []Scored, ptr func(*Scored) *float64, get func(Scored) float64) {
	if len(scored) == 0 {
		return
	}
	min, max := get(scored[0]), get(scored[0])
	for _, s := range scored[1:] {
		v := get(s)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	for i := range scored {
		if max-min <= restypes.Epsilon {
			*ptr(&scored[i]) = 0.5
			continue
		}
		*ptr(&scored[i]) = (get(scored[i]) - min) / (max - min)
	}
}
