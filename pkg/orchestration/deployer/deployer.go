// Package deployer implements the topology-aware deployer: the four
// phase placement algorithm (critical-path identification, critical
// service placement, residual placement, federated refinement) that
// produces and maintains the service-to-node placement map.
package deployer

import (
	"fmt"
	"math"
	"sort"

	"orchestrator/pkg/orchestration/criticalpath"
	"orchestrator/pkg/orchestration/depgraph"
	"orchestrator/pkg/orchestration/monitor"
	"orchestrator/pkg/orchestration/paramvector"
	"orchestrator/pkg/orchestration/registry"
	"orchestrator/pkg/orchestration/restypes"
)

// Placement cost weights: communication dominates, then resource
// pressure, then load balance.
const (
	costCommunicationWeight = 0.5
	costResourceWeight      = 0.3
	costLoadBalanceWeight   = 0.2

	defaultMaxIterations = 10
)

// costInterferenceWeight scales the optional interference penalty added
// to placementCost when Tuning.InterferencePenaltyEnabled is set.
const costInterferenceWeight = 0.1

// Tuning holds the refinement-loop parameters Refine reads each round.
// DefaultTuning reproduces the documented defaults; callers needing
// different values construct their own and pass it to New via
// WithTuning.
type Tuning struct {
	ConvergenceThreshold      float64 // L2 norm below which refinement has converged
	MigrationImprovementRatio float64 // strict cost-improvement required to migrate

	// InterferencePenaltyEnabled adds a Pearson-correlation interference
	// term to placementCost for every service already hosted on the
	// candidate node, using each service's last-recorded utilization
	// triple. Off by default: it only has signal once utilization has
	// been observed and written back via Service.SetUtilization.
	InterferencePenaltyEnabled bool
}

// DefaultTuning returns the documented default refinement parameters.
func DefaultTuning() Tuning {
	return Tuning{
		ConvergenceThreshold:       0.01,
		MigrationImprovementRatio:  0.8,
		InterferencePenaltyEnabled: false,
	}
}

// Proposer supplies the aggregator's per-round aggregated parameter
// vector during Phase D. Satisfied by *aggregator.Aggregator; declared
// here to avoid an import cycle between deployer and aggregator.
type Proposer interface {
	Aggregate() paramvector.Snapshot
}

// Result is the outcome of a deployment or refinement run: the resulting
// placement, any services that could not be placed, and non-fatal
// warnings (e.g. refinement not converging) that never fail the call
// outright.
type Result struct {
	Placement map[string]string // service id -> node id
	Unplaced  []string
	Warnings  []string
}

// Deployer places services from a dependency graph onto nodes in a
// registry, tuned by a shared parameter vector. It is not reentrant: a
// single Deployer instance must not run ExecuteDeployment/Refine
// concurrently from two goroutines.
type Deployer struct {
	graph    *depgraph.Graph
	nodes    *registry.Registry
	params   *paramvector.Vector
	analyzer *criticalpath.Analyzer
	tuning   Tuning

	placement map[string]string
}

// Option configures an optional Deployer dependency at construction
// time.
type Option func(*Deployer)

// WithTuning overrides the refinement-loop parameters. Without it, New
// uses DefaultTuning.
func WithTuning(t Tuning) Option {
	return func(d *Deployer) { d.tuning = t }
}

// New creates a Deployer over the given graph, registry, and parameter
// vector, with a fresh empty placement. tuning defaults to DefaultTuning
// unless overridden via WithTuning.
func New(graph *depgraph.Graph, nodes *registry.Registry, params *paramvector.Vector, opts ...Option) *Deployer {
	d := &Deployer{
		graph:     graph,
		nodes:     nodes,
		params:    params,
		analyzer:  criticalpath.New(graph, nodes, params),
		tuning:    DefaultTuning(),
		placement: make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Placement returns a snapshot of the current service-id -> node-id map.
func (d *Deployer) Placement() map[string]string {
	out := make(map[string]string, len(d.placement))
	for k, v := range d.placement {
		out[k] = v
	}
	return out
}

// ExecuteDeployment runs Phase A through C: critical-path identification,
// critical-service placement, and residual placement for every remaining
// service. It does not run the federated refinement loop — call Refine
// separately when a Proposer is available.
func (d *Deployer) ExecuteDeployment() Result {
	critical := d.phaseA()
	d.phaseB(critical)
	return d.phaseC()
}

// phaseA pushes the current parameter vector into the analyzer and, for
// every (source, sink) pair, keeps the single top-ranked path keyed by
// "{source}-{sink}".
func (d *Deployer) phaseA() []criticalpath.Scored {
	sources := d.graph.Sources()
	sinks := d.graph.Sinks()

	seen := make(map[string]bool)
	var top []criticalpath.Scored
	for _, src := range sources {
		for _, dst := range sinks {
			if src == dst {
				continue
			}
			key := fmt.Sprintf("%s-%s", src, dst)
			if seen[key] {
				continue
			}
			seen[key] = true
			scored := d.analyzer.IdentifyCriticalPaths(src, dst)
			if len(scored) == 0 {
				continue
			}
			top = append(top, scored[0])
		}
	}
	return top
}

// phaseB iterates critical paths in the order Phase A returned them,
// placing every not-yet-placed service on the cost-minimizing fitting
// node.
func (d *Deployer) phaseB(critical []criticalpath.Scored) {
	for _, scored := range critical {
		for _, serviceID := range scored.Path {
			if _, placed := d.placement[serviceID]; placed {
				continue
			}
			d.placeOne(serviceID)
		}
	}
}

// phaseC places every service still unplaced, in service-id order (the
// order Graph.Services returns; the order in which services were added
// to the graph is not used), and reports unplaced services plus warnings
// (insufficient capacity never fails the call, it only adds a warning).
func (d *Deployer) phaseC() Result {
	var unplaced []string
	for _, svc := range d.graph.Services() {
		if _, placed := d.placement[svc.ID]; placed {
			continue
		}
		if !d.placeOne(svc.ID) {
			unplaced = append(unplaced, svc.ID)
		}
	}

	var warnings []string
	if len(unplaced) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d service(s) could not be placed: insufficient capacity", len(unplaced)))
	}

	return Result{Placement: d.Placement(), Unplaced: unplaced, Warnings: warnings}
}

// placeOne places a single service on its cost-minimizing fitting node.
// It reports whether placement succeeded; a false return leaves every
// piece of state — capacity, host sets, placement map — untouched
// (insufficient capacity is non-fatal and leaves state unchanged).
func (d *Deployer) placeOne(serviceID string) bool {
	svc, ok := d.graph.Service(serviceID)
	if !ok {
		return false
	}

	best, _, found := d.selectNode(svc)
	if !found {
		return false
	}

	if !best.Capacity.Allocate(svc.Requirements) {
		return false
	}
	best.Host(serviceID)
	svc.SetNode(best.ID)
	d.placement[serviceID] = best.ID
	return true
}

// selectNode returns the node minimizing placement cost among every node
// whose available capacity fits the service's requirements, tie-broken
// by node-id ascending.
func (d *Deployer) selectNode(svc *restypes.Service) (*restypes.Node, float64, bool) {
	candidates := make([]*restypes.Node, 0)
	for _, n := range d.nodes.All() {
		if n.Capacity.Fits(svc.Requirements) {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return nil, 0, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	var best *restypes.Node
	bestCost := math.Inf(1)
	for _, n := range candidates {
		cost := d.placementCost(svc, n)
		if cost < bestCost {
			best = n
			bestCost = cost
		}
	}
	return best, bestCost, true
}

// placementCost is cost(s,n) = 0.5*communication + 0.3*resource +
// 0.2*loadBalance. The product form of resource pressure
// deliberately disproportionately penalizes nodes tight on any one axis.
func (d *Deployer) placementCost(svc *restypes.Service, n *restypes.Node) float64 {
	communication := d.communicationCost(svc, n)
	resource := resourcePressureProduct(svc.Requirements, n.Capacity.Totals())
	cpu, mem, bw := n.Capacity.Utilization()
	loadBalance := cpu + mem + bw

	cost := costCommunicationWeight*communication + costResourceWeight*resource + costLoadBalanceWeight*loadBalance
	if d.tuning.InterferencePenaltyEnabled {
		cost += costInterferenceWeight * d.colocationInterference(svc, n)
	}
	return cost
}

// colocationInterference sums the Pearson-correlation interference
// between svc and every service already hosted on n, using each
// service's last-recorded CPU/memory/bandwidth utilization triple.
// Services with no recorded utilization yet contribute 0.
func (d *Deployer) colocationInterference(svc *restypes.Service, n *restypes.Node) float64 {
	var total float64
	for _, hostedID := range n.HostedServices() {
		if hostedID == svc.ID {
			continue
		}
		other, ok := d.graph.Service(hostedID)
		if !ok {
			continue
		}
		total += monitor.Interference(
			svc.Utilization(restypes.ResourceCPU), svc.Utilization(restypes.ResourceMemory), svc.Utilization(restypes.ResourceBandwidth),
			other.Utilization(restypes.ResourceCPU), other.Utilization(restypes.ResourceMemory), other.Utilization(restypes.ResourceBandwidth),
		)
	}
	return total
}

// communicationCost sums delay(n,n')*dataVolume*freq over every outgoing
// edge of svc whose target is already placed on a different node.
// Unplaced or colocated targets contribute 0.
func (d *Deployer) communicationCost(svc *restypes.Service, n *restypes.Node) float64 {
	var total float64
	for _, e := range d.graph.DependenciesOf(svc.ID) {
		targetNode, placed := d.placement[e.To]
		if !placed || targetNode == n.ID {
			continue
		}
		delay, err := d.nodes.DelayBetween(n.ID, targetNode)
		if err != nil {
			continue
		}
		total += delay * e.DataVolume * e.Frequency
	}
	return total
}

// resourcePressureProduct is (cpu_r/cpu_t)*(mem_r/mem_t)*(bw_r/bw_t) —
// the product, not the sum.
func resourcePressureProduct(req, totals restypes.Requirements) float64 {
	return safeRatio(req.CPU, totals.CPU) * safeRatio(req.Mem, totals.Mem) * safeRatio(req.Bandwidth, totals.Bandwidth)
}

func safeRatio(num, den float64) float64 {
	if den <= restypes.Epsilon {
		return 0
	}
	return num / den
}
