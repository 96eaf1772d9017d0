package deployer

import (
	"math"

	"orchestrator/pkg/orchestration/criticalpath"
	"orchestrator/pkg/orchestration/paramvector"
	"orchestrator/pkg/orchestration/restypes"
)

// Refine runs Phase D, the federated refinement loop: each round asks the
// proposer for a newly aggregated parameter vector, re-identifies
// critical paths under it, and migrates any critical-path service to a
// strictly-better-fitting node. It stops when the parameter delta's L2
// norm drops below tuning.ConvergenceThreshold or maxIterations rounds
// have run, whichever comes first.
//
// maxIterations <= 0 is a valid no-op: it returns Phase C's result
// unchanged.
func (d *Deployer) Refine(proposer Proposer, maxIterations int) Result {
	if maxIterations <= 0 {
		return Result{Placement: d.Placement(), Unplaced: d.unplacedServices(), Warnings: nil}
	}

	prev := d.params.Snapshot()
	converged := false

	for i := 0; i < maxIterations; i++ {
		next := proposer.Aggregate()
		applySnapshot(d.params, next)

		critical := d.phaseA()
		d.migrateRound(critical)

		delta := l2Delta(prev, next)
		prev = next
		if delta < d.tuning.ConvergenceThreshold {
			converged = true
			break
		}
	}

	var warnings []string
	if !converged {
		warnings = append(warnings, "refinement did not converge within maxIterations")
	}

	return Result{Placement: d.Placement(), Unplaced: d.unplacedServices(), Warnings: warnings}
}

func (d *Deployer) unplacedServices() []string {
	var out []string
	for _, svc := range d.graph.Services() {
		if _, placed := d.placement[svc.ID]; !placed {
			out = append(out, svc.ID)
		}
	}
	return out
}

// applySnapshot pushes an aggregated parameter snapshot into the shared
// vector so the next phaseA call observes it. Weight validation has
// already happened inside the aggregator; a rejected update here simply
// leaves the vector at its prior (still-valid) values.
func applySnapshot(v *paramvector.Vector, s paramvector.Snapshot) {
	_ = v.UpdateWeights(s.Alpha, s.Beta, s.Gamma)
	_ = v.SetThreshold(s.Tau)
	_ = v.SetOverloadThreshold(s.Uth)
	_ = v.SetScaling(s.Scaling)
	_ = v.SetAdaptRate(s.AdaptRate)
}

// migrateRound evaluates every service on a critical path for migration:
// it compares the service's cost on its current node against every other
// fitting node, and migrates to any node whose cost is at most
// tuning.MigrationImprovementRatio of the current cost. Each service
// migrates at most once per round.
func (d *Deployer) migrateRound(critical []criticalpath.Scored) {
	migrated := make(map[string]bool)
	for _, scored := range critical {
		for _, serviceID := range scored.Path {
			if migrated[serviceID] {
				continue
			}
			migrated[serviceID] = true
			d.tryMigrate(serviceID)
		}
	}
}

// tryMigrate attempts to move a single service to a strictly cheaper
// node. Migration is atomic: the destination's allocate must succeed
// before the source releases anything, so a failed allocate never leaves
// the service in a "released but not placed" state.
func (d *Deployer) tryMigrate(serviceID string) {
	svc, ok := d.graph.Service(serviceID)
	if !ok {
		return
	}
	currentNodeID, placed := svc.NodeID()
	if !placed {
		return
	}
	currentNode, err := d.nodes.Get(currentNodeID)
	if err != nil {
		return
	}
	currentCost := d.placementCost(svc, currentNode)

	var bestNode *restypes.Node
	bestCost := currentCost
	for _, n := range d.nodes.All() {
		if n.ID == currentNodeID || !n.Capacity.Fits(svc.Requirements) {
			continue
		}
		cost := d.placementCost(svc, n)
		if cost < bestCost {
			bestCost = cost
			bestNode = n
		}
	}
	if bestNode == nil || bestCost > d.tuning.MigrationImprovementRatio*currentCost {
		return
	}

	if !bestNode.Capacity.Allocate(svc.Requirements) {
		return
	}
	currentNode.Capacity.Release(svc.Requirements)
	currentNode.Unhost(serviceID)
	bestNode.Host(serviceID)
	svc.SetNode(bestNode.ID)
	d.placement[serviceID] = bestNode.ID
}

// l2Delta computes the L2 norm of the parameter-vector delta across the
// seven named parameters.
func l2Delta(a, b paramvector.Snapshot) float64 {
	d2 := sq(a.Alpha-b.Alpha) + sq(a.Beta-b.Beta) + sq(a.Gamma-b.Gamma) +
		sq(a.Tau-b.Tau) + sq(a.Uth-b.Uth) + sq(a.Scaling-b.Scaling) + sq(a.AdaptRate-b.AdaptRate)
	return math.Sqrt(d2)
}

func sq(x float64) float64 { return x * x }
