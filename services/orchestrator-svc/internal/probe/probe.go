// Package probe wires the orchestrator core's synthetic telemetry source to
// live placement data, so SyntheticProbe's utilization amplification curves
// react to what the Deployer has actually placed rather than a fixed value.
package probe

import (
	"math/rand/v2"

	"orchestrator/pkg/orchestration/monitor"
	"orchestrator/pkg/orchestration/orchestrator"
)

// New builds a monitor.NodeProbe backed by the orchestrator's own node
// registry: a service's synthetic utilization is read off its assigned
// node's current resource pressure, so load generated by Deploy/Refine
// placement decisions shows up in the Monitor's sampled metrics.
//
// New takes the address of the caller's *orchestrator.Orchestrator
// variable rather than the pointer itself: orchestrator.New requires a
// NodeProbe at construction time, so this probe must exist before the
// Orchestrator it reads from does. The caller assigns the variable
// immediately after constructing the Orchestrator; every call to Sample
// happens later, once Start has launched the monitor's sampler
// goroutines, so the indirection is always resolved by the time it's
// dereferenced.
func New(op **orchestrator.Orchestrator) *monitor.SyntheticProbe {
	return &monitor.SyntheticProbe{
		UtilizationOf: func(serviceID string) float64 {
			o := *op
			if o == nil {
				return 0
			}
			svc, err := o.Service(serviceID)
			if err != nil {
				return 0
			}
			nodeID, placed := svc.NodeID()
			if !placed {
				return 0
			}
			n, err := o.Node(nodeID)
			if err != nil {
				return 0
			}
			cpu, mem, bw := n.Capacity.Utilization()
			return (cpu + mem + bw) / 3
		},
	}
}

// Rand01 returns a rand/v2-backed uniform generator in [0,1), matching
// SyntheticProbe's documented noise contract without reaching for the
// legacy math/rand global source.
func Rand01() func() float64 {
	return rand.Float64
}
