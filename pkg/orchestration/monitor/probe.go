// Package monitor implements the adaptive-sampling monitor: per-entity
// metric collection whose sampling interval narrows or widens with the
// variance of what it observes, a 1Hz snapshot aggregator feeding a ring
// buffer, derived chain metrics, and pairwise interference correlation.
package monitor

import (
	"hash/fnv"
	"math"
)

// Sample is one point-in-time reading for a service: processing latency,
// queue length, and request rate, plus the CPU/memory/bandwidth
// utilization triple it was observed under. MaxLatencyMs/MinLatencyMs
// are chain-derived only: the highest/lowest per-service latency among
// a chain's members, tracked separately from the chain's own end-to-end
// LatencyMs.
type Sample struct {
	LatencyMs    float64
	QueueLength  float64
	RequestRate  float64
	CPU, Mem, BW float64

	MaxLatencyMs float64
	MinLatencyMs float64
}

// NodeProbe supplies live telemetry for a service hosted on a node. The
// Monitor consumes an abstract NodeProbe; when no live probe is wired in,
// SyntheticProbe below reproduces the documented deterministic formulas
// so tests can mirror it exactly.
type NodeProbe interface {
	Sample(serviceID string, hourOfDay float64, rand01 func() float64) Sample
}

// SyntheticProbe is the deterministic telemetry generator the core ships
// when no live probe is available. Its formulas are part of the contract:
// base latency scales with a hash of the service id, amplifies above 70%
// CPU utilization, and queue length grows exponentially past 60% CPU.
type SyntheticProbe struct {
	// UtilizationOf returns the current CPU utilization in [0,1] for a
	// service id, used to drive the latency/queue amplification curves.
	UtilizationOf func(serviceID string) float64
}

// Sample computes one synthetic reading. rand01 must return a uniform
// value in [0,1); callers inject it so the sequence is reproducible in
// tests. The formulas use uniform noise in [0.9, 1.1].
func (p *SyntheticProbe) Sample(serviceID string, hourOfDay float64, rand01 func() float64) Sample {
	u := 0.0
	if p.UtilizationOf != nil {
		u = p.UtilizationOf(serviceID)
	}

	base := (float64(hashMod(serviceID, 10)) + 5) * 5 // ms
	amplifier := 1.0
	if u > 0.7 {
		amplifier = 1 + math.Pow((u-0.7)/0.3, 2)*5
	}
	noise := 0.9 + rand01()*0.2
	latency := base * amplifier * noise

	var queue float64
	if u > 0.6 {
		queue = math.Exp((u - 0.6) * 5)
	}

	requestRate := 0.7 + 0.6*math.Sin(math.Pi*(hourOfDay-6)/12)

	return Sample{
		LatencyMs:   latency,
		QueueLength: queue,
		RequestRate: requestRate,
		CPU:         u,
	}
}

// hashMod returns |hash(serviceID)| mod m using FNV-1a, matching the
// documented "|hash(serviceId)| mod 10" formula with a stable, portable
// hash rather than a language runtime's string hashCode.
func hashMod(serviceID string, m uint32) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(serviceID))
	return h.Sum32() % m
}
