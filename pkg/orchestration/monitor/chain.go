package monitor

// colocatedLatencyMs is the fixed communication latency between two
// consecutive chain services known to share a node.
const colocatedLatencyMs = 1.0

// defaultInterNodeDelayMs is used when no delay resolver is wired in.
const defaultInterNodeDelayMs = 30.0

// Topology lets the Monitor resolve a service's current node and the
// delay between two nodes, so it can derive end-to-end chain latency
// without importing the registry/deployer packages directly.
type Topology interface {
	NodeOf(serviceID string) (string, bool)
	DelayBetween(a, b string) (float64, error)
}

// SetTopology wires the placement/delay view the chain-latency
// derivation reads. Safe to call before Start.
func (m *Monitor) SetTopology(t Topology) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topology = t
}

// deriveChainMetricsLocked computes end-to-end latency (sum of member
// processing latencies plus inter-service communication) and completion
// rate (the minimum request rate among members, the bottleneck) for one
// chain. Caller must hold m.mu for reading.
func (m *Monitor) deriveChainMetricsLocked(chainID string) Sample {
	members := m.chainMembers[chainID]
	if len(members) == 0 {
		return Sample{}
	}

	var totalLatency float64
	minRate := -1.0
	maxLatency, minLatency := -1.0, -1.0

	for i, id := range members {
		st, ok := m.services[id]
		if !ok {
			continue
		}
		s := st.snapshot()
		totalLatency += s.LatencyMs
		if minRate < 0 || s.RequestRate < minRate {
			minRate = s.RequestRate
		}
		if maxLatency < 0 || s.LatencyMs > maxLatency {
			maxLatency = s.LatencyMs
		}
		if minLatency < 0 || s.LatencyMs < minLatency {
			minLatency = s.LatencyMs
		}

		if i == 0 {
			continue
		}
		totalLatency += m.communicationLatency(members[i-1], id)
	}

	if minRate < 0 {
		minRate = 0
	}
	if maxLatency < 0 {
		maxLatency = 0
	}
	if minLatency < 0 {
		minLatency = 0
	}

	return Sample{
		LatencyMs:    totalLatency,
		RequestRate:  minRate,
		MaxLatencyMs: maxLatency,
		MinLatencyMs: minLatency,
	}
}

// communicationLatency is 1ms when the two services are colocated,
// otherwise the source node's recorded delay to the target node
// (defaulting to 30ms when no topology is wired).
func (m *Monitor) communicationLatency(from, to string) float64 {
	if m.topology == nil {
		return defaultInterNodeDelayMs
	}
	fromNode, fromOK := m.topology.NodeOf(from)
	toNode, toOK := m.topology.NodeOf(to)
	if !fromOK || !toOK {
		return defaultInterNodeDelayMs
	}
	if fromNode == toNode {
		return colocatedLatencyMs
	}
	delay, err := m.topology.DelayBetween(fromNode, toNode)
	if err != nil {
		return defaultInterNodeDelayMs
	}
	return delay
}
