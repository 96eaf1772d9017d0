package restypes

import "sync"

// Default capacities: edge nodes are smaller than cloud nodes.
const (
	EdgeCPU  = 4.0
	EdgeMem  = 8192.0 // MB
	EdgeBW   = 100.0  // Mbps
	CloudCPU = 16.0
	CloudMem = 32768.0 // MB
	CloudBW  = 1000.0  // Mbps

	// DefaultDelayMs is used for any node pair with no recorded delay.
	DefaultDelayMs = 100.0
)

// Node is a single placement target: an edge or cloud machine with its own
// resource capacity, a table of one-way delays to other nodes, and the set
// of services it currently hosts.
type Node struct {
	ID       string
	IsEdge   bool
	Capacity *Capacity

	mu      sync.RWMutex
	delays  map[string]float64
	hosted  map[string]struct{}
}

// NewNode creates a node with the default capacity for its class (edge or
// cloud).
func NewNode(id string, isEdge bool) *Node {
	var cap *Capacity
	if isEdge {
		cap = NewCapacity(EdgeCPU, EdgeMem, EdgeBW)
	} else {
		cap = NewCapacity(CloudCPU, CloudMem, CloudBW)
	}
	return &Node{
		ID:       id,
		IsEdge:   isEdge,
		Capacity: cap,
		delays:   make(map[string]float64),
		hosted:   make(map[string]struct{}),
	}
}

// SetDelay records the one-way network delay (ms) from this node to other.
func (n *Node) SetDelay(other string, ms float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delays[other] = ms
}

// DelayTo returns the recorded one-way delay to other, defaulting to
// DefaultDelayMs when absent.
func (n *Node) DelayTo(other string) float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if other == n.ID {
		return 0
	}
	if d, ok := n.delays[other]; ok {
		return d
	}
	return DefaultDelayMs
}

// Host adds serviceID to the set of services this node hosts.
func (n *Node) Host(serviceID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hosted[serviceID] = struct{}{}
}

// Unhost removes serviceID from the set of hosted services.
func (n *Node) Unhost(serviceID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.hosted, serviceID)
}

// Hosts reports whether serviceID currently runs on this node.
func (n *Node) Hosts(serviceID string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.hosted[serviceID]
	return ok
}

// HostedServices returns a snapshot of the hosted service ids.
func (n *Node) HostedServices() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.hosted))
	for id := range n.hosted {
		out = append(out, id)
	}
	return out
}

// Service is a microservice in the dependency graph: identity, base
// resource needs, execution time, derived service rate, and its current
// node assignment (nil if unplaced). Created once; its NodeID is mutated
// only by the Deployer.
type Service struct {
	ID              string
	Requirements    Requirements
	ExecutionTimeMs float64

	mu          sync.RWMutex
	nodeID      string
	placed      bool
	utilization map[ResourceKind]float64
}

// NewService creates a service in the unplaced state.
func NewService(id string, req Requirements, executionTimeMs float64) *Service {
	return &Service{
		ID:              id,
		Requirements:    req,
		ExecutionTimeMs: executionTimeMs,
		utilization:     make(map[ResourceKind]float64),
	}
}

// ServiceRate returns µ = 1/execution_time. Zero execution time yields 0 to
// avoid a divide-by-zero in callers that would otherwise see +Inf.
func (s *Service) ServiceRate() float64 {
	if s.ExecutionTimeMs <= Epsilon {
		return 0
	}
	return 1.0 / s.ExecutionTimeMs
}

// NodeID returns the current node assignment and whether the service is placed.
func (s *Service) NodeID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeID, s.placed
}

// SetNode records the service's node assignment. Passing "" clears it.
func (s *Service) SetNode(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeID = nodeID
	s.placed = nodeID != ""
}

// SetUtilization records current utilization in [0,1] for one resource axis.
func (s *Service) SetUtilization(kind ResourceKind, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.utilization[kind] = value
}

// Utilization returns the recorded utilization for one resource axis,
// defaulting to 0 when never set.
func (s *Service) Utilization(kind ResourceKind) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.utilization[kind]
}
