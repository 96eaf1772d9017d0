// Package registry implements the node registry: the fleet of edge and
// cloud nodes available as placement targets, and the pairwise network
// delays the critical-path analyzer and deployer read when estimating
// communication cost.
package registry

import (
	"sort"
	"sync"

	"orchestrator/pkg/apperror"
	"orchestrator/pkg/orchestration/restypes"
)

// Registry is the set of nodes known to the orchestrator.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*restypes.Node
}

// NewRegistry creates an empty node registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*restypes.Node)}
}

// Register adds a node to the fleet. Re-registering an existing id is a
// no-op on the existing node (its capacity and hosted set are preserved);
// callers that want to replace a node must Remove it first.
func (r *Registry) Register(n *restypes.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[n.ID]; exists {
		return
	}
	r.nodes[n.ID] = n
}

// Remove drops a node from the fleet.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, id)
}

// Get looks up a node by id.
func (r *Registry) Get(id string) (*restypes.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	if !ok {
		return nil, apperror.NewWithField(apperror.CodeNodeNotFound, "node not found", "node_id").WithDetails("id", id)
	}
	return n, nil
}

// All returns every registered node, sorted by id for determinism.
func (r *Registry) All() []*restypes.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*restypes.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EdgeNodes returns every registered edge node, sorted by id.
func (r *Registry) EdgeNodes() []*restypes.Node {
	return r.filter(func(n *restypes.Node) bool { return n.IsEdge })
}

// CloudNodes returns every registered cloud node, sorted by id.
func (r *Registry) CloudNodes() []*restypes.Node {
	return r.filter(func(n *restypes.Node) bool { return !n.IsEdge })
}

func (r *Registry) filter(pred func(*restypes.Node) bool) []*restypes.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*restypes.Node
	for _, n := range r.nodes {
		if pred(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetDelay records the symmetric one-way delay (ms) between two nodes.
// Real network paths aren't generally symmetric, but the deployer's cost
// model only ever needs one number per pair, so both directions are set
// together for convenience.
func (r *Registry) SetDelay(a, b string, ms float64) error {
	r.mu.RLock()
	na, ok := r.nodes[a]
	if !ok {
		r.mu.RUnlock()
		return apperror.NewWithField(apperror.CodeNodeNotFound, "node not found", "a").WithDetails("id", a)
	}
	nb, ok := r.nodes[b]
	r.mu.RUnlock()
	if !ok {
		return apperror.NewWithField(apperror.CodeNodeNotFound, "node not found", "b").WithDetails("id", b)
	}
	na.SetDelay(b, ms)
	nb.SetDelay(a, ms)
	return nil
}

// DelayBetween returns the one-way delay (ms) between two registered
// nodes, defaulting to restypes.DefaultDelayMs when unrecorded.
func (r *Registry) DelayBetween(a, b string) (float64, error) {
	na, err := r.Get(a)
	if err != nil {
		return 0, err
	}
	return na.DelayTo(b), nil
}

// Count returns the number of registered nodes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
