package depgraph

// Path is an ordered sequence of service ids from a source to a sink,
// src included.
type Path []string

// GetAllPaths enumerates every simple path from src to dst by depth-first
// search over outgoing edges, visiting each node's edges in insertion
// order so that emission order is deterministic.
func (g *Graph) GetAllPaths(src, dst string) []Path {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.services[src]; !ok {
		return nil
	}
	if _, ok := g.services[dst]; !ok {
		return nil
	}

	var paths []Path
	onStack := map[string]bool{src: true}
	var walk func(cur string, acc Path)
	walk = func(cur string, acc Path) {
		if cur == dst {
			p := make(Path, len(acc))
			copy(p, acc)
			paths = append(paths, p)
			return
		}
		for _, e := range g.outgoing[cur] {
			if onStack[e.To] {
				continue
			}
			onStack[e.To] = true
			walk(e.To, append(acc, e.To))
			onStack[e.To] = false
		}
	}
	walk(src, Path{src})
	return paths
}

// SequentialLatency sums a path's execution times plus the communication
// cost of each hop: dataVolume/LocalCostDivisor when consecutive services
// share a node, dataVolume/RemoteCostDivisor otherwise.
// nodeOf resolves a service id to its current node assignment; a service
// with no recorded node is treated as distinct from every other node.
func (g *Graph) SequentialLatency(path Path, nodeOf func(serviceID string) string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var total float64
	for i, id := range path {
		if s, ok := g.services[id]; ok {
			total += s.ExecutionTimeMs
		}
		if i == 0 {
			continue
		}
		prev := path[i-1]
		e, ok := g.edgeLocked(prev, id)
		if !ok {
			continue
		}
		if nodeOf != nil && nodeOf(prev) != "" && nodeOf(prev) == nodeOf(id) {
			total += e.DataVolume / LocalCostDivisor
		} else {
			total += e.DataVolume / RemoteCostDivisor
		}
	}
	return total
}

// CriticalPathCandidates returns, for every (source, sink) pair, the full
// set of simple paths between them — the raw material the critical-path
// analyzer ranks. Sources/sinks are the graph's zero-indegree/zero-outdegree
// services.
func (g *Graph) CriticalPathCandidates() []Path {
	var out []Path
	for _, src := range g.Sources() {
		for _, dst := range g.Sinks() {
			if src == dst {
				continue
			}
			out = append(out, g.GetAllPaths(src, dst)...)
		}
	}
	return out
}
