package depgraph

import "sort"

// Analysis holds the derived structural view of a Graph: the critical
// path, the per-depth parallelizable groups, and tasks ranked by how much
// they block. An empty graph yields an empty, non-error Analysis.
type Analysis struct {
	CriticalPath         []string   // task ids along the longest-effort path
	CriticalPathEffort   float64
	ParallelizableLevels [][]string // index = topological depth
	BlockingTasks        []string   // ids sorted by BlockingFactor desc
}

// Analyze computes the structural analysis in O(V+E).
func Analyze(g *Graph) Analysis {
	if g.Len() == 0 {
		return Analysis{}
	}

	depth := topologicalDepth(g)

	levels := make([][]string, maxDepth(depth)+1)
	for _, id := range g.order {
		d := depth[id]
		levels[d] = append(levels[d], id)
	}
	for _, level := range levels {
		sort.Strings(level)
	}

	path, effort := criticalPath(g)

	blocking := append([]string{}, g.order...)
	sort.SliceStable(blocking, func(i, j int) bool {
		bi, bj := g.nodes[blocking[i]].BlockingFactor, g.nodes[blocking[j]].BlockingFactor
		if bi != bj {
			return bi > bj
		}
		return blocking[i] < blocking[j]
	})

	for _, id := range path {
		g.nodes[id].CriticalPath = true
	}

	return Analysis{
		CriticalPath:         path,
		CriticalPathEffort:   effort,
		ParallelizableLevels: levels,
		BlockingTasks:        blocking,
	}
}

// topologicalDepth assigns each node the length of the longest chain of
// DependsOn edges leading to it (0 for roots).
func topologicalDepth(g *Graph) map[string]int {
	depth := make(map[string]int, g.Len())
	visited := make(map[string]bool, g.Len())

	var visit func(id string) int
	visit = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		if visited[id] {
			return 0 // already verified acyclic upstream; defensive only
		}
		visited[id] = true
		best := 0
		for _, dep := range g.nodes[id].DependsOn {
			if d := visit(dep) + 1; d > best {
				best = d
			}
		}
		depth[id] = best
		return best
	}

	for _, id := range g.order {
		visit(id)
	}
	return depth
}

func maxDepth(depth map[string]int) int {
	max := 0
	for _, d := range depth {
		if d > max {
			max = d
		}
	}
	return max
}

// criticalPath returns the longest path by cumulative effort, measured
// over the DependsOn DAG, and its total effort.
func criticalPath(g *Graph) ([]string, float64) {
	bestEffort := make(map[string]float64, g.Len())
	bestPred := make(map[string]string, g.Len())

	var visit func(id string) float64
	visiting := make(map[string]bool)
	visit = func(id string) float64 {
		if e, ok := bestEffort[id]; ok {
			return e
		}
		if visiting[id] {
			return 0
		}
		visiting[id] = true
		node := g.nodes[id]
		best := 0.0
		bestParent := ""
		for _, dep := range node.DependsOn {
			if e := visit(dep); e > best {
				best = e
				bestParent = dep
			}
		}
		total := best + node.EffortOrDefault()
		bestEffort[id] = total
		if bestParent != "" {
			bestPred[id] = bestParent
		}
		return total
	}

	var endID string
	var endEffort float64
	for _, id := range g.order {
		e := visit(id)
		if e > endEffort {
			endEffort = e
			endID = id
		}
	}
	if endID == "" {
		return nil, 0
	}

	var path []string
	for id := endID; id != ""; {
		path = append([]string{id}, path...)
		next, ok := bestPred[id]
		if !ok {
			break
		}
		id = next
	}
	return path, endEffort
}
