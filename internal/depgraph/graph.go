package depgraph

import "sort"

// Graph is an id-keyed dependency graph. Nodes are stored in a flat table
// and reference each other only by task id, never by pointer, so the
// graph can be copied, snapshotted, and garbage-collected without cyclic
// reference headaches.
type Graph struct {
	nodes map[string]*DependencyNode
	order []string // insertion order, used for deterministic iteration
}

// New builds a Graph from a list of tasks. It wires DependsOn/DependedBy,
// detects missing dependency targets and cycles, and computes each node's
// BlockingFactor. All nodes start in StateWaiting.
func New(tasks []Task) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*DependencyNode, len(tasks))}

	for _, t := range tasks {
		g.nodes[t.ID] = &DependencyNode{Task: t, State: StateWaiting}
		g.order = append(g.order, t.ID)
	}

	for _, id := range g.order {
		node := g.nodes[id]
		for _, dep := range node.DependsOn {
			target, ok := g.nodes[dep]
			if !ok {
				return nil, &ViolationError{Kind: ViolationMissing, Task: id}
			}
			target.DependedBy = append(target.DependedBy, id)
		}
	}

	if chain := g.findCycle(); chain != nil {
		return nil, &ViolationError{Kind: ViolationCycle, Chain: chain}
	}

	g.computeBlockingFactors()

	return g, nil
}

// Node returns the node for id, or nil if unknown.
func (g *Graph) Node(id string) *DependencyNode {
	return g.nodes[id]
}

// Nodes returns all nodes in deterministic (insertion) order.
func (g *Graph) Nodes() []*DependencyNode {
	out := make([]*DependencyNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// findCycle runs depth-first search over the DependsOn edges and returns
// the offending chain (task ids, in dependency order) on the first back
// edge found, or nil if the graph is acyclic.
func (g *Graph) findCycle() []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = visiting
		stack = append(stack, id)
		for _, dep := range g.nodes[id].DependsOn {
			switch color[dep] {
			case visiting:
				// Found a back edge: extract the cycle from the stack.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, stack[start:]...), dep)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = done
		return false
	}

	for _, id := range g.order {
		if color[id] == unvisited {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// computeBlockingFactors sets BlockingFactor to the size of each node's
// transitive closure over DependedBy, excluding itself.
func (g *Graph) computeBlockingFactors() {
	memo := make(map[string]map[string]bool, len(g.nodes))

	var closure func(id string) map[string]bool
	closure = func(id string) map[string]bool {
		if c, ok := memo[id]; ok {
			return c
		}
		set := make(map[string]bool)
		memo[id] = set // break cycles defensively; graph is already verified acyclic
		for _, child := range g.nodes[id].DependedBy {
			if !set[child] {
				set[child] = true
				for d := range closure(child) {
					set[d] = true
				}
			}
		}
		return set
	}

	for _, id := range g.order {
		g.nodes[id].BlockingFactor = len(closure(id))
	}
}

// Transition moves node id from its current state to next. It returns a
// ViolationError(illegal-transition) if the move is not legal in the
// task state machine.
func (g *Graph) Transition(id string, next State) error {
	node, ok := g.nodes[id]
	if !ok {
		return &ViolationError{Kind: ViolationMissing, Task: id}
	}
	if !CanTransition(node.State, next) {
		return &ViolationError{Kind: ViolationIllegalTransition, Task: id, From: node.State, To: next}
	}
	node.State = next
	return nil
}

// Propagate scans the DependedBy set of a just-completed node and returns
// the ids of children whose every DependsOn parent is now completed. This
// is a single breadth-first pass over direct children only; it does not
// cascade to grandchildren, and it does not itself move the children out
// of StateWaiting, "child remains in waiting... until an
// external signal moves it to ready".
func (g *Graph) Propagate(completedID string) ([]string, error) {
	node, ok := g.nodes[completedID]
	if !ok {
		return nil, &ViolationError{Kind: ViolationMissing, Task: completedID}
	}
	if node.State != StateCompleted {
		return nil, nil
	}

	var eligible []string
	for _, childID := range node.DependedBy {
		child := g.nodes[childID]
		if child == nil || child.State != StateWaiting {
			continue
		}
		allDone := true
		for _, depID := range child.DependsOn {
			if dep := g.nodes[depID]; dep == nil || dep.State != StateCompleted {
				allDone = false
				break
			}
		}
		if allDone {
			eligible = append(eligible, childID)
		}
	}
	sort.Strings(eligible)
	return eligible, nil
}
