package orchestrator

// graph is a small undirected weighted graph over file indices, with
// union-find for connected components.
type graph struct {
	parent  []int
	adj     [][]int
	weights []map[int]float64
}

func newGraph(n int) *graph {
	g := &graph{
		parent:  make([]int, n),
		adj:     make([][]int, n),
		weights: make([]map[int]float64, n),
	}
	for i := range g.parent {
		g.parent[i] = i
	}
	return g
}

func (g *graph) find(i int) int {
	for g.parent[i] != i {
		g.parent[i] = g.parent[g.parent[i]]
		i = g.parent[i]
	}
	return i
}

func (g *graph) addEdge(a, b int, w float64) {
	if a == b {
		return
	}
	if g.weights[a] == nil {
		g.weights[a] = make(map[int]float64)
	}
	if g.weights[b] == nil {
		g.weights[b] = make(map[int]float64)
	}
	if _, seen := g.weights[a][b]; !seen {
		g.adj[a] = append(g.adj[a], b)
		g.adj[b] = append(g.adj[b], a)
	}
	if w > g.weights[a][b] {
		g.weights[a][b] = w
		g.weights[b][a] = w
	}
	ra, rb := g.find(a), g.find(b)
	if ra != rb {
		g.parent[rb] = ra
	}
}

func (g *graph) neighbors(i int) []int { return g.adj[i] }

// maxWeight returns the strongest edge incident to i, 0 for orphans.
func (g *graph) maxWeight(i int) float64 {
	var best float64
	for _, w := range g.weights[i] {
		if w > best {
			best = w
		}
	}
	return best
}

// components returns multi-node components and the orphan nodes separately.
func (g *graph) components() (components [][]int, orphans []int) {
	byRoot := make(map[int][]int)
	for i := range g.parent {
		root := g.find(i)
		byRoot[root] = append(byRoot[root], i)
	}
	// Deterministic order: iterate by node index, not map order.
	seen := make(map[int]bool)
	for i := range g.parent {
		root := g.find(i)
		if seen[root] {
			continue
		}
		seen[root] = true
		members := byRoot[root]
		if len(members) == 1 {
			orphans = append(orphans, members[0])
		} else {
			components = append(components, members)
		}
	}
	return components, orphans
}
