package allocation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// costScale turns per-trip values into integral arc costs so residual cycles
// cannot pick up rounding noise.
const costScale = 1000

// errNegativeCycle is returned when the residual graph holds a negative cycle,
// which successive shortest paths never creates from a cycle-free network.
var errNegativeCycle = errors.New("negative cycle in residual network")

type flowArc struct {
	from, to int
	cap      int
	flow     int
	cost     int64
}

// flowNetwork is a directed network solved by successive shortest paths.
// Antiparallel arcs are not allowed so every residual edge maps back to a
// single arc.
type flowNetwork struct {
	nodes int
	arcs  []flowArc
	index map[[2]int]int
}

func newFlowNetwork(nodes int) *flowNetwork {
	return &flowNetwork{nodes: nodes, index: make(map[[2]int]int)}
}

func (n *flowNetwork) addArc(from, to, capacity int, cost int64) error {
	if capacity <= 0 {
		return nil
	}
	if from == to {
		return fmt.Errorf("self loop on node %d", from)
	}
	if _, ok := n.index[[2]int{to, from}]; ok {
		return fmt.Errorf("antiparallel arc %d->%d", from, to)
	}
	if _, ok := n.index[[2]int{from, to}]; ok {
		return fmt.Errorf("duplicate arc %d->%d", from, to)
	}
	n.index[[2]int{from, to}] = len(n.arcs)
	n.arcs = append(n.arcs, flowArc{from: from, to: to, cap: capacity, cost: cost})
	return nil
}

// flowOn returns the flow carried by the arc from->to.
func (n *flowNetwork) flowOn(from, to int) int {
	i, ok := n.index[[2]int{from, to}]
	if !ok {
		return 0
	}
	return n.arcs[i].flow
}

func (n *flowNetwork) residual() *simple.WeightedDirectedGraph {
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for i := 0; i < n.nodes; i++ {
		g.AddNode(simple.Node(i))
	}
	for _, a := range n.arcs {
		if a.flow < a.cap {
			g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a.from), T: simple.Node(a.to), W: float64(a.cost)})
		}
		if a.flow > 0 {
			g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a.to), T: simple.Node(a.from), W: float64(-a.cost)})
		}
	}
	return g
}

// minCostMaxFlow pushes the maximum flow from s to t and, among maximum
// flows, the one of least cost. Each augmentation follows a cheapest residual
// path found with Bellman-Ford, which tolerates the negative arc costs.
func (n *flowNetwork) minCostMaxFlow(s, t int) (flow int, cost int64, err error) {
	if s == t || n.nodes == 0 {
		return 0, 0, nil
	}
	for {
		g := n.residual()
		sp, ok := path.BellmanFordFrom(g.Node(int64(s)), g)
		if !ok {
			return flow, cost, errNegativeCycle
		}
		nodes, w := sp.To(int64(t))
		if len(nodes) < 2 || math.IsInf(w, 1) {
			return flow, cost, nil
		}

		push := math.MaxInt
		for i := 1; i < len(nodes); i++ {
			u, v := int(nodes[i-1].ID()), int(nodes[i].ID())
			if r := n.residualCap(u, v); r < push {
				push = r
			}
		}
		if push <= 0 {
			return flow, cost, nil
		}
		for i := 1; i < len(nodes); i++ {
			u, v := int(nodes[i-1].ID()), int(nodes[i].ID())
			cost += n.augment(u, v, push)
		}
		flow += push
	}
}

func (n *flowNetwork) residualCap(u, v int) int {
	if i, ok := n.index[[2]int{u, v}]; ok {
		return n.arcs[i].cap - n.arcs[i].flow
	}
	if i, ok := n.index[[2]int{v, u}]; ok {
		return n.arcs[i].flow
	}
	return 0
}

func (n *flowNetwork) augment(u, v, amount int) int64 {
	if i, ok := n.index[[2]int{u, v}]; ok {
		n.arcs[i].flow += amount
		return int64(amount) * n.arcs[i].cost
	}
	i := n.index[[2]int{v, u}]
	n.arcs[i].flow -= amount
	return -int64(amount) * n.arcs[i].cost
}

func scaledCost(value float64) int64 {
	return int64(math.Round(value * costScale))
}
