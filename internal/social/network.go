// Package social provides the social network citizens influence each other through.
// The graph holds node ids only; a lookup table maps nodes to population members.
package social

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/talgya/civil-violence/internal/entropy"
)

// Topology selects the network generator.
type Topology uint8

const (
	TopologyNone         Topology = iota // Edgeless graph
	TopologyRandom                       // Each possible edge with probability p
	TopologyPreferential                 // Degree-proportional attachment
	TopologySmallWorld                   // Ring lattice with random rewiring
)

var topologyNames = [...]string{"NONE", "RANDOM", "PREFERENTIAL", "SMALL_WORLD"}

// String returns the canonical name of the topology.
func (t Topology) String() string {
	if int(t) < len(topologyNames) {
		return topologyNames[t]
	}
	return fmt.Sprintf("Topology(%d)", uint8(t))
}

// ParseTopology maps a name to a Topology. The generator names of the
// original experiments are accepted as aliases.
func ParseTopology(s string) (Topology, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return TopologyNone, nil
	case "RANDOM", "ERDOS_RENYI", "ERDOS_RENYI_GRAPH":
		return TopologyRandom, nil
	case "PREFERENTIAL", "BARABASI_ALBERT":
		return TopologyPreferential, nil
	case "SMALL_WORLD", "WATTS_STROGATZ":
		return TopologySmallWorld, nil
	}
	return TopologyNone, fmt.Errorf("unsupported graph type %q (valid: NONE, RANDOM, PREFERENTIAL, SMALL_WORLD)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Topology) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Topology) UnmarshalText(b []byte) error {
	parsed, err := ParseTopology(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Config holds the network generation parameters.
type Config struct {
	Topology Topology
	P        float64 // Edge probability; also sets attachment count and lattice degree
	PWS      float64 // Small-world rewiring probability
	Directed bool    // Only honored by the random generator
}

type graphStore interface {
	graph.Graph
	graph.NodeAdder
	graph.NodeRemover
	graph.EdgeAdder
	graph.EdgeRemover
	Edges() graph.Edges
}

// Network is the social graph over a population. Members are identified by K.
type Network[K comparable] struct {
	g        graphStore
	directed bool
	topology Topology

	members map[int64]K // node → member
	nodes   map[K]int64 // member → node
}

// Generate builds a network over members. Node ids follow population order:
// members[i] becomes node i. Generation is one-shot; edges are never added later.
func Generate[K comparable](members []K, cfg Config, rng *entropy.Stream) *Network[K] {
	directed := cfg.Directed
	if directed && cfg.Topology != TopologyRandom && cfg.Topology != TopologyNone {
		slog.Warn("directed networks only supported for RANDOM topology, building undirected",
			"topology", cfg.Topology)
		directed = false
	}

	var g graphStore
	if directed {
		g = simple.NewDirectedGraph()
	} else {
		g = simple.NewUndirectedGraph()
	}

	n := &Network[K]{
		g:        g,
		directed: directed,
		topology: cfg.Topology,
		members:  make(map[int64]K, len(members)),
		nodes:    make(map[K]int64, len(members)),
	}
	for i, m := range members {
		id := int64(i)
		g.AddNode(simple.Node(id))
		n.members[id] = m
		n.nodes[m] = id
	}

	size := len(members)
	switch cfg.Topology {
	case TopologyNone:
	case TopologyRandom:
		n.genRandom(size, cfg.P, rng)
	case TopologyPreferential:
		m := int((cfg.P*float64(size) - 1) / 2)
		n.genPreferential(size, m, rng)
	case TopologySmallWorld:
		k := int(float64(size-1) * cfg.P)
		n.genSmallWorld(size, k, cfg.PWS, rng)
	default:
		slog.Warn("unsupported topology, network left edgeless", "topology", cfg.Topology)
	}

	return n
}

func (n *Network[K]) link(u, v int64) {
	if u == v {
		return
	}
	n.g.SetEdge(n.g.NewEdge(simple.Node(u), simple.Node(v)))
}

func (n *Network[K]) linked(u, v int64) bool {
	return n.g.HasEdgeBetween(u, v)
}

// genRandom includes every possible edge independently with probability p.
func (n *Network[K]) genRandom(size int, p float64, rng *entropy.Stream) {
	if p <= 0 {
		return
	}
	for i := 0; i < size; i++ {
		start := i + 1
		if n.directed {
			start = 0
		}
		for j := start; j < size; j++ {
			if i == j {
				continue
			}
			if rng.Chance(p) {
				n.link(int64(i), int64(j))
			}
		}
	}
}

// genPreferential grows a graph from a complete seed of m+1 nodes, attaching
// every later node to m distinct existing nodes chosen proportional to degree.
func (n *Network[K]) genPreferential(size, m int, rng *entropy.Stream) {
	if size < 2 {
		return
	}
	if m < 1 || m >= size {
		clamped := min(max(m, 1), size-1)
		slog.Warn("preferential attachment count out of range, clamping",
			"m", m, "clamped", clamped, "nodes", size)
		m = clamped
	}

	seed := m + 1
	// Each node appears once per incident edge, so uniform draws are degree-proportional.
	var repeated []int64
	for i := 0; i < seed; i++ {
		for j := i + 1; j < seed; j++ {
			n.link(int64(i), int64(j))
			repeated = append(repeated, int64(i), int64(j))
		}
	}

	for src := seed; src < size; src++ {
		chosen := make(map[int64]bool, m)
		targets := make([]int64, 0, m)
		for len(targets) < m {
			t := repeated[rng.Intn(len(repeated))]
			if chosen[t] {
				continue
			}
			chosen[t] = true
			targets = append(targets, t)
		}
		for _, t := range targets {
			n.link(int64(src), t)
			repeated = append(repeated, t, int64(src))
		}
	}
}

// genSmallWorld builds a ring lattice where each node links to its k nearest
// neighbors, then rewires every lattice edge with probability pws.
func (n *Network[K]) genSmallWorld(size, k int, pws float64, rng *entropy.Stream) {
	if size < 2 {
		return
	}
	if k >= size-1 {
		for i := 0; i < size; i++ {
			for j := i + 1; j < size; j++ {
				n.link(int64(i), int64(j))
			}
		}
		return
	}

	half := k / 2
	for j := 1; j <= half; j++ {
		for i := 0; i < size; i++ {
			n.link(int64(i), int64((i+j)%size))
		}
	}

	for j := 1; j <= half; j++ {
		for i := 0; i < size; i++ {
			if !rng.Chance(pws) {
				continue
			}
			u, v := int64(i), int64((i+j)%size)
			w := int64(rng.Intn(size))
			saturated := false
			for w == u || n.linked(u, w) {
				if n.Degree(u) >= size-1 {
					saturated = true
					break
				}
				w = int64(rng.Intn(size))
			}
			if saturated {
				continue
			}
			if n.linked(u, v) {
				n.g.RemoveEdge(u, v)
			}
			n.link(u, w)
		}
	}
}

// Topology returns the generator the network was built with.
func (n *Network[K]) Topology() Topology {
	return n.topology
}

// Directed reports whether edges are directed.
func (n *Network[K]) Directed() bool {
	return n.directed
}

// Has reports whether node is still in the graph.
func (n *Network[K]) Has(node int64) bool {
	return n.g.Node(node) != nil
}

// Neighbors returns the nodes adjacent to node (successors when directed),
// in ascending order.
func (n *Network[K]) Neighbors(node int64) []int64 {
	if !n.Has(node) {
		return nil
	}
	it := n.g.From(node)
	out := make([]int64, 0, it.Len())
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Degree returns the number of edges incident to node. For directed
// networks this counts both directions.
func (n *Network[K]) Degree(node int64) int {
	if !n.Has(node) {
		return 0
	}
	deg := len(graph.NodesOf(n.g.From(node)))
	if d, ok := n.g.(graph.Directed); ok && n.directed {
		deg += len(graph.NodesOf(d.To(node)))
	}
	return deg
}

// Member returns the population member at node.
func (n *Network[K]) Member(node int64) (K, bool) {
	m, ok := n.members[node]
	return m, ok
}

// NodeOf returns the node of a member.
func (n *Network[K]) NodeOf(member K) (int64, bool) {
	id, ok := n.nodes[member]
	return id, ok
}

// RemoveNode deletes node and all its edges. Removing an absent node is an error.
func (n *Network[K]) RemoveNode(node int64) error {
	if !n.Has(node) {
		return fmt.Errorf("remove node %d: not in network", node)
	}
	n.g.RemoveNode(node)
	if m, ok := n.members[node]; ok {
		delete(n.nodes, m)
	}
	delete(n.members, node)
	return nil
}

// Nodes returns all node ids in ascending order.
func (n *Network[K]) Nodes() []int64 {
	nodes := graph.NodesOf(n.g.Nodes())
	out := make([]int64, len(nodes))
	for i, nd := range nodes {
		out[i] = nd.ID()
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Edge is one edge of the network. For undirected networks From < To.
type Edge struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Edges returns every edge, sorted.
func (n *Network[K]) Edges() []Edge {
	edges := graph.EdgesOf(n.g.Edges())
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		from, to := e.From().ID(), e.To().ID()
		if !n.directed && from > to {
			from, to = to, from
		}
		out = append(out, Edge{From: from, To: to})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// NodeCount returns the number of nodes.
func (n *Network[K]) NodeCount() int {
	return len(graph.NodesOf(n.g.Nodes()))
}

// EdgeCount returns the number of edges.
func (n *Network[K]) EdgeCount() int {
	return len(graph.EdgesOf(n.g.Edges()))
}
