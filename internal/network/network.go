// Package network provides a generic directed graph of typed nodes and
// labelled edges, independent of where agents stand in space.
package network

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateNode is returned when a value is added twice.
	ErrDuplicateNode = errors.New("duplicate node")
	// ErrUnknownNode is returned when an edge names an unregistered value.
	ErrUnknownNode = errors.New("unknown node")
)

// Node wraps a value added to a network. The pointer is stable for the life
// of the network.
type Node[N comparable] struct {
	ID    int
	Value N
}

func (n *Node[N]) String() string { return fmt.Sprintf("Node(%d %v)", n.ID, n.Value) }

// Edge is a directed, labelled connection carrying a payload.
type Edge[N comparable, E any] struct {
	From, To *Node[N]
	Label    string
	Payload  E
}

// Network is a directed graph. Cycles are allowed.
type Network[N comparable, E any] struct {
	nodes []*Node[N]
	index map[N]*Node[N]
	edges []*Edge[N, E]
	out   map[*Node[N]][]*Edge[N, E]
}

// New creates an empty network.
func New[N comparable, E any]() *Network[N, E] {
	return &Network[N, E]{
		index: make(map[N]*Node[N]),
		out:   make(map[*Node[N]][]*Edge[N, E]),
	}
}

// AddNode registers v and returns its node.
func (g *Network[N, E]) AddNode(v N) (*Node[N], error) {
	if _, ok := g.index[v]; ok {
		return nil, fmt.Errorf("%w: %v", ErrDuplicateNode, v)
	}
	n := &Node[N]{ID: len(g.nodes), Value: v}
	g.nodes = append(g.nodes, n)
	g.index[v] = n
	return n, nil
}

// Node returns the node wrapping v.
func (g *Network[N, E]) Node(v N) (*Node[N], bool) {
	n, ok := g.index[v]
	return n, ok
}

// AddEdge adds a directed edge between two registered values.
func (g *Network[N, E]) AddEdge(from, to N, label string, payload E) (*Edge[N, E], error) {
	src, ok := g.index[from]
	if !ok {
		return nil, fmt.Errorf("edge %q: %w: %v", label, ErrUnknownNode, from)
	}
	dst, ok := g.index[to]
	if !ok {
		return nil, fmt.Errorf("edge %q: %w: %v", label, ErrUnknownNode, to)
	}
	e := &Edge[N, E]{From: src, To: dst, Label: label, Payload: payload}
	g.edges = append(g.edges, e)
	g.out[src] = append(g.out[src], e)
	return e, nil
}

// Link adds a reciprocal pair of edges between a and b.
func (g *Network[N, E]) Link(a, b N, label string, payload E) error {
	if _, err := g.AddEdge(a, b, label, payload); err != nil {
		return err
	}
	if _, err := g.AddEdge(b, a, label, payload); err != nil {
		return err
	}
	return nil
}

// Neighbors returns the targets of v's outgoing edges in insertion order.
func (g *Network[N, E]) Neighbors(v N) ([]*Node[N], error) {
	n, ok := g.index[v]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownNode, v)
	}
	out := make([]*Node[N], 0, len(g.out[n]))
	for _, e := range g.out[n] {
		out = append(out, e.To)
	}
	return out, nil
}

// Nodes returns all nodes in insertion order.
func (g *Network[N, E]) Nodes() []*Node[N] {
	out := make([]*Node[N], len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns all edges in insertion order.
func (g *Network[N, E]) Edges() []*Edge[N, E] {
	out := make([]*Edge[N, E], len(g.edges))
	copy(out, g.edges)
	return out
}

func (g *Network[N, E]) String() string {
	return fmt.Sprintf("Network(nodes=%d, edges=%d)", len(g.nodes), len(g.edges))
}

// NodeInfo describes a node for observers.
type NodeInfo struct {
	ID     int     `json:"id"`
	Label  string  `json:"label"`
	Lat    float64 `json:"lat,omitempty"`
	Lon    float64 `json:"lon,omitempty"`
	HasPos bool    `json:"has_pos"`
}

// EdgeInfo describes an edge for observers.
type EdgeInfo struct {
	From  int    `json:"from"`
	To    int    `json:"to"`
	Label string `json:"label"`
}

// Summary is a read-only description of a network's topology.
type Summary struct {
	Nodes []NodeInfo `json:"nodes"`
	Edges []EdgeInfo `json:"edges"`
}

// Topology is implemented by every Network regardless of its type
// parameters, so observers can describe one without knowing them.
type Topology interface {
	Summary() Summary
}

// Summary describes the network. Node values implementing Located carry
// their position.
func (g *Network[N, E]) Summary() Summary {
	s := Summary{
		Nodes: make([]NodeInfo, 0, len(g.nodes)),
		Edges: make([]EdgeInfo, 0, len(g.edges)),
	}
	for _, n := range g.nodes {
		info := NodeInfo{ID: n.ID, Label: fmt.Sprint(n.Value)}
		if l, ok := any(n.Value).(Located); ok {
			p := l.LatLon()
			info.Lat, info.Lon, info.HasPos = p.Lat, p.Lon, true
		}
		s.Nodes = append(s.Nodes, info)
	}
	for _, e := range g.edges {
		s.Edges = append(s.Edges, EdgeInfo{From: e.From.ID, To: e.To.ID, Label: e.Label})
	}
	return s
}
