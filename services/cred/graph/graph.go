// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
)

// NodeAddress and EdgeAddress are re-exported for callers that only deal
// with graphs.
type (
	NodeAddress = address.NodeAddress
	EdgeAddress = address.EdgeAddress
)

// Edge is a directed, addressed connection between two nodes.
type Edge struct {
	// Address uniquely identifies the edge within a graph.
	Address EdgeAddress `json:"address"`

	// Src is the source node.
	Src NodeAddress `json:"src"`

	// Dst is the destination node.
	Dst NodeAddress `json:"dst"`
}

// IsLoop reports whether the edge starts and ends at the same node.
func (e Edge) IsLoop() bool {
	return e.Src == e.Dst
}

// String returns a human readable form of the edge.
func (e Edge) String() string {
	return fmt.Sprintf("%s: %s -> %s", e.Address, e.Src, e.Dst)
}

// Options configures Graph behavior.
type Options struct {
	// CheckInvariants runs CheckInvariants after every mutation and panics
	// on violation. Intended for tests and debug builds.
	// Default: false
	CheckInvariants bool
}

// Option is a functional option for configuring Graph.
type Option func(*Options)

// WithInvariantChecks enables or disables the post-mutation consistency
// sweep.
func WithInvariantChecks(enabled bool) Option {
	return func(o *Options) {
		o.CheckInvariants = enabled
	}
}

// Graph is a mutable set of addressed nodes and edges.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use. See the package documentation.
type Graph struct {
	nodes map[NodeAddress]struct{}
	edges map[EdgeAddress]Edge

	// inEdges maps a node to the edges whose Dst is that node, in
	// insertion order.
	inEdges map[NodeAddress][]EdgeAddress

	// outEdges maps a node to the edges whose Src is that node, in
	// insertion order.
	outEdges map[NodeAddress][]EdgeAddress

	// modCount increases on every effective mutation. Cursors capture it
	// at creation.
	modCount uint64

	options Options
}

// New creates an empty graph.
//
// Example:
//
//	g := graph.New()
//	g := graph.New(graph.WithInvariantChecks(true))
func New(opts ...Option) *Graph {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	return &Graph{
		nodes:    make(map[NodeAddress]struct{}),
		edges:    make(map[EdgeAddress]Edge),
		inEdges:  make(map[NodeAddress][]EdgeAddress),
		outEdges: make(map[NodeAddress][]EdgeAddress),
		options:  options,
	}
}

// ModificationCount returns the graph's current generation. It changes
// whenever the graph is mutated.
func (g *Graph) ModificationCount() uint64 {
	return g.modCount
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// AddNode adds a node. Adding an existing node is a no-op.
//
// Errors:
//
//	ErrInvalidAddress - the address is the zero value
func (g *Graph) AddNode(a NodeAddress) error {
	if a.IsZero() {
		return fmt.Errorf("add node: %w: zero NodeAddress", ErrInvalidAddress)
	}
	if _, ok := g.nodes[a]; ok {
		return nil
	}
	g.nodes[a] = struct{}{}
	g.inEdges[a] = nil
	g.outEdges[a] = nil
	g.markModified()
	return nil
}

// RemoveNode removes a node. Removing an absent node is a no-op.
//
// Description:
//
//	A node may only be removed once all incident edges are gone; the
//	graph never silently drops edges or leaves them dangling.
//
// Errors:
//
//	ErrDanglingEdge - the node still has incident edges
func (g *Graph) RemoveNode(a NodeAddress) error {
	if _, ok := g.nodes[a]; !ok {
		return nil
	}
	incident := append(slices.Clone(g.inEdges[a]), g.outEdges[a]...)
	if len(incident) > 0 {
		return fmt.Errorf("remove node %s: %w: %s", a, ErrDanglingEdge, incident[0])
	}
	delete(g.nodes, a)
	delete(g.inEdges, a)
	delete(g.outEdges, a)
	g.markModified()
	return nil
}

// HasNode reports whether the node is in the graph.
func (g *Graph) HasNode(a NodeAddress) bool {
	_, ok := g.nodes[a]
	return ok
}

// AddEdge adds an edge.
//
// Description:
//
//	Both endpoints must already be nodes of the graph. Re-adding an edge
//	with the same address and endpoints is a no-op.
//
// Errors:
//
//	ErrInvalidAddress - the edge address is the zero value
//	ErrMissingEndpoint - Src or Dst is not in the graph
//	ErrConflictingEdge - the address is bound to different endpoints
func (g *Graph) AddEdge(e Edge) error {
	if e.Address.IsZero() {
		return fmt.Errorf("add edge: %w: zero EdgeAddress", ErrInvalidAddress)
	}
	if !g.HasNode(e.Src) {
		return fmt.Errorf("add edge %s: %w: missing src %s", e.Address, ErrMissingEndpoint, e.Src)
	}
	if !g.HasNode(e.Dst) {
		return fmt.Errorf("add edge %s: %w: missing dst %s", e.Address, ErrMissingEndpoint, e.Dst)
	}
	if existing, ok := g.edges[e.Address]; ok {
		if existing == e {
			return nil
		}
		return fmt.Errorf("add edge: %w: %s conflicts with existing %s", ErrConflictingEdge, e, existing)
	}
	g.edges[e.Address] = e
	g.inEdges[e.Dst] = append(g.inEdges[e.Dst], e.Address)
	g.outEdges[e.Src] = append(g.outEdges[e.Src], e.Address)
	g.markModified()
	return nil
}

// RemoveEdge removes an edge. Removing an absent edge is a no-op.
func (g *Graph) RemoveEdge(a EdgeAddress) {
	e, ok := g.edges[a]
	if !ok {
		return
	}
	delete(g.edges, a)
	g.inEdges[e.Dst] = removeAddress(g.inEdges[e.Dst], a)
	g.outEdges[e.Src] = removeAddress(g.outEdges[e.Src], a)
	g.markModified()
}

// HasEdge reports whether an edge with this address is in the graph.
func (g *Graph) HasEdge(a EdgeAddress) bool {
	_, ok := g.edges[a]
	return ok
}

// Edge returns the edge with this address.
func (g *Graph) Edge(a EdgeAddress) (Edge, bool) {
	e, ok := g.edges[a]
	return e, ok
}

// Copy returns an independent deep copy. Options are carried over.
func (g *Graph) Copy() *Graph {
	out := &Graph{
		nodes:    make(map[NodeAddress]struct{}, len(g.nodes)),
		edges:    make(map[EdgeAddress]Edge, len(g.edges)),
		inEdges:  make(map[NodeAddress][]EdgeAddress, len(g.inEdges)),
		outEdges: make(map[NodeAddress][]EdgeAddress, len(g.outEdges)),
		options:  g.options,
	}
	for n := range g.nodes {
		out.nodes[n] = struct{}{}
		out.inEdges[n] = slices.Clone(g.inEdges[n])
		out.outEdges[n] = slices.Clone(g.outEdges[n])
	}
	for a, e := range g.edges {
		out.edges[a] = e
	}
	return out
}

// Equal reports whether both graphs have identical node and edge sets.
// Adjacency order is not compared.
func (g *Graph) Equal(other *Graph) bool {
	if len(g.nodes) != len(other.nodes) || len(g.edges) != len(other.edges) {
		return false
	}
	for n := range g.nodes {
		if _, ok := other.nodes[n]; !ok {
			return false
		}
	}
	for a, e := range g.edges {
		if oe, ok := other.edges[a]; !ok || oe != e {
			return false
		}
	}
	return true
}

func (g *Graph) markModified() {
	g.modCount++
	if g.options.CheckInvariants {
		if err := g.CheckInvariants(); err != nil {
			panic(err)
		}
	}
}

func removeAddress(list []EdgeAddress, a EdgeAddress) []EdgeAddress {
	i := slices.Index(list, a)
	if i < 0 {
		return list
	}
	return slices.Delete(list, i, i+1)
}
