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
	"iter"
	"slices"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
)

// Cursor is a single-pass iterator over graph query results.
//
// Description:
//
//	A cursor remembers the graph generation at creation. Each call to
//	Next, including the final one that reports exhaustion, first checks
//	that the graph has not been mutated since; if it has, Next returns
//	false and Err returns ErrConcurrentModification.
//
// Example:
//
//	c := g.Nodes(graph.NodeFilter{Prefix: userPrefix})
//	for c.Next() {
//	    fmt.Println(c.Value())
//	}
//	if err := c.Err(); err != nil {
//	    return err
//	}
type Cursor[T any] struct {
	g    *Graph
	gen  uint64
	next func() (T, bool)
	cur  T
	err  error
	done bool
}

func newCursor[T any](g *Graph, next func() (T, bool)) *Cursor[T] {
	return &Cursor[T]{g: g, gen: g.modCount, next: next}
}

// Next advances the cursor. It returns false when the results are
// exhausted or the graph was modified.
func (c *Cursor[T]) Next() bool {
	if c.err != nil || c.done {
		return false
	}
	if c.g.modCount != c.gen {
		c.err = fmt.Errorf("%w: generation %d, cursor opened at %d", ErrConcurrentModification, c.g.modCount, c.gen)
		return false
	}
	v, ok := c.next()
	if !ok {
		c.done = true
		return false
	}
	c.cur = v
	return true
}

// Value returns the current element.
func (c *Cursor[T]) Value() T {
	return c.cur
}

// Err returns the error that stopped iteration, if any.
func (c *Cursor[T]) Err() error {
	return c.err
}

// All adapts the cursor to a range-over-func iterator. Check Err after
// the loop.
func (c *Cursor[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for c.Next() {
			if !yield(c.Value()) {
				return
			}
		}
	}
}

// Collect drains the cursor into a slice.
func (c *Cursor[T]) Collect() ([]T, error) {
	var out []T
	for c.Next() {
		out = append(out, c.Value())
	}
	return out, c.Err()
}

func sliceSource[T any](items []T) func() (T, bool) {
	i := 0
	return func() (T, bool) {
		if i >= len(items) {
			var zero T
			return zero, false
		}
		v := items[i]
		i++
		return v, true
	}
}

// NodeFilter restricts a node query. The zero value matches every node.
type NodeFilter struct {
	// Prefix, when non-zero, keeps only nodes whose address has it as a
	// prefix.
	Prefix NodeAddress
}

func (f NodeFilter) match(a NodeAddress) bool {
	return f.Prefix.IsZero() || a.HasPrefix(f.Prefix)
}

// EdgeFilter restricts an edge query. Zero fields match everything.
type EdgeFilter struct {
	AddressPrefix EdgeAddress
	SrcPrefix     NodeAddress
	DstPrefix     NodeAddress
}

func (f EdgeFilter) match(e Edge) bool {
	return (f.AddressPrefix.IsZero() || e.Address.HasPrefix(f.AddressPrefix)) &&
		(f.SrcPrefix.IsZero() || e.Src.HasPrefix(f.SrcPrefix)) &&
		(f.DstPrefix.IsZero() || e.Dst.HasPrefix(f.DstPrefix))
}

// Nodes returns a cursor over matching nodes in ascending address order.
func (g *Graph) Nodes(filter NodeFilter) *Cursor[NodeAddress] {
	return newCursor(g, sliceSource(g.NodeList(filter)))
}

// NodeList returns the matching nodes in ascending address order.
func (g *Graph) NodeList(filter NodeFilter) []NodeAddress {
	out := make([]NodeAddress, 0, len(g.nodes))
	for n := range g.nodes {
		if filter.match(n) {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, address.Compare[address.Node])
	return out
}

// Edges returns a cursor over matching edges in ascending address order.
func (g *Graph) Edges(filter EdgeFilter) *Cursor[Edge] {
	return newCursor(g, sliceSource(g.EdgeList(filter)))
}

// EdgeList returns the matching edges in ascending address order.
func (g *Graph) EdgeList(filter EdgeFilter) []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if filter.match(e) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b Edge) int {
		return address.Compare(a.Address, b.Address)
	})
	return out
}

// Direction selects which incident edges a neighbor query follows.
type Direction int

const (
	// DirectionAny follows both inbound and outbound edges.
	DirectionAny Direction = iota

	// DirectionIn follows edges whose Dst is the queried node.
	DirectionIn

	// DirectionOut follows edges whose Src is the queried node.
	DirectionOut
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	case DirectionAny:
		return "any"
	default:
		return "unknown"
	}
}

// NeighborsOptions configures a neighbor query.
type NeighborsOptions struct {
	Direction Direction

	// NodePrefix, when non-zero, keeps only neighbors under this prefix.
	NodePrefix NodeAddress

	// EdgePrefix, when non-zero, keeps only edges under this prefix.
	EdgePrefix EdgeAddress
}

// Neighbor is one result of a neighbor query.
type Neighbor struct {
	Edge Edge
	Node NodeAddress
}

// Neighbors returns a cursor over the edges incident to node and the node
// at their other end.
//
// Description:
//
//	Inbound edges are scanned first, then outbound edges, each in
//	insertion order. With DirectionAny a loop edge appears in both scans;
//	it is yielded by the inbound scan and skipped by the outbound scan, so
//	every loop is reported exactly once.
//
// Errors:
//
//	ErrMissingNode - node is not in the graph
func (g *Graph) Neighbors(node NodeAddress, opts NeighborsOptions) (*Cursor[Neighbor], error) {
	if !g.HasNode(node) {
		return nil, fmt.Errorf("neighbors of %s: %w", node, ErrMissingNode)
	}

	type scan struct {
		edges []EdgeAddress
		in    bool
	}
	var scans []scan
	if opts.Direction == DirectionIn || opts.Direction == DirectionAny {
		scans = append(scans, scan{edges: g.inEdges[node], in: true})
	}
	if opts.Direction == DirectionOut || opts.Direction == DirectionAny {
		scans = append(scans, scan{edges: g.outEdges[node], in: false})
	}

	si, ei := 0, 0
	next := func() (Neighbor, bool) {
		for si < len(scans) {
			s := scans[si]
			if ei >= len(s.edges) {
				si++
				ei = 0
				continue
			}
			e := g.edges[s.edges[ei]]
			ei++
			if opts.Direction == DirectionAny && !s.in && e.IsLoop() {
				continue
			}
			other := e.Dst
			if s.in {
				other = e.Src
			}
			if !opts.EdgePrefix.IsZero() && !e.Address.HasPrefix(opts.EdgePrefix) {
				continue
			}
			if !opts.NodePrefix.IsZero() && !other.HasPrefix(opts.NodePrefix) {
				continue
			}
			return Neighbor{Edge: e, Node: other}, true
		}
		return Neighbor{}, false
	}
	return newCursor(g, next), nil
}
