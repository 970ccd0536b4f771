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
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianCred/services/cred/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("cred.graph")

// EdgeResolver decides the outcome when two graphs bind the same edge
// address to different endpoints. It must return an edge with the same
// address, or an error to abort the merge.
type EdgeResolver func(existing, incoming Edge) (Edge, error)

// Merge computes the union of graphs, failing on any conflict.
//
// Description:
//
//	Conservative merge: node content is the address alone, so conflicts
//	can only arise from edges whose address is shared but whose endpoints
//	differ. The result is a fresh graph; inputs are never aliased.
//
// Errors:
//
//	ErrConflictingEdge - two inputs disagree about an edge
func Merge(ctx context.Context, graphs ...*Graph) (*Graph, error) {
	return MergeWith(ctx, nil, graphs...)
}

// MergeWith computes the union of graphs, consulting resolve on edge
// conflicts. A nil resolver behaves like Merge.
func MergeWith(ctx context.Context, resolve EdgeResolver, graphs ...*Graph) (_ *Graph, err error) {
	ctx, span := tracer.Start(ctx, "graph.Merge")
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()
	span.SetAttributes(attribute.Int("merge.inputs", len(graphs)))

	start := time.Now()
	out := New()
	for _, g := range graphs {
		for n := range g.nodes {
			if err := out.AddNode(n); err != nil {
				return nil, err
			}
		}
	}
	for _, g := range graphs {
		for _, e := range g.EdgeList(EdgeFilter{}) {
			existing, ok := out.edges[e.Address]
			if !ok || existing == e {
				if err := out.AddEdge(e); err != nil {
					return nil, fmt.Errorf("merge: %w", err)
				}
				continue
			}
			if resolve == nil {
				return nil, fmt.Errorf("merge: %w: %s vs %s", ErrConflictingEdge, existing, e)
			}
			resolved, err := resolve(existing, e)
			if err != nil {
				return nil, fmt.Errorf("merge: resolve %s: %w", e.Address, err)
			}
			if resolved.Address != e.Address {
				return nil, fmt.Errorf("merge: %w: resolver changed address %s to %s", ErrConflictingEdge, e.Address, resolved.Address)
			}
			out.RemoveEdge(e.Address)
			if err := out.AddEdge(resolved); err != nil {
				return nil, fmt.Errorf("merge: %w", err)
			}
		}
	}
	span.SetAttributes(
		attribute.Int("merge.nodes", out.NodeCount()),
		attribute.Int("merge.edges", out.EdgeCount()),
	)
	recordMergeMetrics(ctx, time.Since(start), len(graphs), out.NodeCount(), out.EdgeCount())
	return out, nil
}

// NodeContraction collapses several node addresses into one canonical
// node.
type NodeContraction struct {
	// Old lists the addresses to collapse. They need not be in the graph.
	Old []NodeAddress

	// Replacement is the canonical node. It is always present in the
	// result.
	Replacement NodeAddress
}

// ContractNodes returns a copy of g in which every address listed in a
// contraction's Old is replaced by its Replacement.
//
// Description:
//
//	Edges keep their addresses; their endpoints are rewritten. Edges
//	between two contracted nodes become loops on the replacement. An
//	address may appear in several contractions only if they agree on the
//	replacement.
//
// Errors:
//
//	ErrInvalidContraction - an address maps to two different replacements
//	ErrInvalidAddress - a zero replacement address
func ContractNodes(ctx context.Context, g *Graph, contractions []NodeContraction) (_ *Graph, err error) {
	_, span := tracer.Start(ctx, "graph.ContractNodes")
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()
	span.SetAttributes(attribute.Int("contract.count", len(contractions)))

	remap := make(map[NodeAddress]NodeAddress)
	for _, c := range contractions {
		if c.Replacement.IsZero() {
			return nil, fmt.Errorf("contract: %w: zero replacement", ErrInvalidAddress)
		}
		for _, old := range c.Old {
			if prev, ok := remap[old]; ok && prev != c.Replacement {
				return nil, fmt.Errorf("contract: %w: %s maps to both %s and %s", ErrInvalidContraction, old, prev, c.Replacement)
			}
			remap[old] = c.Replacement
		}
	}
	resolve := func(n NodeAddress) NodeAddress {
		if r, ok := remap[n]; ok {
			return r
		}
		return n
	}

	out := New(func(o *Options) { *o = g.options })
	for _, n := range g.NodeList(NodeFilter{}) {
		if err := out.AddNode(resolve(n)); err != nil {
			return nil, err
		}
	}
	for _, c := range contractions {
		if err := out.AddNode(c.Replacement); err != nil {
			return nil, err
		}
	}
	for _, e := range g.EdgeList(EdgeFilter{}) {
		rewired := Edge{Address: e.Address, Src: resolve(e.Src), Dst: resolve(e.Dst)}
		if err := out.AddEdge(rewired); err != nil {
			return nil, fmt.Errorf("contract: %w", err)
		}
	}
	return out, nil
}
