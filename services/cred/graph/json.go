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

	"github.com/AleutianAI/AleutianCred/services/cred/compat"
)

// CompatInfo identifies serialized graphs.
var CompatInfo = compat.Info{Type: "cred/graph", Version: "1.0.0"}

type indexedEdgeJSON struct {
	Address  EdgeAddress `json:"address"`
	SrcIndex int         `json:"srcIndex"`
	DstIndex int         `json:"dstIndex"`
}

type graphJSON struct {
	Nodes []NodeAddress     `json:"nodes"`
	Edges []indexedEdgeJSON `json:"edges"`
}

// MarshalJSON encodes the graph deterministically.
//
// Description:
//
//	Nodes are sorted by address. Edges are sorted by address and encode
//	their endpoints as indices into the sorted node array. The payload is
//	wrapped in the cred/graph compatibility envelope.
func (g *Graph) MarshalJSON() ([]byte, error) {
	nodes := g.NodeList(NodeFilter{})
	index := make(map[NodeAddress]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}
	edges := g.EdgeList(EdgeFilter{})
	payload := graphJSON{
		Nodes: nodes,
		Edges: make([]indexedEdgeJSON, len(edges)),
	}
	for i, e := range edges {
		payload.Edges[i] = indexedEdgeJSON{
			Address:  e.Address,
			SrcIndex: index[e.Src],
			DstIndex: index[e.Dst],
		}
	}
	return compat.Wrap(CompatInfo, payload)
}

// UnmarshalJSON replaces g's contents with the decoded graph. Options of
// the receiver are kept.
//
// Errors:
//
//	compat.ErrIncompatibleFormat - envelope mismatch or bad edge index
func (g *Graph) UnmarshalJSON(data []byte) error {
	var payload graphJSON
	if err := compat.Unwrap(data, CompatInfo, &payload); err != nil {
		return err
	}
	out := New(func(o *Options) { *o = g.options })
	for _, n := range payload.Nodes {
		if err := out.AddNode(n); err != nil {
			return err
		}
	}
	for _, e := range payload.Edges {
		if e.SrcIndex < 0 || e.SrcIndex >= len(payload.Nodes) || e.DstIndex < 0 || e.DstIndex >= len(payload.Nodes) {
			return fmt.Errorf("%w: edge %s has endpoint index out of range", compat.ErrIncompatibleFormat, e.Address)
		}
		err := out.AddEdge(Edge{
			Address: e.Address,
			Src:     payload.Nodes[e.SrcIndex],
			Dst:     payload.Nodes[e.DstIndex],
		})
		if err != nil {
			return err
		}
	}
	*g = *out
	return nil
}

// FromJSON decodes a graph.
func FromJSON(data []byte, opts ...Option) (*Graph, error) {
	g := New(opts...)
	if err := g.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return g, nil
}
