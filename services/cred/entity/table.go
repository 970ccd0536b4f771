// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package entity

import (
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/compat"
)

// CompatInfo identifies serialized entity tables.
var CompatInfo = compat.Info{Type: "cred/entities", Version: "1.0.0"}

// NodeInfo is the content attached to a node.
type NodeInfo struct {
	Description string `json:"description"`

	// TimestampMs is the creation time in Unix milliseconds. Nil for
	// timeless nodes such as users.
	TimestampMs *int64 `json:"timestampMs,omitempty"`
}

// Equal reports whether both infos carry the same content.
func (n NodeInfo) Equal(other NodeInfo) bool {
	if n.Description != other.Description {
		return false
	}
	if n.TimestampMs == nil || other.TimestampMs == nil {
		return n.TimestampMs == nil && other.TimestampMs == nil
	}
	return *n.TimestampMs == *other.TimestampMs
}

// EdgeInfo is the content attached to an edge.
type EdgeInfo struct {
	// TimestampMs is when the interaction happened, in Unix milliseconds.
	TimestampMs int64 `json:"timestampMs"`
}

// Table maps addresses to their content.
//
// Thread Safety:
//
//	Not safe for concurrent mutation. Treat a built table as read-only.
type Table struct {
	Nodes map[address.NodeAddress]NodeInfo
	Edges map[address.EdgeAddress]EdgeInfo
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		Nodes: make(map[address.NodeAddress]NodeInfo),
		Edges: make(map[address.EdgeAddress]EdgeInfo),
	}
}

// SetNode records content for a node, replacing any previous entry.
func (t *Table) SetNode(a address.NodeAddress, info NodeInfo) {
	t.Nodes[a] = info
}

// SetEdge records content for an edge, replacing any previous entry.
func (t *Table) SetEdge(a address.EdgeAddress, info EdgeInfo) {
	t.Edges[a] = info
}

// EdgeTimestamp returns the timestamp of an edge, if known.
func (t *Table) EdgeTimestamp(a address.EdgeAddress) (int64, bool) {
	if t == nil {
		return 0, false
	}
	info, ok := t.Edges[a]
	return info.TimestampMs, ok
}

// Description returns the node description, or the address string when
// the table has no entry.
func (t *Table) Description(a address.NodeAddress) string {
	if t != nil {
		if info, ok := t.Nodes[a]; ok && info.Description != "" {
			return info.Description
		}
	}
	return a.String()
}

// NodeResolver picks the content to keep when two tables disagree about a
// node.
type NodeResolver func(a address.NodeAddress, existing, incoming NodeInfo) (NodeInfo, error)

// EdgeResolver picks the content to keep when two tables disagree about an
// edge.
type EdgeResolver func(a address.EdgeAddress, existing, incoming EdgeInfo) (EdgeInfo, error)

// Resolver bundles conflict handlers. A nil field means conflicts of that
// kind are errors.
type Resolver struct {
	Node NodeResolver
	Edge EdgeResolver
}

// MergeConservative unions tables and fails on any content conflict.
//
// Errors:
//
//	ErrConflictingNode - two tables disagree about a node
//	ErrConflictingEdge - two tables disagree about an edge
func MergeConservative(tables ...*Table) (*Table, error) {
	return Merge(Resolver{}, tables...)
}

// Merge unions tables, consulting resolver on conflicts. Inputs are never
// aliased. Nil tables are skipped.
func Merge(resolver Resolver, tables ...*Table) (*Table, error) {
	out := NewTable()
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, a := range sortedNodeKeys(t.Nodes) {
			incoming := t.Nodes[a]
			existing, ok := out.Nodes[a]
			if !ok || existing.Equal(incoming) {
				out.Nodes[a] = cloneNodeInfo(incoming)
				continue
			}
			if resolver.Node == nil {
				return nil, fmt.Errorf("merge entities: %w: %s", ErrConflictingNode, a)
			}
			resolved, err := resolver.Node(a, existing, incoming)
			if err != nil {
				return nil, fmt.Errorf("merge entities: resolve %s: %w", a, err)
			}
			out.Nodes[a] = cloneNodeInfo(resolved)
		}
		for _, a := range sortedEdgeKeys(t.Edges) {
			incoming := t.Edges[a]
			existing, ok := out.Edges[a]
			if !ok || existing == incoming {
				out.Edges[a] = incoming
				continue
			}
			if resolver.Edge == nil {
				return nil, fmt.Errorf("merge entities: %w: %s", ErrConflictingEdge, a)
			}
			resolved, err := resolver.Edge(a, existing, incoming)
			if err != nil {
				return nil, fmt.Errorf("merge entities: resolve %s: %w", a, err)
			}
			out.Edges[a] = resolved
		}
	}
	return out, nil
}

func cloneNodeInfo(n NodeInfo) NodeInfo {
	if n.TimestampMs != nil {
		ts := *n.TimestampMs
		n.TimestampMs = &ts
	}
	return n
}

func sortedNodeKeys(m map[address.NodeAddress]NodeInfo) []address.NodeAddress {
	keys := make([]address.NodeAddress, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, address.Compare[address.Node])
	return keys
}

func sortedEdgeKeys(m map[address.EdgeAddress]EdgeInfo) []address.EdgeAddress {
	keys := make([]address.EdgeAddress, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, address.Compare[address.Edge])
	return keys
}

type nodeJSON struct {
	Address address.NodeAddress `json:"address"`
	NodeInfo
}

type edgeJSON struct {
	Address address.EdgeAddress `json:"address"`
	EdgeInfo
}

type tableJSON struct {
	Nodes []nodeJSON `json:"nodes"`
	Edges []edgeJSON `json:"edges"`
}

// MarshalJSON encodes the table with entries sorted by address.
func (t *Table) MarshalJSON() ([]byte, error) {
	payload := tableJSON{
		Nodes: make([]nodeJSON, 0, len(t.Nodes)),
		Edges: make([]edgeJSON, 0, len(t.Edges)),
	}
	for _, a := range sortedNodeKeys(t.Nodes) {
		payload.Nodes = append(payload.Nodes, nodeJSON{Address: a, NodeInfo: t.Nodes[a]})
	}
	for _, a := range sortedEdgeKeys(t.Edges) {
		payload.Edges = append(payload.Edges, edgeJSON{Address: a, EdgeInfo: t.Edges[a]})
	}
	return compat.Wrap(CompatInfo, payload)
}

// UnmarshalJSON replaces t's contents with the decoded table.
func (t *Table) UnmarshalJSON(data []byte) error {
	var payload tableJSON
	if err := compat.Unwrap(data, CompatInfo, &payload); err != nil {
		return err
	}
	out := NewTable()
	for _, n := range payload.Nodes {
		out.Nodes[n.Address] = n.NodeInfo
	}
	for _, e := range payload.Edges {
		out.Edges[e.Address] = e.EdgeInfo
	}
	*t = *out
	return nil
}

// FromJSON decodes a table.
func FromJSON(data []byte) (*Table, error) {
	t := NewTable()
	if err := t.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return t, nil
}
