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
	"encoding/json"
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/compat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(v int64) *int64 { return &v }

func TestMergeConservative(t *testing.T) {
	alice := address.MustNode("user", "alice")
	pr := address.MustNode("pr", "1")
	authors := address.MustEdge("authors", "1")

	a := NewTable()
	a.SetNode(alice, NodeInfo{Description: "alice"})
	a.SetNode(pr, NodeInfo{Description: "PR #1", TimestampMs: ts(100)})
	a.SetEdge(authors, EdgeInfo{TimestampMs: 100})

	b := NewTable()
	b.SetNode(pr, NodeInfo{Description: "PR #1", TimestampMs: ts(100)})
	b.SetEdge(authors, EdgeInfo{TimestampMs: 100})

	merged, err := MergeConservative(a, b, nil)
	require.NoError(t, err)
	assert.Len(t, merged.Nodes, 2)
	assert.Len(t, merged.Edges, 1)

	*merged.Nodes[pr].TimestampMs = 5
	assert.Equal(t, int64(100), *a.Nodes[pr].TimestampMs, "inputs must not be aliased")

	t.Run("node conflict", func(t *testing.T) {
		c := NewTable()
		c.SetNode(pr, NodeInfo{Description: "PR #1 (edited)", TimestampMs: ts(100)})
		_, err := MergeConservative(a, c)
		assert.ErrorIs(t, err, ErrConflictingNode)
	})

	t.Run("node timestamp presence conflict", func(t *testing.T) {
		c := NewTable()
		c.SetNode(pr, NodeInfo{Description: "PR #1"})
		_, err := MergeConservative(a, c)
		assert.ErrorIs(t, err, ErrConflictingNode)
	})

	t.Run("edge conflict", func(t *testing.T) {
		c := NewTable()
		c.SetEdge(authors, EdgeInfo{TimestampMs: 200})
		_, err := MergeConservative(a, c)
		assert.ErrorIs(t, err, ErrConflictingEdge)
	})
}

func TestMerge_Resolver(t *testing.T) {
	pr := address.MustNode("pr", "1")
	authors := address.MustEdge("authors", "1")

	a := NewTable()
	a.SetNode(pr, NodeInfo{Description: "old", TimestampMs: ts(100)})
	a.SetEdge(authors, EdgeInfo{TimestampMs: 100})
	b := NewTable()
	b.SetNode(pr, NodeInfo{Description: "new", TimestampMs: ts(100)})
	b.SetEdge(authors, EdgeInfo{TimestampMs: 50})

	resolver := Resolver{
		Node: func(_ address.NodeAddress, _, incoming NodeInfo) (NodeInfo, error) { return incoming, nil },
		Edge: func(_ address.EdgeAddress, existing, incoming EdgeInfo) (EdgeInfo, error) {
			if incoming.TimestampMs < existing.TimestampMs {
				return incoming, nil
			}
			return existing, nil
		},
	}
	merged, err := Merge(resolver, a, b)
	require.NoError(t, err)
	assert.Equal(t, "new", merged.Nodes[pr].Description)
	assert.Equal(t, int64(50), merged.Edges[authors].TimestampMs)

	boom := errors.New("boom")
	_, err = Merge(Resolver{Node: func(address.NodeAddress, NodeInfo, NodeInfo) (NodeInfo, error) {
		return NodeInfo{}, boom
	}}, a, b)
	assert.ErrorIs(t, err, boom)
}

func TestTable_Lookups(t *testing.T) {
	alice := address.MustNode("user", "alice")
	tbl := NewTable()
	tbl.SetNode(alice, NodeInfo{Description: "Alice"})
	tbl.SetEdge(address.MustEdge("e"), EdgeInfo{TimestampMs: 7})

	assert.Equal(t, "Alice", tbl.Description(alice))
	assert.Equal(t, `NodeAddress["user","bob"]`, tbl.Description(address.MustNode("user", "bob")))

	got, ok := tbl.EdgeTimestamp(address.MustEdge("e"))
	assert.True(t, ok)
	assert.Equal(t, int64(7), got)

	var nilTable *Table
	_, ok = nilTable.EdgeTimestamp(address.MustEdge("e"))
	assert.False(t, ok)
}

func TestTable_JSON(t *testing.T) {
	tbl := NewTable()
	tbl.SetNode(address.MustNode("b"), NodeInfo{Description: "B", TimestampMs: ts(3)})
	tbl.SetNode(address.MustNode("a"), NodeInfo{Description: "A"})
	tbl.SetEdge(address.MustEdge("e"), EdgeInfo{TimestampMs: 9})

	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type": "cred/entities", "version": "1.0.0"},
		{
			"nodes": [
				{"address": ["a"], "description": "A"},
				{"address": ["b"], "description": "B", "timestampMs": 3}
			],
			"edges": [{"address": ["e"], "timestampMs": 9}]
		}
	]`, string(data))

	decoded, err := FromJSON(data)
	require.NoError(t, err)
	merged, err := MergeConservative(tbl, decoded)
	require.NoError(t, err, "decoded table must agree with the original")
	assert.Len(t, merged.Nodes, 2)

	_, err = FromJSON([]byte(`[{"type":"cred/graph","version":"1.0.0"},{}]`))
	assert.ErrorIs(t, err, compat.ErrIncompatibleFormat)
}
