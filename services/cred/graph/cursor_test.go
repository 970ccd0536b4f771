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
	"testing"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodes_SortedAndFiltered(t *testing.T) {
	g := New()
	for _, n := range []NodeAddress{node("user", "b"), node("repo", "x"), node("user", "a"), node("user")} {
		require.NoError(t, g.AddNode(n))
	}

	all, err := g.Nodes(NodeFilter{}).Collect()
	require.NoError(t, err)
	assert.Equal(t, []NodeAddress{node("repo", "x"), node("user"), node("user", "a"), node("user", "b")}, all)

	users, err := g.Nodes(NodeFilter{Prefix: node("user")}).Collect()
	require.NoError(t, err)
	assert.Equal(t, []NodeAddress{node("user"), node("user", "a"), node("user", "b")}, users)

	none, err := g.Nodes(NodeFilter{Prefix: node("issue")}).Collect()
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEdges_Filters(t *testing.T) {
	g := New()
	for _, n := range []NodeAddress{node("user", "a"), node("repo", "x"), node("repo", "y")} {
		require.NoError(t, g.AddNode(n))
	}
	e1 := Edge{Address: address.MustEdge("authors", "1"), Src: node("user", "a"), Dst: node("repo", "x")}
	e2 := Edge{Address: address.MustEdge("authors", "2"), Src: node("user", "a"), Dst: node("repo", "y")}
	e3 := Edge{Address: address.MustEdge("depends", "1"), Src: node("repo", "x"), Dst: node("repo", "y")}
	for _, e := range []Edge{e3, e2, e1} {
		require.NoError(t, g.AddEdge(e))
	}

	tests := []struct {
		name   string
		filter EdgeFilter
		want   []Edge
	}{
		{"all", EdgeFilter{}, []Edge{e1, e2, e3}},
		{"address prefix", EdgeFilter{AddressPrefix: address.MustEdge("authors")}, []Edge{e1, e2}},
		{"src prefix", EdgeFilter{SrcPrefix: node("repo")}, []Edge{e3}},
		{"dst prefix", EdgeFilter{DstPrefix: node("repo", "y")}, []Edge{e2, e3}},
		{"combined", EdgeFilter{AddressPrefix: address.MustEdge("authors"), DstPrefix: node("repo", "y")}, []Edge{e2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Edges(tt.filter).Collect()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCursor_ConcurrentModification(t *testing.T) {
	t.Run("mutation mid-iteration", func(t *testing.T) {
		g := testGraph(t)
		c := g.Nodes(NodeFilter{})
		require.True(t, c.Next())
		require.NoError(t, g.AddNode(node("qux")))
		assert.False(t, c.Next())
		assert.ErrorIs(t, c.Err(), ErrConcurrentModification)
		assert.False(t, c.Next(), "cursor stays failed")
	})

	t.Run("mutation before final step", func(t *testing.T) {
		g := testGraph(t)
		c := g.Edges(EdgeFilter{})
		for i := 0; i < 3; i++ {
			require.True(t, c.Next())
		}
		g.RemoveEdge(address.MustEdge("e1"))
		assert.False(t, c.Next())
		assert.ErrorIs(t, c.Err(), ErrConcurrentModification)
	})

	t.Run("no-op mutation keeps cursor valid", func(t *testing.T) {
		g := testGraph(t)
		c := g.Nodes(NodeFilter{})
		require.True(t, c.Next())
		require.NoError(t, g.AddNode(node("foo")))
		g.RemoveEdge(address.MustEdge("absent"))
		got, err := c.Collect()
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("neighbors cursor", func(t *testing.T) {
		g := testGraph(t)
		c, err := g.Neighbors(node("bar"), NeighborsOptions{})
		require.NoError(t, err)
		require.True(t, c.Next())
		require.NoError(t, g.AddNode(node("qux")))
		assert.False(t, c.Next())
		assert.ErrorIs(t, c.Err(), ErrConcurrentModification)
	})
}

func TestCursor_All(t *testing.T) {
	g := testGraph(t)
	c := g.Nodes(NodeFilter{})
	var seen []NodeAddress
	for n := range c.All() {
		seen = append(seen, n)
		if len(seen) == 2 {
			break
		}
	}
	require.NoError(t, c.Err())
	assert.Equal(t, []NodeAddress{node("bar"), node("baz")}, seen)
}

func TestNeighbors(t *testing.T) {
	g := testGraph(t)

	collect := func(t *testing.T, n NodeAddress, opts NeighborsOptions) []Neighbor {
		t.Helper()
		c, err := g.Neighbors(n, opts)
		require.NoError(t, err)
		got, err := c.Collect()
		require.NoError(t, err)
		return got
	}
	e1, _ := g.Edge(address.MustEdge("e1"))
	e2, _ := g.Edge(address.MustEdge("e2"))
	loop, _ := g.Edge(address.MustEdge("loop"))

	t.Run("in", func(t *testing.T) {
		got := collect(t, node("bar"), NeighborsOptions{Direction: DirectionIn})
		assert.Equal(t, []Neighbor{{Edge: e1, Node: node("foo")}}, got)
	})

	t.Run("out", func(t *testing.T) {
		got := collect(t, node("bar"), NeighborsOptions{Direction: DirectionOut})
		assert.Equal(t, []Neighbor{{Edge: e2, Node: node("baz")}}, got)
	})

	t.Run("any lists inbound first", func(t *testing.T) {
		got := collect(t, node("bar"), NeighborsOptions{Direction: DirectionAny})
		assert.Equal(t, []Neighbor{{Edge: e1, Node: node("foo")}, {Edge: e2, Node: node("baz")}}, got)
	})

	t.Run("any yields loop once", func(t *testing.T) {
		got := collect(t, node("foo"), NeighborsOptions{Direction: DirectionAny})
		assert.Equal(t, []Neighbor{
			{Edge: loop, Node: node("foo")},
			{Edge: e1, Node: node("bar")},
		}, got)
	})

	t.Run("directed loop appears in both directions", func(t *testing.T) {
		in := collect(t, node("foo"), NeighborsOptions{Direction: DirectionIn})
		out := collect(t, node("foo"), NeighborsOptions{Direction: DirectionOut})
		assert.Equal(t, []Neighbor{{Edge: loop, Node: node("foo")}}, in)
		assert.Equal(t, []Neighbor{{Edge: e1, Node: node("bar")}, {Edge: loop, Node: node("foo")}}, out)
	})

	t.Run("node prefix", func(t *testing.T) {
		got := collect(t, node("bar"), NeighborsOptions{NodePrefix: node("baz")})
		assert.Equal(t, []Neighbor{{Edge: e2, Node: node("baz")}}, got)
	})

	t.Run("edge prefix", func(t *testing.T) {
		got := collect(t, node("foo"), NeighborsOptions{EdgePrefix: address.MustEdge("loop")})
		assert.Equal(t, []Neighbor{{Edge: loop, Node: node("foo")}}, got)
	})

	t.Run("missing node", func(t *testing.T) {
		_, err := g.Neighbors(node("ghost"), NeighborsOptions{})
		assert.ErrorIs(t, err, ErrMissingNode)
	})
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "any", DirectionAny.String())
	assert.Equal(t, "in", DirectionIn.String())
	assert.Equal(t, "out", DirectionOut.String())
	assert.Equal(t, "unknown", Direction(9).String())
}
