// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package weighted

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/compat"
	"github.com/AleutianAI/AleutianCred/services/cred/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWeightedGraph(t *testing.T) *Graph {
	t.Helper()
	g := graph.New()
	alice := address.MustNode("github", "user", "alice")
	pr := address.MustNode("github", "pr", "1")
	require.NoError(t, g.AddNode(alice))
	require.NoError(t, g.AddNode(pr))
	require.NoError(t, g.AddEdge(graph.Edge{Address: address.MustEdge("github", "authors", "1"), Src: alice, Dst: pr}))

	w := Empty()
	w.NodeTypeWeights[address.MustNode("github", "pr")] = 4
	w.EdgeTypeWeights[address.MustEdge("github", "authors")] = EdgeWeight{Forwards: 0.5, Backwards: 1}
	return New(g, w)
}

func TestEvaluator_NodeWeight(t *testing.T) {
	w := Empty()
	w.NodeTypeWeights[address.MustNode("github")] = 2
	w.NodeTypeWeights[address.MustNode("github", "pr")] = 3
	w.NodeTypeWeights[address.MustNode("discord")] = 0.5
	w.NodeWeights[address.MustNode("github", "pr", "7")] = 10

	ev := NewEvaluator(w)
	tests := []struct {
		name string
		node address.NodeAddress
		want float64
	}{
		{"no match defaults to 1", address.MustNode("discourse", "topic"), 1},
		{"single prefix", address.MustNode("github", "user", "alice"), 2},
		{"nested prefixes multiply", address.MustNode("github", "pr", "1"), 6},
		{"exact override wins", address.MustNode("github", "pr", "7"), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ev.NodeWeight(tt.node), 1e-12)
		})
	}

	w.NodeWeights[address.MustNode("discourse", "topic")] = 99
	assert.Equal(t, 1.0, ev.NodeWeight(address.MustNode("discourse", "topic")), "evaluator snapshots the table")
}

func TestEvaluator_EdgeWeight(t *testing.T) {
	w := Empty()
	w.EdgeTypeWeights[address.MustEdge("github")] = EdgeWeight{Forwards: 2, Backwards: 0.5}
	w.EdgeTypeWeights[address.MustEdge("github", "reacts")] = EdgeWeight{Forwards: 3, Backwards: 0}
	w.EdgeWeights[address.MustEdge("github", "reacts", "9")] = EdgeWeight{Forwards: 7, Backwards: 7}

	ev := NewEvaluator(w)
	assert.Equal(t, EdgeWeight{Forwards: 1, Backwards: 1}, ev.EdgeWeight(address.MustEdge("discord", "x")))
	assert.Equal(t, EdgeWeight{Forwards: 2, Backwards: 0.5}, ev.EdgeWeight(address.MustEdge("github", "authors", "1")))
	assert.Equal(t, EdgeWeight{Forwards: 6, Backwards: 0}, ev.EdgeWeight(address.MustEdge("github", "reacts", "1")))
	assert.Equal(t, EdgeWeight{Forwards: 7, Backwards: 7}, ev.EdgeWeight(address.MustEdge("github", "reacts", "9")))

	assert.Equal(t, 1.0, NewEvaluator(nil).NodeWeight(address.MustNode("x")))
}

func TestMergeWeights_RightBiased(t *testing.T) {
	a := Empty()
	a.NodeTypeWeights[address.MustNode("x")] = 1
	a.NodeWeights[address.MustNode("x", "1")] = 5
	a.EdgeWeights[address.MustEdge("e")] = EdgeWeight{Forwards: 1, Backwards: 1}

	b := Empty()
	b.NodeTypeWeights[address.MustNode("x")] = 2
	b.EdgeTypeWeights[address.MustEdge("t")] = EdgeWeight{Forwards: 3}

	merged := MergeWeights(a, nil, b)
	assert.Equal(t, 2.0, merged.NodeTypeWeights[address.MustNode("x")])
	assert.Equal(t, 5.0, merged.NodeWeights[address.MustNode("x", "1")])
	assert.Len(t, merged.EdgeWeights, 1)
	assert.Len(t, merged.EdgeTypeWeights, 1)

	merged.NodeWeights[address.MustNode("y")] = 1
	assert.NotContains(t, a.NodeWeights, address.MustNode("y"))
}

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *Weights)
	}{
		{"negative node type", func(w *Weights) { w.NodeTypeWeights[address.MustNode("a")] = -1 }},
		{"nan node", func(w *Weights) { w.NodeWeights[address.MustNode("a")] = math.NaN() }},
		{"infinite edge type", func(w *Weights) {
			w.EdgeTypeWeights[address.MustEdge("a")] = EdgeWeight{Forwards: math.Inf(1)}
		}},
		{"negative edge backwards", func(w *Weights) {
			w.EdgeWeights[address.MustEdge("a")] = EdgeWeight{Forwards: 1, Backwards: -0.1}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Empty()
			tt.mutate(w)
			assert.ErrorIs(t, w.Validate(), ErrInvalidWeight)
		})
	}
	assert.NoError(t, Empty().Validate())
}

func TestMerge(t *testing.T) {
	a := testWeightedGraph(t)

	g := graph.New()
	bob := address.MustNode("github", "user", "bob")
	pr := address.MustNode("github", "pr", "1")
	require.NoError(t, g.AddNode(bob))
	require.NoError(t, g.AddNode(pr))
	require.NoError(t, g.AddEdge(graph.Edge{Address: address.MustEdge("github", "reviews", "1"), Src: bob, Dst: pr}))
	w := Empty()
	w.NodeTypeWeights[address.MustNode("github", "pr")] = 8
	b := New(g, w)

	merged, err := Merge(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Graph.NodeCount())
	assert.Equal(t, 2, merged.Graph.EdgeCount())
	assert.Equal(t, 8.0, merged.Evaluator().NodeWeight(pr))

	conflict := graph.New()
	require.NoError(t, conflict.AddNode(pr))
	require.NoError(t, conflict.AddNode(bob))
	require.NoError(t, conflict.AddEdge(graph.Edge{Address: address.MustEdge("github", "authors", "1"), Src: bob, Dst: pr}))
	_, err = Merge(context.Background(), a, New(conflict, nil))
	assert.ErrorIs(t, err, graph.ErrConflictingEdge)
}

func TestContract_CarriesNodeWeights(t *testing.T) {
	wg := testWeightedGraph(t)
	alice := address.MustNode("github", "user", "alice")
	wg.Weights.NodeWeights[alice] = 3

	identity := address.MustNode("identity", "alice")
	out, err := Contract(context.Background(), wg, []graph.NodeContraction{{Old: []address.NodeAddress{alice}, Replacement: identity}})
	require.NoError(t, err)
	assert.True(t, out.Graph.HasNode(identity))
	assert.False(t, out.Graph.HasNode(alice))
	assert.Equal(t, 3.0, out.Evaluator().NodeWeight(identity))
	assert.NotContains(t, wg.Weights.NodeWeights, identity)
}

func TestJSON_RoundTrip(t *testing.T) {
	wg := testWeightedGraph(t)
	wg.Weights.EdgeWeights[address.MustEdge("github", "authors", "1")] = EdgeWeight{Forwards: 2, Backwards: 0.25}

	data, err := json.Marshal(wg)
	require.NoError(t, err)

	info, err := compat.Peek(data)
	require.NoError(t, err)
	assert.Equal(t, CompatInfo, info)

	decoded, err := FromJSON(data)
	require.NoError(t, err)
	assert.True(t, wg.Graph.Equal(decoded.Graph))
	assert.Equal(t, wg.Weights, decoded.Weights)

	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestJSON_Errors(t *testing.T) {
	graphOnly, err := json.Marshal(graph.New())
	require.NoError(t, err)
	_, err = FromJSON(graphOnly)
	assert.ErrorIs(t, err, compat.ErrIncompatibleFormat)

	bad := `[{"type":"cred/weightedGraph","version":"1.0.0"},{"graph":` + string(graphOnly) +
		`,"weights":[{"type":"cred/weights","version":"1.0.0"},{"nodeTypeWeights":[{"address":["a"],"weight":-2}]}]}]`
	_, err = FromJSON([]byte(bad))
	assert.ErrorIs(t, err, ErrInvalidWeight)
}
