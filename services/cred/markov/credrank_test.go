// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package markov

import (
	"context"
	"testing"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/entity"
	"github.com/AleutianAI/AleutianCred/services/cred/graph"
	"github.com/AleutianAI/AleutianCred/services/cred/weighted"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userPrefix = address.MustNode("user")
	alice      = address.MustNode("user", "alice")
	bob        = address.MustNode("user", "bob")
	pr1        = address.MustNode("pr", "1")
	pr2        = address.MustNode("pr", "2")
)

// contributionGraph has alice authoring pr1 in epoch 1 and bob authoring
// pr2 in epoch 2, with boundaries at 100 and 200.
func contributionGraph(t *testing.T) (*weighted.Graph, *entity.Table, Fibration) {
	t.Helper()
	g := graph.New()
	for _, n := range []address.NodeAddress{alice, bob, pr1, pr2} {
		require.NoError(t, g.AddNode(n))
	}
	a1 := address.MustEdge("authors", "1")
	a2 := address.MustEdge("authors", "2")
	require.NoError(t, g.AddEdge(graph.Edge{Address: a1, Src: alice, Dst: pr1}))
	require.NoError(t, g.AddEdge(graph.Edge{Address: a2, Src: bob, Dst: pr2}))

	w := weighted.Empty()
	w.NodeTypeWeights[userPrefix] = 0
	w.NodeWeights[pr1] = 1
	w.NodeWeights[pr2] = 3

	tbl := entity.NewTable()
	tbl.SetEdge(a1, entity.EdgeInfo{TimestampMs: 150})
	tbl.SetEdge(a2, entity.EdgeInfo{TimestampMs: 250})

	fib := Fibration{ScoringPrefixes: []address.NodeAddress{userPrefix}, EpochBoundaries: []int64{100, 200}}
	return weighted.New(g, w), tbl, fib
}

func TestCredRankParams_Validate(t *testing.T) {
	require.NoError(t, DefaultCredRankParams().Validate())

	tests := []struct {
		name   string
		params CredRankParams
	}{
		{"negative alpha", CredRankParams{Alpha: -0.1}},
		{"negative gamma", CredRankParams{GammaBackward: -0.1}},
		{"sum exceeds one", CredRankParams{Alpha: 0.5, Beta: 0.4, GammaForward: 0.1, GammaBackward: 0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.params.Validate(), ErrInvalidParameters)
		})
	}

	assert.NoError(t, CredRankParams{Alpha: 0.25, Beta: 0.25, GammaForward: 0.25, GammaBackward: 0.25}.Validate())
}

func TestFibration(t *testing.T) {
	fib := Fibration{ScoringPrefixes: []address.NodeAddress{userPrefix}, EpochBoundaries: []int64{100, 200}}
	require.NoError(t, fib.Validate())
	assert.Equal(t, 3, fib.EpochCount())

	for ts, want := range map[int64]int{50: 0, 99: 0, 100: 1, 199: 1, 200: 2, 1000: 2} {
		assert.Equal(t, want, fib.EpochOf(ts), "ts=%d", ts)
	}
	assert.True(t, fib.IsScoring(alice))
	assert.False(t, fib.IsScoring(pr1))

	bad := Fibration{EpochBoundaries: []int64{100, 100}}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidParameters)
}

func TestBuildCredRankChain_Structure(t *testing.T) {
	wg, tbl, fib := contributionGraph(t)
	chain, err := BuildCredRankChain(context.Background(), wg, tbl, DefaultCredRankParams(), fib)
	require.NoError(t, err)

	// seed + 2 plain + 2 scoring x 3 epochs + 3 accumulators
	assert.Equal(t, 12, chain.Len())
	require.NoError(t, CheckStochastic(chain.Chain, 1e-9))

	assert.Equal(t, []address.NodeAddress{alice, bob}, chain.Scoring)
	assert.Len(t, chain.EpochNodes[alice], 3)
	assert.Len(t, chain.Accumulators, 3)
	assert.Equal(t, SeedAddress, chain.Nodes[chain.SeedIndex])

	// The seed mints to pr1 and pr2 in proportion 1:3.
	mint := map[address.NodeAddress]float64{}
	for i, adjs := range chain.Adjacencies {
		for _, adj := range adjs {
			if adj.Kind == KindSeedMint {
				assert.Equal(t, chain.SeedIndex, adj.Source)
				mint[chain.Nodes[i]] = adj.Weight
			}
		}
	}
	assert.InDelta(t, 0.25, mint[pr1], 1e-12)
	assert.InDelta(t, 0.75, mint[pr2], 1e-12)

	// alice's authorship edge lands on her epoch 1 node.
	aliceEpoch1 := chain.EpochNodes[alice][1]
	found := false
	for _, adj := range chain.Adjacencies[aliceEpoch1] {
		if adj.Kind == KindOutEdge && adj.Edge == address.MustEdge("authors", "1") {
			found = true
			assert.Equal(t, pr1, chain.Nodes[adj.Source])
		}
	}
	assert.True(t, found)
}

func TestBuildCredRankChain_Solve(t *testing.T) {
	wg, tbl, fib := contributionGraph(t)
	chain, err := BuildCredRankChain(context.Background(), wg, tbl, DefaultCredRankParams(), fib)
	require.NoError(t, err)

	res, err := FindStationaryDistribution(context.Background(), chain.Chain, &SolverOptions{MaxIterations: 10000})
	require.NoError(t, err)
	require.True(t, res.Converged())

	scores := chain.BaseScores(res.Pi)
	assert.Len(t, scores, 4)
	total := res.Pi[chain.SeedIndex]
	for _, v := range scores {
		total += v
	}
	for _, v := range chain.Payouts(res.Pi) {
		total += v
	}
	assert.InDelta(t, 1, total, 1e-6)

	assert.Greater(t, scores[bob], scores[alice], "bob's PR carries more weight")

	aliceEpochs := chain.EpochScores(res.Pi, alice)
	require.Len(t, aliceEpochs, 3)
	assert.Greater(t, aliceEpochs[1], aliceEpochs[0])
	assert.Greater(t, aliceEpochs[1], aliceEpochs[2])
	assert.Nil(t, chain.EpochScores(res.Pi, pr1))
}

func TestBuildCredRankChain_MintFallbacks(t *testing.T) {
	t.Run("only scoring nodes", func(t *testing.T) {
		g := graph.New()
		require.NoError(t, g.AddNode(alice))
		fib := Fibration{ScoringPrefixes: []address.NodeAddress{userPrefix}}
		chain, err := BuildCredRankChain(context.Background(), weighted.New(g, nil), nil, DefaultCredRankParams(), fib)
		require.NoError(t, err)
		require.NoError(t, CheckStochastic(chain.Chain, 1e-9))

		epoch := chain.EpochNodes[alice][0]
		require.NotEmpty(t, chain.Adjacencies[epoch])
		assert.Equal(t, KindSeedMint, chain.Adjacencies[epoch][0].Kind)
	})

	t.Run("zero node weights mint uniformly", func(t *testing.T) {
		g := graph.New()
		require.NoError(t, g.AddNode(pr1))
		require.NoError(t, g.AddNode(pr2))
		w := weighted.Empty()
		w.NodeTypeWeights[address.MustNode("pr")] = 0
		chain, err := BuildCredRankChain(context.Background(), weighted.New(g, w), nil, DefaultCredRankParams(), Fibration{})
		require.NoError(t, err)
		require.NoError(t, CheckStochastic(chain.Chain, 1e-9))
		for _, n := range []address.NodeAddress{pr1, pr2} {
			i := chain.Base[n]
			assert.InDelta(t, 0.5, chain.Adjacencies[i][0].Weight, 1e-12)
		}
	})

	t.Run("empty graph", func(t *testing.T) {
		chain, err := BuildCredRankChain(context.Background(), weighted.New(nil, nil), nil, DefaultCredRankParams(), Fibration{})
		require.NoError(t, err)
		assert.Equal(t, 1, chain.Len())
		require.NoError(t, CheckStochastic(chain.Chain, 1e-9))

		res, err := FindStationaryDistribution(context.Background(), chain.Chain, nil)
		require.NoError(t, err)
		assert.Equal(t, []float64{1}, res.Pi)
	})
}

func TestBuildCredRankChain_Errors(t *testing.T) {
	wg, tbl, fib := contributionGraph(t)

	_, err := BuildCredRankChain(context.Background(), wg, tbl, CredRankParams{Alpha: 0.9, Beta: 0.9}, fib)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = BuildCredRankChain(context.Background(), wg, tbl, DefaultCredRankParams(), Fibration{EpochBoundaries: []int64{5, 1}})
	assert.ErrorIs(t, err, ErrInvalidParameters)

	require.NoError(t, wg.Graph.AddNode(SeedAddress))
	_, err = BuildCredRankChain(context.Background(), wg, tbl, DefaultCredRankParams(), fib)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}
