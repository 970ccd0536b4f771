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
	"time"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfLoopChain() *Chain {
	return &Chain{
		Nodes:       []address.NodeAddress{nodeA},
		Adjacencies: [][]Adjacency{{{Kind: KindSyntheticLoop, Source: 0, Weight: 1}}},
	}
}

// cycleChain alternates deterministically between A and B.
func cycleChain() *Chain {
	return &Chain{
		Nodes: []address.NodeAddress{nodeA, nodeB},
		Adjacencies: [][]Adjacency{
			{{Kind: KindInEdge, Edge: address.MustEdge("B->A"), Source: 1, Weight: 1}},
			{{Kind: KindInEdge, Edge: edgeAB, Source: 0, Weight: 1}},
		},
	}
}

func TestFindStationaryDistribution_SingleNode(t *testing.T) {
	res, err := FindStationaryDistribution(context.Background(), selfLoopChain(), nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, res.Pi)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, StateConverged, res.State)
	assert.True(t, res.Converged())
}

func TestFindStationaryDistribution_TwoNodeFixedPoint(t *testing.T) {
	chain, err := BuildPageRankChain(context.Background(), twoNodeGraph(t), &BuildOptions{SyntheticLoopWeight: 0.2})
	require.NoError(t, err)

	t.Run("with teleportation", func(t *testing.T) {
		// pi_A = (1-a) * pi_A/6 + a/2 with a = 1/2 gives pi_A = 3/11.
		res, err := FindStationaryDistribution(context.Background(), chain, &SolverOptions{Alpha: 0.5})
		require.NoError(t, err)
		require.True(t, res.Converged())
		assert.InDelta(t, 3.0/11, res.Pi[0], 1e-6)
		assert.InDelta(t, 8.0/11, res.Pi[1], 1e-6)
		assert.Greater(t, res.Pi[1], res.Pi[0])
	})

	t.Run("without teleportation", func(t *testing.T) {
		res, err := FindStationaryDistribution(context.Background(), chain, nil)
		require.NoError(t, err)
		require.True(t, res.Converged())
		assert.InDelta(t, 0, res.Pi[0], 1e-6)
		assert.InDelta(t, 1, res.Pi[1], 1e-6)
	})
}

func TestFindStationaryDistribution_MaxIterations(t *testing.T) {
	res, err := FindStationaryDistribution(context.Background(), cycleChain(), &SolverOptions{
		Pi0:           []float64{1, 0},
		MaxIterations: 5,
	})
	require.NoError(t, err, "hitting the cap is not an error")
	assert.Equal(t, StateMaxIterationsReached, res.State)
	assert.Equal(t, 5, res.Iterations)
	assert.InDelta(t, 1, res.ConvergenceDelta, 1e-12)
	assert.Equal(t, []float64{0, 1}, res.Pi)
}

func TestFindStationaryDistribution_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pi0 := []float64{0.3, 0.7}
	res, err := FindStationaryDistribution(ctx, cycleChain(), &SolverOptions{Pi0: pi0})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, StateInitialized, res.State)
	assert.Equal(t, pi0, res.Pi)
}

func TestFindStationaryDistribution_YieldingDoesNotChangeResult(t *testing.T) {
	chain, err := BuildPageRankChain(context.Background(), randomWeightedGraph(t, 3, 20, 60), nil)
	require.NoError(t, err)

	base, err := FindStationaryDistribution(context.Background(), chain, &SolverOptions{Alpha: 0.15})
	require.NoError(t, err)
	eager, err := FindStationaryDistribution(context.Background(), chain, &SolverOptions{Alpha: 0.15, YieldAfter: time.Nanosecond})
	require.NoError(t, err)

	assert.Equal(t, base.Pi, eager.Pi)
	assert.Equal(t, base.Iterations, eager.Iterations)

	sum := 0.0
	for _, v := range base.Pi {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-6)
}

func TestFindStationaryDistribution_DoesNotMutateInputs(t *testing.T) {
	pi0 := []float64{1, 0}
	opts := &SolverOptions{Pi0: pi0, MaxIterations: 3}
	_, err := FindStationaryDistribution(context.Background(), cycleChain(), opts)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, pi0)
	assert.Equal(t, 3, opts.MaxIterations)
	assert.Zero(t, opts.YieldAfter, "caller options are not rewritten")
}

func TestFindStationaryDistribution_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts *SolverOptions
		want error
	}{
		{"alpha above one", &SolverOptions{Alpha: 1.5}, ErrInvalidParameters},
		{"negative alpha", &SolverOptions{Alpha: -0.1}, ErrInvalidParameters},
		{"seed length", &SolverOptions{Seed: []float64{1}}, ErrDimensionMismatch},
		{"pi0 length", &SolverOptions{Pi0: []float64{1, 0, 0}}, ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FindStationaryDistribution(context.Background(), cycleChain(), tt.opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFindStationaryDistribution_EmptyChain(t *testing.T) {
	res, err := FindStationaryDistribution(context.Background(), &Chain{}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Pi)
	assert.Equal(t, StateConverged, res.State)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "INITIALIZED", StateInitialized.String())
	assert.Equal(t, "ITERATING", StateIterating.String())
	assert.Equal(t, "CONVERGED", StateConverged.String())
	assert.Equal(t, "MAX_ITERATIONS_REACHED", StateMaxIterationsReached.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}
