// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package markov turns weighted graphs into Markov chains and solves for
// their stationary distribution.
//
// A Chain lists, for every node, the transitions that arrive at it. Each
// entry records the source node, the kind of connection that produced it
// and its probability. Rows are normalized per source, so the outgoing
// probabilities of every node sum to 1.
//
// Two builders are provided:
//
//   - BuildPageRankChain: edges in both directions plus one synthetic
//     self-loop per node.
//   - BuildCredRankChain: the PageRank structure split by time into epochs
//     for scoring nodes, with an explicit seed node, payout accumulators
//     and webbing between neighbouring epochs.
//
// FindStationaryDistribution runs power iteration over a chain. It is the
// only long-running operation in the package; it yields the goroutine at
// a bounded interval and honours context cancellation at those points.
//
// # Thread Safety
//
// Chains are immutable after construction and safe to share. The solver
// does not mutate its inputs.
package markov

import "errors"

var (
	// ErrInvalidParameters is returned for out-of-range builder or solver
	// parameters.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrDimensionMismatch is returned when a distribution does not match
	// the chain's node count.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNotStochastic is returned by CheckStochastic when a node's
	// outgoing probabilities do not sum to 1.
	ErrNotStochastic = errors.New("chain is not row-stochastic")
)
