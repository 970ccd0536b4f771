// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package attribution

import (
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/markov"
)

// StrategyType names an attribution algorithm.
type StrategyType string

const (
	// StrategyPageRank scores the plain PageRank chain.
	StrategyPageRank StrategyType = "PAGERANK"

	// StrategyCredRank scores the epoch-split CredRank chain.
	StrategyCredRank StrategyType = "CREDRANK"
)

// supportedVersions lists the versions each strategy understands.
var supportedVersions = map[StrategyType][]int{
	StrategyPageRank: {1},
	StrategyCredRank: {1},
}

// Strategy selects the algorithm and its version.
type Strategy struct {
	Type    StrategyType `json:"type" yaml:"type" validate:"required,oneof=PAGERANK CREDRANK"`
	Version int          `json:"version" yaml:"version" validate:"gte=1"`
}

// DefaultStrategy returns CREDRANK version 1.
func DefaultStrategy() Strategy {
	return Strategy{Type: StrategyCredRank, Version: 1}
}

// String returns "TYPE@vN".
func (s Strategy) String() string {
	return fmt.Sprintf("%s@v%d", s.Type, s.Version)
}

// Validate checks that the strategy is known.
//
// Errors:
//
//	ErrUnsupportedStrategyVersion - unknown type or version
func (s Strategy) Validate() error {
	versions, ok := supportedVersions[s.Type]
	if !ok {
		return fmt.Errorf("%w: unknown strategy type %q", ErrUnsupportedStrategyVersion, s.Type)
	}
	for _, v := range versions {
		if v == s.Version {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedStrategyVersion, s)
}

// Parameters holds the numeric configuration of a run. It is embedded in
// every result so that results are reproducible.
type Parameters struct {
	// Alpha is the PageRank teleport probability. Ignored by CredRank,
	// whose chain carries its own seed. Default: 0
	Alpha float64 `json:"alpha" yaml:"alpha" validate:"gte=0,lte=1"`

	// SyntheticLoopWeight is the PageRank self-loop weight.
	// Default: markov.DefaultSyntheticLoopWeight
	SyntheticLoopWeight float64 `json:"syntheticLoopWeight" yaml:"synthetic_loop_weight" validate:"gt=0"`

	// MaxIterations caps the solver. Default: markov.DefaultMaxIterations
	MaxIterations int `json:"maxIterations" yaml:"max_iterations" validate:"gt=0"`

	// ConvergenceThreshold is the solver's max-norm threshold.
	// Default: markov.DefaultConvergenceThreshold
	ConvergenceThreshold float64 `json:"convergenceThreshold" yaml:"convergence_threshold" validate:"gt=0"`

	// YieldAfterMs is the solver's cooperative yield interval.
	// Default: 30
	YieldAfterMs int64 `json:"yieldAfterMs" yaml:"yield_after_ms" validate:"gt=0"`

	// CredRank holds alpha, beta and the gammas for the CredRank chain.
	CredRank markov.CredRankParams `json:"credRank" yaml:"credrank"`

	// ScoringPrefixes selects the CredRank scoring nodes.
	ScoringPrefixes []address.NodeAddress `json:"scoringPrefixes" yaml:"-"`

	// EpochBoundaries are the CredRank epoch starts in Unix milliseconds.
	EpochBoundaries []int64 `json:"epochBoundaries" yaml:"epoch_boundaries,omitempty"`
}

// DefaultParameters returns the default run parameters.
func DefaultParameters() Parameters {
	return Parameters{
		SyntheticLoopWeight:  markov.DefaultSyntheticLoopWeight,
		MaxIterations:        markov.DefaultMaxIterations,
		ConvergenceThreshold: markov.DefaultConvergenceThreshold,
		YieldAfterMs:         markov.DefaultYieldAfter.Milliseconds(),
		CredRank:             markov.DefaultCredRankParams(),
	}
}

// applyDefaults fills unset solver and builder limits.
func (p *Parameters) applyDefaults() {
	if p.SyntheticLoopWeight <= 0 {
		p.SyntheticLoopWeight = markov.DefaultSyntheticLoopWeight
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = markov.DefaultMaxIterations
	}
	if p.ConvergenceThreshold <= 0 {
		p.ConvergenceThreshold = markov.DefaultConvergenceThreshold
	}
	if p.YieldAfterMs <= 0 {
		p.YieldAfterMs = markov.DefaultYieldAfter.Milliseconds()
	}
}

func (p Parameters) solverOptions() *markov.SolverOptions {
	return &markov.SolverOptions{
		MaxIterations:        p.MaxIterations,
		ConvergenceThreshold: p.ConvergenceThreshold,
		YieldAfter:           time.Duration(p.YieldAfterMs) * time.Millisecond,
	}
}

func (p Parameters) fibration() markov.Fibration {
	return markov.Fibration{
		ScoringPrefixes: p.ScoringPrefixes,
		EpochBoundaries: p.EpochBoundaries,
	}
}
