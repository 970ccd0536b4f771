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
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/AleutianAI/AleutianCred/services/cred/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Stationary distribution
// =============================================================================

var solverTracer = otel.Tracer("cred.markov.solver")

// Solver configuration constants.
const (
	// DefaultMaxIterations is the iteration cap.
	DefaultMaxIterations = 255

	// DefaultConvergenceThreshold is the max-norm change between iterates
	// below which the solver reports convergence.
	DefaultConvergenceThreshold = 1e-7

	// DefaultYieldAfter is how long the solver computes before yielding
	// the goroutine and checking for cancellation.
	DefaultYieldAfter = 30 * time.Millisecond
)

// State is the solver's lifecycle state.
type State int

const (
	// StateInitialized means no iteration has run.
	StateInitialized State = iota

	// StateIterating means the solver stopped mid-run, e.g. on cancellation.
	StateIterating

	// StateConverged means the change between iterates fell below the
	// threshold.
	StateConverged

	// StateMaxIterationsReached means the cap was hit first. The result is
	// the best distribution found.
	StateMaxIterationsReached
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "INITIALIZED"
	case StateIterating:
		return "ITERATING"
	case StateConverged:
		return "CONVERGED"
	case StateMaxIterationsReached:
		return "MAX_ITERATIONS_REACHED"
	default:
		return "UNKNOWN"
	}
}

// SolverOptions configures FindStationaryDistribution.
type SolverOptions struct {
	// Seed is the teleport distribution. Nil means uniform.
	Seed []float64

	// Alpha is the teleport probability in [0, 1]. Zero disables
	// teleportation. Default: 0
	Alpha float64

	// Pi0 is the starting distribution. Nil means uniform.
	Pi0 []float64

	// MaxIterations is the iteration cap.
	// Must be > 0. Default: 255
	MaxIterations int

	// ConvergenceThreshold is the max-norm convergence threshold.
	// Must be > 0. Default: 1e-7
	ConvergenceThreshold float64

	// YieldAfter is the compute interval between cooperative yields.
	// Must be > 0. Default: 30ms
	YieldAfter time.Duration
}

// DefaultSolverOptions returns sensible defaults.
func DefaultSolverOptions() *SolverOptions {
	return &SolverOptions{
		MaxIterations:        DefaultMaxIterations,
		ConvergenceThreshold: DefaultConvergenceThreshold,
		YieldAfter:           DefaultYieldAfter,
	}
}

// Validate applies defaults for unset limits and checks the rest against a
// chain of n nodes.
//
// Errors:
//
//	ErrInvalidParameters - alpha outside [0, 1]
//	ErrDimensionMismatch - Seed or Pi0 length differs from n
func (o *SolverOptions) Validate(n int) error {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.ConvergenceThreshold <= 0 {
		o.ConvergenceThreshold = DefaultConvergenceThreshold
	}
	if o.YieldAfter <= 0 {
		o.YieldAfter = DefaultYieldAfter
	}
	if math.IsNaN(o.Alpha) || o.Alpha < 0 || o.Alpha > 1 {
		return fmt.Errorf("%w: alpha %v not in [0, 1]", ErrInvalidParameters, o.Alpha)
	}
	if o.Seed != nil && len(o.Seed) != n {
		return fmt.Errorf("%w: seed has %d entries, chain has %d nodes", ErrDimensionMismatch, len(o.Seed), n)
	}
	if o.Pi0 != nil && len(o.Pi0) != n {
		return fmt.Errorf("%w: pi0 has %d entries, chain has %d nodes", ErrDimensionMismatch, len(o.Pi0), n)
	}
	return nil
}

// Result is the output of FindStationaryDistribution.
type Result struct {
	// Pi is the distribution, indexed like the chain's Nodes.
	Pi []float64

	// ConvergenceDelta is the max-norm change of the last iteration.
	ConvergenceDelta float64

	// Iterations is the number of iterations performed.
	Iterations int

	// State is StateConverged or StateMaxIterationsReached on normal
	// return, StateIterating when cancelled mid-run.
	State State
}

// Converged reports whether the solver converged.
func (r *Result) Converged() bool {
	return r.State == StateConverged
}

// FindStationaryDistribution computes the stationary distribution of a
// chain by power iteration.
//
// Description:
//
//	Each iteration computes pi' = (1-alpha) * (pi P) + alpha * seed and
//	measures the max-norm change. The solver stops when the change falls
//	below ConvergenceThreshold or after MaxIterations. Hitting the cap is
//	not an error; it is reported through Result.State and the best
//	distribution so far is returned.
//
//	Every YieldAfter of compute time the solver calls runtime.Gosched and
//	checks ctx. Yielding never changes the numbers produced.
//
// Inputs:
//
//   - ctx: Context for cancellation. Must not be nil.
//   - chain: The chain. Not mutated.
//   - opts: Solver options. If nil, defaults are used.
//
// Outputs:
//
//   - *Result: The distribution and convergence details. Non-nil on
//     cancellation, holding the latest iterate.
//   - error: ctx.Err() on cancellation, or an options error.
//
// Example:
//
//	res, err := markov.FindStationaryDistribution(ctx, chain, nil)
//	if err != nil {
//	    return err
//	}
//	if !res.Converged() {
//	    slog.Warn("stationary distribution did not converge")
//	}
//
// Thread Safety: Safe for concurrent use on shared chains.
//
// Complexity: O(k × A) where A is the total adjacency count.
func FindStationaryDistribution(ctx context.Context, chain *Chain, opts *SolverOptions) (*Result, error) {
	n := chain.Len()
	ctx, span := solverTracer.Start(ctx, "markov.FindStationaryDistribution",
		trace.WithAttributes(attribute.Int("node_count", n)),
	)
	defer span.End()

	if opts == nil {
		opts = DefaultSolverOptions()
	} else {
		copied := *opts
		opts = &copied
	}
	if err := opts.Validate(n); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("alpha", opts.Alpha),
		attribute.Int("max_iterations", opts.MaxIterations),
		attribute.Float64("convergence_threshold", opts.ConvergenceThreshold),
	)

	if n == 0 {
		span.AddEvent("empty_chain")
		return &Result{Pi: []float64{}, State: StateConverged}, nil
	}

	seed := opts.Seed
	if seed == nil {
		seed = Uniform(n)
	}
	pi := make([]float64, n)
	if opts.Pi0 != nil {
		copy(pi, opts.Pi0)
	} else {
		copy(pi, Uniform(n))
	}
	next := make([]float64, n)
	rows := chain.Sparse()

	start := time.Now()
	result := &Result{Pi: pi, State: StateInitialized}
	lastYield := time.Now()

	if err := ctx.Err(); err != nil {
		span.AddEvent("cancelled", trace.WithAttributes(attribute.Int("iterations_completed", 0)))
		telemetry.RecordError(span, err)
		return result, err
	}

	result.State = StateIterating
	for result.Iterations < opts.MaxIterations {
		delta := 0.0
		for i, row := range rows {
			mass := 0.0
			for j, src := range row.Neighbor {
				mass += row.Weight[j] * pi[src]
			}
			v := (1-opts.Alpha)*mass + opts.Alpha*seed[i]
			next[i] = v
			if d := math.Abs(v - pi[i]); d > delta {
				delta = d
			}
		}
		pi, next = next, pi
		result.Pi = pi
		result.Iterations++
		result.ConvergenceDelta = delta

		if delta < opts.ConvergenceThreshold {
			result.State = StateConverged
			break
		}

		if time.Since(lastYield) >= opts.YieldAfter {
			runtime.Gosched()
			if err := ctx.Err(); err != nil {
				span.AddEvent("cancelled", trace.WithAttributes(attribute.Int("iterations_completed", result.Iterations)))
				telemetry.RecordError(span, err)
				return snapshot(result), err
			}
			lastYield = time.Now()
		}
	}
	if result.State != StateConverged {
		result.State = StateMaxIterationsReached
	}
	result = snapshot(result)

	slog.Debug("Stationary distribution computed",
		slog.Int("iterations", result.Iterations),
		slog.String("state", result.State.String()),
		slog.Float64("delta", result.ConvergenceDelta),
		slog.Int("node_count", n),
	)
	span.SetAttributes(
		attribute.Int("iterations", result.Iterations),
		attribute.String("state", result.State.String()),
		attribute.Float64("delta", result.ConvergenceDelta),
	)
	recordSolveMetrics(ctx, time.Since(start), result)
	return result, nil
}

// snapshot detaches the result's distribution from the solver's scratch
// buffers.
func snapshot(r *Result) *Result {
	out := *r
	out.Pi = append([]float64(nil), r.Pi...)
	return &out
}
