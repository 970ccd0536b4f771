// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package attribution runs the end-to-end score computation: merge the
// input graphs, contract identities, build a Markov chain, solve for its
// stationary distribution and explain every node's score.
package attribution

import "errors"

var (
	// ErrUnsupportedStrategyVersion is returned for an unknown strategy
	// type or version.
	ErrUnsupportedStrategyVersion = errors.New("unsupported strategy version")

	// ErrNoGraphs is returned when Run is called without input graphs.
	ErrNoGraphs = errors.New("no input graphs")

	// ErrUnknownNode is returned when a result is queried for a node it
	// does not contain.
	ErrUnknownNode = errors.New("node not in result")
)
