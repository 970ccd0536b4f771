// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides an addressable, directed multigraph.
//
// Nodes are identified solely by their NodeAddress; edges by their
// EdgeAddress plus a source and destination node. Payloads are attached by
// higher layers through parallel maps keyed by address.
//
// # Consistency
//
// Every mutation preserves five invariant classes, verified by
// CheckInvariants:
//
//  1. Every node has in/out index entries and every edge is indexed.
//  2. Every edge's endpoints are nodes of the graph.
//  3. Adjacency indices are accurate in both directions.
//  4. No adjacency index holds duplicate entries.
//  5. The index key sets equal the node set and index sizes sum to the
//     edge count.
//
// Construct with WithInvariantChecks(true) to run the sweep after every
// mutation (tests, debug builds).
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use. It has no internal locking; callers
// must serialize writers. Cursors returned by Nodes, Edges and Neighbors
// detect mutation of the graph while they are open and fail with
// ErrConcurrentModification instead of returning stale results.
//
// # Lifecycle
//
//  1. Create with New()
//  2. AddNode for every node, then AddEdge for every edge
//  3. Hand the graph to downstream consumers, who treat it as immutable
//     and Copy it if they need to mutate
package graph

import (
	"errors"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
)

// Sentinel errors for graph operations.
var (
	// ErrInvalidAddress is returned for zero-value or malformed addresses.
	ErrInvalidAddress = address.ErrInvalidAddress

	// ErrMissingEndpoint is returned when an edge references a node that
	// is not in the graph. Nodes must be added before their edges.
	ErrMissingEndpoint = errors.New("edge endpoint not in graph")

	// ErrMissingNode is returned when a query names a node that does not
	// exist.
	ErrMissingNode = errors.New("node not in graph")

	// ErrConflictingEdge is returned when an edge address is already bound
	// to an edge with different endpoints.
	ErrConflictingEdge = errors.New("conflicting edge")

	// ErrDanglingEdge is returned when removing a node that still has
	// incident edges. Remove the edges first.
	ErrDanglingEdge = errors.New("node has incident edges")

	// ErrConcurrentModification is returned by a cursor when the graph was
	// mutated after the cursor was created.
	ErrConcurrentModification = errors.New("graph modified during iteration")

	// ErrInvariantViolation is returned by CheckInvariants.
	ErrInvariantViolation = errors.New("graph invariant violated")

	// ErrInvalidContraction is returned when a node appears in two node
	// contractions with different replacements.
	ErrInvalidContraction = errors.New("invalid node contraction")
)
