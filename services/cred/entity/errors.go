// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package entity holds the payload tables that accompany a graph.
//
// A graph stores addresses only. Descriptions and timestamps live here,
// keyed by the same addresses, so that plugins can attach content without
// widening the core graph type. Timestamps feed the CredRank epoch
// assignment.
package entity

import "errors"

var (
	// ErrConflictingNode is returned when two tables describe the same node
	// address with different content and no resolver is supplied.
	ErrConflictingNode = errors.New("conflicting node content")

	// ErrConflictingEdge is returned when two tables describe the same edge
	// address with different content and no resolver is supplied.
	ErrConflictingEdge = errors.New("conflicting edge content")
)
