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

import "fmt"

// CheckInvariants sweeps the graph for internal inconsistencies.
//
// Description:
//
//	Verifies the five invariant classes listed in the package
//	documentation. A nil result means every index agrees with the node
//	and edge sets. Any failure indicates a bug in this package, not in
//	the caller.
//
// Outputs:
//
//	error - wraps ErrInvariantViolation and names the first violation
//
// Complexity: O(V + E).
func (g *Graph) CheckInvariants() error {
	violation := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
	}

	// 1. Index completeness.
	for n := range g.nodes {
		if _, ok := g.inEdges[n]; !ok {
			return violation("node %s missing from in-edge index", n)
		}
		if _, ok := g.outEdges[n]; !ok {
			return violation("node %s missing from out-edge index", n)
		}
	}

	for a, e := range g.edges {
		if e.Address != a {
			return violation("edge keyed %s has address %s", a, e.Address)
		}
		// 2. Endpoint existence.
		if !g.HasNode(e.Src) {
			return violation("edge %s has missing src %s", a, e.Src)
		}
		if !g.HasNode(e.Dst) {
			return violation("edge %s has missing dst %s", a, e.Dst)
		}
	}

	// 3 + 4. Adjacency accuracy and uniqueness.
	inTotal, err := g.checkIndex(g.inEdges, "in", func(e Edge) NodeAddress { return e.Dst })
	if err != nil {
		return err
	}
	outTotal, err := g.checkIndex(g.outEdges, "out", func(e Edge) NodeAddress { return e.Src })
	if err != nil {
		return err
	}

	// 5. Index-graph agreement.
	if len(g.inEdges) != len(g.nodes) || len(g.outEdges) != len(g.nodes) {
		return violation("index sizes in=%d out=%d, nodes=%d", len(g.inEdges), len(g.outEdges), len(g.nodes))
	}
	if inTotal != len(g.edges) || outTotal != len(g.edges) {
		return violation("indexed edges in=%d out=%d, edges=%d", inTotal, outTotal, len(g.edges))
	}
	return nil
}

func (g *Graph) checkIndex(index map[NodeAddress][]EdgeAddress, label string, anchor func(Edge) NodeAddress) (int, error) {
	total := 0
	for n, list := range index {
		if !g.HasNode(n) {
			return 0, fmt.Errorf("%w: %s-edge index has stale node %s", ErrInvariantViolation, label, n)
		}
		seen := make(map[EdgeAddress]struct{}, len(list))
		for _, a := range list {
			if _, dup := seen[a]; dup {
				return 0, fmt.Errorf("%w: duplicate %s-edge entry %s at %s", ErrInvariantViolation, label, a, n)
			}
			seen[a] = struct{}{}
			e, ok := g.edges[a]
			if !ok {
				return 0, fmt.Errorf("%w: %s-edge index at %s references missing edge %s", ErrInvariantViolation, label, n, a)
			}
			if anchor(e) != n {
				return 0, fmt.Errorf("%w: %s-edge index at %s holds %s", ErrInvariantViolation, label, n, e)
			}
		}
		total += len(list)
	}
	return total, nil
}
