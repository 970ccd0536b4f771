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
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/compat"
	"github.com/AleutianAI/AleutianCred/services/cred/markov"
)

// CompatInfo identifies serialized attribution results.
var CompatInfo = compat.Info{Type: "cred/attribution", Version: "1.0.0"}

// NodeScore is a node of the input graph with its final score.
type NodeScore struct {
	Node        address.NodeAddress `json:"node"`
	Description string              `json:"description,omitempty"`
	Score       float64             `json:"score"`
}

// RankedNode is a NodeScore with its 1-indexed rank.
type RankedNode struct {
	NodeScore
	Rank int `json:"rank"`
}

// Result is the self-describing output of Run.
type Result struct {
	Strategy   Strategy   `json:"strategy"`
	Parameters Parameters `json:"parameters"`

	// NodeOrder indexes Distribution. For CredRank it includes the
	// structural seed, epoch and accumulator nodes.
	NodeOrder    []address.NodeAddress `json:"nodeOrder"`
	Distribution []float64             `json:"distribution"`

	Converged        bool         `json:"converged"`
	State            markov.State `json:"-"`
	Iterations       int          `json:"iterations"`
	ConvergenceDelta float64      `json:"convergenceDelta"`

	// Scores covers the nodes of the input graph, highest first.
	Scores []NodeScore `json:"scores"`

	// Decompositions explains every entry of NodeOrder.
	Decompositions []NodeDecomposition `json:"decompositions"`

	// ScoringDecompositions explains each CredRank scoring node by its
	// folded epoch nodes. Empty for PageRank.
	ScoringDecompositions []NodeDecomposition `json:"scoringDecompositions,omitempty"`

	// Payouts holds each CredRank epoch accumulator's mass.
	Payouts []float64 `json:"payouts,omitempty"`
}

type resultJSON Result

// MarshalJSON wraps the result in the cred/attribution envelope.
func (r *Result) MarshalJSON() ([]byte, error) {
	return compat.Wrap(CompatInfo, (*resultJSON)(r))
}

// UnmarshalJSON decodes a result.
func (r *Result) UnmarshalJSON(data []byte) error {
	var decoded resultJSON
	if err := compat.Unwrap(data, CompatInfo, &decoded); err != nil {
		return err
	}
	*r = Result(decoded)
	if r.Converged {
		r.State = markov.StateConverged
	} else {
		r.State = markov.StateMaxIterationsReached
	}
	return nil
}

// FromJSON decodes a result.
func FromJSON(data []byte) (*Result, error) {
	r := &Result{}
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Top returns the k highest scoring nodes under prefix.
//
// Description:
//
//	A zero prefix matches every node. k <= 0 returns all matches. Ties
//	are broken by address.
func (r *Result) Top(k int, prefix address.NodeAddress) []RankedNode {
	matches := make([]NodeScore, 0, len(r.Scores))
	for _, s := range r.Scores {
		if prefix.IsZero() || s.Node.HasPrefix(prefix) {
			matches = append(matches, s)
		}
	}
	slices.SortStableFunc(matches, compareScores)
	if k > 0 && k < len(matches) {
		matches = matches[:k]
	}
	out := make([]RankedNode, len(matches))
	for i, s := range matches {
		out[i] = RankedNode{NodeScore: s, Rank: i + 1}
	}
	return out
}

// Score returns the score of an input graph node.
func (r *Result) Score(n address.NodeAddress) (float64, bool) {
	for _, s := range r.Scores {
		if s.Node == n {
			return s.Score, true
		}
	}
	return 0, false
}

// Decomposition returns the decomposition of a chain node or of a
// CredRank scoring node.
//
// Errors:
//
//	ErrUnknownNode - n is neither in NodeOrder nor a scoring node
func (r *Result) Decomposition(n address.NodeAddress) (NodeDecomposition, error) {
	for _, d := range r.Decompositions {
		if d.Node == n {
			return d, nil
		}
	}
	for _, d := range r.ScoringDecompositions {
		if d.Node == n {
			return d, nil
		}
	}
	return NodeDecomposition{}, fmt.Errorf("%w: %s", ErrUnknownNode, n)
}

func compareScores(a, b NodeScore) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return address.Compare(a.Node, b.Node)
}

// compile-time check
var _ json.Marshaler = (*Result)(nil)
