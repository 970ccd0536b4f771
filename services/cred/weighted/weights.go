// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package weighted attaches numeric weights to a graph.
//
// Weights come in two layers. Type weights are keyed by an address prefix
// and apply to every node or edge under that prefix; when several type
// prefixes match, their weights multiply. Address weights are keyed by an
// exact address and, when present, replace the type-derived weight.
package weighted

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
)

// ErrInvalidWeight is returned for negative, NaN or infinite weights.
var ErrInvalidWeight = errors.New("invalid weight")

// EdgeWeight is the pair of transition weights carried by an edge.
type EdgeWeight struct {
	// Forwards weights flow from src to dst.
	Forwards float64 `json:"forwards"`

	// Backwards weights flow from dst to src.
	Backwards float64 `json:"backwards"`
}

// Weights is a weight table.
type Weights struct {
	NodeTypeWeights map[address.NodeAddress]float64
	EdgeTypeWeights map[address.EdgeAddress]EdgeWeight
	NodeWeights     map[address.NodeAddress]float64
	EdgeWeights     map[address.EdgeAddress]EdgeWeight
}

// Empty returns a table with no entries. Every weight evaluates to 1.
func Empty() *Weights {
	return &Weights{
		NodeTypeWeights: make(map[address.NodeAddress]float64),
		EdgeTypeWeights: make(map[address.EdgeAddress]EdgeWeight),
		NodeWeights:     make(map[address.NodeAddress]float64),
		EdgeWeights:     make(map[address.EdgeAddress]EdgeWeight),
	}
}

// Copy returns an independent copy.
func (w *Weights) Copy() *Weights {
	return &Weights{
		NodeTypeWeights: cloneMap(w.NodeTypeWeights),
		EdgeTypeWeights: cloneMap(w.EdgeTypeWeights),
		NodeWeights:     cloneMap(w.NodeWeights),
		EdgeWeights:     cloneMap(w.EdgeWeights),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	maps.Copy(out, m)
	return out
}

// Validate checks that every weight is finite and non-negative.
func (w *Weights) Validate() error {
	check := func(kind string, key fmt.Stringer, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s %s = %v", ErrInvalidWeight, kind, key, v)
		}
		return nil
	}
	for _, k := range sortedKeys(w.NodeTypeWeights, address.Compare[address.Node]) {
		if err := check("node type", k, w.NodeTypeWeights[k]); err != nil {
			return err
		}
	}
	for _, k := range sortedKeys(w.NodeWeights, address.Compare[address.Node]) {
		if err := check("node", k, w.NodeWeights[k]); err != nil {
			return err
		}
	}
	for _, k := range sortedKeys(w.EdgeTypeWeights, address.Compare[address.Edge]) {
		ew := w.EdgeTypeWeights[k]
		if err := errors.Join(check("edge type forwards", k, ew.Forwards), check("edge type backwards", k, ew.Backwards)); err != nil {
			return err
		}
	}
	for _, k := range sortedKeys(w.EdgeWeights, address.Compare[address.Edge]) {
		ew := w.EdgeWeights[k]
		if err := errors.Join(check("edge forwards", k, ew.Forwards), check("edge backwards", k, ew.Backwards)); err != nil {
			return err
		}
	}
	return nil
}

// MergeWeights unions weight tables. On a key collision the later table
// wins. Nil tables are skipped.
func MergeWeights(ws ...*Weights) *Weights {
	out := Empty()
	for _, w := range ws {
		if w == nil {
			continue
		}
		maps.Copy(out.NodeTypeWeights, w.NodeTypeWeights)
		maps.Copy(out.EdgeTypeWeights, w.EdgeTypeWeights)
		maps.Copy(out.NodeWeights, w.NodeWeights)
		maps.Copy(out.EdgeWeights, w.EdgeWeights)
	}
	return out
}

func sortedKeys[K comparable, V any](m map[K]V, cmp func(a, b K) int) []K {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, cmp)
	return keys
}
