// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package weighted

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/AleutianCred/services/cred/compat"
	"github.com/AleutianAI/AleutianCred/services/cred/graph"
)

// CompatInfo identifies serialized weighted graphs.
var CompatInfo = compat.Info{Type: "cred/weightedGraph", Version: "1.0.0"}

// Graph is a graph together with its weight table.
type Graph struct {
	Graph   *graph.Graph
	Weights *Weights
}

// New wraps g and w. Nil arguments are replaced with empty values.
func New(g *graph.Graph, w *Weights) *Graph {
	if g == nil {
		g = graph.New()
	}
	if w == nil {
		w = Empty()
	}
	return &Graph{Graph: g, Weights: w}
}

// Evaluator returns an evaluator over the graph's weights.
func (wg *Graph) Evaluator() *Evaluator {
	return NewEvaluator(wg.Weights)
}

// Merge combines weighted graphs.
//
// Description:
//
//	The graphs are merged conservatively and the weight tables are merged
//	with later tables overriding earlier ones. The result shares no
//	state with the inputs.
//
// Errors:
//
//	graph.ErrConflictingEdge - the underlying graphs conflict
func Merge(ctx context.Context, wgs ...*Graph) (*Graph, error) {
	graphs := make([]*graph.Graph, 0, len(wgs))
	weights := make([]*Weights, 0, len(wgs))
	for _, wg := range wgs {
		graphs = append(graphs, wg.Graph)
		weights = append(weights, wg.Weights)
	}
	g, err := graph.Merge(ctx, graphs...)
	if err != nil {
		return nil, fmt.Errorf("merge weighted graphs: %w", err)
	}
	return &Graph{Graph: g, Weights: MergeWeights(weights...)}, nil
}

// Contract applies node contractions to the graph. Exact node weights on
// collapsed addresses carry over to the replacement unless the
// replacement has its own.
func Contract(ctx context.Context, wg *Graph, contractions []graph.NodeContraction) (*Graph, error) {
	g, err := graph.ContractNodes(ctx, wg.Graph, contractions)
	if err != nil {
		return nil, err
	}
	w := wg.Weights.Copy()
	for _, c := range contractions {
		if _, ok := w.NodeWeights[c.Replacement]; ok {
			continue
		}
		for _, old := range c.Old {
			if v, ok := wg.Weights.NodeWeights[old]; ok {
				w.NodeWeights[c.Replacement] = v
				break
			}
		}
	}
	return &Graph{Graph: g, Weights: w}, nil
}

type graphJSON struct {
	Graph   json.RawMessage `json:"graph"`
	Weights json.RawMessage `json:"weights"`
}

// MarshalJSON encodes the graph and weights as nested envelopes.
func (wg *Graph) MarshalJSON() ([]byte, error) {
	g, err := json.Marshal(wg.Graph)
	if err != nil {
		return nil, err
	}
	w, err := json.Marshal(wg.Weights)
	if err != nil {
		return nil, err
	}
	return compat.Wrap(CompatInfo, graphJSON{Graph: g, Weights: w})
}

// UnmarshalJSON decodes a weighted graph.
func (wg *Graph) UnmarshalJSON(data []byte) error {
	return wg.decode(data)
}

func (wg *Graph) decode(data []byte, opts ...graph.Option) error {
	var payload graphJSON
	if err := compat.Unwrap(data, CompatInfo, &payload); err != nil {
		return err
	}
	g, err := graph.FromJSON(payload.Graph, opts...)
	if err != nil {
		return fmt.Errorf("weighted graph: %w", err)
	}
	w := Empty()
	if err := w.UnmarshalJSON(payload.Weights); err != nil {
		return fmt.Errorf("weighted graph weights: %w", err)
	}
	wg.Graph = g
	wg.Weights = w
	return nil
}

// FromJSON decodes a weighted graph.
func FromJSON(data []byte, opts ...graph.Option) (*Graph, error) {
	wg := &Graph{}
	if err := wg.decode(data, opts...); err != nil {
		return nil, err
	}
	return wg, nil
}
