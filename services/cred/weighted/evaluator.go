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
	"github.com/AleutianAI/AleutianCred/services/cred/address"
)

type nodePrefixWeight struct {
	prefix address.NodeAddress
	weight float64
}

type edgePrefixWeight struct {
	prefix address.EdgeAddress
	weight EdgeWeight
}

// Evaluator resolves the effective weight of individual nodes and edges.
//
// Description:
//
//	An exact address weight wins outright. Otherwise the result is the
//	product of every type weight whose prefix matches the address, or 1
//	when none match. Edge weights are resolved component-wise.
//
// Thread Safety:
//
//	Safe for concurrent use once created. The evaluator snapshots the
//	table, so later edits to the Weights do not affect it.
type Evaluator struct {
	nodeTypes []nodePrefixWeight
	edgeTypes []edgePrefixWeight
	nodes     map[address.NodeAddress]float64
	edges     map[address.EdgeAddress]EdgeWeight
}

// NewEvaluator creates an evaluator for w. A nil w evaluates every weight
// to 1.
func NewEvaluator(w *Weights) *Evaluator {
	if w == nil {
		w = Empty()
	}
	ev := &Evaluator{
		nodes: cloneMap(w.NodeWeights),
		edges: cloneMap(w.EdgeWeights),
	}
	for _, k := range sortedKeys(w.NodeTypeWeights, address.Compare[address.Node]) {
		ev.nodeTypes = append(ev.nodeTypes, nodePrefixWeight{prefix: k, weight: w.NodeTypeWeights[k]})
	}
	for _, k := range sortedKeys(w.EdgeTypeWeights, address.Compare[address.Edge]) {
		ev.edgeTypes = append(ev.edgeTypes, edgePrefixWeight{prefix: k, weight: w.EdgeTypeWeights[k]})
	}
	return ev
}

// NodeWeight returns the effective weight of a node.
func (ev *Evaluator) NodeWeight(a address.NodeAddress) float64 {
	if w, ok := ev.nodes[a]; ok {
		return w
	}
	weight := 1.0
	for _, t := range ev.nodeTypes {
		if a.HasPrefix(t.prefix) {
			weight *= t.weight
		}
	}
	return weight
}

// EdgeWeight returns the effective weight of an edge.
func (ev *Evaluator) EdgeWeight(a address.EdgeAddress) EdgeWeight {
	if w, ok := ev.edges[a]; ok {
		return w
	}
	weight := EdgeWeight{Forwards: 1, Backwards: 1}
	for _, t := range ev.edgeTypes {
		if a.HasPrefix(t.prefix) {
			weight.Forwards *= t.weight.Forwards
			weight.Backwards *= t.weight.Backwards
		}
	}
	return weight
}
