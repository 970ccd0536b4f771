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
	"github.com/AleutianAI/AleutianCred/services/cred/compat"
)

// WeightsCompatInfo identifies serialized weight tables.
var WeightsCompatInfo = compat.Info{Type: "cred/weights", Version: "1.0.0"}

type nodeWeightJSON struct {
	Address address.NodeAddress `json:"address"`
	Weight  float64             `json:"weight"`
}

type edgeWeightJSON struct {
	Address address.EdgeAddress `json:"address"`
	EdgeWeight
}

type weightsJSON struct {
	NodeTypeWeights []nodeWeightJSON `json:"nodeTypeWeights"`
	EdgeTypeWeights []edgeWeightJSON `json:"edgeTypeWeights"`
	NodeWeights     []nodeWeightJSON `json:"nodeWeights"`
	EdgeWeights     []edgeWeightJSON `json:"edgeWeights"`
}

func encodeNodeWeights(m map[address.NodeAddress]float64) []nodeWeightJSON {
	out := make([]nodeWeightJSON, 0, len(m))
	for _, k := range sortedKeys(m, address.Compare[address.Node]) {
		out = append(out, nodeWeightJSON{Address: k, Weight: m[k]})
	}
	return out
}

func encodeEdgeWeights(m map[address.EdgeAddress]EdgeWeight) []edgeWeightJSON {
	out := make([]edgeWeightJSON, 0, len(m))
	for _, k := range sortedKeys(m, address.Compare[address.Edge]) {
		out = append(out, edgeWeightJSON{Address: k, EdgeWeight: m[k]})
	}
	return out
}

// MarshalJSON encodes the table with every map sorted by address.
func (w *Weights) MarshalJSON() ([]byte, error) {
	return compat.Wrap(WeightsCompatInfo, weightsJSON{
		NodeTypeWeights: encodeNodeWeights(w.NodeTypeWeights),
		EdgeTypeWeights: encodeEdgeWeights(w.EdgeTypeWeights),
		NodeWeights:     encodeNodeWeights(w.NodeWeights),
		EdgeWeights:     encodeEdgeWeights(w.EdgeWeights),
	})
}

// UnmarshalJSON replaces w's contents with the decoded table. Decoded
// weights are validated.
func (w *Weights) UnmarshalJSON(data []byte) error {
	var payload weightsJSON
	if err := compat.Unwrap(data, WeightsCompatInfo, &payload); err != nil {
		return err
	}
	out := Empty()
	for _, e := range payload.NodeTypeWeights {
		out.NodeTypeWeights[e.Address] = e.Weight
	}
	for _, e := range payload.EdgeTypeWeights {
		out.EdgeTypeWeights[e.Address] = e.EdgeWeight
	}
	for _, e := range payload.NodeWeights {
		out.NodeWeights[e.Address] = e.Weight
	}
	for _, e := range payload.EdgeWeights {
		out.EdgeWeights[e.Address] = e.EdgeWeight
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*w = *out
	return nil
}
