// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cred

import (
	"encoding/json"
	"time"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/attribution"
	credbadger "github.com/AleutianAI/AleutianCred/services/cred/storage/badger"
)

// ServiceVersion is the cred service version.
const ServiceVersion = "0.1.0"

// Contraction collapses Old node addresses into Replacement.
type Contraction struct {
	Old         []address.NodeAddress `json:"old" binding:"required,min=1"`
	Replacement address.NodeAddress   `json:"replacement"`
}

// ComputeRequest is the body of POST /v1/cred/compute.
type ComputeRequest struct {
	// Graphs names stored graphs to merge. Their entity tables are merged
	// too when present.
	Graphs []string `json:"graphs" binding:"required,min=1,dive,required"`

	// Strategy overrides the service default.
	Strategy *attribution.Strategy `json:"strategy,omitempty"`

	// Parameters is decoded over the service default parameters, so only
	// the fields being changed need to be sent.
	Parameters json.RawMessage `json:"parameters,omitempty"`

	// ScoringPrefixes overrides the default CredRank scoring prefixes.
	ScoringPrefixes []address.NodeAddress `json:"scoring_prefixes,omitempty"`

	Contractions []Contraction `json:"contractions,omitempty" binding:"dive"`
}

// ComputeResponse summarizes a stored result.
type ComputeResponse struct {
	ResultID         string    `json:"result_id"`
	Strategy         string    `json:"strategy"`
	Converged        bool      `json:"converged"`
	Iterations       int       `json:"iterations"`
	ConvergenceDelta float64   `json:"convergence_delta"`
	NodeCount        int       `json:"node_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// GraphListResponse is the body of GET /v1/cred/graphs.
type GraphListResponse struct {
	Graphs []credbadger.GraphInfo `json:"graphs"`
}

// ResultListResponse is the body of GET /v1/cred/results.
type ResultListResponse struct {
	Results []credbadger.ResultInfo `json:"results"`
}

// TopResponse is the body of GET /v1/cred/results/:id/top.
type TopResponse struct {
	ResultID string                   `json:"result_id"`
	Nodes    []attribution.RankedNode `json:"nodes"`
}

// HealthResponse is the body of GET /v1/cred/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
