// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cred serves the attribution engine over HTTP.
//
// Graphs and entity tables are uploaded in their JSON envelope form and
// kept in a Badger store. Compute requests merge named graphs, run the
// configured strategy and persist the result under a fresh ID; results are
// then queried for rankings and per-node score decompositions.
package cred

import (
	"errors"
	"net/http"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/attribution"
	"github.com/AleutianAI/AleutianCred/services/cred/compat"
	"github.com/AleutianAI/AleutianCred/services/cred/entity"
	"github.com/AleutianAI/AleutianCred/services/cred/graph"
	"github.com/AleutianAI/AleutianCred/services/cred/markov"
	credbadger "github.com/AleutianAI/AleutianCred/services/cred/storage/badger"
	"github.com/AleutianAI/AleutianCred/services/cred/weighted"
)

// ErrInvalidRequest is returned for malformed request bodies and
// parameters.
var ErrInvalidRequest = errors.New("invalid request")

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorStatus maps an error to its HTTP status and error code. Unknown
// errors are internal.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, credbadger.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, attribution.ErrUnknownNode):
		return http.StatusNotFound, "UNKNOWN_NODE"
	case errors.Is(err, graph.ErrConflictingEdge):
		return http.StatusConflict, "CONFLICTING_EDGE"
	case errors.Is(err, entity.ErrConflictingNode), errors.Is(err, entity.ErrConflictingEdge):
		return http.StatusConflict, "CONFLICTING_ENTITY"
	case errors.Is(err, compat.ErrIncompatibleFormat):
		return http.StatusBadRequest, "INCOMPATIBLE_FORMAT"
	case errors.Is(err, attribution.ErrUnsupportedStrategyVersion):
		return http.StatusBadRequest, "UNSUPPORTED_STRATEGY"
	case errors.Is(err, attribution.ErrNoGraphs):
		return http.StatusBadRequest, "NO_GRAPHS"
	case errors.Is(err, markov.ErrInvalidParameters):
		return http.StatusBadRequest, "INVALID_PARAMETERS"
	case errors.Is(err, address.ErrInvalidAddress), errors.Is(err, credbadger.ErrInvalidName):
		return http.StatusBadRequest, "INVALID_ADDRESS"
	case errors.Is(err, graph.ErrInvalidContraction):
		return http.StatusBadRequest, "INVALID_CONTRACTION"
	case errors.Is(err, graph.ErrMissingEndpoint), errors.Is(err, weighted.ErrInvalidWeight):
		return http.StatusBadRequest, "INVALID_GRAPH"
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
