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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// MaxUploadBytes caps graph and entity uploads.
const MaxUploadBytes = 256 << 20

// Handlers contains the HTTP handlers for the cred service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth handles GET /v1/cred/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// HandlePutGraph handles PUT /v1/cred/graphs/:name.
//
// Description:
//
//	Stores the weighted-graph envelope in the request body under name,
//	replacing any graph already stored there.
//
// Response:
//
//	200 OK: badger.GraphInfo
//	400 Bad Request: incompatible format, invalid weights or addresses
func (h *Handlers) HandlePutGraph(c *gin.Context) {
	logger := requestLogger(c, "HandlePutGraph")
	name := c.Param("name")

	body, err := readBody(c)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	info, err := h.svc.PutGraph(c.Request.Context(), name, body)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	logger.Info("Graph stored", "graph", name, "nodes", info.NodeCount, "edges", info.EdgeCount)
	c.JSON(http.StatusOK, info)
}

// HandleGetGraph handles GET /v1/cred/graphs/:name and returns the
// weighted-graph envelope.
func (h *Handlers) HandleGetGraph(c *gin.Context) {
	logger := requestLogger(c, "HandleGetGraph")
	wg, err := h.svc.Graph(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, wg)
}

// HandleListGraphs handles GET /v1/cred/graphs.
func (h *Handlers) HandleListGraphs(c *gin.Context) {
	logger := requestLogger(c, "HandleListGraphs")
	graphs, err := h.svc.ListGraphs(c.Request.Context())
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, GraphListResponse{Graphs: graphs})
}

// HandleDeleteGraph handles DELETE /v1/cred/graphs/:name.
func (h *Handlers) HandleDeleteGraph(c *gin.Context) {
	logger := requestLogger(c, "HandleDeleteGraph")
	if err := h.svc.DeleteGraph(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandlePutEntities handles PUT /v1/cred/graphs/:name/entities.
func (h *Handlers) HandlePutEntities(c *gin.Context) {
	logger := requestLogger(c, "HandlePutEntities")
	body, err := readBody(c)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	if err := h.svc.PutEntities(c.Request.Context(), c.Param("name"), body); err != nil {
		respondError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleGetEntities handles GET /v1/cred/graphs/:name/entities.
func (h *Handlers) HandleGetEntities(c *gin.Context) {
	logger := requestLogger(c, "HandleGetEntities")
	tbl, err := h.svc.Entities(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, tbl)
}

// HandleCompute handles POST /v1/cred/compute.
//
// Description:
//
//	Runs an attribution over stored graphs and stores the result.
//
// Request Body:
//
//	ComputeRequest
//
// Response:
//
//	200 OK: ComputeResponse
//	400 Bad Request: invalid request, strategy or parameters
//	404 Not Found: a named graph does not exist
//	409 Conflict: the graphs disagree about an edge or entity
func (h *Handlers) HandleCompute(c *gin.Context) {
	logger := requestLogger(c, "HandleCompute")

	var req ComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, logger, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	resp, err := h.svc.Compute(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleListResults handles GET /v1/cred/results.
func (h *Handlers) HandleListResults(c *gin.Context) {
	logger := requestLogger(c, "HandleListResults")
	results, err := h.svc.ListResults(c.Request.Context())
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ResultListResponse{Results: results})
}

// HandleGetResult handles GET /v1/cred/results/:id and returns the full
// attribution envelope.
func (h *Handlers) HandleGetResult(c *gin.Context) {
	logger := requestLogger(c, "HandleGetResult")
	res, err := h.svc.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandleDeleteResult handles DELETE /v1/cred/results/:id.
func (h *Handlers) HandleDeleteResult(c *gin.Context) {
	logger := requestLogger(c, "HandleDeleteResult")
	if err := h.svc.DeleteResult(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleTop handles GET /v1/cred/results/:id/top.
//
// Query Parameters:
//
//	k: number of nodes (optional, default 10, 0 for all)
//	prefix: address part, repeated in order (optional)
func (h *Handlers) HandleTop(c *gin.Context) {
	logger := requestLogger(c, "HandleTop")

	k, err := strconv.Atoi(c.DefaultQuery("k", "10"))
	if err != nil || k < 0 {
		respondError(c, logger, fmt.Errorf("%w: k must be a non-negative integer", ErrInvalidRequest))
		return
	}
	var prefix address.NodeAddress
	if parts := c.QueryArray("prefix"); len(parts) > 0 {
		prefix, err = address.NodeFromParts(parts...)
		if err != nil {
			respondError(c, logger, err)
			return
		}
	}

	id := c.Param("id")
	nodes, err := h.svc.Top(c.Request.Context(), id, k, prefix)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, TopResponse{ResultID: id, Nodes: nodes})
}

// HandleNode handles GET /v1/cred/results/:id/nodes/*address.
//
// Description:
//
//	Returns the score decomposition of one node. The address is given as
//	path segments; a segment containing "/" must be percent-encoded.
//
// Response:
//
//	200 OK: attribution.NodeDecomposition
//	404 Not Found: unknown result or node
func (h *Handlers) HandleNode(c *gin.Context) {
	logger := requestLogger(c, "HandleNode")

	node, err := pathAddress(c.Param("address"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	d, err := h.svc.Decomposition(c.Request.Context(), c.Param("id"), node)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// pathAddress parses a raw wildcard path such as "/user/alice" into a node
// address.
func pathAddress(raw string) (address.NodeAddress, error) {
	raw = strings.TrimPrefix(raw, "/")
	if raw == "" {
		return address.NodeAddress{}, fmt.Errorf("%w: empty node address", ErrInvalidRequest)
	}
	segments := strings.Split(raw, "/")
	for i, seg := range segments {
		part, err := url.PathUnescape(seg)
		if err != nil {
			return address.NodeAddress{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		segments[i] = part
	}
	return address.NodeFromParts(segments...)
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrInvalidRequest, err)
	}
	return body, nil
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		telemetry.RecordError(trace.SpanFromContext(c.Request.Context()), err)
		logger.Error("Request failed", "error", err)
	} else {
		logger.Warn("Request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// requestLogger carries the request ID and the trace of the otelgin span.
func requestLogger(c *gin.Context, handler string) *slog.Logger {
	return telemetry.LoggerWithTrace(c.Request.Context(), slog.Default()).
		With("request_id", getOrCreateRequestID(c), "handler", handler)
}

// getOrCreateRequestID echoes X-Request-ID or assigns a new one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
