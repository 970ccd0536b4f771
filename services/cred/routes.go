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
	"net/http"

	"github.com/AleutianAI/AleutianCred/services/cred/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

// RegisterRoutes registers all /v1/cred/* endpoints.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//	computeLimiter - Limits POST /compute. Nil disables limiting.
//
// Endpoints:
//
//	GET    /v1/cred/health
//	GET    /v1/cred/graphs
//	PUT    /v1/cred/graphs/:name
//	GET    /v1/cred/graphs/:name
//	DELETE /v1/cred/graphs/:name
//	PUT    /v1/cred/graphs/:name/entities
//	GET    /v1/cred/graphs/:name/entities
//	POST   /v1/cred/compute
//	GET    /v1/cred/results
//	GET    /v1/cred/results/:id
//	DELETE /v1/cred/results/:id
//	GET    /v1/cred/results/:id/top
//	GET    /v1/cred/results/:id/nodes/*address
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers, computeLimiter *rate.Limiter) {
	cred := rg.Group("/cred")
	{
		cred.GET("/health", handlers.HandleHealth)

		cred.GET("/graphs", handlers.HandleListGraphs)
		cred.PUT("/graphs/:name", handlers.HandlePutGraph)
		cred.GET("/graphs/:name", handlers.HandleGetGraph)
		cred.DELETE("/graphs/:name", handlers.HandleDeleteGraph)
		cred.PUT("/graphs/:name/entities", handlers.HandlePutEntities)
		cred.GET("/graphs/:name/entities", handlers.HandleGetEntities)

		cred.POST("/compute", rateLimit(computeLimiter), handlers.HandleCompute)

		cred.GET("/results", handlers.HandleListResults)
		cred.GET("/results/:id", handlers.HandleGetResult)
		cred.DELETE("/results/:id", handlers.HandleDeleteResult)
		cred.GET("/results/:id/top", handlers.HandleTop)
		cred.GET("/results/:id/nodes/*address", handlers.HandleNode)
	}
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// ServiceName names the otelgin server spans.
	ServiceName string

	// ComputeRateLimit is the sustained compute requests per second. Zero
	// disables limiting.
	ComputeRateLimit float64

	// ComputeBurst is the compute burst size. Default: 1
	ComputeBurst int
}

// NewRouter builds the gin engine for the service.
//
// Description:
//
//	Installs recovery and otelgin tracing, mounts /metrics when the
//	Prometheus exporter is active, and registers the cred routes. Raw
//	paths are used for routing so percent-encoded address parts survive
//	into HandleNode.
func NewRouter(handlers *Handlers, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.UseRawPath = true
	router.UnescapePathValues = false
	router.Use(gin.Recovery())
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	var limiter *rate.Limiter
	if opts.ComputeRateLimit > 0 {
		burst := opts.ComputeBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.ComputeRateLimit), burst)
	}

	RegisterRoutes(router.Group("/v1"), handlers, limiter)
	return router
}

// rateLimit rejects requests beyond the limiter's budget with 429.
func rateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "compute rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
