package main

import (
	"telehealth-platform/internal/httpapi"
	"telehealth-platform/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, gatherer prometheus.Gatherer) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Vendor webhooks (public, optionally guarded by a shared secret).
	r.POST("/webhooks/vapi", h.VapiWebhook)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// OPS routes
		// admin passes every role check.
		ops := v1.Group("/ops")
		ops.Use(rbac.RequireAnyRole(rbac.RoleOperator))
		{
			ops.GET("/pending-calls", h.PendingCalls)
			ops.GET("/analysis-summary", h.AnalysisSummary)
		}
	}
}
