package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"telehealth-platform/internal/observability/metrics"
	"telehealth-platform/internal/pending"
	"telehealth-platform/internal/reconcile"
	"telehealth-platform/internal/reporting"
	"telehealth-platform/internal/vapi"
	"telehealth-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Intake is the part of the reconcile service the webhook needs.
type Intake interface {
	HandleEvent(ctx context.Context, call vapi.Call) (reconcile.Response, error)
	Pending(ctx context.Context) ([]pending.Entry, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Intake        Intake
	Reporting     *reporting.Service
	Metrics       *metrics.ReconcileMetrics
	WebhookSecret string
	Now           func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Vendor webhook ---

// VapiWebhook receives call lifecycle events. The vendor only ever sees 200,
// or 500 on an internal fault; request problems get 400/401.
func (h Handlers) VapiWebhook(c *gin.Context) {
	start := time.Now()
	log := logger.FromGin(c)
	outcome := "error"
	defer func() {
		if r := recover(); r != nil {
			log.Error("webhook handler panicked", slog.Any("panic", r))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			outcome = "panic"
		}
		h.Metrics.ObserveWebhook(outcome, time.Since(start).Seconds())
	}()

	if h.Intake == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "intake not configured"})
		return
	}
	if h.WebhookSecret != "" {
		got := c.GetHeader(vapi.HeaderWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.WebhookSecret)) != 1 {
			outcome = "unauthorized"
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
	}

	msg, err := vapi.ParseWebhook(c.Request.Body)
	if err != nil {
		outcome = "invalid"
		log.Warn("invalid webhook payload", slog.String("error", err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	call, ok := msg.ToCall()
	if !ok {
		outcome = "ignored"
		c.JSON(http.StatusOK, gin.H{"received": true, "ignored": true, "type": msg.Type})
		return
	}

	resp, err := h.Intake.HandleEvent(c.Request.Context(), call)
	if err != nil {
		if errors.Is(err, reconcile.ErrMissingCallID) {
			outcome = "invalid"
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call id required"})
			return
		}
		log.Error("webhook intake failed", slog.String("call_id", call.ID), slog.String("error", err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	outcome = string(resp.Action)
	c.JSON(http.StatusOK, resp)
}

// --- Ops ---

// PendingCalls returns the pending call registry snapshot.
// RBAC: operator or admin.
func (h Handlers) PendingCalls(c *gin.Context) {
	if h.Intake == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "intake not configured"})
		return
	}
	entries, err := h.Intake.Pending(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("pending snapshot failed", slog.String("error", err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "snapshot failed"})
		return
	}
	if entries == nil {
		entries = []pending.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "calls": entries})
}

// AnalysisSummary aggregates stored analyses over ?from=&to= (RFC 3339).
// The window defaults to the last 24 hours.
// RBAC: operator or admin.
func (h Handlers) AnalysisSummary(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	to := h.now().UTC()
	from := to.Add(-24 * time.Hour)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return
		}
		to = t
	}

	out, err := h.Reporting.AnalysisSummary(c.Request.Context(), reporting.AnalysisSummaryRequest{
		Range: reporting.TimeRange{From: from, To: to},
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		logger.FromGin(c).Error("analysis summary failed", slog.String("error", err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}
