package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/filmnt/chat/chat-service/internal/client"
	"github.com/filmnt/chat/chat-service/internal/hub"
	"github.com/filmnt/chat/chat-service/internal/metrics"
	"github.com/filmnt/chat/pkg/log"
	"github.com/filmnt/chat/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verification error codes produced by this service rather than upstream.
const (
	CodeMissingInput  = "missing-input-response"
	CodeInternalError = "internal-error"
)

// Verifier checks bot verification tokens.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (*client.VerifyResult, error)
}

// StatsSource reports room statistics.
type StatsSource interface {
	Stats(ctx context.Context) (hub.Stats, error)
}

type HTTPHandler struct {
	verifier Verifier
	stats    StatsSource
}

func NewHTTPHandler(verifier Verifier, stats StatsSource) *HTTPHandler {
	return &HTTPHandler{
		verifier: verifier,
		stats:    stats,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/verify", h.Verify)
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

type verifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// Verify proxies a bot verification token. Upstream failures are reported
// in the body, never as a server error.
func (h *HTTPHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.VerifyRequests.WithLabelValues("invalid").Inc()
		response.NotVerified(c, http.StatusBadRequest, CodeMissingInput)
		return
	}

	l := log.Ctx(c.Request.Context())
	result, err := h.verifier.Verify(c.Request.Context(), req.Token, c.ClientIP())
	if err != nil {
		l.Error().Err(err).Msg("Bot verification failed")
		metrics.VerifyRequests.WithLabelValues("error").Inc()
		response.NotVerified(c, http.StatusOK, CodeInternalError)
		return
	}
	if !result.Success {
		metrics.VerifyRequests.WithLabelValues("rejected").Inc()
		response.NotVerified(c, http.StatusOK, result.ErrorCodes...)
		return
	}
	metrics.VerifyRequests.WithLabelValues("passed").Inc()
	response.Verified(c)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	stats, err := h.stats.Stats(ctx)
	if err != nil {
		response.Status(c, http.StatusServiceUnavailable, "unavailable", nil)
		return
	}
	response.Status(c, http.StatusOK, "ok", gin.H{
		"connections": stats.Connections,
		"users":       stats.Users,
		"messages":    stats.Messages,
	})
}
