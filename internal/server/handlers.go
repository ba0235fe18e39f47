// internal/server/handlers.go
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"proposition-engine/internal/common/config"
	"proposition-engine/internal/common/errors"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/common/observability"
	"proposition-engine/internal/common/validation"
	"proposition-engine/internal/models"
)

type handlers struct {
	cfg      config.RankingConfig
	ranker   Ranker
	cache    ResponseCache
	feedback FeedbackRecorder
	obs      *observability.Observability
	logger   logger.Logger
}

func newHandlers(cfg config.RankingConfig, ranker Ranker, cache ResponseCache, feedback FeedbackRecorder, obs *observability.Observability, log logger.Logger) *handlers {
	return &handlers{
		cfg:      cfg,
		ranker:   ranker,
		cache:    cache,
		feedback: feedback,
		obs:      obs,
		logger:   log,
	}
}

// suggestResponse mirrors the serving contract clients consume.
type suggestResponse struct {
	Propositions []models.RankedItem `json:"propositions"`
	ServedBy     models.ServedBy     `json:"served_by"`
	ModelVersion string              `json:"model_version,omitempty"`
	CacheHit     bool                `json:"cache_hit"`
	Degraded     bool                `json:"degraded,omitempty"`
	LatencyMS    int64               `json:"latency_ms"`
	Timestamp    time.Time           `json:"timestamp"`
}

func (h *handlers) suggest(c *gin.Context) {
	start := time.Now()

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.badRequest(c, errors.NewInvalidRequestError("unreadable request body"))
		return
	}
	if err := validation.ValidateRankingRequest(raw); err != nil {
		h.badRequest(c, err)
		return
	}

	var req models.RankingRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.badRequest(c, errors.NewInvalidRequestError("malformed JSON payload"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = h.cfg.DefaultLimit
	}
	if req.Limit > h.cfg.MaxLimit {
		req.Limit = h.cfg.MaxLimit
	}

	key := h.cache.Key(&req, h.ranker.ModelVersion())
	if cached := h.cache.Get(c.Request.Context(), key); cached != nil {
		h.recordImpressions(&req, cached)
		h.recordServed(c, cached, start)
		c.JSON(http.StatusOK, toResponse(cached, start))
		return
	}

	result, err := h.ranker.Rank(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Ranking failed", map[string]interface{}{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
		status := http.StatusServiceUnavailable
		c.JSON(status, gin.H{"error": errors.CodeOf(err), "retryable": errors.IsRetryable(err)})
		return
	}

	h.cache.Set(c.Request.Context(), key, result)
	h.recordImpressions(&req, result)
	h.recordServed(c, result, start)
	c.JSON(http.StatusOK, toResponse(result, start))
}

func (h *handlers) recordServed(c *gin.Context, res *models.RankingResult, start time.Time) {
	if h.obs == nil {
		return
	}
	ctx := c.Request.Context()
	h.obs.RecordRankingServed(ctx, string(res.ServedBy), res.CacheHit)
	h.obs.RecordRankingDuration(ctx, time.Since(start), string(res.ServedBy))
}

func (h *handlers) logEvent(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.badRequest(c, errors.NewInvalidRequestError("unreadable request body"))
		return
	}
	if err := validation.ValidateFeedbackEvent(raw); err != nil {
		h.badRequest(c, err)
		return
	}

	var ev models.FeedbackEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		h.badRequest(c, errors.NewInvalidRequestError("malformed JSON payload"))
		return
	}
	if !models.ValidEventType(ev.EventType) {
		h.badRequest(c, errors.NewInvalidRequestError("unknown event type"))
		return
	}

	h.feedback.Record(ev)
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *handlers) health(c *gin.Context) {
	// Rule fallback keeps the service up even with the model down, so
	// an unhealthy ranker does not fail the probe.
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ml_healthy": h.ranker.Healthy(),
		"model":      h.ranker.ModelVersion(),
		"timestamp":  time.Now().UTC(),
	})
}

func (h *handlers) badRequest(c *gin.Context, err error) {
	var payload interface{} = gin.H{"error": string(errors.ErrCodeInvalidRequest)}
	if stdErr, ok := err.(*errors.StandardError); ok {
		payload = stdErr
	}
	c.JSON(http.StatusBadRequest, payload)
}

// recordImpressions queues one impression per served proposition; the
// emitter guarantees this never blocks the response path.
func (h *handlers) recordImpressions(req *models.RankingRequest, res *models.RankingResult) {
	if h.feedback == nil {
		return
	}
	now := time.Now().UTC()
	for _, item := range res.Items {
		h.feedback.Record(models.FeedbackEvent{
			EventType:     models.EventImpression,
			UserID:        req.UserID,
			PropositionID: item.PropositionID,
			Timestamp:     now,
		})
	}
}

func toResponse(res *models.RankingResult, start time.Time) suggestResponse {
	return suggestResponse{
		Propositions: res.Items,
		ServedBy:     res.ServedBy,
		ModelVersion: res.ModelVersion,
		CacheHit:     res.CacheHit,
		Degraded:     res.Degraded,
		LatencyMS:    time.Since(start).Milliseconds(),
		Timestamp:    time.Now().UTC(),
	}
}
