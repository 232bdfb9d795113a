package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shipquote/backend/internal/domain"
)

// QuoteEngine is the orchestration surface exposed over HTTP
type QuoteEngine interface {
	GetQuote(ctx context.Context, spec *domain.OrderSpecification, partnerID string) *domain.QuoteResult
	ClearCache(ctx context.Context) error
	CacheStats() domain.CacheStats
	HealthCheck(ctx context.Context) domain.Health
	Partners() []string
}

// HandlerConfig holds handler settings
type HandlerConfig struct {
	DefaultPartner string
	RequestTimeout time.Duration
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	engine QuoteEngine
	jobs   *JobStore
	cfg    HandlerConfig
	logger zerolog.Logger

	// background quotes outlive their request but not the handler
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewHandler creates a new HTTP handler
func NewHandler(engine QuoteEngine, jobs *JobStore, cfg HandlerConfig, logger zerolog.Logger) *Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		engine:  engine,
		jobs:    jobs,
		cfg:     cfg,
		logger:  logger.With().Str("component", "http").Logger(),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Close cancels running background quotes and waits for them to finish
func (h *Handler) Close() {
	h.cancel()
	h.wg.Wait()
}

// QuoteRequest is an order specification plus the partner to quote with
type QuoteRequest struct {
	Partner string `json:"partner,omitempty"`
	domain.OrderSpecification
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	health := h.engine.HealthCheck(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"service":      "shipquote-backend",
		"version":      "1.0.0",
		"sessionAlive": health.SessionAlive,
		"partners":     health.Partners,
	})
}

// ListPartners returns the partners quotes can be requested from
func (h *Handler) ListPartners(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"partners": h.engine.Partners(),
		"default":  h.cfg.DefaultPartner,
	})
}

func (h *Handler) bindQuote(c *gin.Context) (*QuoteRequest, bool) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON order specification"})
		return nil, false
	}
	if req.Partner == "" {
		req.Partner = h.cfg.DefaultPartner
	}
	return &req, true
}

// CreateQuote runs a quote synchronously, bounded by the request timeout
func (h *Handler) CreateQuote(c *gin.Context) {
	req, ok := h.bindQuote(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	result := h.engine.GetQuote(ctx, &req.OrderSpecification, req.Partner)
	c.JSON(statusFor(result), present(result))
}

// CreateQuoteJob starts a quote in the background and returns its job id
func (h *Handler) CreateQuoteJob(c *gin.Context) {
	req, ok := h.bindQuote(c)
	if !ok {
		return
	}

	job := h.jobs.Create(req.Partner)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(h.baseCtx, h.cfg.RequestTimeout)
		defer cancel()

		result := h.engine.GetQuote(ctx, &req.OrderSpecification, req.Partner)
		h.jobs.Complete(job.ID, present(result))
		h.logger.Debug().Str("job_id", job.ID).Bool("success", result.Success).Msg("Quote job finished")
	}()

	c.Header("Location", "/api/v1/quotes/jobs/"+job.ID)
	c.JSON(http.StatusAccepted, job)
}

// GetQuoteJob returns a job's status and, once done, its result
func (h *Handler) GetQuoteJob(c *gin.Context) {
	job, ok := h.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "quote job not found or expired"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.engine.ClearCache(c.Request.Context()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to clear cache")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (h *Handler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.CacheStats())
}
