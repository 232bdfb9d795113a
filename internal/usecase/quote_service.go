package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shipquote/backend/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("shipquote/usecase")

// Package-level compiled regex patterns
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9-]`)
)

// States reported for failures outside the form flow
const (
	StateValidate       = "Validate"
	StateAcquireSession = "AcquireSession"
)

// QuoteServiceConfig holds configuration for the quote service
type QuoteServiceConfig struct {
	CacheTTL       time.Duration
	AttemptTimeout time.Duration
}

// QuoteService orchestrates quote requests across partners with caching
type QuoteService struct {
	cache          domain.QuoteCache
	partners       domain.PartnerDirectory
	cacheTTL       time.Duration
	attemptTimeout time.Duration
	logger         zerolog.Logger
	now            func() time.Time
}

// NewQuoteService creates a new quote service with dependencies
func NewQuoteService(
	cache domain.QuoteCache,
	partners domain.PartnerDirectory,
	config QuoteServiceConfig,
	logger zerolog.Logger,
) *QuoteService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Minute
	}
	attemptTimeout := config.AttemptTimeout
	if attemptTimeout == 0 {
		attemptTimeout = 90 * time.Second
	}

	return &QuoteService{
		cache:          cache,
		partners:       partners,
		cacheTTL:       cacheTTL,
		attemptTimeout: attemptTimeout,
		logger:         logger.With().Str("component", "quote_service").Logger(),
		now:            time.Now,
	}
}

// CacheKey builds the cache key of a quote.
// Format: "quote:{partner}:{fingerprint}"
func CacheKey(partnerID, fingerprint string) string {
	return fmt.Sprintf("quote:%s:%s", normalizeForCacheKey(partnerID), fingerprint)
}

func normalizeForCacheKey(s string) string {
	return nonAlphanumericRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// GetQuote returns live shipping options for spec from the given partner.
// Flow: validate -> fingerprint -> cache -> acquire session -> fill -> extract -> cache.
// It never returns nil; failures are reported inside the envelope.
func (s *QuoteService) GetQuote(ctx context.Context, spec *domain.OrderSpecification, partnerID string) *domain.QuoteResult {
	ctx, span := tracer.Start(ctx, "QuoteService.GetQuote")
	defer span.End()
	span.SetAttributes(attribute.String("partner", partnerID))

	start := time.Now()
	result := s.getQuote(ctx, spec, partnerID)

	span.SetAttributes(
		attribute.Bool("cache_hit", result.CacheHit),
		attribute.Int("options", len(result.ShippingOptions)),
	)
	logger := s.logger.With().
		Str("partner", partnerID).
		Str("fingerprint", shortFingerprint(result.Fingerprint)).
		Bool("cache_hit", result.CacheHit).
		Dur("elapsed", time.Since(start)).
		Logger()

	if !result.Success {
		qerr := result.Errors[0]
		span.SetStatus(codes.Error, string(qerr.Kind))
		logger.Warn().Str("kind", string(qerr.Kind)).Str("state", qerr.State).Str("error", qerr.Message).Msg("Quote failed")
		return result
	}
	logger.Info().Int("options", len(result.ShippingOptions)).Msg("Quote complete")
	return result
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func (s *QuoteService) getQuote(ctx context.Context, spec *domain.OrderSpecification, partnerID string) *domain.QuoteResult {
	if err := spec.Validate(); err != nil {
		return domain.Failed(partnerID, domain.AsQuoteError(err, StateValidate), s.now())
	}
	partner, err := s.partners.Get(partnerID)
	if err != nil {
		return domain.Failed(partnerID, domain.AsQuoteError(err, StateValidate), s.now())
	}
	if err := partner.Validate(spec); err != nil {
		return domain.Failed(partnerID, domain.AsQuoteError(err, StateValidate), s.now())
	}

	fingerprint := domain.Fingerprint(spec)
	key := CacheKey(partnerID, fingerprint)

	// Try cache first
	if cached, err := s.cache.Get(ctx, key); err == nil && cached != nil {
		cached.CacheHit = true
		return cached
	}

	options, qerr := s.attempt(ctx, partner, spec)
	if qerr != nil {
		result := domain.Failed(partnerID, qerr, s.now())
		result.Fingerprint = fingerprint
		return result
	}

	result := &domain.QuoteResult{
		Success:         true,
		Partner:         partnerID,
		ShippingOptions: options,
		QuotedAt:        s.now(),
		Fingerprint:     fingerprint,
	}
	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache quote")
	}
	return result
}

// attempt runs one bounded quote against a leased session. The session is
// released exactly once, with the failure if there was one.
func (s *QuoteService) attempt(ctx context.Context, partner domain.Partner, spec *domain.OrderSpecification) (options []domain.ShippingOption, qerr *domain.QuoteError) {
	ctx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	session, err := partner.Acquire(ctx)
	if err != nil {
		return nil, toQuoteError(ctx, err, StateAcquireSession)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("partner", partner.ID()).Msg("Recovered from panic during quote")
			options = nil
			qerr = domain.NewQuoteError(domain.KindInternal, "", "unexpected failure: %v", r)
		}
		if qerr != nil {
			session.Release(qerr)
			return
		}
		session.Release(nil)
	}()

	if err := session.Fill(ctx, spec); err != nil {
		return nil, toQuoteError(ctx, err, "")
	}
	options, err = session.Extract(ctx)
	if err != nil {
		return nil, toQuoteError(ctx, err, "")
	}
	return options, nil
}

// toQuoteError converts a raw automation error, reporting anything that
// failed after the attempt deadline as a timeout.
func toQuoteError(ctx context.Context, err error, state string) *domain.QuoteError {
	qerr := domain.AsQuoteError(err, state)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && qerr.Kind != domain.KindSessionUnavailable {
		qerr.Kind = domain.KindTimeout
	}
	return qerr
}

// ClearCache drops every cached quote
func (s *QuoteService) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear quote cache: %w", err)
	}
	s.logger.Info().Msg("Quote cache cleared")
	return nil
}

func (s *QuoteService) CacheStats() domain.CacheStats {
	return s.cache.Stats()
}

// HealthCheck reports per-partner session liveness
func (s *QuoteService) HealthCheck(ctx context.Context) domain.Health {
	health := domain.Health{Partners: make(map[string]bool)}
	for _, id := range s.partners.IDs() {
		partner, err := s.partners.Get(id)
		if err != nil {
			continue
		}
		alive := partner.Alive(ctx)
		health.Partners[id] = alive
		health.SessionAlive = health.SessionAlive || alive
	}
	return health
}

// Partners lists the partner ids quotes can be requested from
func (s *QuoteService) Partners() []string {
	return s.partners.IDs()
}
