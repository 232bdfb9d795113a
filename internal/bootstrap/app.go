// Package bootstrap assembles the quote engine from configuration for the
// server and quotectl.
package bootstrap

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shipquote/backend/config"
	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/browser"
	"github.com/shipquote/backend/internal/infrastructure/cache"
	"github.com/shipquote/backend/internal/infrastructure/formfill"
	"github.com/shipquote/backend/internal/infrastructure/partner"
	"github.com/shipquote/backend/internal/infrastructure/partner/b2sign"
	"github.com/shipquote/backend/internal/usecase"
)

// Definitions lists every partner the binary knows how to drive
var Definitions = map[string]func() partner.Definition{
	b2sign.ID: b2sign.Definition,
}

// Definition returns the site definition of a known partner
func Definition(id string) (partner.Definition, error) {
	def, ok := Definitions[id]
	if !ok {
		return partner.Definition{}, fmt.Errorf("%w: %q", domain.ErrPartnerUnknown, id)
	}
	return def(), nil
}

// App is the assembled engine
type App struct {
	Cache    domain.QuoteCache
	Partners *partner.Registry
	Service  *usecase.QuoteService
}

// NewCache builds the configured quote cache
func NewCache(cfg config.CacheConfig) (domain.QuoteCache, error) {
	switch cfg.Type {
	case "memory", "":
		return cache.NewMemoryCache(), nil
	case "lru":
		return cache.NewLRUCache(cfg.MaxEntries, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

// PartnerSettings maps a partner's configuration onto its runtime settings
func PartnerSettings(pc config.PartnerConfig) partner.Settings {
	return partner.Settings{
		Username: pc.Username,
		Password: pc.Password,
		Pool: browser.PoolConfig{
			MaxSize:          pc.PoolSize,
			LoginAttempts:    pc.LoginAttempts,
			LoginTimeout:     pc.LoginTimeout,
			MaxLifetime:      pc.MaxLifetime,
			MaxFailures:      pc.MaxFailures,
			MaxMemoryMB:      pc.MaxMemoryMB,
			WatchdogInterval: pc.WatchdogInterval,
		},
		Machine: formfill.Config{
			CandidateTimeout: pc.CandidateTimeout,
			ResolveAttempts:  pc.ResolveAttempts,
			NavigateTimeout:  pc.NavigateTimeout,
			ResultsTimeout:   pc.ResultsTimeout,
		},
		MinInterval: pc.MinInterval,
		Burst:       pc.Burst,
	}
}

// NewPartner builds one browser partner from configuration
func NewPartner(cfg *config.Config, id string, launcher browser.Launcher, logger zerolog.Logger) (*partner.BrowserPartner, error) {
	def, err := Definition(id)
	if err != nil {
		return nil, err
	}
	pc, err := cfg.Partner(id)
	if err != nil {
		return nil, err
	}
	return partner.New(def, PartnerSettings(pc), launcher, logger)
}

// ChromeLauncher builds the shared Chrome launcher
func ChromeLauncher(cfg config.BrowserConfig, logger zerolog.Logger) *browser.ChromeLauncher {
	return browser.NewChromeLauncher(browser.ChromeOptions{
		ExecPath:       cfg.ExecPath,
		Headless:       cfg.Headless,
		UserAgent:      cfg.UserAgent,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
	}, logger)
}

// Build wires cache, partners and the quote service. Browser sessions open
// lazily on the first quote.
func Build(cfg *config.Config, launcher browser.Launcher, logger zerolog.Logger) (*App, error) {
	quoteCache, err := NewCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	registry := partner.NewRegistry()
	for _, id := range cfg.EnabledPartners() {
		p, err := NewPartner(cfg, id, launcher, logger)
		if err == nil {
			err = registry.Register(p)
		}
		if err != nil {
			closeErr := registry.Close()
			closeCache(quoteCache)
			return nil, errors.Join(fmt.Errorf("partner %s: %w", id, err), closeErr)
		}
		logger.Info().Str("partner", id).Msg("Partner registered")
	}

	service := usecase.NewQuoteService(quoteCache, registry, usecase.QuoteServiceConfig{
		CacheTTL:       cfg.Cache.TTL,
		AttemptTimeout: cfg.Quote.AttemptTimeout,
	}, logger)

	return &App{Cache: quoteCache, Partners: registry, Service: service}, nil
}

// Close tears down browser sessions and background cache workers
func (a *App) Close() error {
	err := a.Partners.Close()
	closeCache(a.Cache)
	return err
}

func closeCache(c domain.QuoteCache) {
	if closer, ok := c.(interface{ Close() }); ok {
		closer.Close()
	}
}
