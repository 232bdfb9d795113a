// Package partner binds a vendor's mapping tables, login flow and results
// rules to a browser session pool.
package partner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/browser"
	"github.com/shipquote/backend/internal/infrastructure/extract"
	"github.com/shipquote/backend/internal/infrastructure/formfill"
	"golang.org/x/time/rate"
)

// StateExtractResults tags failures that happen after the form completed
const StateExtractResults formfill.State = "ExtractResults"

// Definition is everything that is specific to one vendor site
type Definition struct {
	ID      string
	Login   LoginMapping
	Catalog *formfill.Catalog
	Results extract.Rules
}

// Settings are the deployment knobs of a partner
type Settings struct {
	Username string
	Password string
	Pool     browser.PoolConfig
	Machine  formfill.Config
	// MinInterval is the minimum spacing between session acquisitions.
	MinInterval time.Duration
	Burst       int
}

// BrowserPartner quotes through a vendor website
type BrowserPartner struct {
	def       Definition
	pool      *browser.Pool
	machine   *formfill.Machine
	extractor *extract.Extractor
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

var _ domain.Partner = (*BrowserPartner)(nil)

// New validates the definition and starts the partner's session pool.
// Sessions are opened lazily on the first Acquire.
func New(def Definition, settings Settings, launcher browser.Launcher, logger zerolog.Logger, opts ...browser.PoolOption) (*BrowserPartner, error) {
	if def.ID == "" {
		return nil, fmt.Errorf("partner id is required")
	}
	if def.Catalog == nil {
		return nil, fmt.Errorf("partner %s: catalog is required", def.ID)
	}
	if err := def.Catalog.Validate(); err != nil {
		return nil, err
	}
	if err := def.Login.validate(); err != nil {
		return nil, fmt.Errorf("partner %s: %w", def.ID, err)
	}

	logger = logger.With().Str("partner", def.ID).Logger()

	mcfg := settings.Machine
	if len(mcfg.LoginMarkers) == 0 {
		mcfg.LoginMarkers = def.Login.LoginMarkers
	}

	machine := formfill.NewMachine(def.Catalog, mcfg, logger)
	auth := &formAuthenticator{
		login:    def.Login,
		username: settings.Username,
		password: settings.Password,
		cfg:      machine.Config(),
		logger:   logger,
	}

	limit := rate.Inf
	if settings.MinInterval > 0 {
		limit = rate.Every(settings.MinInterval)
	}
	burst := settings.Burst
	if burst <= 0 {
		burst = 1
	}

	pool := browser.NewPool(def.ID, settings.Pool, launcher, auth, logger, opts...)
	pool.StartWatchdog()

	return &BrowserPartner{
		def:       def,
		pool:      pool,
		machine:   machine,
		extractor: extract.New(def.Results, logger),
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
	}, nil
}

func (p *BrowserPartner) ID() string { return p.def.ID }

func (p *BrowserPartner) Catalog() *formfill.Catalog { return p.def.Catalog }

func (p *BrowserPartner) Stats() browser.PoolStats { return p.pool.Stats() }

// Validate rejects specifications this partner cannot quote before any
// browser work starts.
func (p *BrowserPartner) Validate(spec *domain.OrderSpecification) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	table, err := p.def.Catalog.Table(spec.ProductType)
	if err != nil {
		return err
	}
	// Zip-only estimate modes need nothing beyond the zip code.
	if mode, _ := table.Shipping(spec); mode.RequiresDestination && (spec.CustomerInfo != nil || table.Estimate == nil) {
		if err := spec.ValidateDestination(); err != nil {
			return fmt.Errorf("partner %s ships to the end customer: %w", p.def.ID, err)
		}
	}
	return nil
}

// Acquire leases a logged-in session. The lease must be released exactly once.
func (p *BrowserPartner) Acquire(ctx context.Context) (domain.QuoteSession, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: throttled by partner rate limit: %v", domain.ErrTimeout, err)
	}
	s, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &leasedSession{partner: p, session: s}, nil
}

func (p *BrowserPartner) Alive(ctx context.Context) bool { return p.pool.Alive(ctx) }

func (p *BrowserPartner) Close() error { return p.pool.Close() }

// leasedSession is one exclusive use of a pooled browser
type leasedSession struct {
	partner *BrowserPartner
	session *browser.Session
	filled  domain.ProductType
	once    sync.Once
}

func (l *leasedSession) Fill(ctx context.Context, spec *domain.OrderSpecification) error {
	l.filled = spec.ProductType
	return l.partner.machine.Run(ctx, l.session.Page(), spec)
}

// Extract reads the rendered results panel and parses its rows.
func (l *leasedSession) Extract(ctx context.Context) ([]domain.ShippingOption, error) {
	if l.filled == "" {
		return nil, domain.NewQuoteError(domain.KindInternal, string(StateExtractResults), "extract called before fill")
	}
	table, err := l.partner.def.Catalog.Table(l.filled)
	if err != nil {
		return nil, domain.AsQuoteError(err, string(StateExtractResults))
	}

	page := l.session.Page()
	f := formfill.NewFiller(page, l.partner.machine.Config(), StateExtractResults, l.partner.logger)
	panel, err := f.Resolve(ctx, "results-panel", table.ResultsPanel)
	if err != nil {
		return nil, err
	}

	html, err := page.HTML(ctx, panel)
	if err != nil {
		return nil, domain.AsQuoteError(err, string(StateExtractResults))
	}
	options, err := l.partner.extractor.Parse(html)
	if err != nil {
		return nil, domain.NewQuoteError(domain.KindInternal, string(StateExtractResults), "parse results panel: %v", err)
	}
	if len(options) == 0 {
		return nil, domain.NewQuoteError(domain.KindExtractionEmpty, string(StateExtractResults),
			"results panel rendered but no shipping option could be parsed")
	}
	return options, nil
}

func (l *leasedSession) Release(err error) {
	l.once.Do(func() { l.partner.pool.Release(l.session, err) })
}
