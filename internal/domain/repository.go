package domain

import (
	"context"
	"time"
)

// QuoteCache defines the interface for memoizing successful quotes by fingerprint
type QuoteCache interface {
	Get(ctx context.Context, key string) (*QuoteResult, error)
	Set(ctx context.Context, key string, value *QuoteResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats() CacheStats
}

// Partner is one print vendor whose order flow is automated to obtain rates.
// Each partner brings its own field mapping, state machine flavor and
// extraction rules behind this interface.
type Partner interface {
	ID() string
	// Validate runs partner-specific checks (supported product type,
	// destination address requirements) before any session is acquired.
	Validate(spec *OrderSpecification) error
	// Acquire returns an exclusive, authenticated session.
	Acquire(ctx context.Context) (QuoteSession, error)
	// Alive reports whether the partner holds at least one live session.
	Alive(ctx context.Context) bool
	Close() error
}

// QuoteSession is a leased browser session bound to one partner. It must not
// be used by two quote attempts at once and must be released exactly once.
type QuoteSession interface {
	Fill(ctx context.Context, spec *OrderSpecification) error
	Extract(ctx context.Context) ([]ShippingOption, error)
	Release(err error)
}

// PartnerDirectory resolves partner ids to implementations
type PartnerDirectory interface {
	Get(id string) (Partner, error)
	IDs() []string
}
