package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceClass buckets carrier services by speed
type ServiceClass string

const (
	ServiceStandard  ServiceClass = "standard"
	ServiceExpedited ServiceClass = "expedited"
	ServiceOvernight ServiceClass = "overnight"
)

// ShippingOption is one row of the partner's rendered shipping rates.
type ShippingOption struct {
	Name          string          `json:"name"`
	ServiceClass  ServiceClass    `json:"serviceClass"`
	Cost          decimal.Decimal `json:"cost"`
	EstimatedDays int             `json:"estimatedDays"`
	DeliveryDate  string          `json:"deliveryDate,omitempty"`
	Description   string          `json:"description,omitempty"`
}

// QuoteResult is the uniform envelope returned for every quote request,
// successful or not.
type QuoteResult struct {
	Success         bool             `json:"success"`
	Partner         string           `json:"partner"`
	ShippingOptions []ShippingOption `json:"shippingOptions"`
	Errors          []QuoteError     `json:"errors,omitempty"`
	QuotedAt        time.Time        `json:"quotedAt"`
	CacheHit        bool             `json:"cacheHit"`
	Fingerprint     string           `json:"fingerprint,omitempty"`
}

// Failed builds an unsuccessful envelope carrying a single error
func Failed(partner string, qerr *QuoteError, at time.Time) *QuoteResult {
	return &QuoteResult{
		Success:         false,
		Partner:         partner,
		ShippingOptions: []ShippingOption{},
		Errors:          []QuoteError{*qerr},
		QuotedAt:        at,
	}
}

// CacheStats is a point-in-time snapshot of the quote cache
type CacheStats struct {
	Size      int   `json:"size"`
	HitCount  int64 `json:"hitCount"`
	MissCount int64 `json:"missCount"`
}

// Health reports whether the engine currently holds a live browser session.
type Health struct {
	SessionAlive bool            `json:"sessionAlive"`
	Partners     map[string]bool `json:"partners"`
}
