package http

import (
	"net/http"
	"time"

	"github.com/shipquote/backend/internal/domain"
)

// FallbackManualQuote tells the client to offer a manual quote request
const FallbackManualQuote = "manual_quote"

// QuoteResponse is the public form of a QuoteResult. Automation details
// (selectors, states, raw timeouts) stay in the logs.
type QuoteResponse struct {
	Success         bool                    `json:"success"`
	Partner         string                  `json:"partner"`
	ShippingOptions []domain.ShippingOption `json:"shippingOptions"`
	QuotedAt        time.Time               `json:"quotedAt"`
	CacheHit        bool                    `json:"cacheHit"`
	Error           *ErrorBody              `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind      domain.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
	Retryable bool             `json:"retryable"`
	Fallback  string           `json:"fallback,omitempty"`
}

func present(result *domain.QuoteResult) *QuoteResponse {
	resp := &QuoteResponse{
		Success:         result.Success,
		Partner:         result.Partner,
		ShippingOptions: result.ShippingOptions,
		QuotedAt:        result.QuotedAt,
		CacheHit:        result.CacheHit,
	}
	if resp.ShippingOptions == nil {
		resp.ShippingOptions = []domain.ShippingOption{}
	}
	if !result.Success && len(result.Errors) > 0 {
		resp.Error = presentError(result.Errors[0])
	}
	return resp
}

func presentError(qerr domain.QuoteError) *ErrorBody {
	switch qerr.Kind {
	case domain.KindInvalidSpecification:
		// validation messages are written for the caller
		return &ErrorBody{Kind: qerr.Kind, Message: qerr.Message}
	case domain.KindPartnerUnknown:
		return &ErrorBody{Kind: qerr.Kind, Message: "Unknown shipping partner."}
	case domain.KindSessionUnavailable:
		return &ErrorBody{
			Kind:      qerr.Kind,
			Message:   "Live shipping rates are temporarily unavailable. Please try again in a few minutes.",
			Retryable: true,
		}
	case domain.KindTimeout:
		return &ErrorBody{
			Kind:      qerr.Kind,
			Message:   "The shipping rate lookup took too long. Please try again.",
			Retryable: true,
		}
	default:
		return &ErrorBody{
			Kind:     qerr.Kind,
			Message:  "We couldn't calculate shipping for this order automatically. Request a manual quote and we'll follow up.",
			Fallback: FallbackManualQuote,
		}
	}
}

func statusFor(result *domain.QuoteResult) int {
	if result.Success || len(result.Errors) == 0 {
		return http.StatusOK
	}
	switch result.Errors[0].Kind {
	case domain.KindInvalidSpecification:
		return http.StatusBadRequest
	case domain.KindPartnerUnknown:
		return http.StatusNotFound
	case domain.KindSessionUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
