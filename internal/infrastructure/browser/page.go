package browser

import "context"

// Option is one entry of a <select> element
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Page is the live tab of a session. Every call is bounded by ctx; an
// exceeded deadline is reported as domain.ErrTimeout.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)

	// WaitVisible blocks until the element is attached and visible.
	WaitVisible(ctx context.Context, sel Selector) error
	// Count returns the number of matching elements without waiting.
	Count(ctx context.Context, sel Selector) (int, error)

	Click(ctx context.Context, sel Selector) error
	ClickNth(ctx context.Context, sel Selector, n int) error
	// Fill clears the input and types value with real key events.
	Fill(ctx context.Context, sel Selector, value string) error
	Value(ctx context.Context, sel Selector) (string, error)

	// SetSelectValue sets a <select> to the option with the given value and
	// dispatches change events.
	SetSelectValue(ctx context.Context, sel Selector, value string) error
	Options(ctx context.Context, sel Selector) ([]Option, error)

	// Texts returns the visible text of every matching element, in document order.
	Texts(ctx context.Context, sel Selector) ([]string, error)
	// HTML returns the outer HTML of the first matching element.
	HTML(ctx context.Context, sel Selector) (string, error)
}
