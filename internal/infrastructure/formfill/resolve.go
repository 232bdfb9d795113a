package formfill

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/browser"
)

// Filler drives individual form controls on a page. Errors are QuoteErrors
// tagged with the state the filler was created for.
type Filler struct {
	page   browser.Page
	cfg    Config
	state  State
	logger zerolog.Logger
}

// NewFiller creates a filler for one state of the flow
func NewFiller(page browser.Page, cfg Config, state State, logger zerolog.Logger) *Filler {
	return &Filler{page: page, cfg: cfg.withDefaults(), state: state, logger: logger}
}

func (f *Filler) fail(kind domain.ErrorKind, format string, args ...interface{}) *domain.QuoteError {
	return domain.NewQuoteError(kind, string(f.state), format, args...)
}

// wrap turns a page error into a descriptor, reporting an expired ctx as a timeout
func (f *Filler) wrap(ctx context.Context, err error, what string) *domain.QuoteError {
	if ctx.Err() != nil {
		return f.fail(domain.KindTimeout, "%s: %v", what, ctx.Err())
	}
	qerr := domain.AsQuoteError(err, string(f.state))
	qerr.Message = what + ": " + qerr.Message
	return qerr
}

// Resolve returns the first candidate that becomes visible. Each candidate
// gets CandidateTimeout per attempt; the list is retried ResolveAttempts times.
func (f *Filler) Resolve(ctx context.Context, field string, candidates []browser.Selector) (browser.Selector, error) {
	for attempt := 1; attempt <= f.cfg.ResolveAttempts; attempt++ {
		for _, sel := range candidates {
			cctx, cancel := context.WithTimeout(ctx, f.cfg.CandidateTimeout)
			err := f.page.WaitVisible(cctx, sel)
			cancel()
			if err == nil {
				return sel, nil
			}
			if ctx.Err() != nil {
				return browser.Selector{}, f.fail(domain.KindTimeout, "waiting for %s: %v", field, ctx.Err())
			}
		}
	}
	return browser.Selector{}, f.fail(domain.KindElementNotFound,
		"%s: none of %d candidate selectors resolved", field, len(candidates))
}

// Fill enters value into the control described by m, falling back to its
// alternatives when none of its candidates resolve. Optional controls that
// cannot be found are skipped.
func (f *Filler) Fill(ctx context.Context, m FieldMapping, value string) error {
	err := f.fillOne(ctx, m, value)
	for _, alt := range m.Alternatives {
		if err == nil || domain.KindOf(err) != domain.KindElementNotFound {
			break
		}
		if alt.Field == "" {
			alt.Field = m.Field
		}
		alt.Verify = alt.Verify || m.Verify
		f.logger.Debug().Str("field", m.Field).Str("widget", string(alt.Widget)).Msg("Trying alternative rendering")
		err = f.fillOne(ctx, alt, value)
	}

	if err != nil && m.Optional && domain.KindOf(err) == domain.KindElementNotFound {
		f.logger.Debug().Str("field", m.Field).Msg("Optional field not present, skipping")
		return nil
	}
	return err
}

func (f *Filler) fillOne(ctx context.Context, m FieldMapping, value string) error {
	transform := m.Transform
	if transform == nil {
		transform = Identity
	}
	v, err := transform(value)
	if err != nil {
		return f.fail(domain.KindInvalidSpecification, "%s: %v", m.Field, err)
	}

	switch m.Widget {
	case WidgetSelect:
		err = f.selectOption(ctx, m.Field, m.Candidates, v)
	case WidgetChoice:
		err = f.clickChoice(ctx, m.Field, m.Candidates, v)
	case WidgetAutocomplete:
		err = f.autocomplete(ctx, m, v)
	case WidgetButton:
		err = f.click(ctx, m.Field, m.Candidates)
	default:
		err = f.input(ctx, m, v)
	}
	return err
}

// Choose selects a print option by its display label
func (f *Filler) Choose(ctx context.Context, om OptionMapping, value string) error {
	label := om.Label(value)
	switch om.Widget {
	case WidgetChoice, WidgetButton:
		return f.clickChoice(ctx, om.Key, om.Candidates, label)
	case WidgetInput:
		return f.input(ctx, FieldMapping{Field: om.Key, Candidates: om.Candidates}, label)
	default:
		return f.selectOption(ctx, om.Key, om.Candidates, label)
	}
}

func (f *Filler) click(ctx context.Context, field string, candidates []browser.Selector) error {
	sel, err := f.Resolve(ctx, field, candidates)
	if err != nil {
		return err
	}
	if err := f.page.Click(ctx, sel); err != nil {
		return f.wrap(ctx, err, "click "+field)
	}
	f.logger.Debug().Str("field", field).Str("selector", sel.String()).Msg("Clicked")
	return nil
}

func (f *Filler) clickChoice(ctx context.Context, field string, candidates []browser.Selector, label string) error {
	labelled := make([]browser.Selector, len(candidates))
	for i, c := range candidates {
		labelled[i] = c.With(label)
	}
	return f.click(ctx, field, labelled)
}

func (f *Filler) input(ctx context.Context, m FieldMapping, value string) error {
	sel, err := f.Resolve(ctx, m.Field, m.Candidates)
	if err != nil {
		return err
	}
	if err := f.page.Fill(ctx, sel, value); err != nil {
		return f.wrap(ctx, err, "fill "+m.Field)
	}

	logged := value
	if m.Secret {
		logged = "***"
	}
	f.logger.Debug().Str("field", m.Field).Str("value", logged).Msg("Filled")

	if !m.Verify {
		return nil
	}
	want, numeric := parseNumber(value)
	got, err := f.page.Value(ctx, sel)
	if err != nil {
		return f.wrap(ctx, err, "read back "+m.Field)
	}
	if numeric {
		if have, ok := parseNumber(got); ok && have == want {
			return nil
		}
	} else if strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(value)) {
		return nil
	}
	return f.fail(domain.KindValueRejected, "%s: entered %s but form shows %q", m.Field, value, got)
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, ",", "")), 64)
	return f, err == nil
}

func (f *Filler) selectOption(ctx context.Context, field string, candidates []browser.Selector, label string) error {
	sel, err := f.Resolve(ctx, field, candidates)
	if err != nil {
		return err
	}
	options, err := f.page.Options(ctx, sel)
	if err != nil {
		return f.wrap(ctx, err, "list options of "+field)
	}

	labels := make([]string, len(options))
	for i, o := range options {
		labels[i] = o.Label
	}
	idx := matchOption(label, labels)
	if idx < 0 {
		for i, o := range options {
			if strings.EqualFold(o.Value, label) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return f.fail(domain.KindValueRejected, "%s: no option matches %q (have %s)",
			field, label, strings.Join(labels, ", "))
	}

	if err := f.page.SetSelectValue(ctx, sel, options[idx].Value); err != nil {
		return f.wrap(ctx, err, "select "+field)
	}
	f.logger.Debug().Str("field", field).Str("option", options[idx].Label).Msg("Selected")
	return nil
}

// autocomplete types the query and clicks the first suggestion containing
// it, falling back to the closest fuzzy match.
func (f *Filler) autocomplete(ctx context.Context, m FieldMapping, query string) error {
	sel, err := f.Resolve(ctx, m.Field, m.Candidates)
	if err != nil {
		return err
	}
	if err := f.page.Click(ctx, sel); err != nil {
		return f.wrap(ctx, err, "focus "+m.Field)
	}
	if err := f.page.Fill(ctx, sel, query); err != nil {
		return f.wrap(ctx, err, "type "+m.Field)
	}

	wait, cancel := context.WithTimeout(ctx, f.cfg.CandidateTimeout*time.Duration(f.cfg.ResolveAttempts))
	defer cancel()
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for _, list := range m.OptionList {
			texts, err := f.page.Texts(wait, list)
			if err != nil || len(texts) == 0 {
				continue
			}
			idx := containsFold(query, texts)
			if idx < 0 {
				idx = matchOption(query, texts)
			}
			if idx < 0 {
				continue
			}
			if err := f.page.ClickNth(ctx, list, idx); err != nil {
				return f.wrap(ctx, err, "pick suggestion for "+m.Field)
			}
			f.logger.Debug().Str("field", m.Field).Str("suggestion", texts[idx]).Msg("Picked suggestion")
			return nil
		}

		select {
		case <-wait.Done():
			if ctx.Err() != nil {
				return f.fail(domain.KindTimeout, "waiting for suggestions for %s: %v", m.Field, ctx.Err())
			}
			return f.fail(domain.KindElementNotFound, "%s: no suggestion matches %q", m.Field, query)
		case <-ticker.C:
		}
	}
}

func containsFold(query string, texts []string) int {
	q := normalizeLabel(query)
	for i, t := range texts {
		if q != "" && strings.Contains(normalizeLabel(t), q) {
			return i
		}
	}
	return -1
}
