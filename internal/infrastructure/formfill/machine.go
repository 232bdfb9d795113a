package formfill

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/browser"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("shipquote/formfill")

// State is one step of the order flow
type State string

const (
	StateNavigate           State = "Navigate"
	StateFillDimensions     State = "FillDimensions"
	StateFillJobDetails     State = "FillJobDetails"
	StateSelectPrintOptions State = "SelectPrintOptions"
	StateSelectAccessories  State = "SelectAccessories"
	StateSelectShippingMode State = "SelectShippingMode"
	StateFillDestination    State = "FillDestination"
	StateAwaitResults       State = "AwaitResults"
)

// States lists the flow in execution order
var States = []State{
	StateNavigate,
	StateFillDimensions,
	StateFillJobDetails,
	StateSelectPrintOptions,
	StateSelectAccessories,
	StateSelectShippingMode,
	StateFillDestination,
	StateAwaitResults,
}

// Config holds the waits used while filling a form
type Config struct {
	CandidateTimeout time.Duration
	ResolveAttempts  int
	NavigateTimeout  time.Duration
	ResultsTimeout   time.Duration
	PollInterval     time.Duration
	// LoginMarkers are URL fragments that mean the session was logged out.
	LoginMarkers []string
}

func (c Config) withDefaults() Config {
	if c.CandidateTimeout <= 0 {
		c.CandidateTimeout = 3 * time.Second
	}
	if c.ResolveAttempts <= 0 {
		c.ResolveAttempts = 2
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.ResultsTimeout <= 0 {
		c.ResultsTimeout = 20 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	return c
}

// Machine fills a partner's order form from an OrderSpecification, one
// state at a time. It never rolls back: on failure the form is left as is
// and the session's next attempt starts again from Navigate.
type Machine struct {
	catalog *Catalog
	cfg     Config
	logger  zerolog.Logger
}

func NewMachine(catalog *Catalog, cfg Config, logger zerolog.Logger) *Machine {
	return &Machine{
		catalog: catalog,
		cfg:     cfg.withDefaults(),
		logger:  logger.With().Str("component", "formfill").Str("partner", catalog.Partner()).Logger(),
	}
}

func (m *Machine) Catalog() *Catalog { return m.catalog }

func (m *Machine) Config() Config { return m.cfg }

// Run drives page through every state until shipping rates are rendered.
// The returned error is always a *domain.QuoteError naming the failed state.
func (m *Machine) Run(ctx context.Context, page browser.Page, spec *domain.OrderSpecification) error {
	table, err := m.catalog.Table(spec.ProductType)
	if err != nil {
		return domain.AsQuoteError(err, string(StateNavigate))
	}

	r := &run{machine: m, page: page, table: table, spec: spec}
	steps := map[State]func(context.Context, *Filler) error{
		StateNavigate:           r.navigate,
		StateFillDimensions:     r.fillDimensions,
		StateFillJobDetails:     r.fillJobDetails,
		StateSelectPrintOptions: r.selectPrintOptions,
		StateSelectAccessories:  r.selectAccessories,
		StateSelectShippingMode: r.selectShippingMode,
		StateFillDestination:    r.fillDestination,
		StateAwaitResults:       r.awaitResults,
	}

	for _, state := range States {
		if err := m.runState(ctx, page, spec, state, steps[state]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) runState(ctx context.Context, page browser.Page, spec *domain.OrderSpecification, state State, step func(context.Context, *Filler) error) error {
	ctx, span := tracer.Start(ctx, "formfill."+string(state))
	defer span.End()

	span.SetAttributes(
		attribute.String("partner", m.catalog.Partner()),
		attribute.String("product_type", string(spec.ProductType)),
	)

	logger := m.logger.With().Str("state", string(state)).Logger()
	if err := ctx.Err(); err != nil {
		qerr := domain.NewQuoteError(domain.KindTimeout, string(state), "attempt deadline reached: %v", err)
		span.RecordError(qerr)
		span.SetStatus(codes.Error, qerr.Message)
		return qerr
	}

	start := time.Now()
	err := step(ctx, NewFiller(page, m.cfg, state, logger))
	if err != nil {
		qerr := domain.AsQuoteError(err, string(state))
		if ctx.Err() != nil && qerr.Kind != domain.KindSessionUnavailable {
			qerr.Kind = domain.KindTimeout
		}
		span.RecordError(qerr)
		span.SetStatus(codes.Error, qerr.Message)
		logger.Warn().Str("kind", string(qerr.Kind)).Str("error", qerr.Message).Msg("State failed")
		return qerr
	}

	logger.Debug().Dur("elapsed", time.Since(start)).Msg("State complete")
	return nil
}

// run carries one execution of the machine
type run struct {
	machine *Machine
	page    browser.Page
	table   *Table
	spec    *domain.OrderSpecification
}

func (r *run) navigate(ctx context.Context, f *Filler) error {
	nctx, cancel := context.WithTimeout(ctx, r.machine.cfg.NavigateTimeout)
	defer cancel()

	if err := r.page.Navigate(nctx, r.table.OrderURL); err != nil {
		return f.wrap(nctx, err, "open "+r.table.OrderURL)
	}
	url, err := r.page.URL(nctx)
	if err != nil {
		return f.wrap(nctx, err, "read location")
	}
	for _, marker := range r.machine.cfg.LoginMarkers {
		if marker != "" && strings.Contains(strings.ToLower(url), strings.ToLower(marker)) {
			return f.fail(domain.KindSessionUnavailable, "redirected to login page %s", url)
		}
	}
	return nil
}

func formatFeet(ft float64) string {
	return strconv.FormatFloat(ft, 'f', -1, 64)
}

func (r *run) dimensionValue(field string) (string, bool) {
	switch field {
	case FieldWidthFeet, FieldWidthInches, "width":
		return formatFeet(r.spec.Dimensions.WidthFt), true
	case FieldHeightFeet, FieldHeightInches, "height":
		return formatFeet(r.spec.Dimensions.HeightFt), true
	case FieldSize:
		return formatFeet(r.spec.Dimensions.WidthFt) + "x" + formatFeet(r.spec.Dimensions.HeightFt), true
	}
	return "", false
}

func (r *run) fillDimensions(ctx context.Context, f *Filler) error {
	for _, m := range r.table.Dimensions {
		value, ok := r.dimensionValue(m.Field)
		if !ok {
			return f.fail(domain.KindInternal, "unknown dimension field %q", m.Field)
		}
		m.Verify = true
		if err := f.Fill(ctx, m, value); err != nil {
			return err
		}
	}
	return nil
}

// JobName is the job label entered for quote-only orders
func JobName(spec *domain.OrderSpecification) string {
	return fmt.Sprintf("QUOTE-%s-%s", strings.ToUpper(string(spec.ProductType)), spec.ZipCode)
}

func (r *run) fillJobDetails(ctx context.Context, f *Filler) error {
	if r.table.Material != nil && r.spec.Material != "" {
		if err := f.Choose(ctx, *r.table.Material, r.spec.Material); err != nil {
			return err
		}
	}

	for _, m := range r.table.JobDetails {
		var value string
		switch m.Field {
		case FieldQuantity:
			value = strconv.Itoa(r.spec.Quantity)
			m.Verify = true
		case FieldJobName:
			value = JobName(r.spec)
		default:
			return f.fail(domain.KindInternal, "unknown job field %q", m.Field)
		}
		if err := f.Fill(ctx, m, value); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) selectPrintOptions(ctx context.Context, f *Filler) error {
	keys := make([]string, 0, len(r.spec.PrintOptions))
	for k := range r.spec.PrintOptions {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		om, ok := r.table.PrintOptions[key]
		if !ok {
			f.logger.Debug().Str("option", key).Msg("Print option not mapped for this product, ignoring")
			continue
		}
		if om.Key == "" {
			om.Key = key
		}
		if err := f.Choose(ctx, om, r.spec.PrintOptions[key]); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) selectAccessories(ctx context.Context, f *Filler) error {
	for _, code := range r.spec.Accessories {
		m, ok := r.table.Accessories[code]
		if !ok {
			f.logger.Debug().Str("accessory", code).Msg("Accessory not mapped for this product, ignoring")
			continue
		}
		if err := f.Fill(ctx, m, code); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) selectShippingMode(ctx context.Context, f *Filler) error {
	mode, _ := r.table.Shipping(r.spec)
	return f.Fill(ctx, mode.Field, "")
}

// destinationValue returns the value typed into a destination field. The
// postal code always comes from ZipCode so the rates match the fingerprint.
func destinationValue(spec *domain.OrderSpecification, field string) string {
	if field == FieldPostalCode {
		return strings.TrimSpace(spec.ZipCode)
	}
	c := spec.CustomerInfo
	if c == nil {
		return ""
	}
	switch field {
	case FieldName:
		return c.Name
	case FieldCompany:
		return c.Company
	case FieldPhone:
		return c.Phone
	case FieldStreet:
		return c.Street
	case FieldCity:
		return c.City
	case FieldState:
		return c.State
	}
	return ""
}

func (r *run) fillDestination(ctx context.Context, f *Filler) error {
	mode, dest := r.table.Shipping(r.spec)
	if !mode.RequiresDestination || dest == nil {
		return nil
	}

	if len(dest.EditorTrigger.Candidates) > 0 {
		if err := f.Fill(ctx, dest.EditorTrigger, ""); err != nil {
			return err
		}
	}
	for _, m := range dest.Fields {
		value := destinationValue(r.spec, m.Field)
		if value == "" {
			if m.Optional {
				continue
			}
			return f.fail(domain.KindInvalidSpecification, "destination field %q has no value", m.Field)
		}
		if err := f.Fill(ctx, m, value); err != nil {
			return err
		}
	}
	return f.Fill(ctx, dest.Submit, "")
}

// awaitResults polls until the results panel has at least one row
func (r *run) awaitResults(ctx context.Context, f *Filler) error {
	wait, cancel := context.WithTimeout(ctx, r.machine.cfg.ResultsTimeout)
	defer cancel()
	ticker := time.NewTicker(r.machine.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for _, sel := range r.table.ResultRows {
			n, err := r.page.Count(wait, sel)
			if err == nil && n > 0 {
				f.logger.Debug().Int("rows", n).Msg("Shipping rates rendered")
				return nil
			}
		}

		select {
		case <-wait.Done():
			if ctx.Err() != nil {
				return f.fail(domain.KindTimeout, "attempt deadline reached before rates rendered")
			}
			return f.fail(domain.KindTimeout, "no shipping rates rendered within %s", r.machine.cfg.ResultsTimeout)
		case <-ticker.C:
		}
	}
}
