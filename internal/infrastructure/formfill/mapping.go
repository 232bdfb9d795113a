package formfill

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/browser"
)

// Widget is the kind of form control a field is rendered as
type Widget string

const (
	WidgetInput        Widget = "input"
	WidgetSelect       Widget = "select"
	WidgetChoice       Widget = "choice" // radio, toggle or clickable tile labelled with the value
	WidgetAutocomplete Widget = "autocomplete"
	WidgetButton       Widget = "button"
)

// Logical field names shared by every partner table
const (
	FieldWidthFeet    = "width-feet"
	FieldWidthInches  = "width-inches"
	FieldHeightFeet   = "height-feet"
	FieldHeightInches = "height-inches"
	FieldSize         = "size" // preset sizes picked as "WxH" in feet
	FieldQuantity     = "quantity"
	FieldJobName      = "job-name"
	FieldMaterial     = "material"
	FieldShippingMode = "shipping-mode"

	FieldName       = "name"
	FieldCompany    = "company"
	FieldPhone      = "phone"
	FieldStreet     = "street"
	FieldCity       = "city"
	FieldState      = "state"
	FieldPostalCode = "postal-code"
	FieldSubmit     = "submit"
)

// FieldMapping binds a logical field to the candidate selectors that may
// locate it, tried in order.
type FieldMapping struct {
	Field      string
	Widget     Widget
	Candidates []browser.Selector
	Transform  Transform
	// OptionList locates the suggestion entries of an autocomplete widget.
	OptionList []browser.Selector
	// Optional fields are skipped when no candidate resolves.
	Optional bool
	// Secret values are never logged.
	Secret bool
	// Verify reads the value back after typing and compares it, numerically
	// when it is a number.
	Verify bool
	// Alternatives are other renderings of the same field (a state select in
	// one release, an autocomplete in the next), tried when no candidate resolves.
	Alternatives []FieldMapping
}

// OptionMapping maps a print option key to its control. Labels translates
// canonical option values ("double") to the partner's display labels ("2 Sides").
type OptionMapping struct {
	Key        string
	Widget     Widget
	Candidates []browser.Selector
	Labels     map[string]string
}

// Label returns the display label for a canonical value, defaulting to the value itself
func (m OptionMapping) Label(value string) string {
	if label, ok := m.Labels[value]; ok {
		return label
	}
	return value
}

// ShippingMode selects how the order ships. Drop-ship modes require a
// destination address before rates render.
type ShippingMode struct {
	Field               FieldMapping
	RequiresDestination bool
}

// Destination is the address editor opened by drop-ship modes
type Destination struct {
	EditorTrigger FieldMapping
	Fields        []FieldMapping
	Submit        FieldMapping
}

// Estimate is a zip-only rate estimator for orders without a destination
// address. Its destination editor usually holds just the postal code field.
type Estimate struct {
	Mode        ShippingMode
	Destination *Destination
}

// Table is the field mapping for one (partner, product type) pair.
type Table struct {
	ProductType  domain.ProductType
	OrderURL     string
	Dimensions   []FieldMapping
	JobDetails   []FieldMapping
	Material     *OptionMapping
	PrintOptions map[string]OptionMapping
	// Accessories are keyed by accessory code and clicked when requested.
	Accessories  map[string]FieldMapping
	ShippingMode ShippingMode
	Destination  *Destination
	// Estimate replaces ShippingMode and Destination for orders without
	// customer info.
	Estimate     *Estimate
	// ResultsPanel locates the rendered rates container; ResultRows its rows.
	ResultsPanel []browser.Selector
	ResultRows   []browser.Selector
}

// Shipping returns the shipping mode and destination editor used for spec
func (t *Table) Shipping(spec *domain.OrderSpecification) (ShippingMode, *Destination) {
	if spec.CustomerInfo == nil && t.Estimate != nil {
		return t.Estimate.Mode, t.Estimate.Destination
	}
	return t.ShippingMode, t.Destination
}

func (d *Destination) fields() []FieldMapping {
	var all []FieldMapping
	if len(d.EditorTrigger.Candidates) > 0 {
		all = append(all, d.EditorTrigger)
	}
	all = append(all, d.Fields...)
	return append(all, d.Submit)
}

func (t *Table) fields() []FieldMapping {
	all := append(slices.Clone(t.Dimensions), t.JobDetails...)
	all = append(all, t.ShippingMode.Field)
	if t.Destination != nil {
		all = append(all, t.Destination.fields()...)
	}
	if t.Estimate != nil {
		all = append(all, t.Estimate.Mode.Field)
		if t.Estimate.Destination != nil {
			all = append(all, t.Estimate.Destination.fields()...)
		}
	}
	return all
}

// Catalog holds the tables of one partner. It is immutable after construction.
type Catalog struct {
	partner string
	tables  map[domain.ProductType]*Table
}

func NewCatalog(partner string, tables ...*Table) *Catalog {
	c := &Catalog{partner: partner, tables: make(map[domain.ProductType]*Table, len(tables))}
	for _, t := range tables {
		c.tables[t.ProductType] = t
	}
	return c
}

func (c *Catalog) Partner() string { return c.partner }

// Table returns the mapping for a product type. Unsupported types are an
// invalid specification for this partner.
func (c *Catalog) Table(pt domain.ProductType) (*Table, error) {
	t, ok := c.tables[pt]
	if !ok {
		return nil, fmt.Errorf("%w: partner %s does not support product type %q",
			domain.ErrInvalidSpecification, c.partner, pt)
	}
	return t, nil
}

// Lookup returns the candidate selectors and value transform of a field.
func (c *Catalog) Lookup(pt domain.ProductType, field string) ([]browser.Selector, Transform, error) {
	t, err := c.Table(pt)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range t.fields() {
		if m.Field == field {
			transform := m.Transform
			if transform == nil {
				transform = Identity
			}
			return m.Candidates, transform, nil
		}
	}
	if opt, ok := t.PrintOptions[field]; ok {
		return opt.Candidates, Identity, nil
	}
	if field == FieldMaterial && t.Material != nil {
		return t.Material.Candidates, Identity, nil
	}
	return nil, nil, fmt.Errorf("%w: no mapping for field %q on %s/%s",
		domain.ErrElementNotFound, field, c.partner, pt)
}

// ProductTypes lists the supported product types in a stable order
func (c *Catalog) ProductTypes() []domain.ProductType {
	types := make([]domain.ProductType, 0, len(c.tables))
	for pt := range c.tables {
		types = append(types, pt)
	}
	slices.Sort(types)
	return types
}

// Validate checks that every table can drive a full quote flow.
func (c *Catalog) Validate() error {
	if len(c.tables) == 0 {
		return fmt.Errorf("catalog %s has no product tables", c.partner)
	}
	var errs []error
	for _, pt := range c.ProductTypes() {
		t := c.tables[pt]
		if t.OrderURL == "" {
			errs = append(errs, fmt.Errorf("%s: order URL is required", pt))
		}
		if len(t.Dimensions) == 0 {
			errs = append(errs, fmt.Errorf("%s: dimension fields are required", pt))
		}
		if len(t.ShippingMode.Field.Candidates) == 0 {
			errs = append(errs, fmt.Errorf("%s: shipping mode is required", pt))
		}
		if t.ShippingMode.RequiresDestination && t.Destination == nil {
			errs = append(errs, fmt.Errorf("%s: shipping mode requires a destination editor", pt))
		}
		if e := t.Estimate; e != nil && e.Mode.RequiresDestination && e.Destination == nil {
			errs = append(errs, fmt.Errorf("%s: estimate mode requires a postal code editor", pt))
		}
		if len(t.ResultsPanel) == 0 || len(t.ResultRows) == 0 {
			errs = append(errs, fmt.Errorf("%s: results panel and rows are required", pt))
		}
		for _, m := range t.fields() {
			if len(m.Candidates) == 0 {
				errs = append(errs, fmt.Errorf("%s: field %q has no candidate selectors", pt, m.Field))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("catalog %s: %w", c.partner, errors.Join(errs...))
	}
	return nil
}
