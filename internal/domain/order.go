package domain

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ProductType identifies the kind of print product being quoted.
// Partners may support additional types beyond the ones declared here.
type ProductType string

const (
	ProductBanner ProductType = "banner"
	ProductTent   ProductType = "tent"
	ProductSign   ProductType = "sign"
	ProductTin    ProductType = "tin"
)

var zipCodeRegex = regexp.MustCompile(`^\d{5}$`)

// Dimensions are expressed in decimal feet (6.0833 ft = 6 ft 1 in)
type Dimensions struct {
	WidthFt  float64 `json:"widthFt"`
	HeightFt float64 `json:"heightFt"`
}

// CustomerInfo is the drop-ship destination. Only partners whose shipping
// mode needs a destination address read it. The destination postal code is
// always the order's ZipCode; PostalCode, when set, must agree with it.
type CustomerInfo struct {
	Name       string `json:"name"`
	Company    string `json:"company,omitempty"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
}

// OrderSpecification describes what is being shipped. It is the input of a
// single quote request and is never mutated by the engine.
type OrderSpecification struct {
	ProductType  ProductType       `json:"productType"`
	Material     string            `json:"material,omitempty"`
	Dimensions   Dimensions        `json:"dimensions"`
	Quantity     int               `json:"quantity"`
	PrintOptions map[string]string `json:"printOptions,omitempty"`
	Accessories  []string          `json:"accessories,omitempty"`
	CustomerInfo *CustomerInfo     `json:"customerInfo,omitempty"`
	ZipCode      string            `json:"zipCode"`
}

// Validate checks the invariants that must hold before any browser work begins.
func (s *OrderSpecification) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: empty order", ErrInvalidSpecification)
	}
	if strings.TrimSpace(string(s.ProductType)) == "" {
		return fmt.Errorf("%w: product type is required", ErrInvalidSpecification)
	}
	if !zipCodeRegex.MatchString(strings.TrimSpace(s.ZipCode)) {
		return fmt.Errorf("%w: zip code must be 5 digits, got %q", ErrInvalidSpecification, s.ZipCode)
	}
	if s.Dimensions.WidthFt <= 0 || s.Dimensions.HeightFt <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %gx%g ft",
			ErrInvalidSpecification, s.Dimensions.WidthFt, s.Dimensions.HeightFt)
	}
	if s.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidSpecification, s.Quantity)
	}
	if len(s.Accessories) > 0 && s.ProductType != ProductTent {
		return fmt.Errorf("%w: accessories are only available for tents", ErrInvalidSpecification)
	}
	if c := s.CustomerInfo; c != nil {
		// ZIP+4 postal codes agree when their first five digits match.
		pc := strings.TrimSpace(c.PostalCode)
		if pc != "" && !strings.HasPrefix(pc, strings.TrimSpace(s.ZipCode)) {
			return fmt.Errorf("%w: customer postal code %q does not match zip code %q",
				ErrInvalidSpecification, c.PostalCode, s.ZipCode)
		}
	}
	return nil
}

// ValidateDestination checks the customer address for shipping modes that ship
// straight to the end customer.
func (s *OrderSpecification) ValidateDestination() error {
	c := s.CustomerInfo
	if c == nil {
		return fmt.Errorf("%w: customer info is required for drop-ship quotes", ErrInvalidSpecification)
	}
	missing := []string{}
	for name, v := range map[string]string{
		"name":   c.Name,
		"street": c.Street,
		"city":   c.City,
		"state":  c.State,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: customer info missing %s", ErrInvalidSpecification, strings.Join(missing, ", "))
	}
	return nil
}
