package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBanner() *OrderSpecification {
	return &OrderSpecification{
		ProductType:  ProductBanner,
		Material:     "13oz-vinyl",
		Dimensions:   Dimensions{WidthFt: 3, HeightFt: 6},
		Quantity:     1,
		PrintOptions: map[string]string{"sides": "2"},
		ZipCode:      "90210",
	}
}

func TestOrderSpecification_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *OrderSpecification)
		wantErr bool
	}{
		{name: "valid banner", mutate: func(s *OrderSpecification) {}},
		{name: "empty zip", mutate: func(s *OrderSpecification) { s.ZipCode = "" }, wantErr: true},
		{name: "zip+4 rejected", mutate: func(s *OrderSpecification) { s.ZipCode = "90210-1234" }, wantErr: true},
		{name: "letters in zip", mutate: func(s *OrderSpecification) { s.ZipCode = "9021O" }, wantErr: true},
		{name: "zero width", mutate: func(s *OrderSpecification) { s.Dimensions.WidthFt = 0 }, wantErr: true},
		{name: "negative height", mutate: func(s *OrderSpecification) { s.Dimensions.HeightFt = -1 }, wantErr: true},
		{name: "zero quantity", mutate: func(s *OrderSpecification) { s.Quantity = 0 }, wantErr: true},
		{name: "missing product type", mutate: func(s *OrderSpecification) { s.ProductType = "" }, wantErr: true},
		{name: "accessories on banner", mutate: func(s *OrderSpecification) { s.Accessories = []string{"weights"} }, wantErr: true},
		{name: "accessories on tent", mutate: func(s *OrderSpecification) {
			s.ProductType = ProductTent
			s.Accessories = []string{"weights"}
		}},
		{name: "customer postal code matches zip", mutate: func(s *OrderSpecification) {
			s.CustomerInfo = &CustomerInfo{Name: "Jane Roe", PostalCode: "90210"}
		}},
		{name: "customer zip+4 matches zip", mutate: func(s *OrderSpecification) {
			s.CustomerInfo = &CustomerInfo{Name: "Jane Roe", PostalCode: "90210-1234"}
		}},
		{name: "customer without postal code", mutate: func(s *OrderSpecification) {
			s.CustomerInfo = &CustomerInfo{Name: "Jane Roe"}
		}},
		{name: "customer postal code differs from zip", mutate: func(s *OrderSpecification) {
			s.CustomerInfo = &CustomerInfo{Name: "Dana Reyes", PostalCode: "94105"}
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validBanner()
			tt.mutate(spec)
			err := spec.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidSpecification))
				assert.Equal(t, KindInvalidSpecification, KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderSpecification_ValidateNil(t *testing.T) {
	var spec *OrderSpecification
	assert.ErrorIs(t, spec.Validate(), ErrInvalidSpecification)
}

func TestOrderSpecification_ValidateDestination(t *testing.T) {
	spec := validBanner()
	assert.ErrorIs(t, spec.ValidateDestination(), ErrInvalidSpecification)

	spec.CustomerInfo = &CustomerInfo{Name: "Jane Roe", City: "Beverly Hills"}
	err := spec.ValidateDestination()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing state, street")

	spec.CustomerInfo = &CustomerInfo{
		Name:   "Jane Roe",
		Phone:  "310-555-0100",
		Street: "1 Rodeo Dr",
		City:   "Beverly Hills",
		State:  "California",
	}
	assert.NoError(t, spec.ValidateDestination(), "postal code comes from the zip code")
}
