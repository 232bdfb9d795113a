package domain

import "testing"

func fingerprintSpec() *OrderSpecification {
	return &OrderSpecification{
		ProductType:  ProductTent,
		Material:     "Heavy-Duty",
		Dimensions:   Dimensions{WidthFt: 10, HeightFt: 10},
		Quantity:     1,
		PrintOptions: map[string]string{"canopy-print": "full", "sides": "double"},
		Accessories:  []string{"full-wall", "carry-bag"},
		ZipCode:      "90210",
	}
}

func TestFingerprint_IgnoresPresentationDifferences(t *testing.T) {
	base := Fingerprint(fingerprintSpec())
	if len(base) != 64 {
		t.Fatalf("Fingerprint length = %d, want 64 hex chars", len(base))
	}

	tests := []struct {
		name   string
		mutate func(s *OrderSpecification)
	}{
		{"material case", func(s *OrderSpecification) { s.Material = "  heavy-duty " }},
		{"accessory order", func(s *OrderSpecification) { s.Accessories = []string{"carry-bag", "full-wall"} }},
		{"option value case", func(s *OrderSpecification) { s.PrintOptions["sides"] = "Double" }},
		{"sub-inch dimension noise", func(s *OrderSpecification) { s.Dimensions.WidthFt = 10.01 }},
		{"customer info", func(s *OrderSpecification) {
			s.CustomerInfo = &CustomerInfo{Name: "Dana Reyes", PostalCode: "90210"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := fingerprintSpec()
			tt.mutate(spec)
			if got := Fingerprint(spec); got != base {
				t.Errorf("Fingerprint changed after %s", tt.name)
			}
		})
	}
}

func TestFingerprint_DistinguishesPriceRelevantFields(t *testing.T) {
	base := Fingerprint(fingerprintSpec())

	tests := []struct {
		name   string
		mutate func(s *OrderSpecification)
	}{
		{"quantity", func(s *OrderSpecification) { s.Quantity = 2 }},
		{"zip", func(s *OrderSpecification) { s.ZipCode = "10001" }},
		{"width", func(s *OrderSpecification) { s.Dimensions.WidthFt = 20 }},
		{"print option", func(s *OrderSpecification) { s.PrintOptions["canopy-print"] = "valance" }},
		{"accessory", func(s *OrderSpecification) { s.Accessories = []string{"full-wall"} }},
		{"product", func(s *OrderSpecification) { s.ProductType = ProductBanner }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := fingerprintSpec()
			tt.mutate(spec)
			if got := Fingerprint(spec); got == base {
				t.Errorf("Fingerprint did not change after %s", tt.name)
			}
		})
	}
}
