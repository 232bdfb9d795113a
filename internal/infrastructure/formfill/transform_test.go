package formfill

import "testing"

func TestSplitFeetInches(t *testing.T) {
	tests := []struct {
		ft         float64
		wantFeet   int
		wantInches int
	}{
		{3.5, 3, 6},
		{6.0833, 6, 1},
		{2.99, 3, 0}, // 35.88in rounds to 36 and carries
		{4, 4, 0},
		{0.25, 0, 3},
		{10.9583, 10, 11},
	}

	for _, tt := range tests {
		feet, inches := SplitFeetInches(tt.ft)
		if feet != tt.wantFeet || inches != tt.wantInches {
			t.Errorf("SplitFeetInches(%v) = %d ft %d in, want %d ft %d in",
				tt.ft, feet, inches, tt.wantFeet, tt.wantInches)
		}
	}
}

func TestFeetAndInchesParts(t *testing.T) {
	feet, err := FeetPart("6.0833")
	if err != nil || feet != "6" {
		t.Errorf("FeetPart(6.0833) = %q, %v", feet, err)
	}
	inches, err := InchesPart("6.0833")
	if err != nil || inches != "1" {
		t.Errorf("InchesPart(6.0833) = %q, %v", inches, err)
	}

	if _, err := FeetPart("wide"); err == nil {
		t.Error("FeetPart should reject non-numeric input")
	}
	if _, err := InchesPart("-2"); err == nil {
		t.Error("InchesPart should reject negative lengths")
	}
}

func TestValueTransforms(t *testing.T) {
	tests := []struct {
		name string
		fn   Transform
		in   string
		want string
	}{
		{"integer rounds", Integer, "24.6", "25"},
		{"integer keeps whole", Integer, "10", "10"},
		{"upper", Upper, " ca ", "CA"},
		{"identity", Identity, "Matte", "Matte"},
		{"digits", Digits, "(555) 010-2233", "5550102233"},
		{"state code", StateName, "tx", "Texas"},
		{"preset size", FeetByFeet, "10x20", "10' x 20'"},
		{"total inches", TotalInches, "2.5", "30"},
		{"state full name", StateName, "new york", "New York"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := StateName("ZZ"); err == nil {
		t.Error("StateName should reject unknown codes")
	}
	if _, err := Integer("many"); err == nil {
		t.Error("Integer should reject non-numeric input")
	}
}

func TestMatchOption(t *testing.T) {
	labels := []string{"1 Side", "2 Sides", "Matte Finish", "Gloss Laminate"}

	tests := []struct {
		want string
		idx  int
	}{
		{"2 sides", 1},          // exact, case-insensitive
		{"  Matte   Finish", 2}, // whitespace collapsed
		{"gloss", 3},            // substring
		{"2 Sidse", 1},          // fuzzy
		{"Canvas", -1},
		{"", -1},
	}

	for _, tt := range tests {
		if got := matchOption(tt.want, labels); got != tt.idx {
			t.Errorf("matchOption(%q) = %d, want %d", tt.want, got, tt.idx)
		}
	}
}
