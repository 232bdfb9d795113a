package formfill

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Transform converts a canonical value into what the partner's control expects
type Transform func(value string) (string, error)

// SplitFeetInches splits decimal feet into whole feet and the nearest whole
// inch, carrying 12 inches into the next foot.
func SplitFeetInches(ft float64) (int, int) {
	total := int(math.Round(ft * 12))
	return total / 12, total % 12
}

func parseFeet(value string) (float64, error) {
	ft, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("not a length in feet: %q", value)
	}
	if ft < 0 || math.IsNaN(ft) || math.IsInf(ft, 0) {
		return 0, fmt.Errorf("length out of range: %q", value)
	}
	return ft, nil
}

// FeetPart keeps the whole feet of a decimal feet value
func FeetPart(value string) (string, error) {
	ft, err := parseFeet(value)
	if err != nil {
		return "", err
	}
	feet, _ := SplitFeetInches(ft)
	return strconv.Itoa(feet), nil
}

// InchesPart keeps the remaining inches of a decimal feet value
func InchesPart(value string) (string, error) {
	ft, err := parseFeet(value)
	if err != nil {
		return "", err
	}
	_, inches := SplitFeetInches(ft)
	return strconv.Itoa(inches), nil
}

// TotalInches converts decimal feet to whole inches for forms sized in inches
func TotalInches(value string) (string, error) {
	ft, err := parseFeet(value)
	if err != nil {
		return "", err
	}
	feet, inches := SplitFeetInches(ft)
	return strconv.Itoa(feet*12 + inches), nil
}

// FeetByFeet renders a "WxH" size in the feet notation preset menus use: 10' x 20'
func FeetByFeet(value string) (string, error) {
	w, h, ok := strings.Cut(strings.ToLower(value), "x")
	if !ok {
		return "", fmt.Errorf("not a WxH size: %q", value)
	}
	if _, err := parseFeet(w); err != nil {
		return "", err
	}
	if _, err := parseFeet(h); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s' x %s'", strings.TrimSpace(w), strings.TrimSpace(h)), nil
}

// Integer rounds a numeric value to a whole number
func Integer(value string) (string, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return "", fmt.Errorf("not a number: %q", value)
	}
	return strconv.Itoa(int(math.Round(f))), nil
}

func Identity(value string) (string, error) { return value, nil }

func Upper(value string) (string, error) { return strings.ToUpper(strings.TrimSpace(value)), nil }

// Digits strips everything but digits, e.g. for masked phone inputs
func Digits(value string) (string, error) {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, value), nil
}

var usStates = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "DC": "District of Columbia",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho", "IL": "Illinois",
	"IN": "Indiana", "IA": "Iowa", "KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana",
	"ME": "Maine", "MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma", "OR": "Oregon",
	"PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina", "SD": "South Dakota",
	"TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont", "VA": "Virginia",
	"WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

// StateName expands a two-letter US state code. Full names pass through.
func StateName(value string) (string, error) {
	v := strings.TrimSpace(value)
	if name, ok := usStates[strings.ToUpper(v)]; ok {
		return name, nil
	}
	for _, name := range usStates {
		if strings.EqualFold(name, v) {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown US state %q", value)
}
