package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
)

var multipleSpacesRegex = regexp.MustCompile(`\s+`)

// normalizeToken lower-cases s and collapses whitespace
func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return multipleSpacesRegex.ReplaceAllString(s, " ")
}

func inches(ft float64) int {
	return int(math.Round(ft * 12))
}

// Fingerprint hashes the price-relevant subset of a specification. Two
// specifications that would produce the same vendor quote share a
// fingerprint. Customer details are excluded.
func Fingerprint(spec *OrderSpecification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "type=%s\n", normalizeToken(string(spec.ProductType)))
	fmt.Fprintf(&b, "material=%s\n", normalizeToken(spec.Material))
	fmt.Fprintf(&b, "size=%dx%d\n", inches(spec.Dimensions.WidthFt), inches(spec.Dimensions.HeightFt))
	fmt.Fprintf(&b, "qty=%d\n", spec.Quantity)

	options := make([]string, 0, len(spec.PrintOptions))
	for k, v := range spec.PrintOptions {
		options = append(options, normalizeToken(k)+"="+normalizeToken(v))
	}
	slices.Sort(options)
	for _, o := range options {
		fmt.Fprintf(&b, "option:%s\n", o)
	}

	accessories := make([]string, len(spec.Accessories))
	for i, a := range spec.Accessories {
		accessories[i] = normalizeToken(a)
	}
	slices.Sort(accessories)
	for _, a := range accessories {
		fmt.Fprintf(&b, "accessory:%s\n", a)
	}

	fmt.Fprintf(&b, "zip=%s\n", strings.TrimSpace(spec.ZipCode))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
