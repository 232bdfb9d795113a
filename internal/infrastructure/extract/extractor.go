package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shipquote/backend/internal/domain"
	"github.com/shopspring/decimal"
)

const monthNames = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`

// Package-level compiled regex patterns
var (
	dollarAmountRegex   = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`)
	plainAmountRegex    = regexp.MustCompile(`\d{1,3}(?:,\d{3})+\.\d+|\d+\.\d+`)
	trailingAmountRegex = regexp.MustCompile(`(?:\s[-–—|]|:)\s*(\d{1,3}(?:,\d{3})+|\d+)\s*$`)
	freeRegex           = regexp.MustCompile(`(?i)\bfree\b`)
	dayRangeRegex       = regexp.MustCompile(`(?i)\b(\d+)\s*(?:-|–|to)\s*(\d+)\s*(?:business\s+|calendar\s+)?days?\b`)
	dayCountRegex       = regexp.MustCompile(`(?i)\b(\d+)\s*(?:business\s+|calendar\s+)?days?\b`)
	ordinalDayRegex     = regexp.MustCompile(`(?i)\b(\d)(?:st|nd|rd|th)\s+day\b`)
	overnightRegex      = regexp.MustCompile(`(?i)overnight|next\s+day|next-day`)
	expeditedRegex      = regexp.MustCompile(`(?i)\bday\b|\bdays\b|express|priority|expedited|rush`)
	whitespaceRegex     = regexp.MustCompile(`\s+`)

	dateRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:mon|tue|wed|thu|fri|sat|sun)[a-z]*,?\s+` + monthNames + `\s+\d{1,2}(?:,\s*\d{4})?`),
		regexp.MustCompile(`(?i)\b` + monthNames + `\s+\d{1,2}(?:,\s*\d{4})?`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`),
	}
	dateLayouts = []string{
		"Monday, January 2, 2006", "Monday, Jan 2, 2006", "Mon, Jan 2, 2006", "Mon, January 2, 2006",
		"Monday, January 2", "Monday, Jan 2", "Mon, Jan 2", "Mon Jan 2", "Monday January 2",
		"January 2, 2006", "Jan 2, 2006", "Jan. 2, 2006", "January 2", "Jan 2", "Jan. 2",
		"1/2/2006", "1/2/06", "1/2",
	}
)

// Default transit days per class when the row states none
var defaultDays = map[domain.ServiceClass]int{
	domain.ServiceStandard:  5,
	domain.ServiceExpedited: 2,
	domain.ServiceOvernight: 1,
}

// Rules locate shipping rows inside a partner's results panel. Label, Price
// and Date are optional sub-selectors within a row; the row text is parsed
// when they are empty or match nothing.
type Rules struct {
	Row   string
	Label string
	Price string
	Date  string
	// Skip lists row texts (case-insensitive substrings) that are headers or notes.
	Skip []string
}

// Extractor turns a rendered results panel into shipping options.
type Extractor struct {
	rules  Rules
	logger zerolog.Logger
	now    func() time.Time
}

func New(rules Rules, logger zerolog.Logger) *Extractor {
	if rules.Row == "" {
		rules.Row = "tr, li, .shipping-option"
	}
	return &Extractor{
		rules:  rules,
		logger: logger.With().Str("component", "extractor").Logger(),
		now:    time.Now,
	}
}

// Parse extracts options from a markup snapshot, preserving display order.
// Rows whose cost cannot be read are dropped; an empty result is not an error.
func (e *Extractor) Parse(html string) ([]domain.ShippingOption, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse results markup: %w", err)
	}

	options := []domain.ShippingOption{}
	doc.Find(e.rules.Row).Each(func(i int, row *goquery.Selection) {
		text := spacedText(row)
		if e.skip(text) {
			return
		}
		if e.rules.Label != "" || e.rules.Price != "" || e.rules.Date != "" {
			text = e.composeRow(row, text)
		}
		if opt, ok := e.parseRow(text); ok {
			options = append(options, opt)
		}
	})
	return options, nil
}

// ParseRows extracts options from raw row texts, e.g. captured from a
// previous session.
func (e *Extractor) ParseRows(rows []string) []domain.ShippingOption {
	options := []domain.ShippingOption{}
	for _, row := range rows {
		text := collapse(row)
		if e.skip(text) {
			continue
		}
		if opt, ok := e.parseRow(text); ok {
			options = append(options, opt)
		}
	}
	return options
}

func (e *Extractor) skip(text string) bool {
	if text == "" {
		return true
	}
	lower := strings.ToLower(text)
	for _, s := range e.rules.Skip {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// composeRow rebuilds a row as "label - price date" from its sub-selectors
func (e *Extractor) composeRow(row *goquery.Selection, fallback string) string {
	find := func(sel string) string {
		if sel == "" {
			return ""
		}
		return spacedText(row.Find(sel).First())
	}
	label, price, date := find(e.rules.Label), find(e.rules.Price), find(e.rules.Date)
	if label == "" || price == "" {
		return fallback
	}
	return collapse(label + " - " + price + " " + date)
}

func (e *Extractor) parseRow(text string) (domain.ShippingOption, bool) {
	cost, loc, ok := ParseCost(text)
	if !ok {
		e.logger.Warn().Str("row", text).Msg("Dropping shipping row with unparseable cost")
		return domain.ShippingOption{}, false
	}

	label := strings.Trim(text[:loc[0]], " -–—:|")
	if label == "" {
		label = strings.Trim(text[loc[1]:], " -–—:|")
	}
	if date := findDate(label); date != "" {
		label = strings.Trim(strings.Replace(label, date, "", 1), " -–—:|,")
	}

	count, hasCount := DayCount(text)
	class := Classify(label, count, hasCount)
	opt := domain.ShippingOption{
		Name:         label,
		ServiceClass: class,
		Cost:         cost,
		DeliveryDate: findDate(text),
	}
	if opt.Name != text {
		opt.Description = text
	}

	switch {
	case hasCount:
		opt.EstimatedDays = count
	case class == domain.ServiceOvernight:
		opt.EstimatedDays = 1
	default:
		if days, ok := e.daysUntil(opt.DeliveryDate); ok {
			opt.EstimatedDays = days
		} else {
			opt.EstimatedDays = defaultDays[class]
		}
	}
	return opt, true
}

// ParseCost finds the price in a row: a $-prefixed amount first, else the
// last decimal number, else a whole number ending the row after a label
// separator, else "free". loc is the span of the amount in text.
func ParseCost(text string) (decimal.Decimal, []int, bool) {
	if m := dollarAmountRegex.FindStringSubmatchIndex(text); m != nil {
		if d, err := decimal.NewFromString(strings.ReplaceAll(text[m[2]:m[3]], ",", "")); err == nil {
			return d, m[:2], true
		}
	}
	if all := plainAmountRegex.FindAllStringIndex(text, -1); len(all) > 0 {
		m := all[len(all)-1]
		if d, err := decimal.NewFromString(strings.ReplaceAll(text[m[0]:m[1]], ",", "")); err == nil {
			return d, m, true
		}
	}
	if m := trailingAmountRegex.FindStringSubmatchIndex(text); m != nil {
		if d, err := decimal.NewFromString(strings.ReplaceAll(text[m[2]:m[3]], ",", "")); err == nil {
			return d, m[2:4], true
		}
	}
	if m := freeRegex.FindStringIndex(text); m != nil {
		return decimal.Zero, m, true
	}
	return decimal.Decimal{}, nil, false
}

// DayCount returns the transit days stated in a row. Ranges yield their upper bound.
func DayCount(text string) (int, bool) {
	if m := dayRangeRegex.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			return n, true
		}
	}
	if m := dayCountRegex.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	if m := ordinalDayRegex.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Classify buckets a service label. Unrecognized labels are standard.
func Classify(label string, days int, hasCount bool) domain.ServiceClass {
	switch {
	case overnightRegex.MatchString(label):
		return domain.ServiceOvernight
	case hasCount && days <= 1:
		return domain.ServiceOvernight
	case expeditedRegex.MatchString(label) && (!hasCount || days <= 3):
		return domain.ServiceExpedited
	default:
		return domain.ServiceStandard
	}
}

func findDate(text string) string {
	for _, re := range dateRegexes {
		if m := re.FindString(text); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// daysUntil converts a delivery date to whole days from now. Dates without
// a year are assumed to be the next occurrence.
func (e *Extractor) daysUntil(date string) (int, bool) {
	if date == "" {
		return 0, false
	}
	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	clean := collapse(strings.ReplaceAll(date, "Sept", "Sep"))

	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, clean, now.Location())
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = t.AddDate(today.Year(), 0, 0)
			if t.Before(today) {
				t = t.AddDate(1, 0, 0)
			}
		}
		days := int(math.Round(t.Sub(today).Hours() / 24))
		if days < 0 {
			return 0, false
		}
		return days, true
	}
	return 0, false
}

// spacedText returns the text of a selection with a space between
// adjacent elements, so "<td>Ground</td><td>$9.10</td>" reads "Ground $9.10".
func spacedText(s *goquery.Selection) string {
	var parts []string
	var walk func(sel *goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(i int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				parts = append(parts, c.Text())
			case "script", "style":
			default:
				walk(c)
			}
		})
	}
	s.Each(func(i int, sel *goquery.Selection) { walk(sel) })
	return collapse(strings.Join(parts, " "))
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
