package b2sign_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/browser"
	"github.com/shipquote/backend/internal/infrastructure/browser/browsertest"
	"github.com/shipquote/backend/internal/infrastructure/cache"
	"github.com/shipquote/backend/internal/infrastructure/formfill"
	"github.com/shipquote/backend/internal/infrastructure/partner"
	"github.com/shipquote/backend/internal/infrastructure/partner/b2sign"
	"github.com/shipquote/backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ratesPanel = `<div id="shipping-rates" class="shipping-rates">
	<div class="rate-row"><span class="method-title">UPS Ground</span><span class="price">$14.04</span><span class="delivery-date">3-5 business days</span></div>
	<div class="rate-row"><span class="method-title">UPS 2nd Day Air</span><span class="price">$32.75</span></div>
	<div class="rate-row"><span class="method-title">UPS Next Day Air</span><span class="price">$61.20</span></div>
</div>`

var (
	selEstimateMode = browser.CSS("input[value='estimate'] + label")
	selEstimateZip  = browser.CSS("#estimate_postcode")
	selEstimateGo   = browser.CSS("#estimate-shipping")
	selBlindShip    = browser.CSS("input[value='blind_ship'] + label")
)

// storefront fakes the B2Sign login and banner pages. The product page
// estimator renders rates once a zip code is submitted.
func storefront() *browsertest.FakePage {
	page := browsertest.NewFakePage()
	page.Routes[b2sign.BaseURL+"/"] = func(p *browsertest.FakePage) {
		p.Set(browser.CSS("a[href*='customer/account/login']"), &browsertest.Element{OnClick: func(p *browsertest.FakePage) {
			p.SetURL(b2sign.BaseURL + "/customer/account/login/")
			p.Set(browser.CSS("#email"), &browsertest.Element{})
			p.Set(browser.CSS("#pass"), &browsertest.Element{})
			p.Set(browser.CSS("#send2"), &browsertest.Element{OnClick: func(p *browsertest.FakePage) {
				p.SetURL(b2sign.BaseURL + "/customer/account/")
				p.Set(browser.CSS(".customer-welcome"), &browsertest.Element{})
			}})
		}})
	}
	page.Routes[b2sign.BaseURL+"/13oz-vinyl-banner.html"] = func(p *browsertest.FakePage) {
		for _, name := range []string{"width_ft", "width_in", "height_ft", "height_in", "job_name"} {
			p.Set(browser.CSS("input[name='"+name+"']"), &browsertest.Element{})
		}
		p.Set(browser.CSS("#qty"), &browsertest.Element{})
		p.Set(browser.Text("1 Side", "label"), &browsertest.Element{})
		p.Set(browser.Text("2 Sides", "label"), &browsertest.Element{})
		p.Set(selBlindShip, &browsertest.Element{})
		p.Set(selEstimateMode, &browsertest.Element{OnClick: func(p *browsertest.FakePage) {
			p.Set(selEstimateZip, &browsertest.Element{})
			p.Set(selEstimateGo, &browsertest.Element{OnClick: func(p *browsertest.FakePage) {
				p.Set(browser.CSS("#shipping-rates"), &browsertest.Element{HTML: ratesPanel})
				p.Set(browser.CSS("#shipping-rates tr .price"), &browsertest.Element{Matches: 3})
			}})
		}})
	}
	return page
}

func TestBannerQuoteWithZipOnly(t *testing.T) {
	launcher := &browsertest.FakeLauncher{NewPage: storefront}
	p, err := partner.New(b2sign.Definition(), partner.Settings{
		Username: "ops@example.com",
		Password: "secret",
		Pool:     browser.PoolConfig{MaxSize: 1, LoginTimeout: time.Second},
		Machine: formfill.Config{
			CandidateTimeout: 20 * time.Millisecond,
			ResolveAttempts:  1,
			ResultsTimeout:   time.Second,
			PollInterval:     5 * time.Millisecond,
		},
	}, launcher, zerolog.Nop())
	require.NoError(t, err)

	registry := partner.NewRegistry()
	require.NoError(t, registry.Register(p))
	defer registry.Close()

	service := usecase.NewQuoteService(cache.NewMemoryCache(), registry, usecase.QuoteServiceConfig{
		CacheTTL:       time.Minute,
		AttemptTimeout: 5 * time.Second,
	}, zerolog.Nop())

	spec := &domain.OrderSpecification{
		ProductType:  domain.ProductBanner,
		Dimensions:   domain.Dimensions{WidthFt: 3, HeightFt: 6},
		Quantity:     1,
		PrintOptions: map[string]string{"sides": "double"},
		ZipCode:      "90210",
	}
	require.NoError(t, p.Validate(spec), "zip-only quotes need no customer address")

	result := service.GetQuote(context.Background(), spec, b2sign.ID)
	require.True(t, result.Success, "errors: %+v", result.Errors)
	require.NotEmpty(t, result.ShippingOptions)

	names := make([]string, 0, len(result.ShippingOptions))
	for _, o := range result.ShippingOptions {
		assert.False(t, o.Cost.IsNegative(), o.Name)
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"UPS Ground", "UPS 2nd Day Air", "UPS Next Day Air"}, names, "vendor display order")

	page := launcher.Conns()[0].FakePage()
	assert.Equal(t, "90210", page.Element(selEstimateZip).Value)
	assert.Equal(t, "3", page.Element(browser.CSS("input[name='width_ft']")).Value)
	assert.Equal(t, "6", page.Element(browser.CSS("input[name='height_ft']")).Value)
	assert.True(t, page.Called("click "+browser.Text("2 Sides", "label").String()))
	assert.False(t, page.Called("click "+selBlindShip.String()), "drop-ship editor is for orders with an address")
}
