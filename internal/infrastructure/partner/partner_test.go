package partner_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/browser"
	"github.com/shipquote/backend/internal/infrastructure/browser/browsertest"
	"github.com/shipquote/backend/internal/infrastructure/extract"
	"github.com/shipquote/backend/internal/infrastructure/formfill"
	"github.com/shipquote/backend/internal/infrastructure/partner"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	homeURL   = "https://vendor.test/"
	loginURL  = "https://vendor.test/login"
	orderURL  = "https://vendor.test/order/banner"
	goodPass  = "hunter2"
	ratesHTML = `<ul><li>Ground - $12.50</li><li>Next Day Air - $48.00</li></ul>`
)

var (
	selSignIn  = browser.Text("Sign In", "a")
	selUser    = browser.CSS("#user")
	selPass    = browser.CSS("#pass")
	selLogin   = browser.CSS("#login")
	selAccount = browser.CSS(".account-menu")
	selWidth   = browser.CSS("#width")
	selHeight  = browser.CSS("#height")
	selQty     = browser.CSS("#qty")
	selPickup  = browser.CSS("#ship-pickup")
	selRates   = browser.CSS("#rates")
	selRows    = browser.CSS("#rates li")
)

func testDefinition(requireDestination bool) partner.Definition {
	table := &formfill.Table{
		ProductType: domain.ProductBanner,
		OrderURL:    orderURL,
		Dimensions: []formfill.FieldMapping{
			{Field: "width", Candidates: []browser.Selector{selWidth}, Transform: formfill.TotalInches},
			{Field: "height", Candidates: []browser.Selector{selHeight}, Transform: formfill.TotalInches},
		},
		JobDetails: []formfill.FieldMapping{
			{Field: formfill.FieldQuantity, Candidates: []browser.Selector{selQty}, Transform: formfill.Integer},
		},
		ShippingMode: formfill.ShippingMode{
			Field: formfill.FieldMapping{
				Field: formfill.FieldShippingMode, Widget: formfill.WidgetButton, Candidates: []browser.Selector{selPickup},
			},
			RequiresDestination: requireDestination,
		},
		ResultsPanel: []browser.Selector{selRates},
		ResultRows:   []browser.Selector{selRows},
	}
	if requireDestination {
		table.Destination = &formfill.Destination{
			EditorTrigger: formfill.FieldMapping{Field: "address-editor", Widget: formfill.WidgetButton, Candidates: []browser.Selector{browser.CSS("#edit")}},
			Submit:        formfill.FieldMapping{Field: formfill.FieldSubmit, Widget: formfill.WidgetButton, Candidates: []browser.Selector{browser.CSS("#save")}},
		}
	}

	return partner.Definition{
		ID: "vendor",
		Login: partner.LoginMapping{
			HomeURL:      homeURL,
			SignIn:       []browser.Selector{selSignIn},
			Username:     []browser.Selector{selUser},
			Password:     []browser.Selector{selPass},
			Submit:       []browser.Selector{selLogin},
			LoggedIn:     []browser.Selector{selAccount},
			LoginMarkers: []string{"/login"},
		},
		Catalog: formfill.NewCatalog("vendor", table),
		Results: extract.Rules{Row: "li"},
	}
}

// vendorSite builds a storefront whose login only accepts goodPass and
// whose rates render once a shipping mode is picked.
func vendorSite(rates string) func() *browsertest.FakePage {
	return expiringVendorSite(rates, new(atomic.Bool))
}

// expiringVendorSite is vendorSite with a server-side session that can be
// expired. While expired, every page redirects to the login form until the
// user signs in again.
func expiringVendorSite(rates string, expired *atomic.Bool) func() *browsertest.FakePage {
	redirectToLogin := func(p *browsertest.FakePage) {
		p.SetURL(loginURL + "?referer=%2F")
		p.Remove(selAccount)
	}
	return func() *browsertest.FakePage {
		page := browsertest.NewFakePage()
		page.Routes[homeURL] = func(p *browsertest.FakePage) {
			if expired.Load() {
				redirectToLogin(p)
			}
			p.Set(selSignIn, &browsertest.Element{OnClick: func(p *browsertest.FakePage) {
				p.SetURL(loginURL)
				p.Set(selUser, &browsertest.Element{})
				p.Set(selPass, &browsertest.Element{})
				p.Set(selLogin, &browsertest.Element{OnClick: func(p *browsertest.FakePage) {
					if p.Element(selPass).Value == goodPass {
						expired.Store(false)
						p.SetURL("https://vendor.test/account")
						p.Set(selAccount, &browsertest.Element{})
					}
				}})
			}})
		}
		page.Routes[orderURL] = func(p *browsertest.FakePage) {
			if expired.Load() {
				redirectToLogin(p)
				return
			}
			for _, s := range []browser.Selector{selWidth, selHeight, selQty} {
				p.Set(s, &browsertest.Element{})
			}
			p.Set(selPickup, &browsertest.Element{OnClick: func(p *browsertest.FakePage) {
				p.Set(selRates, &browsertest.Element{HTML: rates})
				p.Set(selRows, &browsertest.Element{Matches: 2})
			}})
		}
		return page
	}
}

func countCalls(page *browsertest.FakePage, prefix string) int {
	n := 0
	for _, c := range page.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func testSettings(password string) partner.Settings {
	return partner.Settings{
		Username: "ops@example.com",
		Password: password,
		Pool:     browser.PoolConfig{MaxSize: 1, LoginAttempts: 2, LoginTimeout: 100 * time.Millisecond},
		Machine: formfill.Config{
			CandidateTimeout: 20 * time.Millisecond,
			ResolveAttempts:  1,
			ResultsTimeout:   100 * time.Millisecond,
			PollInterval:     5 * time.Millisecond,
		},
	}
}

func testSpec() *domain.OrderSpecification {
	return &domain.OrderSpecification{
		ProductType: domain.ProductBanner,
		Dimensions:  domain.Dimensions{WidthFt: 3, HeightFt: 6},
		Quantity:    1,
		ZipCode:     "90210",
	}
}

func TestBrowserPartner_QuoteFlow(t *testing.T) {
	launcher := &browsertest.FakeLauncher{NewPage: vendorSite(ratesHTML)}
	p, err := partner.New(testDefinition(false), testSettings(goodPass), launcher, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	session, err := p.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, session.Fill(ctx, testSpec()))
	options, err := session.Extract(ctx)
	require.NoError(t, err)
	session.Release(nil)
	session.Release(nil)

	require.Len(t, options, 2)
	assert.Equal(t, "Ground", options[0].Name)
	assert.Equal(t, domain.ServiceOvernight, options[1].ServiceClass)
	assert.True(t, options[1].Cost.Equal(decimal.NewFromInt(48)), "cost = %s", options[1].Cost)

	page := launcher.Conns()[0].FakePage()
	assert.True(t, page.Called("fill css(\"#pass\")="+goodPass))
	assert.True(t, page.Called("fill css(\"#width\")=36"))
	assert.True(t, p.Alive(ctx))
	assert.Equal(t, browser.PoolStats{Idle: 1, MaxSize: 1}, p.Stats())

	// the idle session is reused without logging in again
	again, err := p.Acquire(ctx)
	require.NoError(t, err)
	again.Release(nil)
	assert.Len(t, launcher.Conns(), 1)
}

func TestBrowserPartner_ExpiredIdleSessionLogsInAgain(t *testing.T) {
	expired := new(atomic.Bool)
	launcher := &browsertest.FakeLauncher{NewPage: expiringVendorSite(ratesHTML, expired)}
	p, err := partner.New(testDefinition(false), testSettings(goodPass), launcher, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	quote := func() ([]domain.ShippingOption, error) {
		session, err := p.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer session.Release(nil)
		if err := session.Fill(ctx, testSpec()); err != nil {
			return nil, err
		}
		return session.Extract(ctx)
	}

	options, err := quote()
	require.NoError(t, err)
	assert.Len(t, options, 2)

	// The vendor drops the session while it sits idle in the pool.
	expired.Store(true)
	options, err = quote()
	require.NoError(t, err, "the lease must sign in again before the form is filled")
	assert.Len(t, options, 2)

	page := launcher.Conns()[0].FakePage()
	assert.Len(t, launcher.Conns(), 1, "the live browser is reused")
	assert.Equal(t, 2, countCalls(page, "fill css(\"#pass\")="+goodPass))
	assert.False(t, expired.Load())
}

func TestBrowserPartner_BadCredentials(t *testing.T) {
	launcher := &browsertest.FakeLauncher{NewPage: vendorSite(ratesHTML)}
	p, err := partner.New(testDefinition(false), testSettings("wrong"), launcher, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSessionUnavailable), "got %v", err)
	assert.False(t, p.Alive(context.Background()))
}

func TestBrowserPartner_NoCredentials(t *testing.T) {
	launcher := &browsertest.FakeLauncher{NewPage: vendorSite(ratesHTML)}
	p, err := partner.New(testDefinition(false), testSettings(""), launcher, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionUnavailable)
}

func TestBrowserPartner_ExtractionEmpty(t *testing.T) {
	launcher := &browsertest.FakeLauncher{NewPage: vendorSite(`<ul><li>Call us for freight pricing</li></ul>`)}
	p, err := partner.New(testDefinition(false), testSettings(goodPass), launcher, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	session, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer session.Release(nil)

	require.NoError(t, session.Fill(ctx, testSpec()))
	_, err = session.Extract(ctx)

	var qerr *domain.QuoteError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, domain.KindExtractionEmpty, qerr.Kind)
	assert.Equal(t, string(partner.StateExtractResults), qerr.State)
}

func TestBrowserPartner_Validate(t *testing.T) {
	launcher := &browsertest.FakeLauncher{}
	p, err := partner.New(testDefinition(true), testSettings(goodPass), launcher, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	spec := testSpec()
	err = p.Validate(spec)
	assert.ErrorIs(t, err, domain.ErrInvalidSpecification, "drop-ship partner needs an address")

	spec.CustomerInfo = &domain.CustomerInfo{
		Name: "Dana Reyes", Street: "9500 Wilshire Blvd", City: "Beverly Hills", State: "CA", PostalCode: "90210",
	}
	assert.NoError(t, p.Validate(spec))

	spec.CustomerInfo.PostalCode = "94105"
	assert.ErrorIs(t, p.Validate(spec), domain.ErrInvalidSpecification, "address must be in the quoted zip code")

	tent := testSpec()
	tent.ProductType = domain.ProductTent
	assert.ErrorIs(t, p.Validate(tent), domain.ErrInvalidSpecification)

	bad := testSpec()
	bad.ZipCode = "9021"
	assert.ErrorIs(t, p.Validate(bad), domain.ErrInvalidSpecification)

	assert.Empty(t, launcher.Conns(), "validation must not start a browser")
}

func TestNew_RejectsIncompleteDefinition(t *testing.T) {
	def := testDefinition(false)
	def.Login.Password = nil
	_, err := partner.New(def, testSettings(goodPass), &browsertest.FakeLauncher{}, zerolog.Nop())
	assert.Error(t, err)

	def = testDefinition(false)
	def.Catalog = formfill.NewCatalog("vendor")
	_, err = partner.New(def, testSettings(goodPass), &browsertest.FakeLauncher{}, zerolog.Nop())
	assert.Error(t, err)
}
