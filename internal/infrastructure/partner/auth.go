package partner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/browser"
	"github.com/shipquote/backend/internal/infrastructure/formfill"
)

const stateLogin formfill.State = "Login"

// LoginMapping describes a vendor's sign-in form
type LoginMapping struct {
	HomeURL string
	// SignIn opens the login form when it is not shown on HomeURL.
	SignIn   []browser.Selector
	Username []browser.Selector
	Password []browser.Selector
	Submit   []browser.Selector
	// LoggedIn matches something only signed-in users see, like an account menu.
	LoggedIn []browser.Selector
	// LoginMarkers are URL fragments of the login page.
	LoginMarkers []string
}

func (m LoginMapping) validate() error {
	switch {
	case m.HomeURL == "":
		return fmt.Errorf("login home URL is required")
	case len(m.Username) == 0, len(m.Password) == 0, len(m.Submit) == 0:
		return fmt.Errorf("login form needs username, password and submit selectors")
	}
	return nil
}

// formAuthenticator signs a browser in through the vendor's login form
type formAuthenticator struct {
	login    LoginMapping
	username string
	password string
	cfg      formfill.Config
	logger   zerolog.Logger
}

func (a *formAuthenticator) Login(ctx context.Context, page browser.Page) error {
	if a.username == "" || a.password == "" {
		return fmt.Errorf("%w: no credentials configured", domain.ErrSessionUnavailable)
	}
	if err := page.Navigate(ctx, a.login.HomeURL); err != nil {
		return fmt.Errorf("open %s: %w", a.login.HomeURL, err)
	}

	f := formfill.NewFiller(page, a.cfg, stateLogin, a.logger)
	if len(a.login.SignIn) > 0 {
		err := f.Fill(ctx, formfill.FieldMapping{
			Field: "sign-in", Widget: formfill.WidgetButton, Candidates: a.login.SignIn, Optional: true,
		}, "")
		if err != nil {
			return err
		}
	}

	steps := []struct {
		m     formfill.FieldMapping
		value string
	}{
		{formfill.FieldMapping{Field: "username", Candidates: a.login.Username}, a.username},
		{formfill.FieldMapping{Field: "password", Candidates: a.login.Password, Secret: true}, a.password},
		{formfill.FieldMapping{Field: "login-submit", Widget: formfill.WidgetButton, Candidates: a.login.Submit}, ""},
	}
	for _, step := range steps {
		if err := f.Fill(ctx, step.m, step.value); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	for {
		err := a.Verify(ctx, page)
		if err == nil {
			a.logger.Debug().Str("user", a.username).Msg("Signed in")
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: not signed in after submit: %v", domain.ErrSessionUnavailable, err)
		case <-ticker.C:
		}
	}
}

// Check opens the home page and verifies the vendor still treats the
// session as signed in. Expired sessions redirect to the login page.
func (a *formAuthenticator) Check(ctx context.Context, page browser.Page) error {
	if err := page.Navigate(ctx, a.login.HomeURL); err != nil {
		return fmt.Errorf("open %s: %w", a.login.HomeURL, err)
	}
	return a.Verify(ctx, page)
}

// Verify checks the page is still signed in. It does not navigate.
func (a *formAuthenticator) Verify(ctx context.Context, page browser.Page) error {
	url, err := page.URL(ctx)
	if err != nil {
		return err
	}
	if url == "" || url == "about:blank" {
		return fmt.Errorf("%w: no page loaded", domain.ErrSessionUnavailable)
	}
	lower := strings.ToLower(url)
	for _, marker := range a.login.LoginMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return fmt.Errorf("%w: on login page %s", domain.ErrSessionUnavailable, url)
		}
	}

	if len(a.login.LoggedIn) == 0 {
		return nil
	}
	for _, sel := range a.login.LoggedIn {
		if n, err := page.Count(ctx, sel); err == nil && n > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: account menu not shown", domain.ErrSessionUnavailable)
}
