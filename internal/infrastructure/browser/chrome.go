package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"github.com/shipquote/backend/internal/domain"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// ChromeOptions configures the headless Chrome processes started by ChromeLauncher
type ChromeOptions struct {
	ExecPath       string
	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

// ChromeLauncher starts one Chrome process per session through chromedp.
type ChromeLauncher struct {
	opts   ChromeOptions
	logger zerolog.Logger
}

// NewChromeLauncher creates a launcher, filling in a realistic desktop
// viewport and user agent when none are configured.
func NewChromeLauncher(opts ChromeOptions, logger zerolog.Logger) *ChromeLauncher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1366
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 900
	}
	if opts.ExecPath == "" {
		opts.ExecPath = detectChromePath()
	}
	return &ChromeLauncher{opts: opts, logger: logger.With().Str("component", "chrome").Logger()}
}

// detectChromePath looks for a Chrome/Chromium binary. An empty result lets
// chromedp fall back to its own lookup.
func detectChromePath() string {
	if chromePath := os.Getenv("CHROME_PATH"); chromePath != "" {
		if _, err := os.Stat(chromePath); err == nil {
			return chromePath
		}
	}

	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Launch starts a browser and opens its first tab. ctx only bounds startup;
// the browser lives until Conn.Close.
func (l *ChromeLauncher) Launch(ctx context.Context) (Conn, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox, // Required for running in Docker/containers
		chromedp.UserAgent(l.opts.UserAgent),
		chromedp.WindowSize(l.opts.ViewportWidth, l.opts.ViewportHeight),
	)
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	if !l.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			l.logger.Debug().Msgf(format, args...)
		}),
	)

	// The first Run allocates the browser and must use the tab context itself,
	// so startup is raced against ctx instead of deriving from it.
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(tab,
			chromedp.EmulateViewport(int64(l.opts.ViewportWidth), int64(l.opts.ViewportHeight)),
		)
	}()

	select {
	case err := <-started:
		if err != nil {
			tabCancel()
			allocCancel()
			return nil, fmt.Errorf("%w: start chrome: %v", domain.ErrSessionUnavailable, err)
		}
	case <-ctx.Done():
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: start chrome: %w", domain.ErrTimeout, ctx.Err())
	}

	conn := &chromeConn{tab: tab, tabCancel: tabCancel, allocCancel: allocCancel}
	conn.page = &chromePage{tab: tab}
	l.logger.Info().Int("pid", conn.PID()).Msg("Chrome started")
	return conn, nil
}

type chromeConn struct {
	tab         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	page        *chromePage
}

func (c *chromeConn) Page() Page { return c.page }

func (c *chromeConn) PID() int {
	cctx := chromedp.FromContext(c.tab)
	if cctx == nil || cctx.Browser == nil {
		return 0
	}
	if proc := cctx.Browser.Process(); proc != nil {
		return proc.Pid
	}
	return 0
}

func (c *chromeConn) Alive(ctx context.Context) error {
	if err := c.tab.Err(); err != nil {
		return fmt.Errorf("%w: tab closed: %v", domain.ErrSessionUnavailable, err)
	}
	var ready string
	if err := c.page.run(ctx, chromedp.Evaluate(`document.readyState`, &ready)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSessionUnavailable, err)
	}
	return nil
}

func (c *chromeConn) Close() error {
	err := chromedp.Cancel(c.tab)
	c.tabCancel()
	c.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// chromePage implements Page on a chromedp tab. Each call runs on a child of
// the tab context that is cancelled together with the caller's ctx, so an
// aborted attempt never closes the tab itself.
type chromePage struct {
	tab context.Context
}

func (p *chromePage) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.tab)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		parent := cancel
		cancel = func() { cancelDeadline(); parent() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() { stop(); cancel() }
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := p.scope(ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return err
}

func queryOptions(sel Selector, all bool) (string, []chromedp.QueryOption) {
	q, isXPath := sel.Compile()
	switch {
	case isXPath:
		return q, []chromedp.QueryOption{chromedp.BySearch}
	case all:
		return q, []chromedp.QueryOption{chromedp.ByQueryAll}
	default:
		return q, []chromedp.QueryOption{chromedp.ByQuery}
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (p *chromePage) WaitVisible(ctx context.Context, sel Selector) error {
	q, opts := queryOptions(sel, false)
	return p.run(ctx, chromedp.WaitVisible(q, opts...))
}

func (p *chromePage) Count(ctx context.Context, sel Selector) (int, error) {
	q, opts := queryOptions(sel, true)
	var nodes []*cdp.Node
	err := p.run(ctx, chromedp.Nodes(q, &nodes, append(opts, chromedp.AtLeast(0))...))
	return len(nodes), err
}

func (p *chromePage) Click(ctx context.Context, sel Selector) error {
	q, opts := queryOptions(sel, false)
	return p.run(ctx, chromedp.Click(q, append(opts, chromedp.NodeVisible)...))
}

func (p *chromePage) ClickNth(ctx context.Context, sel Selector, n int) error {
	q, opts := queryOptions(sel, true)
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(q, &nodes, append(opts, chromedp.AtLeast(0))...)); err != nil {
		return err
	}
	if n < 0 || n >= len(nodes) {
		return fmt.Errorf("%w: %s has %d matches, wanted index %d", domain.ErrElementNotFound, sel, len(nodes), n)
	}
	return p.run(ctx, chromedp.MouseClickNode(nodes[n]))
}

func (p *chromePage) Fill(ctx context.Context, sel Selector, value string) error {
	q, opts := queryOptions(sel, false)
	return p.run(ctx,
		chromedp.SetValue(q, "", opts...),
		chromedp.SendKeys(q, value, opts...),
		chromedp.Blur(q, opts...),
	)
}

func (p *chromePage) Value(ctx context.Context, sel Selector) (string, error) {
	q, opts := queryOptions(sel, false)
	var v string
	err := p.run(ctx, chromedp.Value(q, &v, opts...))
	return v, err
}

func (p *chromePage) SetSelectValue(ctx context.Context, sel Selector, value string) error {
	v, _ := json.Marshal(value)
	var ok bool
	script := elementsScript(sel, fmt.Sprintf(`var s = els[0];
		if (!s) return false;
		s.value = %s;
		s.dispatchEvent(new Event('input', {bubbles: true}));
		s.dispatchEvent(new Event('change', {bubbles: true}));
		return s.value === %s;`, v, v))
	if err := p.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s did not accept %q", domain.ErrValueRejected, sel, value)
	}
	return nil
}

func (p *chromePage) Options(ctx context.Context, sel Selector) ([]Option, error) {
	var options []Option
	script := elementsScript(sel, `var s = els[0];
		if (!s || !s.options) return [];
		return Array.from(s.options).map(function(o) {
			return {value: o.value, label: (o.text || '').trim()};
		});`)
	err := p.run(ctx, chromedp.Evaluate(script, &options))
	return options, err
}

func (p *chromePage) Texts(ctx context.Context, sel Selector) ([]string, error) {
	var texts []string
	script := elementsScript(sel, `return els.map(function(e) {
			return (e.innerText || e.textContent || '').trim();
		});`)
	err := p.run(ctx, chromedp.Evaluate(script, &texts))
	return texts, err
}

func (p *chromePage) HTML(ctx context.Context, sel Selector) (string, error) {
	q, opts := queryOptions(sel, false)
	var html string
	err := p.run(ctx, chromedp.OuterHTML(q, &html, opts...))
	return html, err
}

const resolveAllJS = `function(q, isXPath) {
	if (isXPath) {
		var r = document.evaluate(q, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		var out = [];
		for (var i = 0; i < r.snapshotLength; i++) out.push(r.snapshotItem(i));
		return out;
	}
	return Array.from(document.querySelectorAll(q));
}`

// elementsScript wraps body in a function that receives the matches of sel as els
func elementsScript(sel Selector, body string) string {
	q, isXPath := sel.Compile()
	quoted, _ := json.Marshal(q)
	return fmt.Sprintf("(function() { var els = (%s)(%s, %t); %s })()", resolveAllJS, quoted, isXPath, body)
}
