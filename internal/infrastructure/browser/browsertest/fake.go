// Package browsertest provides in-memory doubles of the browser package
// interfaces for driving form automation without Chrome.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/browser"
)

// Element is a fake DOM element. The zero value is a visible, empty element
// matched once.
type Element struct {
	Hidden  bool
	Value   string
	Text    string
	Texts   []string
	HTML    string
	Options []browser.Option
	// Matches overrides the number of elements the selector matches.
	Matches int

	// Normalize rewrites typed input the way a masked field would.
	Normalize func(string) string
	OnClick   func(p *FakePage)
	// OnClickNth receives the index of the clicked match.
	OnClickNth func(p *FakePage, n int)
	// OnChange fires after Fill or SetSelectValue.
	OnChange func(p *FakePage, value string)
}

func (e *Element) count() int {
	if e.Matches > 0 {
		return e.Matches
	}
	if len(e.Texts) > 1 {
		return len(e.Texts)
	}
	return 1
}

// FakePage implements browser.Page over a map of selectors to elements.
// Elements are keyed by Selector.String so tests register them with the
// same constructors the mapping tables use.
type FakePage struct {
	mu       sync.Mutex
	url      string
	elements map[string]*Element
	calls    []string

	// Routes run after Navigate lands on the URL, typically to populate the page.
	Routes map[string]func(p *FakePage)
	// PollInterval is how often WaitVisible re-checks the page.
	PollInterval time.Duration
}

func NewFakePage() *FakePage {
	return &FakePage{
		elements:     make(map[string]*Element),
		Routes:       make(map[string]func(p *FakePage)),
		PollInterval: 2 * time.Millisecond,
	}
}

// Set places el on the page under sel, replacing any previous element
func (p *FakePage) Set(sel browser.Selector, el *Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[sel.String()] = el
	return el
}

// Remove detaches the element matched by sel
func (p *FakePage) Remove(sel browser.Selector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, sel.String())
}

// Element returns the element registered under sel, or nil
func (p *FakePage) Element(sel browser.Selector) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[sel.String()]
}

// SetURL changes the current location without running routes
func (p *FakePage) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// Calls returns the interactions performed so far, in order
func (p *FakePage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Called reports whether any recorded call starts with prefix
func (p *FakePage) Called(prefix string) bool {
	for _, c := range p.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (p *FakePage) record(format string, args ...interface{}) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *FakePage) lookup(sel browser.Selector) (*Element, bool) {
	el, ok := p.elements[sel.String()]
	return el, ok
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return timeoutErr(err)
	}
	p.mu.Lock()
	p.url = url
	p.record("navigate %s", url)
	route := p.Routes[url]
	p.mu.Unlock()

	if route != nil {
		route(p)
	}
	return nil
}

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *FakePage) WaitVisible(ctx context.Context, sel browser.Selector) error {
	for {
		p.mu.Lock()
		el, ok := p.lookup(sel)
		visible := ok && !el.Hidden
		p.mu.Unlock()
		if visible {
			return nil
		}

		select {
		case <-ctx.Done():
			return timeoutErr(ctx.Err())
		case <-time.After(p.PollInterval):
		}
	}
}

func (p *FakePage) Count(ctx context.Context, sel browser.Selector) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.lookup(sel)
	if !ok {
		return 0, nil
	}
	return el.count(), nil
}

func (p *FakePage) Click(ctx context.Context, sel browser.Selector) error {
	p.mu.Lock()
	el, ok := p.lookup(sel)
	if !ok || el.Hidden {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrElementNotFound, sel)
	}
	p.record("click %s", sel)
	onClick := el.OnClick
	p.mu.Unlock()

	if onClick != nil {
		onClick(p)
	}
	return nil
}

func (p *FakePage) ClickNth(ctx context.Context, sel browser.Selector, n int) error {
	p.mu.Lock()
	el, ok := p.lookup(sel)
	if !ok || n < 0 || n >= el.count() {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s[%d]", domain.ErrElementNotFound, sel, n)
	}
	p.record("click %s[%d]", sel, n)
	onClick := el.OnClickNth
	p.mu.Unlock()

	if onClick != nil {
		onClick(p, n)
	}
	return nil
}

func (p *FakePage) Fill(ctx context.Context, sel browser.Selector, value string) error {
	p.mu.Lock()
	el, ok := p.lookup(sel)
	if !ok || el.Hidden {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrElementNotFound, sel)
	}
	if el.Normalize != nil {
		value = el.Normalize(value)
	}
	el.Value = value
	p.record("fill %s=%s", sel, value)
	onChange := el.OnChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(p, value)
	}
	return nil
}

func (p *FakePage) Value(ctx context.Context, sel browser.Selector) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.lookup(sel)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrElementNotFound, sel)
	}
	return el.Value, nil
}

func (p *FakePage) SetSelectValue(ctx context.Context, sel browser.Selector, value string) error {
	p.mu.Lock()
	el, ok := p.lookup(sel)
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrElementNotFound, sel)
	}
	found := false
	for _, o := range el.Options {
		if o.Value == value {
			found = true
			break
		}
	}
	if !found {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s has no option %q", domain.ErrValueRejected, sel, value)
	}
	el.Value = value
	p.record("select %s=%s", sel, value)
	onChange := el.OnChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(p, value)
	}
	return nil
}

func (p *FakePage) Options(ctx context.Context, sel browser.Selector) ([]browser.Option, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.lookup(sel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrElementNotFound, sel)
	}
	return append([]browser.Option(nil), el.Options...), nil
}

func (p *FakePage) Texts(ctx context.Context, sel browser.Selector) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.lookup(sel)
	if !ok {
		return []string{}, nil
	}
	if len(el.Texts) > 0 {
		return append([]string(nil), el.Texts...), nil
	}
	return []string{el.Text}, nil
}

func (p *FakePage) HTML(ctx context.Context, sel browser.Selector) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.lookup(sel)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrElementNotFound, sel)
	}
	return el.HTML, nil
}

func timeoutErr(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
}

// FakeConn is a browser.Conn around a FakePage
type FakeConn struct {
	page   *FakePage
	pid    int
	dead   atomic.Bool
	closed atomic.Bool
}

func NewFakeConn(page *FakePage, pid int) *FakeConn {
	return &FakeConn{page: page, pid: pid}
}

func (c *FakeConn) Page() browser.Page { return c.page }
func (c *FakeConn) FakePage() *FakePage { return c.page }
func (c *FakeConn) PID() int { return c.pid }

// Kill makes subsequent Alive checks fail, as if the tab crashed
func (c *FakeConn) Kill() { c.dead.Store(true) }

func (c *FakeConn) Closed() bool { return c.closed.Load() }

func (c *FakeConn) Alive(ctx context.Context) error {
	if c.dead.Load() || c.closed.Load() {
		return fmt.Errorf("%w: tab gone", domain.ErrSessionUnavailable)
	}
	return nil
}

func (c *FakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// FakeLauncher hands out FakeConns built by NewPage
type FakeLauncher struct {
	mu sync.Mutex
	// NewPage builds the page of each launched browser. Defaults to an empty page.
	NewPage func() *FakePage
	// FailLaunches makes the next n launches fail.
	FailLaunches int
	conns        []*FakeConn
}

func (l *FakeLauncher) Launch(ctx context.Context) (browser.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, timeoutErr(err)
	}
	if l.FailLaunches > 0 {
		l.FailLaunches--
		return nil, fmt.Errorf("%w: chrome exited during startup", domain.ErrSessionUnavailable)
	}

	page := NewFakePage()
	if l.NewPage != nil {
		page = l.NewPage()
	}
	conn := NewFakeConn(page, 1000+len(l.conns))
	l.conns = append(l.conns, conn)
	return conn, nil
}

// Conns returns every connection launched so far
func (l *FakeLauncher) Conns() []*FakeConn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakeConn(nil), l.conns...)
}
