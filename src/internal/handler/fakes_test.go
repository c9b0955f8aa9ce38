package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/coingecko"
	"github.com/admi-n/auditbot/src/internal/explorer"
	"github.com/admi-n/auditbot/src/internal/publish"
	"github.com/admi-n/auditbot/src/internal/report"
)

const findingsReport = "### 🚨 Critical\n1. Reentrancy\n2. Unchecked call\n### 🔴 High\nNone.\n### 🟠 Medium\nNone.\n### 🟢 Low\n1. Naming\n"

var errBoom = errors.New("boom")

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

type fakeGenerator struct {
	body    string
	err     error
	sources []string
}

func (g *fakeGenerator) Generate(_ context.Context, src string) (string, error) {
	g.sources = append(g.sources, src)
	if g.err != nil {
		return "", g.err
	}
	return g.body, nil
}

type fakeReporter struct {
	err     error
	reports []*report.Report
}

func (r *fakeReporter) Publish(_ context.Context, rep *report.Report) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.reports = append(r.reports, rep)
	link := "https://pastebin.com/raw/" + rep.Address[:8]
	rep.Link = link
	return link, nil
}

type sentMessage struct {
	Text    string
	ReplyTo string
}

type fakePublisher struct {
	err  error
	sent []sentMessage
}

func (p *fakePublisher) Post(_ context.Context, text string) (string, error) {
	return p.Reply(context.Background(), text, "")
}

func (p *fakePublisher) Reply(_ context.Context, text, targetID string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.sent = append(p.sent, sentMessage{Text: text, ReplyTo: targetID})
	return "post-" + targetID, nil
}

type fakeResolver struct {
	sources map[string]explorer.Resolution // key: address 或 platform/address
	calls   []string
}

func (r *fakeResolver) Resolve(_ context.Context, address string) (explorer.Resolution, error) {
	r.calls = append(r.calls, address)
	if res, ok := r.sources[address]; ok {
		return res, nil
	}
	return explorer.Resolution{}, explorer.ErrContractNotFound
}

func (r *fakeResolver) ResolveOn(_ context.Context, platform, address string) (explorer.Resolution, error) {
	r.calls = append(r.calls, platform+"/"+address)
	if res, ok := r.sources[platform+"/"+address]; ok {
		return res, nil
	}
	return explorer.Resolution{}, explorer.ErrContractNotFound
}

type fakeMentions struct {
	tweets  []publish.Tweet
	users   map[string]publish.User
	queries []string
	since   []time.Time
}

func (m *fakeMentions) SearchRecent(_ context.Context, query string, since time.Time) ([]publish.Tweet, error) {
	m.queries = append(m.queries, query)
	m.since = append(m.since, since)
	return m.tweets, nil
}

func (m *fakeMentions) User(_ context.Context, id string) (publish.User, error) {
	u, ok := m.users[id]
	if !ok {
		return publish.User{}, errBoom
	}
	return u, nil
}

type fakeClassifier struct{ reason string }

func (c fakeClassifier) Classify(context.Context, string) string { return c.reason }

type fakeTrending struct {
	coins   []coingecko.Coin
	details map[string]internal.CoinDetails
}

func (f *fakeTrending) Trending(context.Context) ([]coingecko.Coin, error) {
	return f.coins, nil
}

func (f *fakeTrending) Details(_ context.Context, id string) (internal.CoinDetails, error) {
	d, ok := f.details[id]
	if !ok {
		return internal.CoinDetails{}, errBoom
	}
	return d, nil
}

type failingLedger struct {
	keys map[string]bool
}

func (l *failingLedger) Load(context.Context) error { return nil }
func (l *failingLedger) Has(key string) bool        { return l.keys[key] }
func (l *failingLedger) Record(context.Context, string) error {
	return errBoom
}
func (l *failingLedger) Len() int     { return len(l.keys) }
func (l *failingLedger) Close() error { return nil }
