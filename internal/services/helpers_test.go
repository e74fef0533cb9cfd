package services

import (
	"context"
	"sync"
	"time"

	models "github.com/glkeru/projxchange/internal/models"
)

type testSession struct {
	mu   sync.Mutex
	auth bool
	user string
}

func newTestSession() *testSession {
	return &testSession{auth: true, user: "user-1"}
}

func (s *testSession) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

func (s *testSession) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.auth {
		return ""
	}
	return s.user
}

func (s *testSession) Token() string { return "tok" }

func (s *testSession) setAuth(auth bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = auth
}

// fakeGateway ведет счет кредитов как сервер
type fakeGateway struct {
	mu            sync.Mutex
	credits       int
	used          int
	fetchCalls    int
	consumeCalls  int
	referralCalls int
	wishlist      []string
	views         []view

	fetch       func(call int) (*models.CreditBalance, error)
	holdConsume func()
	holdRefs    func()
	consumeErr  error
	referrals   []models.Referral
	referralErr error
}

type view struct {
	project string
	seconds int
}

func (g *fakeGateway) FetchBalance(ctx context.Context) (*models.CreditBalance, error) {
	g.mu.Lock()
	g.fetchCalls++
	call := g.fetchCalls
	fetch := g.fetch
	balance := &models.CreditBalance{AvailableCredits: g.credits, CreditsUsed: g.used}
	g.mu.Unlock()
	if fetch != nil {
		return fetch(call)
	}
	balance.Normalize()
	return balance, nil
}

func (g *fakeGateway) ConsumeCredit(ctx context.Context, projectID string) (*models.ConsumeResult, error) {
	if g.holdConsume != nil {
		g.holdConsume()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.consumeCalls++
	if g.consumeErr != nil {
		return nil, g.consumeErr
	}
	if g.credits <= 0 {
		return nil, models.NewCreditError(models.KindInsufficientCredits, 400, nil)
	}
	g.credits--
	g.used++
	return &models.ConsumeResult{
		Success:          true,
		DownloadURL:      "https://files/" + projectID + ".zip",
		RemainingCredits: g.credits,
	}, nil
}

func (g *fakeGateway) FetchReferralStatus(ctx context.Context) ([]models.Referral, error) {
	if g.holdRefs != nil {
		g.holdRefs()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.referralCalls++
	return g.referrals, g.referralErr
}

func (g *fakeGateway) ReportProjectView(ctx context.Context, projectID string, seconds int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.views = append(g.views, view{projectID, seconds})
}

func (g *fakeGateway) ConfirmWishlist(ctx context.Context, projectID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.wishlist = append(g.wishlist, projectID)
	return nil
}

func (g *fakeGateway) counts() (fetch, consume, referrals int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetchCalls, g.consumeCalls, g.referralCalls
}

func (g *fakeGateway) reported() []view {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]view(nil), g.views...)
}

// fakeClock двигается только вручную
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	f     func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.done
	t.done = true
	return active
}

// Advance сдвигает время и запускает наступившие таймеры
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

// Skew сдвигает время без запуска таймеров
func (c *fakeClock) Skew(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// gate останавливает вызов, пока тест его не отпустит
type gate struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) hold() {
	g.once.Do(func() { close(g.started) })
	<-g.release
}
