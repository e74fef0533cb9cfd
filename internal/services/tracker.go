package services

import (
	"context"
	"sync"
	"time"

	interf "github.com/glkeru/projxchange/internal/interfaces"
	models "github.com/glkeru/projxchange/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultQualifyingView = 60 * time.Second
	reportTimeout         = 10 * time.Second
)

type Timer interface {
	Stop() bool
}

// Clock подменяется в тестах
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func SystemClock() Clock { return systemClock{} }

type viewSession struct {
	projectID string
	start     time.Time
	reported  bool
	timer     Timer
}

// Tracker - учет времени на странице проекта.
// За одну сессию просмотра отправляется не больше одного отчета, и только после порога.
type Tracker struct {
	mu        sync.Mutex
	wg        sync.WaitGroup
	gw        interf.Gateway
	session   interf.Session
	events    interf.EventPublisher
	clock     Clock
	threshold time.Duration
	current   *viewSession
	logger    *zap.Logger
}

func NewTracker(gw interf.Gateway, session interf.Session, events interf.EventPublisher, clock Clock, threshold time.Duration, logger *zap.Logger) *Tracker {
	if clock == nil {
		clock = SystemClock()
	}
	if threshold <= 0 {
		threshold = DefaultQualifyingView
	}
	return &Tracker{
		gw:        gw,
		session:   session,
		events:    events,
		clock:     clock,
		threshold: threshold,
		logger:    logger,
	}
}

// Track начинает сессию просмотра; предыдущая закрывается
func (t *Tracker) Track(projectID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil && t.current.projectID == projectID {
		return
	}
	t.stopLocked()

	vs := &viewSession{projectID: projectID, start: t.clock.Now()}
	t.current = vs
	vs.timer = t.clock.AfterFunc(t.threshold, func() { t.fire(vs) })
}

// Stop закрывает текущую сессию (уход со страницы)
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Current - проект текущей сессии
func (t *Tracker) Current() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return "", false
	}
	return t.current.projectID, true
}

// Wait ждет отправки всех отчетов
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) fire(vs *viewSession) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != vs || vs.reported {
		return
	}
	t.reportLocked(vs)
}

func (t *Tracker) stopLocked() {
	vs := t.current
	if vs == nil {
		return
	}
	t.current = nil
	if vs.timer != nil {
		vs.timer.Stop()
	}
	// таймер мог не успеть сработать
	if !vs.reported && t.clock.Now().Sub(vs.start) >= t.threshold {
		t.reportLocked(vs)
	}
}

func (t *Tracker) reportLocked(vs *viewSession) {
	vs.reported = true
	seconds := int(t.clock.Now().Sub(vs.start) / time.Second)
	user := t.session.UserID()
	t.wg.Add(1)
	go t.report(user, vs.projectID, seconds)
}

func (t *Tracker) report(user string, projectID string, seconds int) {
	defer t.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	t.gw.ReportProjectView(ctx, projectID, seconds)

	if t.events == nil {
		return
	}
	event := models.NewEntitlementEvent(models.EventViewQualified, user, projectID)
	event.Signal = models.SignalQualifyingView
	event.Seconds = seconds
	err := t.events.Publish(ctx, event)
	if err != nil {
		t.logger.Warn("Publish event",
			zap.String("service", "Tracker"),
			zap.String("project", projectID),
			zap.Error(err),
		)
	}
}
