package services

import (
	"context"
	"errors"
	"testing"

	interf "github.com/glkeru/projxchange/internal/interfaces"
	models "github.com/glkeru/projxchange/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func newTestDownloader(t *testing.T, gw *fakeGateway, session *testSession, saver *MockFileSaver, events *MockEventPublisher) *Downloader {
	t.Helper()
	logger := zap.NewNop()
	store := NewBalanceStore(gw, session, nil, logger)
	referrals := NewReferralStore(gw, session, logger)
	coordinator := NewCoordinator(store, referrals, logger)
	require.NoError(t, store.Load(context.Background()))

	// nil-указатель в интерфейсе не равен nil
	var fs interf.FileSaver
	if saver != nil {
		fs = saver
	}
	var ep interf.EventPublisher
	if events != nil {
		ep = events
	}
	return NewDownloader(session, store, fs, coordinator, ep, logger)
}

func TestAttemptRequiresLogin(t *testing.T) {
	cont := gomock.NewController(t)
	saver := NewMockFileSaver(cont)
	session := newTestSession()
	session.setAuth(false)
	gw := &fakeGateway{credits: 3}

	d := newTestDownloader(t, gw, session, saver, nil)
	outcome, err := d.Attempt(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Equal(t, OutcomeAuthRequired, outcome.Kind)

	_, consume, _ := gw.counts()
	require.Zero(t, consume)
}

func TestAttemptWithoutCreditsSkipsNetwork(t *testing.T) {
	cont := gomock.NewController(t)
	saver := NewMockFileSaver(cont)
	gw := &fakeGateway{credits: 0}

	d := newTestDownloader(t, gw, newTestSession(), saver, nil)
	outcome, err := d.Attempt(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Equal(t, OutcomeUnlockRequired, outcome.Kind)
	require.Equal(t, models.LockNoCredits, outcome.Reason)
	require.Equal(t, []models.UnlockOption{models.UnlockPurchase, models.UnlockReferral}, outcome.Options)

	_, consume, _ := gw.counts()
	require.Zero(t, consume)
}

func TestAttemptSuccess(t *testing.T) {
	cont := gomock.NewController(t)
	saver := NewMockFileSaver(cont)
	events := NewMockEventPublisher(cont)
	gw := &fakeGateway{credits: 3}

	saver.EXPECT().SaveURL(gomock.Any(), "https://files/proj-1.zip").Return("/tmp/proj-1.zip", nil)
	events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e models.EntitlementEvent) error {
		require.Equal(t, models.EventCreditConsumed, e.Type)
		require.Equal(t, "user-1", e.UserID)
		require.Equal(t, 2, *e.Remaining)
		return nil
	})

	d := newTestDownloader(t, gw, newTestSession(), saver, events)
	outcome, err := d.Attempt(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Equal(t, OutcomeSaved, outcome.Kind)
	require.Equal(t, "Download started! 2 credits remaining.", outcome.Message)
	require.Equal(t, "/tmp/proj-1.zip", outcome.Path)

	// после списания обновлены баланс и рефералы
	fetch, consume, referrals := gw.counts()
	require.Equal(t, 2, fetch)
	require.Equal(t, 1, consume)
	require.Equal(t, 1, referrals)
	require.Equal(t, 2, d.store.Available())
	require.False(t, d.InProgress())
}

func TestAttemptSaveFailureStillRefreshes(t *testing.T) {
	cont := gomock.NewController(t)
	saver := NewMockFileSaver(cont)
	gw := &fakeGateway{credits: 1}

	saver.EXPECT().SaveURL(gomock.Any(), gomock.Any()).Return("", errors.New("disk full"))

	d := newTestDownloader(t, gw, newTestSession(), saver, nil)
	outcome, err := d.Attempt(context.Background(), "proj-1")
	require.True(t, models.IsKind(err, models.KindDownloadFailed))
	require.Equal(t, OutcomeFailed, outcome.Kind)
	require.True(t, outcome.Retryable)

	fetch, _, referrals := gw.counts()
	require.Equal(t, 2, fetch)
	require.Equal(t, 1, referrals)
	require.Equal(t, 0, d.store.Available())
}

func TestAttemptErrorOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    OutcomeKind
		reason  models.LockReason
		message string
	}{
		{"insufficient", models.NewCreditError(models.KindInsufficientCredits, 400, nil), OutcomeUnlockRequired, models.LockNoCredits, ""},
		{"price limit", models.NewCreditError(models.KindPriceLimitExceeded, 403, nil), OutcomeUnlockRequired, models.LockPriceLimit, ""},
		{"unauthorized", models.NewCreditError(models.KindUnauthorized, 401, nil), OutcomeAuthRequired, models.LockNone, "Your session has expired. Please log in again."},
		{"not found", models.NewCreditError(models.KindProjectNotFound, 404, nil), OutcomeNotFound, models.LockNone, "Project not found."},
		{"download failed", models.NewCreditError(models.KindDownloadFailed, 500, nil), OutcomeFailed, models.LockNone, ""},
		{"network", errors.New("fetch failed: connection refused"), OutcomeFailed, models.LockNone, ""},
	}

	for _, ts := range tests {
		t.Run(ts.name, func(t *testing.T) {
			cont := gomock.NewController(t)
			saver := NewMockFileSaver(cont)
			gw := &fakeGateway{credits: 2, consumeErr: ts.err}

			d := newTestDownloader(t, gw, newTestSession(), saver, nil)
			outcome, err := d.Attempt(context.Background(), "proj-1")
			require.Error(t, err)
			require.Equal(t, ts.kind, outcome.Kind)
			require.Equal(t, ts.reason, outcome.Reason)
			if ts.message != "" {
				require.Equal(t, ts.message, outcome.Message)
			}
			// баланс не меняется при ошибке
			require.Equal(t, 2, d.store.Available())
		})
	}
}

func TestAttemptInProgress(t *testing.T) {
	cont := gomock.NewController(t)
	saver := NewMockFileSaver(cont)
	gw := &fakeGateway{credits: 3}

	started := make(chan struct{})
	release := make(chan struct{})
	saver.EXPECT().SaveURL(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "/tmp/a.zip", nil
	})

	d := newTestDownloader(t, gw, newTestSession(), saver, nil)
	done := make(chan Outcome)
	go func() {
		outcome, _ := d.Attempt(context.Background(), "proj-1")
		done <- outcome
	}()
	<-started

	// повторное нажатие ничего не делает
	outcome, err := d.Attempt(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Equal(t, OutcomeInProgress, outcome.Kind)
	outcome, err = d.DownloadPurchased(context.Background(), "proj-2")
	require.NoError(t, err)
	require.Equal(t, OutcomeInProgress, outcome.Kind)

	close(release)
	require.Equal(t, OutcomeSaved, (<-done).Kind)
	_, consume, _ := gw.counts()
	require.Equal(t, 1, consume)
}

func TestDownloadPurchased(t *testing.T) {
	cont := gomock.NewController(t)
	saver := NewMockFileSaver(cont)
	events := NewMockEventPublisher(cont)
	gw := &fakeGateway{credits: 0}

	saver.EXPECT().SaveProject(gomock.Any(), "proj-7").Return("/tmp/proj-7.zip", nil)
	events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e models.EntitlementEvent) error {
		require.Equal(t, models.EventPurchasedDownload, e.Type)
		return errors.New("broker down")
	})

	d := newTestDownloader(t, gw, newTestSession(), saver, events)
	outcome, err := d.DownloadPurchased(context.Background(), "proj-7")
	require.NoError(t, err)
	require.Equal(t, OutcomeSaved, outcome.Kind)
	require.Equal(t, "/tmp/proj-7.zip", outcome.Path)

	_, consume, _ := gw.counts()
	require.Zero(t, consume)
}

func TestDownloadPurchasedNotFound(t *testing.T) {
	cont := gomock.NewController(t)
	saver := NewMockFileSaver(cont)
	saver.EXPECT().SaveProject(gomock.Any(), "gone").Return("", models.NewCreditError(models.KindProjectNotFound, 404, nil))

	d := newTestDownloader(t, &fakeGateway{}, newTestSession(), saver, nil)
	outcome, err := d.DownloadPurchased(context.Background(), "gone")
	require.Error(t, err)
	require.Equal(t, OutcomeNotFound, outcome.Kind)
}

func TestAttemptToUsesRequestSaver(t *testing.T) {
	cont := gomock.NewController(t)
	clientSaver := NewMockFileSaver(cont)
	requestSaver := NewMockFileSaver(cont)
	gw := &fakeGateway{credits: 2}

	requestSaver.EXPECT().SaveURL(gomock.Any(), "https://files/proj-1.zip").Return("proj-1.zip", nil)
	requestSaver.EXPECT().SaveProject(gomock.Any(), "proj-2").Return("proj-2.zip", nil)

	d := newTestDownloader(t, gw, newTestSession(), clientSaver, nil)
	outcome, err := d.AttemptTo(context.Background(), "proj-1", requestSaver)
	require.NoError(t, err)
	require.Equal(t, OutcomeSaved, outcome.Kind)
	require.Equal(t, 1, *outcome.Remaining)

	outcome, err = d.DownloadPurchasedTo(context.Background(), "proj-2", requestSaver)
	require.NoError(t, err)
	require.Equal(t, "proj-2.zip", outcome.Path)
}

func TestAttemptWithoutSaverKeepsCredit(t *testing.T) {
	gw := &fakeGateway{credits: 2}
	d := newTestDownloader(t, gw, newTestSession(), nil, nil)

	outcome, err := d.Attempt(context.Background(), "proj-1")
	require.ErrorIs(t, err, ErrNoSaver)
	require.Equal(t, OutcomeFailed, outcome.Kind)

	_, consume, _ := gw.counts()
	require.Zero(t, consume)
	require.Equal(t, 2, d.store.Available())
}
