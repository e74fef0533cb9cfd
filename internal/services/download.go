package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	classifier "github.com/glkeru/projxchange/internal/classifier"
	interf "github.com/glkeru/projxchange/internal/interfaces"
	models "github.com/glkeru/projxchange/internal/models"
	"go.uber.org/zap"
)

var ErrNoSaver = errors.New("no file saver configured")

type OutcomeKind string

const (
	OutcomeSaved          OutcomeKind = "saved"
	OutcomeAuthRequired   OutcomeKind = "auth-required"
	OutcomeUnlockRequired OutcomeKind = "unlock-required"
	OutcomeNotFound       OutcomeKind = "not-found"
	OutcomeFailed         OutcomeKind = "failed"
	OutcomeInProgress     OutcomeKind = "in-progress"
)

const (
	loginMessage      = "Please log in to download this project."
	noCreditsMessage  = "You have no credits left. Purchase this project or invite friends to earn credits."
	purchasedMessage  = "Download started!"
	inProgressMessage = "A download is already in progress."
)

// Результат попытки скачивания
type Outcome struct {
	Kind      OutcomeKind           `json:"kind"`
	Message   string                `json:"message"`
	Path      string                `json:"path,omitempty"`
	URL       string                `json:"url,omitempty"`
	Remaining *int                  `json:"remaining,omitempty"`
	Retryable bool                  `json:"retryable,omitempty"`
	Reason    models.LockReason     `json:"reason,omitempty"`
	Options   []models.UnlockOption `json:"options,omitempty"`
}

// Downloader - скачивание за кредит и скачивание купленного.
// Одновременно выполняется не больше одной попытки.
type Downloader struct {
	session     interf.Session
	store       *BalanceStore
	saver       interf.FileSaver
	coordinator *Coordinator
	events      interf.EventPublisher
	logger      *zap.Logger
	inFlight    atomic.Bool
}

func NewDownloader(session interf.Session, store *BalanceStore, saver interf.FileSaver, coordinator *Coordinator, events interf.EventPublisher, logger *zap.Logger) *Downloader {
	return &Downloader{
		session:     session,
		store:       store,
		saver:       saver,
		coordinator: coordinator,
		events:      events,
		logger:      logger,
	}
}

func (d *Downloader) InProgress() bool {
	return d.inFlight.Load()
}

// Скачивание за кредит через saver клиента
func (d *Downloader) Attempt(ctx context.Context, projectID string) (Outcome, error) {
	return d.AttemptTo(ctx, projectID, d.saver)
}

// AttemptTo - скачивание за кредит с доставкой через saver запроса
func (d *Downloader) AttemptTo(ctx context.Context, projectID string, saver interf.FileSaver) (Outcome, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return Outcome{Kind: OutcomeInProgress, Message: inProgressMessage}, nil
	}
	defer d.inFlight.Store(false)

	if !d.session.IsAuthenticated() {
		return Outcome{Kind: OutcomeAuthRequired, Message: loginMessage}, nil
	}

	// без кредитов в сеть не ходим
	available := d.store.Available()
	if available <= 0 {
		return unlock(models.LockNoCredits, noCreditsMessage), nil
	}

	if saver == nil {
		return d.failure(ErrNoSaver)
	}

	url, err := d.store.Consume(ctx, projectID)
	if err != nil {
		return d.failure(err)
	}

	path, err := saver.SaveURL(ctx, url)
	if err != nil {
		// кредит уже списан, баланс надо обновить в любом случае
		ce := classifier.Classify(err)
		if ce.Kind != models.KindUnauthorized {
			ce = models.NewCreditError(models.KindDownloadFailed, ce.Status, err)
		}
		d.logger.Error("Save file",
			zap.String("service", "Attempt"),
			zap.String("project", projectID),
			zap.Error(ce),
		)
		d.refresh(ctx)
		return d.failure(ce)
	}

	remaining := available - 1
	event := models.NewEntitlementEvent(models.EventCreditConsumed, d.session.UserID(), projectID)
	event.Signal = models.SignalDownload
	event.Remaining = &remaining
	d.publish(ctx, event)
	d.refresh(ctx)

	return Outcome{
		Kind:      OutcomeSaved,
		Message:   fmt.Sprintf("Download started! %d credits remaining.", remaining),
		Path:      path,
		URL:       url,
		Remaining: &remaining,
	}, nil
}

// Скачивание купленного проекта, кредиты не списываются
func (d *Downloader) DownloadPurchased(ctx context.Context, projectID string) (Outcome, error) {
	return d.DownloadPurchasedTo(ctx, projectID, d.saver)
}

func (d *Downloader) DownloadPurchasedTo(ctx context.Context, projectID string, saver interf.FileSaver) (Outcome, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return Outcome{Kind: OutcomeInProgress, Message: inProgressMessage}, nil
	}
	defer d.inFlight.Store(false)

	if !d.session.IsAuthenticated() {
		return Outcome{Kind: OutcomeAuthRequired, Message: loginMessage}, nil
	}

	if saver == nil {
		return d.failure(ErrNoSaver)
	}

	path, err := saver.SaveProject(ctx, projectID)
	if err != nil {
		d.logger.Error("Download purchased",
			zap.String("service", "DownloadPurchased"),
			zap.String("project", projectID),
			zap.Error(err),
		)
		return d.failure(err)
	}

	d.publish(ctx, models.NewEntitlementEvent(models.EventPurchasedDownload, d.session.UserID(), projectID))
	return Outcome{Kind: OutcomeSaved, Message: purchasedMessage, Path: path}, nil
}

// Ошибка в исход для пользователя
func (d *Downloader) failure(err error) (Outcome, error) {
	ce := classifier.Classify(err)
	switch ce.Kind {
	case models.KindInsufficientCredits:
		return unlock(models.LockNoCredits, ce.Message), ce
	case models.KindPriceLimitExceeded:
		return unlock(models.LockPriceLimit, ce.Message), ce
	case models.KindUnauthorized:
		return Outcome{Kind: OutcomeAuthRequired, Message: ce.Message}, ce
	case models.KindProjectNotFound:
		return Outcome{Kind: OutcomeNotFound, Message: ce.Message}, ce
	}
	return Outcome{Kind: OutcomeFailed, Message: ce.Message, Retryable: ce.Retryable}, ce
}

func unlock(reason models.LockReason, message string) Outcome {
	options := []models.UnlockOption{models.UnlockPurchase, models.UnlockReferral}
	if reason == models.LockPriceLimit {
		options = []models.UnlockOption{models.UnlockPurchase}
	}
	return Outcome{
		Kind:    OutcomeUnlockRequired,
		Message: message,
		Reason:  reason,
		Options: options,
	}
}

func (d *Downloader) refresh(ctx context.Context) {
	if d.coordinator != nil {
		d.coordinator.RefreshAll(ctx)
	}
}

func (d *Downloader) publish(ctx context.Context, event models.EntitlementEvent) {
	if d.events == nil {
		return
	}
	err := d.events.Publish(ctx, event)
	if err != nil {
		d.logger.Warn("Publish event",
			zap.String("service", "Downloader"),
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}
