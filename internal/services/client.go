package services

import (
	"context"
	"time"

	classifier "github.com/glkeru/projxchange/internal/classifier"
	interf "github.com/glkeru/projxchange/internal/interfaces"
	models "github.com/glkeru/projxchange/internal/models"
	"go.uber.org/zap"
)

type ClientOptions struct {
	// источник файлов для доставки в ответе запроса
	Files         interf.FileSource
	Cache         interf.BalanceCache
	Events        interf.EventPublisher
	Clock         Clock
	ViewThreshold time.Duration
}

// Client собирает сервисы доступа одного пользователя
type Client struct {
	Session     interf.Session
	Files       interf.FileSource
	Balance     *BalanceStore
	Referrals   *ReferralStore
	Coordinator *Coordinator
	Downloader  *Downloader
	Tracker     *Tracker

	gw     interf.Gateway
	events interf.EventPublisher
	logger *zap.Logger
}

// saver может быть nil, если файлы отдаются через AttemptTo
func NewClient(session interf.Session, gw interf.Gateway, saver interf.FileSaver, opts ClientOptions, logger *zap.Logger) *Client {
	balance := NewBalanceStore(gw, session, opts.Cache, logger)
	referrals := NewReferralStore(gw, session, logger)
	coordinator := NewCoordinator(balance, referrals, logger)
	return &Client{
		Session:     session,
		Files:       opts.Files,
		Balance:     balance,
		Referrals:   referrals,
		Coordinator: coordinator,
		Downloader:  NewDownloader(session, balance, saver, coordinator, opts.Events, logger),
		Tracker:     NewTracker(gw, session, opts.Events, opts.Clock, opts.ViewThreshold, logger),
		gw:          gw,
		events:      opts.Events,
		logger:      logger,
	}
}

// Вариант доступа к проекту для текущего пользователя
func (c *Client) Affordance(project models.Project, evidence models.PurchaseEvidence) models.Affordance {
	authenticated := c.Session.IsAuthenticated()
	available := 0
	if authenticated {
		available = c.Balance.Available()
	}
	return Decide(DecisionInput{
		Authenticated:    authenticated,
		Project:          project,
		Evidence:         evidence,
		AvailableCredits: available,
	})
}

// Вишлист подтверждает реферала, после чего обновляем дашборд
func (c *Client) AddToWishlist(ctx context.Context, project models.Project) error {
	err := GuardDemoAction(project, models.ActionWishlist)
	if err != nil {
		return err
	}
	if !c.Session.IsAuthenticated() {
		return models.ErrNotAuthenticated
	}
	err = c.gw.ConfirmWishlist(ctx, project.ID)
	if err != nil {
		ce := classifier.Classify(err)
		c.logger.Error("Confirm wishlist",
			zap.String("service", "AddToWishlist"),
			zap.String("project", project.ID),
			zap.Error(ce),
		)
		return ce
	}
	if c.events != nil {
		event := models.NewEntitlementEvent(models.EventWishlistConfirmed, c.Session.UserID(), project.ID)
		event.Signal = models.SignalWishlistAdd
		if err := c.events.Publish(ctx, event); err != nil {
			c.logger.Warn("Publish event", zap.String("service", "AddToWishlist"), zap.Error(err))
		}
	}
	c.Coordinator.RefreshAll(ctx)
	return nil
}

// Выход: сбрасываем состояние, незавершенные отчеты дожидаемся
func (c *Client) Close() {
	c.Tracker.Stop()
	c.Tracker.Wait()
	c.Balance.Reset()
	c.Referrals.Reset()
}
