package services

import (
	"context"

	interf "github.com/glkeru/projxchange/internal/interfaces"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Coordinator обновляет баланс и рефералов параллельно
type Coordinator struct {
	balance   interf.Refresher
	referrals interf.Refresher
	logger    *zap.Logger
}

func NewCoordinator(balance interf.Refresher, referrals interf.Refresher, logger *zap.Logger) *Coordinator {
	return &Coordinator{balance, referrals, logger}
}

// RefreshAll ждет оба обновления; ошибка одного не отменяет другое
func (c *Coordinator) RefreshAll(ctx context.Context) {
	g := &errgroup.Group{}
	c.run(ctx, g, "balance", c.balance)
	c.run(ctx, g, "referrals", c.referrals)
	_ = g.Wait()
}

func (c *Coordinator) run(ctx context.Context, g *errgroup.Group, name string, r interf.Refresher) {
	if r == nil {
		return
	}
	g.Go(func() error {
		err := r.Refresh(ctx)
		if err != nil {
			c.logger.Warn("Refresh",
				zap.String("service", "RefreshAll"),
				zap.String("target", name),
				zap.Error(err),
			)
		}
		return nil
	})
}
