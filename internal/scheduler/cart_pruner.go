package scheduler

import (
	"context"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/repository"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/service"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/websocket"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"github.com/robfig/cron/v3"
)

// CartPruner periodically deletes cart lines nobody has touched for a while.
type CartPruner struct {
	cron           *cron.Cron
	cartRepo       repository.CartRepository
	carts          service.CartService
	schedule       string
	abandonedAfter time.Duration
	now            func() time.Time
}

func NewCartPruner(cartRepo repository.CartRepository, carts service.CartService, schedule string, abandonedAfter time.Duration) *CartPruner {
	return &CartPruner{
		cron:           cron.New(),
		cartRepo:       cartRepo,
		carts:          carts,
		schedule:       schedule,
		abandonedAfter: abandonedAfter,
		now:            time.Now,
	}
}

func (p *CartPruner) Start() error {
	_, err := p.cron.AddFunc(p.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := p.Prune(ctx); err != nil {
			logger.Error("Scheduled cart prune failed", err)
		}
	})
	if err != nil {
		logger.Error("Failed to add cron job for cart pruning", err, map[string]interface{}{
			"schedule": p.schedule,
		})
		return err
	}

	p.cron.Start()
	logger.Info("Cart pruner started", map[string]interface{}{
		"schedule":        p.schedule,
		"abandoned_after": p.abandonedAfter.String(),
	})
	return nil
}

// Prune deletes lines older than the abandonment window and tells the
// affected users' sessions. It returns the number of lines removed.
func (p *CartPruner) Prune(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.abandonedAfter)

	pruned, removed, err := p.cartRepo.DeleteStale(cutoff)
	if err != nil {
		return 0, err
	}

	for _, cart := range pruned {
		event := websocket.CartEvent{Type: websocket.CartUpdated}
		if cart.Emptied {
			event.Type = websocket.CartCleared
		}
		p.carts.Invalidate(ctx, cart.UserID, event)
	}

	if removed > 0 {
		logger.Info("Pruned abandoned cart lines", map[string]interface{}{
			"removed": removed,
			"users":   len(pruned),
			"cutoff":  cutoff,
		})
	}
	return removed, nil
}

// Stop waits for a running prune to finish.
func (p *CartPruner) Stop() {
	<-p.cron.Stop().Done()
	logger.Info("Cart pruner stopped")
}
