package purchase

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"go.uber.org/zap"
)

const (
	sweepBatch = 100
	// sweepMargin is added to the provider timeout so an order whose
	// delivery call is still in flight is never treated as stale.
	sweepMargin = time.Minute
)

// Sweeper refunds purchases stuck in Reserved or Submitted, such as those
// left behind by a crash between reserving funds and settling the order.
type Sweeper struct {
	orch       *Orchestrator
	orders     order.Repository
	staleAfter time.Duration
	cron       *cron.Cron
	now        func() time.Time
}

// NewSweeper raises staleAfter to the orchestrator's provider timeout plus
// sweepMargin when it is configured below that.
func NewSweeper(orch *Orchestrator, orders order.Repository, staleAfter time.Duration) *Sweeper {
	if floor := orch.timeout + sweepMargin; staleAfter < floor {
		logger.Warn("Stale window is shorter than the provider timeout, raising it", logger.Fields{
			"stale_after":      staleAfter.String(),
			"provider_timeout": orch.timeout.String(),
			"effective":        floor.String(),
		})
		staleAfter = floor
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Log))
	return &Sweeper{
		orch:       orch,
		orders:     orders,
		staleAfter: staleAfter,
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger))),
		now:        time.Now,
	}
}

// Start schedules RunOnce on the cron schedule and starts the scheduler.
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			logger.Error("Stale order sweep failed", logger.WithError(err))
		}
	})
	if err != nil {
		return err
	}
	logger.Info("Scheduled stale order sweep", logger.Fields{"schedule": schedule, "stale_after": s.staleAfter.String()})
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce refunds every stale purchase and returns how many were refunded.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleAfter)
	refunded := 0

	for {
		stale, err := s.orders.FindStale(ctx, order.KindPurchase,
			[]order.Status{order.StatusReserved, order.StatusSubmitted}, cutoff, sweepBatch)
		if err != nil {
			return refunded, err
		}

		progressed := false
		for i := range stale {
			ok, err := s.orch.Refund(ctx, &stale[i], stale[i].Status, "stale order swept")
			if err != nil {
				return refunded, err
			}
			if ok {
				refunded++
				progressed = true
			}
		}
		if len(stale) < sweepBatch || !progressed {
			break
		}
	}

	if refunded > 0 {
		logger.Warn("Refunded stale orders", logger.Fields{"count": refunded})
	}
	return refunded, nil
}
