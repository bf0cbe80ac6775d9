package service

import (
	"context"
	"log/slog"
	"time"
)

// OfferExpirySweeper periodically moves overdue offers to EXPIRED.
type OfferExpirySweeper struct {
	offers   OfferService
	interval time.Duration
	logger   *slog.Logger
}

func NewOfferExpirySweeper(offers OfferService, interval time.Duration, logger *slog.Logger) *OfferExpirySweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &OfferExpirySweeper{offers: offers, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *OfferExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("offer expiry sweeper started", "module", "offers", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("offer expiry sweeper stopped", "module", "offers")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *OfferExpirySweeper) sweep(ctx context.Context) {
	n, err := w.offers.ExpireDueOffers(ctx)
	if err != nil {
		w.logger.Error("offer expiry sweep failed", "module", "offers", "operation", "expire", "outcome", "failed", "error", err)
		return
	}
	if n > 0 {
		w.logger.Info("offers expired", "module", "offers", "operation", "expire", "outcome", "success", "count", n)
	}
}
