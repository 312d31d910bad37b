package worker

import (
	"context"
	"time"

	"github.com/Manish-basnet10/Blood-Donation/internal/repository"
	"github.com/Manish-basnet10/Blood-Donation/internal/service"
	"github.com/Manish-basnet10/Blood-Donation/pkg/logger"
)

// ExpiryWorker periodically expires pending donation requests that have
// outlived their TTL and prunes stale email verification tokens.
type ExpiryWorker struct {
	requests   service.RequestService
	verifyRepo repository.VerifyRepository
	interval   time.Duration
}

func NewExpiryWorker(requests service.RequestService, verifyRepo repository.VerifyRepository, interval time.Duration) *ExpiryWorker {
	return &ExpiryWorker{requests: requests, verifyRepo: verifyRepo, interval: interval}
}

// Start runs the sweep loop until ctx is canceled. Sweep failures are
// logged and the loop keeps running.
func (w *ExpiryWorker) Start(ctx context.Context) {
	logger.Info("Expiry worker started", "interval", w.interval.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Expiry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := w.requests.ExpireDue(sweepCtx)
	if err != nil {
		logger.Error("Expiry sweep failed", "error", err)
	} else if n > 0 {
		logger.Info("Expired stale donation requests", "count", n)
	}

	deleted, err := w.verifyRepo.DeleteExpiredTokens(sweepCtx)
	if err != nil {
		logger.Error("Verification token cleanup failed", "error", err)
	} else if deleted > 0 {
		logger.Info("Deleted expired verification tokens", "count", deleted)
	}
}
