package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"relivv/internal/service"
)

// EscrowWorker polls for held transactions whose auto-release time has
// passed and pays out the sellers. It also sweeps checkouts that never got
// paid.
type EscrowWorker struct {
	txSvc     *service.TransactionService
	interval  time.Duration
	batchSize int
}

func NewEscrowWorker(txSvc *service.TransactionService) *EscrowWorker {
	return &EscrowWorker{
		txSvc:     txSvc,
		interval:  time.Minute,
		batchSize: 20,
	}
}

func (w *EscrowWorker) Start(ctx context.Context) {
	slog.Info("starting escrow worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("escrow worker stopped")
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				slog.Error("escrow batch failed", "error", err)
			}
		}
	}
}

func (w *EscrowWorker) processBatch(ctx context.Context) error {
	ids, err := w.txSvc.DueForRelease(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get due transactions: %w", err)
	}

	for _, id := range ids {
		amount, err := w.txSvc.ReleaseFunds(ctx, id, "")
		if err != nil {
			// Another instance may have released it between the query and
			// the update.
			if errors.Is(err, service.ErrNotInEscrow) {
				continue
			}
			slog.Error("auto-release failed", "transaction_id", id, "error", err)
			continue
		}
		slog.Info("escrow auto-released", "transaction_id", id, "amount", amount)
	}

	expired, err := w.txSvc.ExpireStale(ctx, service.StaleCheckoutAge)
	if err != nil {
		return fmt.Errorf("expire stale checkouts: %w", err)
	}
	if expired > 0 {
		slog.Info("stale checkouts cancelled", "count", expired)
	}
	return nil
}
