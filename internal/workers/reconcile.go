package workers

import (
	"context"
	"time"

	"github.com/localnerve/tipjar/internal/logger"
	"github.com/localnerve/tipjar/internal/models"
	"github.com/localnerve/tipjar/internal/payments"
	"github.com/localnerve/tipjar/internal/services"
	"github.com/localnerve/tipjar/internal/state"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reconciler periodically resolves pending ledger entries against the
// payment provider. Provider outages are tolerated: a failed poll leaves the
// entry pending for the next tick.
type Reconciler struct {
	DB       *gorm.DB
	Client   *payments.Client
	State    *state.Store
	Interval time.Duration
}

// Start runs the reconciliation loop until ctx is canceled.
func (r *Reconciler) Start(ctx context.Context) {
	go r.loop(ctx)
	logger.Log.Info("Payment reconciliation worker started",
		zap.Duration("interval", r.Interval))
}

func (r *Reconciler) loop(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Payment reconciliation worker stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce polls the provider for every pending entry that carries an
// external payment reference and applies any resolved status.
func (r *Reconciler) RunOnce(ctx context.Context) {
	donations, err := services.ListPendingDonations(r.DB, 100)
	if err != nil {
		logger.Log.Error("Failed to list pending donations", zap.Error(err))
		return
	}

	for i := range donations {
		donation := &donations[i]

		event, err := r.Client.FetchStatus(ctx, donation.PaymentID)
		if err != nil {
			logger.Log.Warn("Provider poll failed",
				zap.String("paymentID", donation.PaymentID), zap.Error(err))
			continue
		}

		target := payments.MapStatus(event.Status)
		if target == models.DonationStatusPending {
			continue
		}

		resolved, changed, err := services.ApplyPaymentEvent(r.DB, donation.PaymentID, target)
		if err != nil {
			logger.Log.Error("Failed to apply payment event",
				zap.String("paymentID", donation.PaymentID),
				zap.String("status", target),
				zap.Error(err))
			continue
		}

		if changed && r.State != nil && resolved.PaymentStatus == models.DonationStatusCompleted {
			r.State.PushDonationNotification(resolved)
		}
	}
}
