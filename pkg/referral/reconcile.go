package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/common/models"
	"github.com/referral-intake/platform/pkg/ledger"
	"github.com/referral-intake/platform/pkg/observability/metrics"
)

// Reconcile finishes relocations left behind by earlier runs. Entries that
// never reached a routing decision are skipped; the blob stays in incoming
// and is picked up again by the next blob.created event.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	if s.deps.Ledger == nil {
		return 0, nil
	}
	pending, err := s.deps.Ledger.Pending(ctx, s.settings.ReconcileAfter)
	if err != nil {
		return 0, fmt.Errorf("listing pending entries: %w", err)
	}

	done := 0
	for _, entry := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		log := logger.WithDocument(entry.Name).WithField("stage", entry.Stage)
		if entry.Container == "" {
			log.Debug("no routing decision recorded, skipping")
			continue
		}
		if err := s.deps.Blobs.Move(ctx, entry.Name, models.ContainerIncoming, entry.Container, entry.Metadata); err != nil {
			metrics.ObserveBlobMoveFailure()
			log.WithError(err).Warn("reconcile move failed")
			continue
		}
		if err := s.deps.Ledger.Mark(ctx, entry.Name, ledger.StageComplete, "", "", nil); err != nil {
			log.WithError(err).Warn("ledger update failed")
			continue
		}
		log.WithField("container", entry.Container).Info("reconciled blob")
		done++
	}
	return done, nil
}

// RunReconciler calls Reconcile every interval until ctx is cancelled.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Reconcile(ctx); err != nil {
				logger.Log.WithError(err).Warn("reconcile pass failed")
			} else if n > 0 {
				logger.WithField("count", n).Info("reconcile pass finished")
			}
		}
	}
}
