// File: internal/infra/sched/attempt_reconciler.go
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lesson-checkout/internal/domain/model"
	"lesson-checkout/internal/domain/ports/adapter"
	"lesson-checkout/internal/domain/ports/repository"
)

// AttemptReconciler periodically scans for stale non-terminal attempts and
// settles them from the audit trail. This covers a process crash between the
// gateway's approval and the verification write, and checkouts the buyer
// simply walked away from.
type AttemptReconciler struct {
	attempts   repository.AttemptRepository
	verifier   adapter.Verifier
	sink       adapter.OutcomeSink
	gateway    string
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old an attempt must be to touch
	log        *zerolog.Logger
}

func NewAttemptReconciler(
	attempts repository.AttemptRepository,
	verifier adapter.Verifier,
	sink adapter.OutcomeSink,
	gateway string,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *AttemptReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &AttemptReconciler{
		attempts:   attempts,
		verifier:   verifier,
		sink:       sink,
		gateway:    gateway,
		interval:   interval,
		staleAfter: staleAfter,
		log:        logger,
	}
}

func (w *AttemptReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *AttemptReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.attempts.ListUnresolvedOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("attempt-reconciler: list unresolved")
		return
	}
	for _, a := range stale {
		switch a.Status {
		case model.AttemptStatusAwaitingVerification:
			w.settleVerification(ctx, a)
		case model.AttemptStatusInitiated, model.AttemptStatusAwaitingGateway:
			w.cancelAbandoned(ctx, a)
		}
	}
}

// settleVerification re-asks the authority for an attempt whose gateway leg
// completed but whose verification never landed.
func (w *AttemptReconciler) settleVerification(ctx context.Context, a *model.PaymentAttempt) {
	res := w.verifier.Verify(ctx, a.Reference)
	now := time.Now()

	if !res.Confirmed {
		if err := w.attempts.UpdateStatus(ctx, nil, a.ID, model.AttemptStatusFailed, res.Detail, nil); err != nil {
			w.log.Error().Err(err).Str("reference", a.Reference).Msg("attempt-reconciler: mark failed")
		}
		w.log.Info().Str("reference", a.Reference).Str("detail", res.Detail).Msg("attempt-reconciler: settled as failed")
		return
	}

	grant := model.Grant{
		Reference:        a.Reference,
		BuyerID:          a.BuyerID,
		ItemID:           a.ItemID,
		AmountMinorUnits: a.AmountMinorUnits,
		Currency:         a.Currency,
		Gateway:          w.gateway,
		GatewayPayload:   a.GatewayPayload,
		Verified:         true,
		Timestamp:        now,
	}
	if err := w.sink.GrantAccess(ctx, grant); err != nil {
		w.log.Error().Err(err).Str("reference", a.Reference).Msg("attempt-reconciler: grant delivery")
		return
	}
	w.log.Info().Str("reference", a.Reference).Msg("attempt-reconciler: settled as granted")
}

func (w *AttemptReconciler) cancelAbandoned(ctx context.Context, a *model.PaymentAttempt) {
	if err := w.attempts.UpdateStatus(ctx, nil, a.ID, model.AttemptStatusCancelled, "", nil); err != nil {
		w.log.Error().Err(err).Str("reference", a.Reference).Msg("attempt-reconciler: cancel abandoned")
		return
	}
	w.log.Info().Str("reference", a.Reference).Msg("attempt-reconciler: cancelled abandoned attempt")
}
