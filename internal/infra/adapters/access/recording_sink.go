// File: internal/infra/adapters/access/recording_sink.go
package access

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lesson-checkout/internal/domain/model"
	"lesson-checkout/internal/domain/ports/adapter"
	"lesson-checkout/internal/domain/ports/repository"
)

var _ adapter.OutcomeSink = (*RecordingSink)(nil)

// RecordingSink is the access-granting boundary: it durably records the grant
// so the lesson unlock can be served from it. The grant insert and the
// attempt's granted status land in one transaction; a unique index on the
// reference absorbs replays, so delivery stays at most once end to end.
type RecordingSink struct {
	grants   repository.GrantRepository
	attempts repository.AttemptRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewRecordingSink(grants repository.GrantRepository, attempts repository.AttemptRepository, tm repository.TransactionManager, logger *zerolog.Logger) *RecordingSink {
	return &RecordingSink{grants: grants, attempts: attempts, tm: tm, log: logger}
}

func (s *RecordingSink) GrantAccess(ctx context.Context, g model.Grant) error {
	rec := &repository.GrantRecord{
		ID:               uuid.NewString(),
		Reference:        g.Reference,
		BuyerID:          g.BuyerID,
		ItemID:           g.ItemID,
		AmountMinorUnits: g.AmountMinorUnits,
		Currency:         g.Currency,
		Gateway:          g.Gateway,
		CreatedAt:        g.Timestamp,
	}
	err := s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := s.grants.Save(ctx, tx, rec); err != nil {
			return err
		}
		a, err := s.attempts.FindByReference(ctx, tx, g.Reference)
		if err != nil {
			return err
		}
		return s.attempts.UpdateStatus(ctx, tx, a.ID, model.AttemptStatusGranted, "", &g.Timestamp)
	})
	if err != nil {
		s.log.Error().Err(err).Str("reference", g.Reference).Msg("recording grant failed")
		return err
	}
	s.log.Info().
		Str("reference", g.Reference).
		Str("buyer_id", g.BuyerID).
		Str("item_id", g.ItemID).
		Int64("amount", g.AmountMinorUnits).
		Msg("access granted")
	return nil
}
