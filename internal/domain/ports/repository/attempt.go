package repository

import (
	"context"
	"time"

	"lesson-checkout/internal/domain/model"
)

// -----------------------------
// Payment attempts (audit trail)
// -----------------------------

// AttemptRepository persists the audit trail of checkout attempts. The
// in-flight attempt is owned by the controller; rows here back reporting,
// the status endpoint and the reconciler, never authorization decisions.
type AttemptRepository interface {
	Save(ctx context.Context, qx any, a *model.PaymentAttempt) error
	FindByReference(ctx context.Context, qx any, reference string) (*model.PaymentAttempt, error)
	UpdateStatus(ctx context.Context, qx any, id string, status model.AttemptStatus, errorDetail string, grantedAt *time.Time) error
	ListRecent(ctx context.Context, qx any, limit int) ([]*model.PaymentAttempt, error)
	ListUnresolvedOlderThan(ctx context.Context, qx any, cutoff time.Time, limit int) ([]*model.PaymentAttempt, error)
	SumGrantedByPeriod(ctx context.Context, qx any, period string) (int64, error)
}

// -----------------------------
// Grants
// -----------------------------

type GrantRecord struct {
	ID               string
	Reference        string
	BuyerID          string
	ItemID           string
	AmountMinorUnits int64
	Currency         string
	Gateway          string
	CreatedAt        time.Time
}

type GrantRepository interface {
	Save(ctx context.Context, qx any, g *GrantRecord) error
	ListByBuyer(ctx context.Context, qx any, buyerID string) ([]*GrantRecord, error)
}
