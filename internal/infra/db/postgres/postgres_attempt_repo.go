package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lesson-checkout/internal/domain"
	"lesson-checkout/internal/domain/model"
	"lesson-checkout/internal/domain/ports/repository"
)

var _ repository.AttemptRepository = (*attemptRepo)(nil)

type attemptRepo struct{ pool *pgxpool.Pool }

func NewAttemptRepo(pool *pgxpool.Pool) *attemptRepo {
	return &attemptRepo{pool: pool}
}

const attemptColumns = `id, reference, buyer_id, buyer_email, item_id, amount_minor_units, currency, status, gateway_payload, error_detail, created_at, updated_at, granted_at`

func (r *attemptRepo) Save(ctx context.Context, qx any, a *model.PaymentAttempt) error {
	const q = `
INSERT INTO payment_attempts (
  id, reference, buyer_id, buyer_email, item_id, amount_minor_units, currency, status, gateway_payload, error_detail, created_at, updated_at, granted_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (id) DO UPDATE SET
  status=$8, gateway_payload=$9, error_detail=$10, updated_at=$12, granted_at=$13;`

	payload, err := marshalPayload(a.GatewayPayload)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, qx, q,
		a.ID, a.Reference, a.BuyerID, a.BuyerEmail, a.ItemID, a.AmountMinorUnits, a.Currency,
		a.Status, payload, a.ErrorDetail, a.CreatedAt, a.UpdatedAt, a.GrantedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *attemptRepo) FindByReference(ctx context.Context, qx any, reference string) (*model.PaymentAttempt, error) {
	q := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE reference=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, qx, q, reference)
	if err != nil {
		return nil, err
	}
	return scanAttempt(row)
}

func (r *attemptRepo) UpdateStatus(ctx context.Context, qx any, id string, status model.AttemptStatus, errorDetail string, grantedAt *time.Time) error {
	const q = `UPDATE payment_attempts SET status=$2, error_detail=$3, granted_at=COALESCE($4, granted_at), updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id, status, errorDetail, grantedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *attemptRepo) ListRecent(ctx context.Context, qx any, limit int) ([]*model.PaymentAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + attemptColumns + ` FROM payment_attempts ORDER BY created_at DESC LIMIT $1;`
	rows, err := pickRows(ctx, r.pool, qx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (r *attemptRepo) ListUnresolvedOlderThan(ctx context.Context, qx any, cutoff time.Time, limit int) ([]*model.PaymentAttempt, error) {
	if limit <= 0 {
		limit = 200
	}
	q := `SELECT ` + attemptColumns + ` FROM payment_attempts
WHERE status IN ('initiated','awaiting_gateway','awaiting_verification') AND updated_at < $1
ORDER BY updated_at ASC LIMIT $2;`
	rows, err := pickRows(ctx, r.pool, qx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (r *attemptRepo) SumGrantedByPeriod(ctx context.Context, qx any, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount_minor_units),0) FROM payment_attempts
WHERE status='granted' AND granted_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, qx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func scanAttempt(row pgx.Row) (*model.PaymentAttempt, error) {
	a := &model.PaymentAttempt{}
	var payload []byte
	if err := row.Scan(&a.ID, &a.Reference, &a.BuyerID, &a.BuyerEmail, &a.ItemID, &a.AmountMinorUnits, &a.Currency,
		&a.Status, &payload, &a.ErrorDetail, &a.CreatedAt, &a.UpdatedAt, &a.GrantedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(payload) > 0 {
		res := &model.GatewayResult{}
		if err := json.Unmarshal(payload, res); err == nil {
			a.GatewayPayload = res
		}
	}
	return a, nil
}

func scanAttempts(rows pgx.Rows) ([]*model.PaymentAttempt, error) {
	out := []*model.PaymentAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func marshalPayload(p *model.GatewayResult) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}
