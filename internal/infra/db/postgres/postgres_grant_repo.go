package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"lesson-checkout/internal/domain"
	"lesson-checkout/internal/domain/ports/repository"
)

var _ repository.GrantRepository = (*grantRepo)(nil)

type grantRepo struct{ pool *pgxpool.Pool }

func NewGrantRepo(pool *pgxpool.Pool) *grantRepo {
	return &grantRepo{pool: pool}
}

func (r *grantRepo) Save(ctx context.Context, qx any, g *repository.GrantRecord) error {
	const q = `
INSERT INTO access_grants (
  id, reference, buyer_id, item_id, amount_minor_units, currency, gateway, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, qx, q,
		g.ID, g.Reference, g.BuyerID, g.ItemID, g.AmountMinorUnits, g.Currency, g.Gateway, g.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// The unique index on reference keeps a replayed grant from landing twice.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil
		}
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *grantRepo) ListByBuyer(ctx context.Context, qx any, buyerID string) ([]*repository.GrantRecord, error) {
	const q = `SELECT id, reference, buyer_id, item_id, amount_minor_units, currency, gateway, created_at
FROM access_grants WHERE buyer_id=$1 ORDER BY created_at DESC;`
	rows, err := pickRows(ctx, r.pool, qx, q, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*repository.GrantRecord{}
	for rows.Next() {
		g := &repository.GrantRecord{}
		if err := rows.Scan(&g.ID, &g.Reference, &g.BuyerID, &g.ItemID, &g.AmountMinorUnits, &g.Currency, &g.Gateway, &g.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, g)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
