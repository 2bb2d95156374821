package products

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valeevte/pricewatch/internal/apperr"
)

// TrackedRepository reads the tracked_products table. Its rows are owned by
// another service.
type TrackedRepository struct {
	db *pgxpool.Pool
}

func NewTrackedRepository(db *pgxpool.Pool) *TrackedRepository {
	return &TrackedRepository{db: db}
}

// ListActive returns the active tracked products of one marketplace.
func (r *TrackedRepository) ListActive(ctx context.Context, marketplace string) ([]TrackedProduct, error) {
	rows, err := r.db.Query(ctx, `
SELECT DISTINCT external_id, marketplace
FROM tracked_products
WHERE active = true AND marketplace = $1
ORDER BY external_id
`, marketplace)
	if err != nil {
		return nil, apperr.FromStore("tracked products unavailable", fmt.Errorf("query tracked products: %w", err))
	}
	defer rows.Close()

	var out []TrackedProduct
	for rows.Next() {
		var tp TrackedProduct
		if err := rows.Scan(&tp.ExternalID, &tp.Marketplace); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("tracked products unavailable", err)
	}
	return out, nil
}

func (r *TrackedRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
