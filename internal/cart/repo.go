package cart

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepo mirrors cart lines to Postgres so an authenticated cart survives
// across devices. The local quantity is authoritative, so upserts replace
// rather than add.
type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Upsert(ctx context.Context, userID string, l Line) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO cart_items (user_id, product_id, variant_id, name, image, color, size, unit_price, quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
		ON CONFLICT (user_id, product_id, variant_id)
		DO UPDATE SET quantity = EXCLUDED.quantity,
		              unit_price = EXCLUDED.unit_price,
		              updated_at = NOW()
	`, userID, l.ProductID, l.VariantID, l.Name, l.Image, l.Color, l.Size, l.UnitPrice, l.Quantity)
	return err
}

func (r *PGRepo) UpdateQuantity(ctx context.Context, userID, productID, variantID string, quantity int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE cart_items
		SET quantity = $4, updated_at = NOW()
		WHERE user_id = $1 AND product_id = $2 AND variant_id = $3
	`, userID, productID, variantID, quantity)
	return err
}

func (r *PGRepo) Remove(ctx context.Context, userID, productID, variantID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND variant_id = $3
	`, userID, productID, variantID)
	return err
}

func (r *PGRepo) Clear(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

func (r *PGRepo) List(ctx context.Context, userID string) ([]Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT product_id, variant_id, name, image, color, size, unit_price::text, quantity
		FROM cart_items WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.VariantID, &l.Name, &l.Image, &l.Color, &l.Size, &l.UnitPrice, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
