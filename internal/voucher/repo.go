package voucher

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glowmart/storefront/internal/money"
)

var ErrNotFound = errors.New("voucher not found")

type Repository interface {
	GetByCode(ctx context.Context, code string) (*Voucher, error)
	CountUserUsage(ctx context.Context, voucherID, userID string) (int, error)
	// Consume atomically increments the global used count, but only while it
	// is below the usage limit. Returns ErrLimitReached when the cap was hit
	// by a concurrent redemption.
	Consume(ctx context.Context, voucherID string) error
	Release(ctx context.Context, voucherID string) error
	// RecordUserUsage increments the per-user usage row while below the
	// per-user cap. Returns ErrUserLimitReached at the cap; a non-positive
	// limit means no cap.
	RecordUserUsage(ctx context.Context, voucherID, userID string, limit int) error
	ReleaseUserUsage(ctx context.Context, voucherID, userID string) error
	Create(ctx context.Context, v *Voucher) error
	List(ctx context.Context, limit, offset int) ([]Voucher, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const voucherColumns = `
	id, code, type, value::text,
	minimum_order_amount::text, maximum_discount_amount::text,
	usage_limit, used_count, user_usage_limit,
	is_active, starts_at, expires_at, created_at, updated_at`

func (r *PGRepo) GetByCode(ctx context.Context, code string) (*Voucher, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+voucherColumns+`
		FROM vouchers WHERE lower(code) = lower($1)
	`, code)
	v, err := scanVoucher(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *PGRepo) CountUserUsage(ctx context.Context, voucherID, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(
			(SELECT used_count FROM user_voucher_usage WHERE voucher_id = $1 AND user_id = $2),
			0)
	`, voucherID, userID).Scan(&n)
	return n, err
}

// Consume relies on the database's conditional update rather than a
// read-then-write in the client, so concurrent checkouts cannot redeem past
// the cap.
func (r *PGRepo) Consume(ctx context.Context, voucherID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE vouchers
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)
	`, voucherID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLimitReached
	}
	return nil
}

func (r *PGRepo) Release(ctx context.Context, voucherID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE vouchers
		SET used_count = GREATEST(used_count - 1, 0), updated_at = NOW()
		WHERE id = $1
	`, voucherID)
	return err
}

// RecordUserUsage shares CheckUserEligibility's reading of the limit: a
// non-positive limit means no per-user cap, so the upsert always goes through.
func (r *PGRepo) RecordUserUsage(ctx context.Context, voucherID, userID string, limit int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		INSERT INTO user_voucher_usage (voucher_id, user_id, used_count, created_at, updated_at)
		VALUES ($1, $2, 1, NOW(), NOW())
		ON CONFLICT (voucher_id, user_id)
		DO UPDATE SET used_count = user_voucher_usage.used_count + 1, updated_at = NOW()
		WHERE user_voucher_usage.used_count < $3 OR $3 <= 0
	`, voucherID, userID, limit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserLimitReached
	}
	return nil
}

func (r *PGRepo) ReleaseUserUsage(ctx context.Context, voucherID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE user_voucher_usage
		SET used_count = GREATEST(used_count - 1, 0), updated_at = NOW()
		WHERE voucher_id = $1 AND user_id = $2
	`, voucherID, userID)
	return err
}

func (r *PGRepo) Create(ctx context.Context, v *Voucher) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var minAmount, maxAmount *string
	if v.MinimumOrderAmount != nil {
		s := v.MinimumOrderAmount.StringFixed(2)
		minAmount = &s
	}
	if v.MaximumDiscountAmount != nil {
		s := v.MaximumDiscountAmount.StringFixed(2)
		maxAmount = &s
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO vouchers (id, code, type, value, minimum_order_amount, maximum_discount_amount,
		                      usage_limit, used_count, user_usage_limit, is_active, starts_at, expires_at,
		                      created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8,$9,$10,$11,NOW(),NOW())
	`, v.ID, v.Code, v.Type, v.Value.String(), minAmount, maxAmount,
		v.UsageLimit, v.UserUsageLimit, v.IsActive, v.StartsAt, v.ExpiresAt)
	return err
}

func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Voucher, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+voucherColumns+`
		FROM vouchers
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func scanVoucher(row pgx.Row) (*Voucher, error) {
	var (
		v                    Voucher
		value                string
		minAmount, maxAmount *string
	)
	if err := row.Scan(&v.ID, &v.Code, &v.Type, &value,
		&minAmount, &maxAmount,
		&v.UsageLimit, &v.UsedCount, &v.UserUsageLimit,
		&v.IsActive, &v.StartsAt, &v.ExpiresAt, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if v.Value, err = money.Parse(value); err != nil {
		return nil, err
	}
	if minAmount != nil {
		d, err := money.Parse(*minAmount)
		if err != nil {
			return nil, err
		}
		v.MinimumOrderAmount = &d
	}
	if maxAmount != nil {
		d, err := money.Parse(*maxAmount)
		if err != nil {
			return nil, err
		}
		v.MaximumDiscountAmount = &d
	}
	return &v, nil
}
