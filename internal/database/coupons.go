package database

import (
	"context"
	"fmt"
	"time"

	"translink/internal/models"
)

const couponColumns = `id, name, description, status, discount_percentage, expired_at, created_at, updated_at, deleted_at`

func scanCoupon(sc scanner) (*models.Coupon, error) {
	var c models.Coupon
	err := sc.Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.DiscountPercentage,
		&c.ExpiredAt, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	ts := now()
	c.ExpiredAt = c.ExpiredAt.UTC()
	id, err := s.insert(ctx, `INSERT INTO coupons (name, description, status, discount_percentage, expired_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Description, c.Status, c.DiscountPercentage, c.ExpiredAt, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	c.ID = id
	c.CreatedAt = ts
	c.UpdatedAt = ts
	return nil
}

// GetCoupon returns a coupon that has not been soft-deleted.
func (s *Store) GetCoupon(ctx context.Context, id int64) (*models.Coupon, error) {
	c, err := scanCoupon(s.queryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = ? AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon %d: %w", id, notFound(err))
	}
	return c, nil
}

// GetCouponIncludingDeleted also returns soft-deleted coupons. Bookings that
// already carry a coupon are priced and displayed through it.
func (s *Store) GetCouponIncludingDeleted(ctx context.Context, id int64) (*models.Coupon, error) {
	c, err := scanCoupon(s.queryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon %d: %w", id, notFound(err))
	}
	return c, nil
}

func (s *Store) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	ts := now()
	c.ExpiredAt = c.ExpiredAt.UTC()
	err := s.execOne(ctx, ErrNotFound, `UPDATE coupons SET name = ?, description = ?, status = ?, discount_percentage = ?,
		expired_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		c.Name, c.Description, c.Status, c.DiscountPercentage, c.ExpiredAt, ts, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update coupon %d: %w", c.ID, err)
	}
	c.UpdatedAt = ts
	return nil
}

func (s *Store) SoftDeleteCoupon(ctx context.Context, id int64) error {
	ts := now()
	err := s.execOne(ctx, ErrNotFound, `UPDATE coupons SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, ts, ts, id)
	if err != nil {
		return fmt.Errorf("failed to delete coupon %d: %w", id, err)
	}
	return nil
}

// ListCoupons returns live coupons. When usableAt is set only ACTIVE coupons
// expiring after it are returned.
func (s *Store) ListCoupons(ctx context.Context, usableAt *time.Time) ([]*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE deleted_at IS NULL`
	var args []any
	if usableAt != nil {
		query += ` AND status = ? AND expired_at > ?`
		args = append(args, models.CouponActive, usableAt.UTC())
	}
	query += ` ORDER BY expired_at ASC, id ASC`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var out []*models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateUserCoupon(ctx context.Context, claim *models.UserCoupon) error {
	ts := now()
	id, err := s.insert(ctx, `INSERT INTO user_coupons (user_id, coupon_id, is_used, claimed_at) VALUES (?, ?, ?, ?)`,
		claim.UserID, claim.CouponID, false, ts)
	if err != nil {
		return fmt.Errorf("failed to claim coupon: %w", err)
	}
	claim.ID = id
	claim.IsUsed = false
	claim.ClaimedAt = ts
	return nil
}

func (s *Store) GetUserCoupon(ctx context.Context, userID, couponID int64) (*models.UserCoupon, error) {
	var uc models.UserCoupon
	err := s.queryRow(ctx, `SELECT id, user_id, coupon_id, is_used, claimed_at, used_at FROM user_coupons
		WHERE user_id = ? AND coupon_id = ?`, userID, couponID).
		Scan(&uc.ID, &uc.UserID, &uc.CouponID, &uc.IsUsed, &uc.ClaimedAt, &uc.UsedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon claim: %w", notFound(err))
	}
	return &uc, nil
}

func (s *Store) ListUserCoupons(ctx context.Context, userID int64) ([]*models.UserCoupon, error) {
	rows, err := s.query(ctx, `SELECT uc.id, uc.user_id, uc.coupon_id, uc.is_used, uc.claimed_at, uc.used_at,
		c.id, c.name, c.description, c.status, c.discount_percentage, c.expired_at, c.created_at, c.updated_at, c.deleted_at
		FROM user_coupons uc JOIN coupons c ON c.id = uc.coupon_id
		WHERE uc.user_id = ? AND c.deleted_at IS NULL
		ORDER BY uc.claimed_at DESC, uc.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupon claims: %w", err)
	}
	defer rows.Close()

	var out []*models.UserCoupon
	for rows.Next() {
		var (
			uc models.UserCoupon
			c  models.Coupon
		)
		err := rows.Scan(&uc.ID, &uc.UserID, &uc.CouponID, &uc.IsUsed, &uc.ClaimedAt, &uc.UsedAt,
			&c.ID, &c.Name, &c.Description, &c.Status, &c.DiscountPercentage, &c.ExpiredAt, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon claim: %w", err)
		}
		uc.Coupon = &c
		out = append(out, &uc)
	}
	return out, rows.Err()
}

// MarkUserCouponUsed flips an unused claim to used in one conditional UPDATE.
// ErrConcurrentModification means no unused claim matched.
func (s *Store) MarkUserCouponUsed(ctx context.Context, userID, couponID int64) error {
	err := s.execOne(ctx, ErrConcurrentModification,
		`UPDATE user_coupons SET is_used = ?, used_at = ? WHERE user_id = ? AND coupon_id = ? AND is_used = ?`,
		true, now(), userID, couponID, false)
	if err != nil {
		return fmt.Errorf("failed to mark coupon used: %w", err)
	}
	return nil
}

func (s *Store) RestoreUserCoupon(ctx context.Context, userID, couponID int64) error {
	err := s.execOne(ctx, ErrNotFound,
		`UPDATE user_coupons SET is_used = ?, used_at = NULL WHERE user_id = ? AND coupon_id = ?`,
		false, userID, couponID)
	if err != nil {
		return fmt.Errorf("failed to restore coupon: %w", err)
	}
	return nil
}
