package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"translink/internal/auth"
	"translink/internal/database"
	"translink/internal/domain"
	"translink/internal/events"
	"translink/internal/models"
)

type CouponService struct {
	Deps
}

func NewCouponService(deps Deps) *CouponService {
	return &CouponService{Deps: deps.withDefaults()}
}

type CouponInput struct {
	Name               string
	Description        string
	Status             models.CouponStatus
	DiscountPercentage int
	ExpiredAt          time.Time
}

type CouponPatch struct {
	Name               *string
	Description        *string
	Status             *models.CouponStatus
	DiscountPercentage *int
	ExpiredAt          *time.Time
}

func validateCoupon(c *models.Coupon) error {
	if strings.TrimSpace(c.Name) == "" {
		return domain.Validation("name is required")
	}
	if !c.Status.Valid() {
		return domain.Validation("unknown coupon status %q", c.Status)
	}
	if c.DiscountPercentage < 0 || c.DiscountPercentage > 100 {
		return domain.Validation("discountPercentage must be between 0 and 100")
	}
	if c.ExpiredAt.IsZero() {
		return domain.Validation("expiredAt is required")
	}
	return nil
}

func (s *CouponService) Create(ctx context.Context, p auth.Principal, in CouponInput) (*models.Coupon, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = models.CouponActive
	}
	c := &models.Coupon{
		Name:               strings.TrimSpace(in.Name),
		Description:        strings.TrimSpace(in.Description),
		Status:             in.Status,
		DiscountPercentage: in.DiscountPercentage,
		ExpiredAt:          in.ExpiredAt,
	}
	if err := validateCoupon(c); err != nil {
		return nil, err
	}
	if err := s.Store.CreateCoupon(ctx, c); err != nil {
		return nil, storeError(err, "coupon")
	}
	return c, nil
}

func (s *CouponService) Update(ctx context.Context, p auth.Principal, id int64, in CouponPatch) (*models.Coupon, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	c, err := s.Store.GetCoupon(ctx, id)
	if err != nil {
		return nil, storeError(err, "coupon")
	}
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		c.Status = *in.Status
	}
	if in.DiscountPercentage != nil {
		c.DiscountPercentage = *in.DiscountPercentage
	}
	if in.ExpiredAt != nil {
		c.ExpiredAt = *in.ExpiredAt
	}
	if err := validateCoupon(c); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateCoupon(ctx, c); err != nil {
		return nil, storeError(err, "coupon")
	}
	return c, nil
}

// Delete soft-deletes a coupon. Bookings that used it keep their discount.
func (s *CouponService) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return err
	}
	return storeError(s.Store.SoftDeleteCoupon(ctx, id), "coupon")
}

// List returns every live coupon to admins and the claimable ones to
// everyone else.
func (s *CouponService) List(ctx context.Context, p auth.Principal) ([]*models.Coupon, error) {
	var usableAt *time.Time
	if !p.IsAdmin() {
		now := s.Now()
		usableAt = &now
	}
	coupons, err := s.Store.ListCoupons(ctx, usableAt)
	if err != nil {
		return nil, err
	}
	if coupons == nil {
		coupons = []*models.Coupon{}
	}
	return coupons, nil
}

// Claim records that the caller holds the coupon. A user claims a coupon at
// most once.
func (s *CouponService) Claim(ctx context.Context, p auth.Principal, couponID int64) (*models.UserCoupon, error) {
	var claim *models.UserCoupon
	err := s.Store.WithTx(ctx, func(tx domain.Repository) error {
		coupon, err := tx.GetCoupon(ctx, couponID)
		if err != nil {
			return storeError(err, "coupon")
		}
		if !coupon.Usable(s.Now()) {
			return domain.Validation("coupon is inactive or expired")
		}
		if _, err := tx.GetUserCoupon(ctx, p.UserID, couponID); err == nil {
			return domain.Conflict("coupon already claimed")
		} else if !errors.Is(err, database.ErrNotFound) {
			return err
		}

		claim = &models.UserCoupon{UserID: p.UserID, CouponID: couponID, Coupon: coupon}
		if err := tx.CreateUserCoupon(ctx, claim); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return domain.Conflict("coupon already claimed")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, events.EventCouponClaimed, claim, nil)
	return claim, nil
}

func (s *CouponService) Mine(ctx context.Context, p auth.Principal) ([]*models.UserCoupon, error) {
	claims, err := s.Store.ListUserCoupons(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		claims = []*models.UserCoupon{}
	}
	return claims, nil
}
