package models

import "time"

type Coupon struct {
	ID                 int64        `json:"id"`
	Name               string       `json:"name"`
	Description        string       `json:"description,omitempty"`
	Status             CouponStatus `json:"status"`
	DiscountPercentage int          `json:"discountPercentage"`
	ExpiredAt          time.Time    `json:"expiredAt"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
	DeletedAt          *time.Time   `json:"-"`
}

// Usable reports whether the coupon can be claimed or applied at now.
func (c *Coupon) Usable(now time.Time) bool {
	return c.DeletedAt == nil && c.Status == CouponActive && now.Before(c.ExpiredAt)
}

// UserCoupon is a claim of a coupon by one user.
type UserCoupon struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	CouponID  int64      `json:"couponId"`
	IsUsed    bool       `json:"isUsed"`
	ClaimedAt time.Time  `json:"claimedAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`

	Coupon *Coupon `json:"coupon,omitempty"`
}
