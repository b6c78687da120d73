// Package pricing computes booking durations, fee breakdowns and the running
// mean used for translator ratings.
package pricing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	systemFeeRate = decimal.New(1, -1) // 10%
	sixty         = decimal.NewFromInt(60)
	hundred       = decimal.NewFromInt(100)
)

// ParseClock converts "HH:mm" to minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:mm", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// Duration returns the span between two "HH:mm" clock times in hours with
// one decimal place. end must be after start.
func Duration(startAt, endAt string) (decimal.Decimal, error) {
	start, err := ParseClock(startAt)
	if err != nil {
		return decimal.Zero, err
	}
	end, err := ParseClock(endAt)
	if err != nil {
		return decimal.Zero, err
	}
	if end <= start {
		return decimal.Zero, fmt.Errorf("end time %s must be after start time %s", endAt, startAt)
	}
	return decimal.NewFromInt(int64(end - start)).Div(sixty).Round(1), nil
}

// NormalizeDuration rounds an explicit duration the same way Duration does.
func NormalizeDuration(hours decimal.Decimal) decimal.Decimal {
	return hours.Mul(sixty).Round(0).Div(sixty).Round(1)
}

// Quote is the fee breakdown of one booking.
type Quote struct {
	Duration       decimal.Decimal
	ServiceFee     decimal.Decimal
	SystemFee      decimal.Decimal
	DiscountAmount decimal.NullDecimal
	TotalPrice     decimal.Decimal
}

// NewQuote prices duration hours at pricePerHour. A nil discountPct means no
// coupon is applied.
func NewQuote(pricePerHour, duration decimal.Decimal, discountPct *int) Quote {
	q := Quote{
		Duration:   duration,
		ServiceFee: pricePerHour.Mul(duration),
	}
	q.SystemFee = q.ServiceFee.Mul(systemFeeRate).Round(0)
	total := q.ServiceFee.Add(q.SystemFee)

	if discountPct != nil {
		discount := decimal.NewFromInt(int64(*discountPct)).Div(hundred).Mul(total).Round(0)
		q.DiscountAmount = decimal.NewNullDecimal(discount)
		total = total.Sub(discount)
	}

	q.TotalPrice = total.Round(0)
	if q.TotalPrice.IsNegative() {
		q.TotalPrice = decimal.Zero
	}
	return q
}

// RunningMean folds one more rating into an average over count ratings.
// The result has one decimal place.
func RunningMean(oldRating decimal.Decimal, count int, value int) (decimal.Decimal, int) {
	newCount := count + 1
	sum := oldRating.Mul(decimal.NewFromInt(int64(count))).Add(decimal.NewFromInt(int64(value)))
	return sum.Div(decimal.NewFromInt(int64(newCount))).Round(1), newCount
}
