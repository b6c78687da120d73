package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceRequest is a booking of a translator's service.
type ServiceRequest struct {
	ID              int64               `json:"id"`
	UserID          int64               `json:"userId"`
	TranslatorID    int64               `json:"translatorId"`
	ServiceID       int64               `json:"serviceId"`
	CouponID        *int64              `json:"couponId"`
	BookingDate     string              `json:"bookingDate"`
	StartAt         string              `json:"startAt"`
	EndAt           string              `json:"endAt"`
	Duration        decimal.Decimal     `json:"duration"`
	Location        string              `json:"location"`
	Notes           string              `json:"notes,omitempty"`
	ServiceFee      decimal.Decimal     `json:"serviceFee"`
	SystemFee       decimal.Decimal     `json:"systemFee"`
	DiscountAmount  decimal.NullDecimal `json:"discountAmount"`
	TotalPrice      decimal.Decimal     `json:"totalPrice"`
	RequestStatus   RequestStatus       `json:"requestStatus"`
	BookingStatus   BookingStatus       `json:"bookingStatus"`
	RejectionReason string              `json:"rejectionReason,omitempty"`
	Version         int64               `json:"version"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	DeletedAt       *time.Time          `json:"-"`

	Service    *Service           `json:"service,omitempty"`
	Translator *TranslatorSummary `json:"translator,omitempty"`
	User       *UserSummary       `json:"user,omitempty"`
	Coupon     *Coupon            `json:"coupon,omitempty"`
	Review     *Review            `json:"review,omitempty"`
}

// Sort keys accepted by listings.
const (
	SortByCreatedAt   = "createdAt"
	SortByBookingDate = "bookingDate"
	SortByTotalPrice  = "totalPrice"

	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// ServiceRequestQuery selects a page of requests. Zero owner ids mean no
// ownership restriction.
type ServiceRequestQuery struct {
	UserID       int64
	TranslatorID int64
	Statuses     []RequestStatus
	SortBy       string
	Order        string
	Page         int
	Limit        int
}

// Normalize fills defaults and clamps paging.
func (q *ServiceRequestQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if len(q.Statuses) == 0 {
		q.Statuses = AllRequestStatuses()
	}
	switch q.SortBy {
	case SortByCreatedAt, SortByBookingDate, SortByTotalPrice:
	default:
		q.SortBy = SortByCreatedAt
	}
	if q.Order != OrderAsc {
		q.Order = OrderDesc
	}
}

func (q ServiceRequestQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one page of a listing.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func NewPage[T any](data []T, total, page, limit int) Page[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page[T]{Data: data, Total: total, Page: page, Limit: limit, TotalPages: pages}
}
