package models

import "github.com/shopspring/decimal"

func init() {
	// Money and rating values go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Role is one of the fixed account roles.
type Role string

const (
	RoleClient     Role = "client"
	RoleTranslator Role = "translator"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleTranslator, RoleAdmin:
		return true
	}
	return false
}

// RequestStatus is the approval axis of a service request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// AllRequestStatuses is the default status filter for listings.
func AllRequestStatuses() []RequestStatus {
	return []RequestStatus{RequestPending, RequestApproved, RequestRejected, RequestCancelled}
}

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestCancelled:
		return true
	}
	return false
}

// BookingStatus is the fulfilment axis of a service request.
type BookingStatus string

const (
	BookingNotStarted BookingStatus = "NOT_STARTED"
	BookingUnpaid     BookingStatus = "UNPAID"
	BookingInProgress BookingStatus = "IN_PROGRESS"
	BookingCompleted  BookingStatus = "COMPLETED"
	BookingCancelled  BookingStatus = "CANCELLED"
)

type CouponStatus string

const (
	CouponActive   CouponStatus = "ACTIVE"
	CouponInactive CouponStatus = "INACTIVE"
)

func (s CouponStatus) Valid() bool {
	return s == CouponActive || s == CouponInactive
}

type TranslatorStatus string

const (
	TranslatorPending  TranslatorStatus = "PENDING"
	TranslatorApproved TranslatorStatus = "APPROVED"
	TranslatorRejected TranslatorStatus = "REJECTED"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "CARD"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentWallet       PaymentMethod = "WALLET"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentBankTransfer, PaymentWallet:
		return true
	}
	return false
}

// Wire formats for booking dates and clock times.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

const (
	// DefaultPageSize is used when limit is omitted.
	DefaultPageSize = 10
	MaxPageSize     = 100

	// WorkerQueueSize is the notification worker's in-memory buffer.
	WorkerQueueSize = 1000
)
