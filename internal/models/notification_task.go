package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Notification channels.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelCalendar = "calendar"
)

// Outbox task states.
const (
	TaskPending   = "pending"
	TaskRetry     = "retry"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// NotificationTask is an outbox row written in the same transaction as the
// change it announces.
type NotificationTask struct {
	ID               int64      `json:"id"`
	Channel          string     `json:"channel"`
	Event            string     `json:"event"`
	ServiceRequestID int64      `json:"service_request_id"`
	Payload          string     `json:"payload"`
	Status           string     `json:"status"`
	RetryCount       int        `json:"retry_count"`
	LastError        *string    `json:"last_error"`
	CreatedAt        time.Time  `json:"created_at"`
	ProcessedAt      *time.Time `json:"processed_at"`
	NextRetryAt      *time.Time `json:"next_retry_at"`
}

// NotificationPayload is the booking snapshot carried by an outbox task.
type NotificationPayload struct {
	Event            string          `json:"event"`
	ServiceRequestID int64           `json:"service_request_id"`
	RecipientUserID  int64           `json:"recipient_user_id"`
	RequesterID      int64           `json:"requester_id"`
	TranslatorID     int64           `json:"translator_id"`
	RequestStatus    RequestStatus   `json:"request_status"`
	BookingStatus    BookingStatus   `json:"booking_status"`
	BookingDate      string          `json:"booking_date"`
	StartAt          string          `json:"start_at"`
	EndAt            string          `json:"end_at"`
	Location         string          `json:"location,omitempty"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Reason           string          `json:"reason,omitempty"`
	ChangedByID      int64           `json:"changed_by_id,omitempty"`
}

// NewNotificationPayload snapshots req for the given event and recipient.
func NewNotificationPayload(event string, req *ServiceRequest, recipientUserID, changedBy int64) NotificationPayload {
	return NotificationPayload{
		Event:            event,
		ServiceRequestID: req.ID,
		RecipientUserID:  recipientUserID,
		RequesterID:      req.UserID,
		TranslatorID:     req.TranslatorID,
		RequestStatus:    req.RequestStatus,
		BookingStatus:    req.BookingStatus,
		BookingDate:      req.BookingDate,
		StartAt:          req.StartAt,
		EndAt:            req.EndAt,
		Location:         req.Location,
		TotalPrice:       req.TotalPrice,
		Reason:           req.RejectionReason,
		ChangedByID:      changedBy,
	}
}
