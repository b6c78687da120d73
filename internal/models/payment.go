package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID               int64           `json:"id"`
	ServiceRequestID int64           `json:"serviceRequestId"`
	UserID           int64           `json:"userId"`
	Amount           decimal.Decimal `json:"amount"`
	Method           PaymentMethod   `json:"method"`
	Status           PaymentStatus   `json:"status"`
	TransactionRef   string          `json:"transactionRef,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}
