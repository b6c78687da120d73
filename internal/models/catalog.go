package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Language struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Specialization struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Service is a listing offered by a translator for one language pair.
type Service struct {
	ID               int64           `json:"id"`
	TranslatorID     int64           `json:"translatorId"`
	SourceLanguageID int64           `json:"sourceLanguageId"`
	TargetLanguageID int64           `json:"targetLanguageId"`
	SpecializationID *int64          `json:"specializationId,omitempty"`
	PricePerHour     decimal.Decimal `json:"pricePerHour"`
	Description      string          `json:"description,omitempty"`
	IsActive         bool            `json:"isActive"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type ServiceFilter struct {
	TranslatorID     int64
	SourceLanguageID int64
	TargetLanguageID int64
	ActiveOnly       bool
}
