package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Translator struct {
	ID                int64            `json:"id"`
	UserID            int64            `json:"userId"`
	Bio               string           `json:"bio"`
	ExperienceYears   int              `json:"experienceYears"`
	Status            TranslatorStatus `json:"status"`
	Rating            decimal.Decimal  `json:"rating"`
	ReviewsCount      int              `json:"reviewsCount"`
	LanguageIDs       []int64          `json:"languageIds"`
	SpecializationIDs []int64          `json:"specializationIds"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`

	User *UserSummary `json:"user,omitempty"`
}

// TranslatorSummary is the translator projection embedded in bookings.
type TranslatorSummary struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"userId"`
	FullName     string          `json:"fullName"`
	Rating       decimal.Decimal `json:"rating"`
	ReviewsCount int             `json:"reviewsCount"`
}

func (t *Translator) Summary() *TranslatorSummary {
	if t == nil {
		return nil
	}
	s := &TranslatorSummary{
		ID:           t.ID,
		UserID:       t.UserID,
		Rating:       t.Rating,
		ReviewsCount: t.ReviewsCount,
	}
	if t.User != nil {
		s.FullName = t.User.FullName
	}
	return s
}
