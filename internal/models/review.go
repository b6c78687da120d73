package models

import "time"

type Review struct {
	ID               int64     `json:"id"`
	ServiceRequestID int64     `json:"serviceRequestId"`
	UserID           int64     `json:"userId"`
	TranslatorID     int64     `json:"translatorId"`
	Rating           int       `json:"rating"`
	Comment          string    `json:"comment,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}
