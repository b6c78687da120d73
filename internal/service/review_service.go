package service

import (
	"context"
	"errors"
	"strings"

	"translink/internal/auth"
	"translink/internal/database"
	"translink/internal/domain"
	"translink/internal/events"
	"translink/internal/models"
	"translink/internal/pricing"
)

type ReviewService struct {
	Deps
}

func NewReviewService(deps Deps) *ReviewService {
	return &ReviewService{Deps: deps.withDefaults()}
}

// Create attaches the requester's review to a completed booking and folds
// the rating into the translator's average.
func (s *ReviewService) Create(ctx context.Context, p auth.Principal, serviceRequestID int64, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, domain.Validation("rating must be between 1 and 5")
	}

	var (
		review *models.Review
		staged []models.NotificationTask
	)
	err := s.Store.WithTx(ctx, func(tx domain.Repository) error {
		staged = staged[:0]

		req, err := owned(ctx, tx, p, serviceRequestID)
		if err != nil {
			return err
		}
		if req.BookingStatus != models.BookingCompleted {
			return domain.Conflict("only completed bookings can be reviewed")
		}
		if _, err := tx.GetReviewByServiceRequest(ctx, req.ID); err == nil {
			return domain.Conflict("service request already reviewed")
		} else if !errors.Is(err, database.ErrNotFound) {
			return err
		}

		review = &models.Review{
			ServiceRequestID: req.ID,
			UserID:           p.UserID,
			TranslatorID:     req.TranslatorID,
			Rating:           rating,
			Comment:          strings.TrimSpace(comment),
		}
		if err := tx.CreateReview(ctx, review); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return domain.Conflict("service request already reviewed")
			}
			return err
		}

		// Блокируем строку переводчика до пересчета среднего
		if err := tx.LockTranslator(ctx, req.TranslatorID); err != nil {
			return storeError(err, "translator")
		}
		translator, err := tx.GetTranslatorByID(ctx, req.TranslatorID)
		if err != nil {
			return storeError(err, "translator")
		}
		newRating, newCount := pricing.RunningMean(translator.Rating, translator.ReviewsCount, rating)
		if err := tx.UpdateTranslatorRating(ctx, translator.ID, newRating, newCount, translator.ReviewsCount); err != nil {
			return storeError(err, "translator rating")
		}

		return s.stage(ctx, tx, &staged, models.NewNotificationPayload(events.EventReviewCreated, req, translator.UserID, p.UserID))
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().Int64("review_id", review.ID).Int64("translator_id", review.TranslatorID).
		Int("rating", review.Rating).Msg("Review created")
	s.committed(ctx, events.EventReviewCreated, review, staged)
	return review, nil
}
