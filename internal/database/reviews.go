package database

import (
	"context"
	"fmt"

	"translink/internal/models"
)

const reviewColumns = `id, service_request_id, user_id, translator_id, rating, comment, created_at`

func scanReview(sc scanner) (*models.Review, error) {
	var r models.Review
	if err := sc.Scan(&r.ID, &r.ServiceRequestID, &r.UserID, &r.TranslatorID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateReview(ctx context.Context, r *models.Review) error {
	ts := now()
	id, err := s.insert(ctx, `INSERT INTO reviews (service_request_id, user_id, translator_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ServiceRequestID, r.UserID, r.TranslatorID, r.Rating, r.Comment, ts)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	r.ID = id
	r.CreatedAt = ts
	return nil
}

func (s *Store) GetReviewByServiceRequest(ctx context.Context, serviceRequestID int64) (*models.Review, error) {
	r, err := scanReview(s.queryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE service_request_id = ?`, serviceRequestID))
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", notFound(err))
	}
	return r, nil
}

func (s *Store) ListTranslatorReviews(ctx context.Context, translatorID int64, limit, offset int) ([]*models.Review, int, error) {
	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE translator_id = ?`, translatorID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	rows, err := s.query(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE translator_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, translatorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var out []*models.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan review: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}
