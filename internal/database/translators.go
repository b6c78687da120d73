package database

import (
	"context"
	"fmt"

	"translink/internal/models"

	"github.com/shopspring/decimal"
)

const translatorSelect = `SELECT t.id, t.user_id, t.bio, t.experience_years, t.status, t.rating, t.reviews_count,
	t.created_at, t.updated_at, u.full_name, u.email, u.phone
	FROM translators t JOIN users u ON u.id = t.user_id`

func (s *Store) CreateTranslator(ctx context.Context, tr *models.Translator) error {
	ts := now()
	if tr.Status == "" {
		tr.Status = models.TranslatorPending
	}

	id, err := s.insert(ctx, `INSERT INTO translators (user_id, bio, experience_years, status, rating, reviews_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.UserID, tr.Bio, tr.ExperienceYears, tr.Status, tr.Rating, tr.ReviewsCount, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	for _, langID := range tr.LanguageIDs {
		if _, err := s.exec(ctx, `INSERT INTO translator_languages (translator_id, language_id) VALUES (?, ?)`, id, langID); err != nil {
			return fmt.Errorf("failed to attach language %d: %w", langID, err)
		}
	}
	for _, specID := range tr.SpecializationIDs {
		if _, err := s.exec(ctx, `INSERT INTO translator_specializations (translator_id, specialization_id) VALUES (?, ?)`, id, specID); err != nil {
			return fmt.Errorf("failed to attach specialization %d: %w", specID, err)
		}
	}

	tr.ID = id
	tr.CreatedAt = ts
	tr.UpdatedAt = ts
	return nil
}

func (s *Store) GetTranslatorByID(ctx context.Context, id int64) (*models.Translator, error) {
	tr, err := s.getTranslator(ctx, ` WHERE t.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get translator %d: %w", id, err)
	}
	return tr, nil
}

func (s *Store) GetTranslatorByUserID(ctx context.Context, userID int64) (*models.Translator, error) {
	tr, err := s.getTranslator(ctx, ` WHERE t.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get translator for user %d: %w", userID, err)
	}
	return tr, nil
}

func (s *Store) getTranslator(ctx context.Context, where string, arg int64) (*models.Translator, error) {
	var (
		tr   models.Translator
		user models.UserSummary
	)
	err := s.queryRow(ctx, translatorSelect+where, arg).Scan(
		&tr.ID, &tr.UserID, &tr.Bio, &tr.ExperienceYears, &tr.Status, &tr.Rating, &tr.ReviewsCount,
		&tr.CreatedAt, &tr.UpdatedAt, &user.FullName, &user.Email, &user.Phone,
	)
	if err != nil {
		return nil, notFound(err)
	}
	user.ID = tr.UserID
	tr.User = &user

	if tr.LanguageIDs, err = s.idList(ctx, `SELECT language_id FROM translator_languages WHERE translator_id = ? ORDER BY language_id`, tr.ID); err != nil {
		return nil, err
	}
	if tr.SpecializationIDs, err = s.idList(ctx, `SELECT specialization_id FROM translator_specializations WHERE translator_id = ? ORDER BY specialization_id`, tr.ID); err != nil {
		return nil, err
	}
	return &tr, nil
}

func (s *Store) idList(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := s.query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) UpdateTranslatorStatus(ctx context.Context, id int64, status models.TranslatorStatus) error {
	err := s.execOne(ctx, ErrNotFound, `UPDATE translators SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update translator status: %w", err)
	}
	return nil
}

// LockTranslator takes a row lock on the translator until the transaction
// ends. SQLite has no row locks; its single writer connection serialises
// transactions instead.
func (s *Store) LockTranslator(ctx context.Context, id int64) error {
	var got int64
	err := s.queryRow(ctx, `SELECT id FROM translators WHERE id = ?`+s.forUpdate(), id).Scan(&got)
	if err != nil {
		return fmt.Errorf("failed to lock translator %d: %w", id, notFound(err))
	}
	return nil
}

// UpdateTranslatorRating stores a new aggregate only if reviews_count still
// equals prevCount. ErrConcurrentModification means another review landed
// in between.
func (s *Store) UpdateTranslatorRating(ctx context.Context, id int64, rating decimal.Decimal, reviewsCount, prevCount int) error {
	err := s.execOne(ctx, ErrConcurrentModification,
		`UPDATE translators SET rating = ?, reviews_count = ?, updated_at = ? WHERE id = ? AND reviews_count = ?`,
		rating, reviewsCount, now(), id, prevCount)
	if err != nil {
		return fmt.Errorf("failed to update translator rating: %w", err)
	}
	return nil
}
