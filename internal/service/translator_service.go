package service

import (
	"context"
	"errors"
	"strings"

	"translink/internal/auth"
	"translink/internal/database"
	"translink/internal/domain"
	"translink/internal/models"
)

type TranslatorService struct {
	Deps
}

func NewTranslatorService(deps Deps) *TranslatorService {
	return &TranslatorService{Deps: deps.withDefaults()}
}

type ApplyInput struct {
	Bio               string
	ExperienceYears   int
	LanguageIDs       []int64
	SpecializationIDs []int64
}

// Apply creates a pending translator profile for the caller.
func (s *TranslatorService) Apply(ctx context.Context, p auth.Principal, in ApplyInput) (*models.Translator, error) {
	if err := requireRole(p, models.RoleClient); err != nil {
		return nil, err
	}
	if len(in.LanguageIDs) == 0 {
		return nil, domain.Validation("at least one language is required")
	}
	if in.ExperienceYears < 0 {
		return nil, domain.Validation("experienceYears cannot be negative")
	}

	var translator *models.Translator
	err := s.Store.WithTx(ctx, func(tx domain.Repository) error {
		if _, err := tx.GetTranslatorByUserID(ctx, p.UserID); err == nil {
			return domain.Conflict("translator profile already exists")
		} else if !errors.Is(err, database.ErrNotFound) {
			return err
		}

		for _, id := range dedupe(in.LanguageIDs) {
			if _, err := tx.GetLanguage(ctx, id); err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return domain.Validation("unknown language %d", id)
				}
				return err
			}
		}
		for _, id := range dedupe(in.SpecializationIDs) {
			if _, err := tx.GetSpecialization(ctx, id); err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return domain.Validation("unknown specialization %d", id)
				}
				return err
			}
		}

		translator = &models.Translator{
			UserID:            p.UserID,
			Bio:               strings.TrimSpace(in.Bio),
			ExperienceYears:   in.ExperienceYears,
			Status:            models.TranslatorPending,
			LanguageIDs:       dedupe(in.LanguageIDs),
			SpecializationIDs: dedupe(in.SpecializationIDs),
		}
		return storeError(tx.CreateTranslator(ctx, translator), "translator profile")
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().Int64("translator_id", translator.ID).Int64("user_id", p.UserID).Msg("Translator application received")
	return translator, nil
}

func (s *TranslatorService) Get(ctx context.Context, id int64) (*models.Translator, error) {
	tr, err := s.Store.GetTranslatorByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "translator")
	}
	return tr, nil
}

// Approve accepts a pending application and grants the translator role.
func (s *TranslatorService) Approve(ctx context.Context, p auth.Principal, id int64) (*models.Translator, error) {
	return s.review(ctx, p, id, models.TranslatorApproved)
}

func (s *TranslatorService) Reject(ctx context.Context, p auth.Principal, id int64) (*models.Translator, error) {
	return s.review(ctx, p, id, models.TranslatorRejected)
}

func (s *TranslatorService) review(ctx context.Context, p auth.Principal, id int64, status models.TranslatorStatus) (*models.Translator, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}

	var tr *models.Translator
	err := s.Store.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		tr, err = tx.GetTranslatorByID(ctx, id)
		if err != nil {
			return storeError(err, "translator")
		}
		if tr.Status != models.TranslatorPending {
			return domain.Conflict("only pending applications can be reviewed")
		}
		if err := tx.UpdateTranslatorStatus(ctx, id, status); err != nil {
			return err
		}
		if status == models.TranslatorApproved {
			if err := tx.UpdateUserRole(ctx, tr.UserID, models.RoleTranslator); err != nil {
				return err
			}
		}
		tr.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().Int64("translator_id", id).Str("status", string(status)).Msg("Translator application reviewed")
	return tr, nil
}

func (s *TranslatorService) Reviews(ctx context.Context, translatorID int64, page, limit int) (models.Page[*models.Review], error) {
	if _, err := s.Store.GetTranslatorByID(ctx, translatorID); err != nil {
		return models.Page[*models.Review]{}, storeError(err, "translator")
	}
	q := models.ServiceRequestQuery{Page: page, Limit: limit}
	q.Normalize()

	reviews, total, err := s.Store.ListTranslatorReviews(ctx, translatorID, q.Limit, q.Offset())
	if err != nil {
		return models.Page[*models.Review]{}, err
	}
	return models.NewPage(reviews, total, q.Page, q.Limit), nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
