package service

import (
	"context"
	"strings"

	"translink/internal/auth"
	"translink/internal/domain"
	"translink/internal/models"
)

// ReferenceService manages languages and specializations.
type ReferenceService struct {
	Deps
}

func NewReferenceService(deps Deps) *ReferenceService {
	return &ReferenceService{Deps: deps.withDefaults()}
}

func (s *ReferenceService) CreateLanguage(ctx context.Context, p auth.Principal, code, name string) (*models.Language, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	code, name = strings.TrimSpace(code), strings.TrimSpace(name)
	if code == "" || name == "" {
		return nil, domain.Validation("code and name are required")
	}
	lang := &models.Language{Code: code, Name: name}
	if err := s.Store.CreateLanguage(ctx, lang); err != nil {
		return nil, storeError(err, "language")
	}
	return lang, nil
}

func (s *ReferenceService) Languages(ctx context.Context) ([]*models.Language, error) {
	langs, err := s.Store.ListLanguages(ctx)
	if err != nil {
		return nil, err
	}
	if langs == nil {
		langs = []*models.Language{}
	}
	return langs, nil
}

func (s *ReferenceService) CreateSpecialization(ctx context.Context, p auth.Principal, name string) (*models.Specialization, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validation("name is required")
	}
	spec := &models.Specialization{Name: name}
	if err := s.Store.CreateSpecialization(ctx, spec); err != nil {
		return nil, storeError(err, "specialization")
	}
	return spec, nil
}

func (s *ReferenceService) Specializations(ctx context.Context) ([]*models.Specialization, error) {
	specs, err := s.Store.ListSpecializations(ctx)
	if err != nil {
		return nil, err
	}
	if specs == nil {
		specs = []*models.Specialization{}
	}
	return specs, nil
}
