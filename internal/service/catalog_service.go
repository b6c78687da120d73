package service

import (
	"context"
	"errors"
	"strings"

	"translink/internal/auth"
	"translink/internal/database"
	"translink/internal/domain"
	"translink/internal/models"

	"github.com/shopspring/decimal"
)

// CatalogService manages the listings translators offer.
type CatalogService struct {
	Deps
}

func NewCatalogService(deps Deps) *CatalogService {
	return &CatalogService{Deps: deps.withDefaults()}
}

type ServiceInput struct {
	SourceLanguageID int64
	TargetLanguageID int64
	SpecializationID *int64
	PricePerHour     decimal.Decimal
	Description      string
}

type ServicePatch struct {
	SourceLanguageID *int64
	TargetLanguageID *int64
	SpecializationID *int64
	PricePerHour     *decimal.Decimal
	Description      *string
	IsActive         *bool
}

func (s *CatalogService) approvedTranslator(ctx context.Context, p auth.Principal) (*models.Translator, error) {
	tr, err := s.Store.GetTranslatorByUserID(ctx, p.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, domain.Forbidden("only approved translators can offer services")
	}
	if err != nil {
		return nil, err
	}
	if tr.Status != models.TranslatorApproved {
		return nil, domain.Forbidden("only approved translators can offer services")
	}
	return tr, nil
}

func (s *CatalogService) validate(ctx context.Context, svc *models.Service) error {
	if svc.SourceLanguageID == svc.TargetLanguageID {
		return domain.Validation("source and target languages must differ")
	}
	if !svc.PricePerHour.IsPositive() {
		return domain.Validation("pricePerHour must be positive")
	}
	for _, id := range []int64{svc.SourceLanguageID, svc.TargetLanguageID} {
		if _, err := s.Store.GetLanguage(ctx, id); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return domain.Validation("unknown language %d", id)
			}
			return err
		}
	}
	if svc.SpecializationID != nil {
		if _, err := s.Store.GetSpecialization(ctx, *svc.SpecializationID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return domain.Validation("unknown specialization %d", *svc.SpecializationID)
			}
			return err
		}
	}
	return nil
}

func (s *CatalogService) Create(ctx context.Context, p auth.Principal, in ServiceInput) (*models.Service, error) {
	tr, err := s.approvedTranslator(ctx, p)
	if err != nil {
		return nil, err
	}
	svc := &models.Service{
		TranslatorID:     tr.ID,
		SourceLanguageID: in.SourceLanguageID,
		TargetLanguageID: in.TargetLanguageID,
		SpecializationID: in.SpecializationID,
		PricePerHour:     in.PricePerHour,
		Description:      strings.TrimSpace(in.Description),
		IsActive:         true,
	}
	if err := s.validate(ctx, svc); err != nil {
		return nil, err
	}
	if err := s.Store.CreateService(ctx, svc); err != nil {
		return nil, storeError(err, "service")
	}
	return svc, nil
}

func (s *CatalogService) owned(ctx context.Context, p auth.Principal, id int64) (*models.Service, error) {
	tr, err := s.approvedTranslator(ctx, p)
	if err != nil {
		return nil, err
	}
	svc, err := s.Store.GetService(ctx, id)
	if err != nil {
		return nil, storeError(err, "service")
	}
	if svc.TranslatorID != tr.ID {
		return nil, domain.Forbidden("service does not belong to you")
	}
	return svc, nil
}

func (s *CatalogService) Update(ctx context.Context, p auth.Principal, id int64, in ServicePatch) (*models.Service, error) {
	svc, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if in.SourceLanguageID != nil {
		svc.SourceLanguageID = *in.SourceLanguageID
	}
	if in.TargetLanguageID != nil {
		svc.TargetLanguageID = *in.TargetLanguageID
	}
	if in.SpecializationID != nil {
		svc.SpecializationID = in.SpecializationID
	}
	if in.PricePerHour != nil {
		svc.PricePerHour = *in.PricePerHour
	}
	if in.Description != nil {
		svc.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
	if err := s.validate(ctx, svc); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateService(ctx, svc); err != nil {
		return nil, storeError(err, "service")
	}
	return svc, nil
}

// Deactivate hides a service from new bookings. Existing bookings keep it.
func (s *CatalogService) Deactivate(ctx context.Context, p auth.Principal, id int64) (*models.Service, error) {
	inactive := false
	return s.Update(ctx, p, id, ServicePatch{IsActive: &inactive})
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*models.Service, error) {
	svc, err := s.Store.GetService(ctx, id)
	if err != nil {
		return nil, storeError(err, "service")
	}
	return svc, nil
}

// List returns active services matching the filter.
func (s *CatalogService) List(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error) {
	filter.ActiveOnly = true
	services, err := s.Store.ListServices(ctx, filter)
	if err != nil {
		return nil, err
	}
	if services == nil {
		services = []*models.Service{}
	}
	return services, nil
}
