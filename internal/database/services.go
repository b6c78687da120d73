package database

import (
	"context"
	"fmt"
	"strings"

	"translink/internal/models"
)

const serviceColumns = `id, translator_id, source_language_id, target_language_id, specialization_id,
	price_per_hour, description, is_active, created_at, updated_at`

func scanService(sc scanner) (*models.Service, error) {
	var svc models.Service
	err := sc.Scan(&svc.ID, &svc.TranslatorID, &svc.SourceLanguageID, &svc.TargetLanguageID, &svc.SpecializationID,
		&svc.PricePerHour, &svc.Description, &svc.IsActive, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *Store) CreateService(ctx context.Context, svc *models.Service) error {
	ts := now()
	id, err := s.insert(ctx, `INSERT INTO services (translator_id, source_language_id, target_language_id, specialization_id,
		price_per_hour, description, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.TranslatorID, svc.SourceLanguageID, svc.TargetLanguageID, svc.SpecializationID,
		svc.PricePerHour, svc.Description, svc.IsActive, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	svc.ID = id
	svc.CreatedAt = ts
	svc.UpdatedAt = ts
	return nil
}

func (s *Store) GetService(ctx context.Context, id int64) (*models.Service, error) {
	svc, err := scanService(s.queryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get service %d: %w", id, notFound(err))
	}
	return svc, nil
}

func (s *Store) UpdateService(ctx context.Context, svc *models.Service) error {
	ts := now()
	err := s.execOne(ctx, ErrNotFound, `UPDATE services SET source_language_id = ?, target_language_id = ?, specialization_id = ?,
		price_per_hour = ?, description = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		svc.SourceLanguageID, svc.TargetLanguageID, svc.SpecializationID,
		svc.PricePerHour, svc.Description, svc.IsActive, ts, svc.ID)
	if err != nil {
		return fmt.Errorf("failed to update service %d: %w", svc.ID, err)
	}
	svc.UpdatedAt = ts
	return nil
}

func (s *Store) ListServices(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error) {
	var (
		where []string
		args  []any
	)
	if filter.TranslatorID != 0 {
		where = append(where, "translator_id = ?")
		args = append(args, filter.TranslatorID)
	}
	if filter.SourceLanguageID != 0 {
		where = append(where, "source_language_id = ?")
		args = append(args, filter.SourceLanguageID)
	}
	if filter.TargetLanguageID != 0 {
		where = append(where, "target_language_id = ?")
		args = append(args, filter.TargetLanguageID)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}

	query := `SELECT ` + serviceColumns + ` FROM services`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY price_per_hour ASC, id ASC"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var out []*models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}
