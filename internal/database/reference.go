package database

import (
	"context"
	"fmt"
	"strings"

	"translink/internal/models"
)

func (s *Store) CreateLanguage(ctx context.Context, lang *models.Language) error {
	lang.Code = strings.ToLower(strings.TrimSpace(lang.Code))
	id, err := s.insert(ctx, `INSERT INTO languages (code, name) VALUES (?, ?)`, lang.Code, lang.Name)
	if err != nil {
		return fmt.Errorf("failed to create language: %w", err)
	}
	lang.ID = id
	return nil
}

func (s *Store) GetLanguage(ctx context.Context, id int64) (*models.Language, error) {
	var l models.Language
	err := s.queryRow(ctx, `SELECT id, code, name FROM languages WHERE id = ?`, id).Scan(&l.ID, &l.Code, &l.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get language %d: %w", id, notFound(err))
	}
	return &l, nil
}

func (s *Store) ListLanguages(ctx context.Context) ([]*models.Language, error) {
	rows, err := s.query(ctx, `SELECT id, code, name FROM languages ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list languages: %w", err)
	}
	defer rows.Close()

	var out []*models.Language
	for rows.Next() {
		var l models.Language
		if err := rows.Scan(&l.ID, &l.Code, &l.Name); err != nil {
			return nil, fmt.Errorf("failed to scan language: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (s *Store) CreateSpecialization(ctx context.Context, spec *models.Specialization) error {
	id, err := s.insert(ctx, `INSERT INTO specializations (name) VALUES (?)`, strings.TrimSpace(spec.Name))
	if err != nil {
		return fmt.Errorf("failed to create specialization: %w", err)
	}
	spec.ID = id
	return nil
}

func (s *Store) GetSpecialization(ctx context.Context, id int64) (*models.Specialization, error) {
	var sp models.Specialization
	err := s.queryRow(ctx, `SELECT id, name FROM specializations WHERE id = ?`, id).Scan(&sp.ID, &sp.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get specialization %d: %w", id, notFound(err))
	}
	return &sp, nil
}

func (s *Store) ListSpecializations(ctx context.Context) ([]*models.Specialization, error) {
	rows, err := s.query(ctx, `SELECT id, name FROM specializations ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list specializations: %w", err)
	}
	defer rows.Close()

	var out []*models.Specialization
	for rows.Next() {
		var sp models.Specialization
		if err := rows.Scan(&sp.ID, &sp.Name); err != nil {
			return nil, fmt.Errorf("failed to scan specialization: %w", err)
		}
		out = append(out, &sp)
	}
	return out, rows.Err()
}
