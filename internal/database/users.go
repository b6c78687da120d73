package database

import (
	"context"
	"fmt"
	"strings"

	"translink/internal/models"
)

const userColumns = `id, email, password_hash, full_name, phone, address, role, telegram_chat_id, created_at, updated_at`

func scanUser(sc scanner) (*models.User, error) {
	var u models.User
	err := sc.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.Address,
		&u.Role, &u.TelegramChatID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	ts := now()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RoleClient
	}

	id, err := s.insert(ctx, `INSERT INTO users (email, password_hash, full_name, phone, address, role, telegram_chat_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email, user.PasswordHash, user.FullName, user.Phone, user.Address, user.Role, user.TelegramChatID, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = id
	user.CreatedAt = ts
	user.UpdatedAt = ts
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, notFound(err))
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", notFound(err))
	}
	return u, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, user *models.User) error {
	ts := now()
	err := s.execOne(ctx, ErrNotFound, `UPDATE users SET full_name = ?, phone = ?, address = ?, telegram_chat_id = ?, updated_at = ? WHERE id = ?`,
		user.FullName, user.Phone, user.Address, user.TelegramChatID, ts, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	user.UpdatedAt = ts
	return nil
}

func (s *Store) UpdateUserRole(ctx context.Context, id int64, role models.Role) error {
	err := s.execOne(ctx, ErrNotFound, `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	return nil
}
