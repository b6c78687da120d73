package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"translink/internal/auth"
	"translink/internal/database"
	"translink/internal/domain"
	"translink/internal/models"
)

const minPasswordLength = 8

type UserService struct {
	Deps
	issuer *auth.Issuer
}

func NewUserService(deps Deps, issuer *auth.Issuer) *UserService {
	return &UserService{Deps: deps.withDefaults(), issuer: issuer}
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

type ProfileInput struct {
	FullName       *string
	Phone          *string
	Address        *string
	TelegramChatID *int64
}

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"accessToken"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Register creates a client account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.Validation("email is invalid")
	}
	if len(in.Password) < minPasswordLength {
		return nil, domain.Validation("password must be at least %d characters", minPasswordLength)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, domain.Validation("fullName is required")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         models.RoleClient,
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, domain.Conflict("email already registered")
		}
		return nil, err
	}

	s.Logger.Info().Int64("user_id", user.ID).Msg("User registered")
	return user, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, domain.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, domain.Unauthorized("invalid email or password")
	}

	token, expiresAt, err := s.issuer.Sign(auth.Principal{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *UserService) Profile(ctx context.Context, p auth.Principal) (*models.User, error) {
	user, err := s.Store.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, p auth.Principal, in ProfileInput) (*models.User, error) {
	user, err := s.Store.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	if in.FullName != nil {
		if strings.TrimSpace(*in.FullName) == "" {
			return nil, domain.Validation("fullName cannot be empty")
		}
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		user.Address = strings.TrimSpace(*in.Address)
	}
	if in.TelegramChatID != nil {
		user.TelegramChatID = *in.TelegramChatID
	}
	if err := s.Store.UpdateUserProfile(ctx, user); err != nil {
		return nil, storeError(err, "user")
	}
	return user, nil
}
