// Package service holds the business operations of the marketplace. Every
// multi-step mutation runs inside one store transaction; notifications are
// staged in that transaction and handed to delivery after commit.
package service

import (
	"context"
	"errors"
	"time"

	"translink/internal/auth"
	"translink/internal/database"
	"translink/internal/domain"
	"translink/internal/metrics"
	"translink/internal/models"

	"github.com/rs/zerolog"
)

// Deps are the collaborators shared by all services.
type Deps struct {
	Store    domain.Store
	Events   domain.EventPublisher
	Outbox   domain.NotificationOutbox
	Location *time.Location
	Logger   *zerolog.Logger
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		nop := zerolog.Nop()
		d.Logger = &nop
	}
	return d
}

// today is the current calendar date in the configured timezone.
func (d Deps) today() string {
	return d.Now().In(d.Location).Format(models.DateLayout)
}

func (d Deps) stage(ctx context.Context, tx domain.Repository, staged *[]models.NotificationTask, payloads ...models.NotificationPayload) error {
	if d.Outbox == nil {
		return nil
	}
	for _, p := range payloads {
		if p.RecipientUserID == 0 {
			continue
		}
		tasks, err := d.Outbox.Stage(ctx, tx, p)
		if err != nil {
			return err
		}
		*staged = append(*staged, tasks...)
	}
	return nil
}

// committed runs the after-commit side effects of one operation.
func (d Deps) committed(ctx context.Context, event string, payload any, tasks []models.NotificationTask) {
	if d.Outbox != nil && len(tasks) > 0 {
		d.Outbox.Dispatch(ctx, tasks)
	}
	metrics.IncLifecycle(event)
	if d.Events == nil {
		return
	}
	if err := d.Events.PublishJSON(event, payload); err != nil {
		d.Logger.Error().Err(err).Str("event_type", event).Msg("publish event error")
	}
}

// storeError maps storage sentinels to business errors. what names the
// entity in the message.
func storeError(err error, what string) error {
	var de *domain.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, database.ErrNotFound):
		return domain.NotFound("%s not found", what)
	case errors.Is(err, database.ErrConcurrentModification):
		return domain.Conflict("%s was modified concurrently, retry", what)
	case errors.Is(err, database.ErrDuplicate):
		return domain.Conflict("%s already exists", what)
	}
	return err
}

func requireRole(p auth.Principal, roles ...models.Role) error {
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return domain.Forbidden("insufficient permissions")
}

func validDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}
