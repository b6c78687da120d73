package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"translink/internal/models"

	"github.com/rs/zerolog"
)

// ErrSkipped means the recipient cannot be reached on a channel. The task
// is done, not failed.
var ErrSkipped = errors.New("notification skipped")

// Notifier delivers one rendered message over one channel.
type Notifier interface {
	Notify(ctx context.Context, recipient *models.User, payload models.NotificationPayload, msg Message) error
}

// EventFilter is implemented by notifiers that only handle some events.
type EventFilter interface {
	Accepts(event string) bool
}

// UserLookup resolves notification recipients.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Router fans notifications out to the registered channel notifiers.
type Router struct {
	users     UserLookup
	notifiers map[string]Notifier
	logger    *zerolog.Logger
}

func NewRouter(users UserLookup, logger *zerolog.Logger) *Router {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{users: users, notifiers: make(map[string]Notifier), logger: logger}
}

// Register binds a notifier to a channel name. Not safe for use after the
// worker has started.
func (r *Router) Register(channel string, n Notifier) {
	r.notifiers[channel] = n
}

// Channels lists the channels that take the event, sorted by name.
func (r *Router) Channels(event string) []string {
	out := make([]string, 0, len(r.notifiers))
	for ch, n := range r.notifiers {
		if f, ok := n.(EventFilter); ok && !f.Accepts(event) {
			continue
		}
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Deliver renders payload for its recipient and sends it over channel.
func (r *Router) Deliver(ctx context.Context, channel string, payload models.NotificationPayload) error {
	n, ok := r.notifiers[channel]
	if !ok {
		return fmt.Errorf("unknown channel %q", channel)
	}

	recipient, err := r.users.GetUserByID(ctx, payload.RecipientUserID)
	if err != nil {
		return fmt.Errorf("load recipient %d: %w", payload.RecipientUserID, err)
	}

	msg, err := Render(payload, recipient)
	if err != nil {
		return err
	}

	if err := n.Notify(ctx, recipient, payload, msg); err != nil {
		return err
	}
	r.logger.Debug().Str("channel", channel).Str("event", payload.Event).
		Int64("user_id", recipient.ID).Msg("Notification delivered")
	return nil
}

// LogNotifier writes notifications to the log. It stands in for email when
// SMTP is not configured.
type LogNotifier struct {
	Logger *zerolog.Logger
}

func (l LogNotifier) Notify(_ context.Context, recipient *models.User, payload models.NotificationPayload, msg Message) error {
	if l.Logger == nil {
		return nil
	}
	l.Logger.Info().Str("to", recipient.Email).Str("event", payload.Event).
		Str("subject", msg.Subject).Msg("Notification")
	return nil
}
