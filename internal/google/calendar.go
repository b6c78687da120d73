// Package google mirrors approved bookings into a Google Calendar.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"translink/internal/events"
	"translink/internal/models"
	"translink/internal/notify"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type CalendarService struct {
	service    *calendar.Service
	calendarID string
	location   *time.Location
}

func NewCalendarService(ctx context.Context, credentialsFile, calendarID string, loc *time.Location) (*CalendarService, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return NewCalendarServiceWith(srv, calendarID, loc), nil
}

func NewCalendarServiceWith(srv *calendar.Service, calendarID string, loc *time.Location) *CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarService{service: srv, calendarID: calendarID, location: loc}
}

// TestConnection проверяет доступ к календарю
func (s *CalendarService) TestConnection(ctx context.Context) error {
	_, err := s.service.Calendars.Get(s.calendarID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("calendar %s: %w", s.calendarID, err)
	}
	return nil
}

// Accepts limits the calendar to bookings that were just approved.
func (s *CalendarService) Accepts(event string) bool {
	return event == events.EventRequestApproved
}

// Notify inserts the booking as a calendar event. The event id is derived
// from the booking id so a retried insert is a no-op.
func (s *CalendarService) Notify(ctx context.Context, _ *models.User, payload models.NotificationPayload, msg notify.Message) error {
	ev, err := s.bookingEvent(payload, msg)
	if err != nil {
		return err
	}

	_, err = s.service.Events.Insert(s.calendarID, ev).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert calendar event for request %d: %w", payload.ServiceRequestID, err)
	}
	return nil
}

// EventID is the calendar event id of a booking. Google accepts base32hex
// characters only.
func EventID(serviceRequestID int64) string {
	return fmt.Sprintf("translink%d", serviceRequestID)
}

func (s *CalendarService) bookingEvent(payload models.NotificationPayload, msg notify.Message) (*calendar.Event, error) {
	start, err := time.ParseInLocation(models.DateLayout+" "+models.ClockLayout, payload.BookingDate+" "+payload.StartAt, s.location)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	end, err := time.ParseInLocation(models.DateLayout+" "+models.ClockLayout, payload.BookingDate+" "+payload.EndAt, s.location)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}

	return &calendar.Event{
		Id:          EventID(payload.ServiceRequestID),
		Summary:     fmt.Sprintf("Translation booking #%d", payload.ServiceRequestID),
		Description: msg.Body,
		Location:    payload.Location,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: s.location.String()},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: s.location.String()},
	}, nil
}
