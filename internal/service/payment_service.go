package service

import (
	"context"
	"errors"

	"translink/internal/auth"
	"translink/internal/database"
	"translink/internal/domain"
	"translink/internal/events"
	"translink/internal/lifecycle"
	"translink/internal/models"

	"github.com/google/uuid"
)

type PaymentService struct {
	Deps
	bookings *BookingService
}

func NewPaymentService(deps Deps, bookings *BookingService) *PaymentService {
	return &PaymentService{Deps: deps.withDefaults(), bookings: bookings}
}

// Create opens a payment for an approved, unpaid booking of the caller.
func (s *PaymentService) Create(ctx context.Context, p auth.Principal, serviceRequestID int64, method models.PaymentMethod) (*models.Payment, error) {
	if !method.Valid() {
		return nil, domain.Validation("unknown payment method %q", method)
	}

	var payment *models.Payment
	err := s.Store.WithTx(ctx, func(tx domain.Repository) error {
		req, err := owned(ctx, tx, p, serviceRequestID)
		if err != nil {
			return err
		}
		if !lifecycle.Can(lifecycle.Of(req), lifecycle.ActionPay) {
			return domain.Conflict("only approved unpaid bookings can be paid")
		}
		open, err := tx.CountOpenPayments(ctx, req.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return domain.Conflict("service request already has an open payment")
		}

		payment = &models.Payment{
			ServiceRequestID: req.ID,
			UserID:           p.UserID,
			Amount:           req.TotalPrice,
			Method:           method,
			Status:           models.PaymentPending,
			TransactionRef:   uuid.NewString(),
		}
		err = tx.CreatePayment(ctx, payment)
		if errors.Is(err, database.ErrDuplicate) {
			return domain.Conflict("service request already has an open payment")
		}
		return storeError(err, "payment")
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().Int64("payment_id", payment.ID).Int64("service_request_id", serviceRequestID).
		Str("amount", payment.Amount.String()).Msg("Payment created")
	return payment, nil
}

// Confirm settles a pending payment and moves its booking into fulfilment.
func (s *PaymentService) Confirm(ctx context.Context, p auth.Principal, paymentID int64) (*models.Payment, error) {
	return s.settle(ctx, p, paymentID, models.PaymentPending, models.PaymentSucceeded, events.EventPaymentConfirmed)
}

// Fail marks a pending payment as failed. The booking stays unpaid.
func (s *PaymentService) Fail(ctx context.Context, p auth.Principal, paymentID int64) (*models.Payment, error) {
	return s.settle(ctx, p, paymentID, models.PaymentPending, models.PaymentFailed, events.EventPaymentFailed)
}

// Refund returns a settled payment. The booking is not affected.
func (s *PaymentService) Refund(ctx context.Context, p auth.Principal, paymentID int64) (*models.Payment, error) {
	return s.settle(ctx, p, paymentID, models.PaymentSucceeded, models.PaymentRefunded, events.EventPaymentRefunded)
}

func (s *PaymentService) settle(ctx context.Context, p auth.Principal, paymentID int64, from, to models.PaymentStatus, event string) (*models.Payment, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		payment *models.Payment
		req     *models.ServiceRequest
		staged  []models.NotificationTask
	)
	err := s.Store.WithTx(ctx, func(tx domain.Repository) error {
		staged = staged[:0]

		var err error
		payment, err = tx.GetPayment(ctx, paymentID)
		if err != nil {
			return storeError(err, "payment")
		}
		if payment.Status != from {
			return domain.Conflict("payment is %s, expected %s", payment.Status, from)
		}
		if err := tx.UpdatePaymentStatus(ctx, payment.ID, from, to); err != nil {
			if errors.Is(err, database.ErrConcurrentModification) {
				return domain.Conflict("payment was modified concurrently, retry")
			}
			return err
		}
		payment.Status = to

		req, err = tx.GetServiceRequest(ctx, payment.ServiceRequestID)
		if err != nil {
			return storeError(err, "service request")
		}
		if to == models.PaymentSucceeded {
			if err := transition(ctx, tx, req, lifecycle.ActionPay, ""); err != nil {
				return err
			}
		}

		payloads := []models.NotificationPayload{models.NewNotificationPayload(event, req, req.UserID, p.UserID)}
		if to == models.PaymentSucceeded {
			translator, err := tx.GetTranslatorByID(ctx, req.TranslatorID)
			if err != nil {
				return storeError(err, "translator")
			}
			payloads = append(payloads, models.NewNotificationPayload(event, req, translator.UserID, p.UserID))
		}
		return s.stage(ctx, tx, &staged, payloads...)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().Int64("payment_id", payment.ID).Str("status", string(payment.Status)).
		Str("booking_status", string(req.BookingStatus)).Msg("Payment settled")
	s.committed(ctx, event, payment, staged)
	return payment, nil
}

// List returns the payments of a booking visible to the caller.
func (s *PaymentService) List(ctx context.Context, p auth.Principal, serviceRequestID int64) ([]*models.Payment, error) {
	if _, err := s.bookings.readable(ctx, p, serviceRequestID); err != nil {
		return nil, err
	}
	payments, err := s.Store.ListPayments(ctx, serviceRequestID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	return payments, nil
}
