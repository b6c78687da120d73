package service

import (
	"context"
	"errors"
	"strings"

	"translink/internal/auth"
	"translink/internal/database"
	"translink/internal/domain"
	"translink/internal/events"
	"translink/internal/lifecycle"
	"translink/internal/models"
	"translink/internal/pricing"

	"github.com/shopspring/decimal"
)

type BookingService struct {
	Deps
}

func NewBookingService(deps Deps) *BookingService {
	return &BookingService{Deps: deps.withDefaults()}
}

type CreateRequestInput struct {
	ServiceID    int64
	TranslatorID int64
	CouponID     *int64
	BookingDate  string
	StartAt      string
	EndAt        string
	Duration     *decimal.Decimal
	Location     string
	Notes        string
}

// UpdateRequestInput carries the fields a requester may change. Nil means
// unchanged.
type UpdateRequestInput struct {
	BookingDate *string
	StartAt     *string
	EndAt       *string
	Duration    *decimal.Decimal
	Location    *string
	Notes       *string
}

func (s *BookingService) validateSchedule(date, startAt, endAt string, explicit *decimal.Decimal) (decimal.Decimal, error) {
	if !validDate(date) {
		return decimal.Zero, domain.Validation("bookingDate must be YYYY-MM-DD")
	}
	// Даты в формате YYYY-MM-DD сравниваются как строки
	if date < s.today() {
		return decimal.Zero, domain.Validation("bookingDate cannot be in the past")
	}
	computed, err := pricing.Duration(startAt, endAt)
	if err != nil {
		return decimal.Zero, domain.Validation("%s", err.Error())
	}
	if explicit == nil {
		return computed, nil
	}
	if !explicit.IsPositive() {
		return decimal.Zero, domain.Validation("duration must be positive")
	}
	return pricing.NormalizeDuration(*explicit), nil
}

// Create books a service for the caller, applying and consuming a claimed
// coupon when one is given.
func (s *BookingService) Create(ctx context.Context, p auth.Principal, in CreateRequestInput) (*models.ServiceRequest, error) {
	duration, err := s.validateSchedule(in.BookingDate, in.StartAt, in.EndAt, in.Duration)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Location) == "" {
		return nil, domain.Validation("location is required")
	}

	var (
		req    *models.ServiceRequest
		staged []models.NotificationTask
	)
	err = s.Store.WithTx(ctx, func(tx domain.Repository) error {
		staged = staged[:0]

		user, err := tx.GetUserByID(ctx, p.UserID)
		if err != nil {
			return storeError(err, "user")
		}
		svc, err := tx.GetService(ctx, in.ServiceID)
		if err != nil {
			return storeError(err, "service")
		}
		if svc.TranslatorID != in.TranslatorID {
			return domain.Validation("translator does not match the service")
		}
		if !svc.IsActive {
			return domain.Validation("service is not available")
		}
		translator, err := tx.GetTranslatorByID(ctx, svc.TranslatorID)
		if err != nil {
			return storeError(err, "translator")
		}
		if translator.Status != models.TranslatorApproved {
			return domain.Validation("translator is not available")
		}
		if translator.UserID == user.ID {
			return domain.Validation("cannot book your own service")
		}

		var (
			coupon *models.Coupon
			pct    *int
		)
		if in.CouponID != nil {
			coupon, err = s.useCoupon(ctx, tx, user.ID, *in.CouponID)
			if err != nil {
				return err
			}
			pct = &coupon.DiscountPercentage
		}

		quote := pricing.NewQuote(svc.PricePerHour, duration, pct)
		initial := lifecycle.Initial()
		req = &models.ServiceRequest{
			UserID:         user.ID,
			TranslatorID:   translator.ID,
			ServiceID:      svc.ID,
			CouponID:       in.CouponID,
			BookingDate:    in.BookingDate,
			StartAt:        in.StartAt,
			EndAt:          in.EndAt,
			Duration:       quote.Duration,
			Location:       strings.TrimSpace(in.Location),
			Notes:          strings.TrimSpace(in.Notes),
			ServiceFee:     quote.ServiceFee,
			SystemFee:      quote.SystemFee,
			DiscountAmount: quote.DiscountAmount,
			TotalPrice:     quote.TotalPrice,
			RequestStatus:  initial.Request,
			BookingStatus:  initial.Booking,
		}
		if err := tx.CreateServiceRequest(ctx, req); err != nil {
			return storeError(err, "service request")
		}

		req.Service = svc
		req.Translator = translator.Summary()
		req.User = user.Summary()
		req.Coupon = coupon

		return s.stage(ctx, tx, &staged,
			models.NewNotificationPayload(events.EventRequestCreated, req, translator.UserID, user.ID))
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().Int64("service_request_id", req.ID).Int64("user_id", req.UserID).
		Str("total_price", req.TotalPrice.String()).Msg("Service request created")
	s.committed(ctx, events.EventRequestCreated, models.NewNotificationPayload(events.EventRequestCreated, req, 0, p.UserID), staged)
	return req, nil
}

// useCoupon checks the coupon and the caller's claim and flips the claim to
// used.
func (s *BookingService) useCoupon(ctx context.Context, tx domain.Repository, userID, couponID int64) (*models.Coupon, error) {
	coupon, err := tx.GetCoupon(ctx, couponID)
	if err != nil {
		return nil, storeError(err, "coupon")
	}
	if !coupon.Usable(s.Now()) {
		return nil, domain.Validation("coupon is inactive or expired")
	}

	claim, err := tx.GetUserCoupon(ctx, userID, couponID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, domain.Validation("coupon not claimed")
	}
	if err != nil {
		return nil, err
	}
	if claim.IsUsed {
		return nil, domain.Conflict("coupon already used")
	}

	if err := tx.MarkUserCouponUsed(ctx, userID, couponID); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			return nil, domain.Conflict("coupon already used")
		}
		return nil, err
	}
	return coupon, nil
}

// assigned loads the request and checks that the caller is its translator.
func assigned(ctx context.Context, tx domain.Repository, p auth.Principal, id int64) (*models.ServiceRequest, *models.Translator, error) {
	translator, err := tx.GetTranslatorByUserID(ctx, p.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, domain.Forbidden("only translators can manage service requests")
	}
	if err != nil {
		return nil, nil, err
	}
	req, err := tx.GetServiceRequest(ctx, id)
	if err != nil {
		return nil, nil, storeError(err, "service request")
	}
	if req.TranslatorID != translator.ID {
		return nil, nil, domain.Forbidden("service request is not assigned to you")
	}
	return req, translator, nil
}

// owned loads the request and checks that the caller is its requester.
func owned(ctx context.Context, tx domain.Repository, p auth.Principal, id int64) (*models.ServiceRequest, error) {
	req, err := tx.GetServiceRequest(ctx, id)
	if err != nil {
		return nil, storeError(err, "service request")
	}
	if req.UserID != p.UserID {
		return nil, domain.Forbidden("service request does not belong to you")
	}
	return req, nil
}

// transition validates action against the request's state and writes the
// new state under the version check.
func transition(ctx context.Context, tx domain.Repository, req *models.ServiceRequest, action lifecycle.Action, reason string) error {
	next, err := lifecycle.Apply(lifecycle.Of(req), action)
	if err != nil {
		return err
	}
	if err := tx.UpdateServiceRequestStatus(ctx, req.ID, req.Version, next.Request, next.Booking, reason); err != nil {
		return storeError(err, "service request")
	}
	req.RequestStatus = next.Request
	req.BookingStatus = next.Booking
	req.RejectionReason = reason
	req.Version++
	return nil
}

func (s *BookingService) Approve(ctx context.Context, p auth.Principal, id int64) (*models.ServiceRequest, error) {
	return s.decide(ctx, p, id, lifecycle.ActionApprove, "", events.EventRequestApproved)
}

func (s *BookingService) Reject(ctx context.Context, p auth.Principal, id int64, reason string) (*models.ServiceRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.Validation("rejection reason is required")
	}
	return s.decide(ctx, p, id, lifecycle.ActionReject, reason, events.EventRequestRejected)
}

// Complete marks an in-progress booking as delivered.
func (s *BookingService) Complete(ctx context.Context, p auth.Principal, id int64) (*models.ServiceRequest, error) {
	return s.decide(ctx, p, id, lifecycle.ActionComplete, "", events.EventRequestCompleted)
}

// decide runs a translator-side transition and notifies the requester.
func (s *BookingService) decide(ctx context.Context, p auth.Principal, id int64, action lifecycle.Action, reason, event string) (*models.ServiceRequest, error) {
	var (
		req    *models.ServiceRequest
		staged []models.NotificationTask
	)
	err := s.Store.WithTx(ctx, func(tx domain.Repository) error {
		staged = staged[:0]

		var (
			translator *models.Translator
			err        error
		)
		req, translator, err = assigned(ctx, tx, p, id)
		if err != nil {
			return err
		}
		if err := transition(ctx, tx, req, action, reason); err != nil {
			return err
		}
		req.Translator = translator.Summary()

		return s.stage(ctx, tx, &staged, models.NewNotificationPayload(event, req, req.UserID, p.UserID))
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().Int64("service_request_id", req.ID).Str("action", string(action)).
		Str("request_status", string(req.RequestStatus)).Str("booking_status", string(req.BookingStatus)).
		Msg("Service request transitioned")
	s.committed(ctx, event, models.NewNotificationPayload(event, req, 0, p.UserID), staged)
	return req, nil
}

// Cancel withdraws a pending request and gives back its coupon claim.
func (s *BookingService) Cancel(ctx context.Context, p auth.Principal, id int64) (*models.ServiceRequest, error) {
	var (
		req    *models.ServiceRequest
		staged []models.NotificationTask
	)
	err := s.Store.WithTx(ctx, func(tx domain.Repository) error {
		staged = staged[:0]

		var err error
		req, err = owned(ctx, tx, p, id)
		if err != nil {
			return err
		}
		if err := transition(ctx, tx, req, lifecycle.ActionCancel, ""); err != nil {
			return err
		}
		if req.CouponID != nil {
			err := tx.RestoreUserCoupon(ctx, req.UserID, *req.CouponID)
			switch {
			case errors.Is(err, database.ErrNotFound):
				s.Logger.Warn().Int64("service_request_id", req.ID).Int64("user_id", req.UserID).
					Int64("coupon_id", *req.CouponID).Msg("Coupon claim missing on cancel, nothing to restore")
			case err != nil:
				return err
			}
		}

		translator, err := tx.GetTranslatorByID(ctx, req.TranslatorID)
		if err != nil {
			return storeError(err, "translator")
		}
		return s.stage(ctx, tx, &staged,
			models.NewNotificationPayload(events.EventRequestCancelled, req, translator.UserID, p.UserID))
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().Int64("service_request_id", req.ID).Msg("Service request cancelled")
	s.committed(ctx, events.EventRequestCancelled, models.NewNotificationPayload(events.EventRequestCancelled, req, 0, p.UserID), staged)
	return req, nil
}

// Update edits a pending request and reprices it.
func (s *BookingService) Update(ctx context.Context, p auth.Principal, id int64, in UpdateRequestInput) (*models.ServiceRequest, error) {
	var (
		req    *models.ServiceRequest
		staged []models.NotificationTask
	)
	err := s.Store.WithTx(ctx, func(tx domain.Repository) error {
		staged = staged[:0]

		var err error
		req, err = owned(ctx, tx, p, id)
		if err != nil {
			return err
		}
		if _, err := lifecycle.Apply(lifecycle.Of(req), lifecycle.ActionEdit); err != nil {
			return err
		}

		timesChanged := in.StartAt != nil || in.EndAt != nil
		if in.BookingDate != nil {
			req.BookingDate = *in.BookingDate
		}
		if in.StartAt != nil {
			req.StartAt = *in.StartAt
		}
		if in.EndAt != nil {
			req.EndAt = *in.EndAt
		}
		if in.Location != nil {
			if strings.TrimSpace(*in.Location) == "" {
				return domain.Validation("location cannot be empty")
			}
			req.Location = strings.TrimSpace(*in.Location)
		}
		if in.Notes != nil {
			req.Notes = strings.TrimSpace(*in.Notes)
		}

		duration, err := s.validateSchedule(req.BookingDate, req.StartAt, req.EndAt, in.Duration)
		if err != nil {
			return err
		}
		if in.Duration == nil && !timesChanged {
			duration = req.Duration
		}

		svc, err := tx.GetService(ctx, req.ServiceID)
		if err != nil {
			return storeError(err, "service")
		}
		var pct *int
		if req.CouponID != nil {
			coupon, err := tx.GetCouponIncludingDeleted(ctx, *req.CouponID)
			if err != nil {
				return storeError(err, "coupon")
			}
			pct = &coupon.DiscountPercentage
			req.Coupon = coupon
		}

		quote := pricing.NewQuote(svc.PricePerHour, duration, pct)
		req.Duration = quote.Duration
		req.ServiceFee = quote.ServiceFee
		req.SystemFee = quote.SystemFee
		req.DiscountAmount = quote.DiscountAmount
		req.TotalPrice = quote.TotalPrice

		if err := tx.UpdateServiceRequestDetails(ctx, req); err != nil {
			return storeError(err, "service request")
		}
		req.Service = svc

		translator, err := tx.GetTranslatorByID(ctx, req.TranslatorID)
		if err != nil {
			return storeError(err, "translator")
		}
		req.Translator = translator.Summary()
		return s.stage(ctx, tx, &staged,
			models.NewNotificationPayload(events.EventRequestUpdated, req, translator.UserID, p.UserID))
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, events.EventRequestUpdated, models.NewNotificationPayload(events.EventRequestUpdated, req, 0, p.UserID), staged)
	return req, nil
}

// List returns the caller's page of requests: own bookings for clients,
// assigned ones for translators, everything for admins.
func (s *BookingService) List(ctx context.Context, p auth.Principal, q models.ServiceRequestQuery) (models.Page[*models.ServiceRequest], error) {
	q.UserID, q.TranslatorID = 0, 0
	for _, st := range q.Statuses {
		if !st.Valid() {
			return models.Page[*models.ServiceRequest]{}, domain.Validation("unknown status %q", st)
		}
	}

	switch p.Role {
	case models.RoleAdmin:
	case models.RoleTranslator:
		translator, err := s.Store.GetTranslatorByUserID(ctx, p.UserID)
		if err != nil {
			return models.Page[*models.ServiceRequest]{}, storeError(err, "translator")
		}
		q.TranslatorID = translator.ID
	default:
		q.UserID = p.UserID
	}
	q.Normalize()

	rows, total, err := s.Store.ListServiceRequests(ctx, q)
	if err != nil {
		return models.Page[*models.ServiceRequest]{}, err
	}
	if err := s.expand(ctx, rows, false); err != nil {
		return models.Page[*models.ServiceRequest]{}, err
	}
	return models.NewPage(rows, total, q.Page, q.Limit), nil
}

// Get returns one request with its projections. Only its requester, its
// translator and admins may read it.
func (s *BookingService) Get(ctx context.Context, p auth.Principal, id int64) (*models.ServiceRequest, error) {
	req, err := s.readable(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.expand(ctx, []*models.ServiceRequest{req}, true); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *BookingService) readable(ctx context.Context, p auth.Principal, id int64) (*models.ServiceRequest, error) {
	req, err := s.Store.GetServiceRequest(ctx, id)
	if err != nil {
		return nil, storeError(err, "service request")
	}
	if p.IsAdmin() || req.UserID == p.UserID {
		return req, nil
	}
	translator, err := s.Store.GetTranslatorByUserID(ctx, p.UserID)
	if err == nil && translator.ID == req.TranslatorID {
		return req, nil
	}
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	return nil, domain.Forbidden("service request does not belong to you")
}

// expand attaches service, translator and requester projections; full also
// attaches coupon and review.
func (s *BookingService) expand(ctx context.Context, rows []*models.ServiceRequest, full bool) error {
	services := map[int64]*models.Service{}
	translators := map[int64]*models.TranslatorSummary{}
	users := map[int64]*models.UserSummary{}

	for _, r := range rows {
		if _, ok := services[r.ServiceID]; !ok {
			svc, err := s.Store.GetService(ctx, r.ServiceID)
			if err != nil {
				return err
			}
			services[r.ServiceID] = svc
		}
		if _, ok := translators[r.TranslatorID]; !ok {
			tr, err := s.Store.GetTranslatorByID(ctx, r.TranslatorID)
			if err != nil {
				return err
			}
			translators[r.TranslatorID] = tr.Summary()
		}
		if _, ok := users[r.UserID]; !ok {
			u, err := s.Store.GetUserByID(ctx, r.UserID)
			if err != nil {
				return err
			}
			users[r.UserID] = u.Summary()
		}
		r.Service = services[r.ServiceID]
		r.Translator = translators[r.TranslatorID]
		r.User = users[r.UserID]

		if !full {
			continue
		}
		if r.CouponID != nil {
			c, err := s.Store.GetCouponIncludingDeleted(ctx, *r.CouponID)
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				return err
			}
			r.Coupon = c
		}
		review, err := s.Store.GetReviewByServiceRequest(ctx, r.ID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}
		r.Review = review
	}
	return nil
}

// ByDateRange returns live requests booked between from and to inclusive.
func (s *BookingService) ByDateRange(ctx context.Context, from, to string) ([]*models.ServiceRequest, error) {
	if !validDate(from) || !validDate(to) {
		return nil, domain.Validation("from and to must be YYYY-MM-DD")
	}
	if from > to {
		return nil, domain.Validation("from must not be after to")
	}
	rows, err := s.Store.GetServiceRequestsByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if err := s.expand(ctx, rows, false); err != nil {
		return nil, err
	}
	return rows, nil
}
