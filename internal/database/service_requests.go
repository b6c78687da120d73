package database

import (
	"context"
	"fmt"
	"strings"

	"translink/internal/models"
)

const serviceRequestColumns = `id, user_id, translator_id, service_id, coupon_id, booking_date, start_at, end_at,
	duration, location, notes, service_fee, system_fee, discount_amount, total_price,
	request_status, booking_status, rejection_reason, version, created_at, updated_at, deleted_at`

var serviceRequestSortColumns = map[string]string{
	models.SortByCreatedAt:   "created_at",
	models.SortByBookingDate: "booking_date",
	models.SortByTotalPrice:  "total_price",
}

func scanServiceRequest(sc scanner) (*models.ServiceRequest, error) {
	var r models.ServiceRequest
	err := sc.Scan(
		&r.ID, &r.UserID, &r.TranslatorID, &r.ServiceID, &r.CouponID, &r.BookingDate, &r.StartAt, &r.EndAt,
		&r.Duration, &r.Location, &r.Notes, &r.ServiceFee, &r.SystemFee, &r.DiscountAmount, &r.TotalPrice,
		&r.RequestStatus, &r.BookingStatus, &r.RejectionReason, &r.Version, &r.CreatedAt, &r.UpdatedAt, &r.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateServiceRequest(ctx context.Context, r *models.ServiceRequest) error {
	ts := now()
	id, err := s.insert(ctx, `INSERT INTO service_requests (
			user_id, translator_id, service_id, coupon_id, booking_date, start_at, end_at,
			duration, location, notes, service_fee, system_fee, discount_amount, total_price,
			request_status, booking_status, rejection_reason, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.TranslatorID, r.ServiceID, r.CouponID, r.BookingDate, r.StartAt, r.EndAt,
		r.Duration, r.Location, r.Notes, r.ServiceFee, r.SystemFee, r.DiscountAmount, r.TotalPrice,
		r.RequestStatus, r.BookingStatus, r.RejectionReason, 1, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to create service request: %w", err)
	}

	r.ID = id
	r.Version = 1
	r.CreatedAt = ts
	r.UpdatedAt = ts
	return nil
}

// GetServiceRequest returns a live (not soft-deleted) request.
func (s *Store) GetServiceRequest(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	r, err := scanServiceRequest(s.queryRow(ctx,
		`SELECT `+serviceRequestColumns+` FROM service_requests WHERE id = ? AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get service request %d: %w", id, notFound(err))
	}
	return r, nil
}

// UpdateServiceRequestStatus writes both status axes when the row is still at
// version.
func (s *Store) UpdateServiceRequestStatus(ctx context.Context, id, version int64, requestStatus models.RequestStatus,
	bookingStatus models.BookingStatus, reason string,
) error {
	err := s.execOne(ctx, ErrConcurrentModification, `UPDATE service_requests
		SET request_status = ?, booking_status = ?, rejection_reason = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		requestStatus, bookingStatus, reason, now(), id, version)
	if err != nil {
		return fmt.Errorf("failed to update service request status: %w", err)
	}
	return nil
}

// UpdateServiceRequestDetails writes schedule and money fields when the row is
// still at r.Version, then bumps r.Version.
func (s *Store) UpdateServiceRequestDetails(ctx context.Context, r *models.ServiceRequest) error {
	ts := now()
	err := s.execOne(ctx, ErrConcurrentModification, `UPDATE service_requests
		SET booking_date = ?, start_at = ?, end_at = ?, duration = ?, location = ?, notes = ?,
			service_fee = ?, system_fee = ?, discount_amount = ?, total_price = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		r.BookingDate, r.StartAt, r.EndAt, r.Duration, r.Location, r.Notes,
		r.ServiceFee, r.SystemFee, r.DiscountAmount, r.TotalPrice, ts, r.ID, r.Version)
	if err != nil {
		return fmt.Errorf("failed to update service request %d: %w", r.ID, err)
	}
	r.Version++
	r.UpdatedAt = ts
	return nil
}

func (s *Store) ListServiceRequests(ctx context.Context, q models.ServiceRequestQuery) ([]*models.ServiceRequest, int, error) {
	q.Normalize()

	where := []string{"deleted_at IS NULL"}
	var args []any
	if q.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, q.UserID)
	}
	if q.TranslatorID != 0 {
		where = append(where, "translator_id = ?")
		args = append(args, q.TranslatorID)
	}
	placeholders := make([]string, len(q.Statuses))
	for i, st := range q.Statuses {
		placeholders[i] = "?"
		args = append(args, st)
	}
	where = append(where, "request_status IN ("+strings.Join(placeholders, ", ")+")")
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM service_requests`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count service requests: %w", err)
	}

	// sort column comes from a fixed whitelist
	order := fmt.Sprintf(" ORDER BY %s %s, id %s LIMIT ? OFFSET ?", serviceRequestSortColumns[q.SortBy], q.Order, q.Order)
	rows, err := s.query(ctx, `SELECT `+serviceRequestColumns+` FROM service_requests`+clause+order,
		append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list service requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ServiceRequest
	for rows.Next() {
		r, err := scanServiceRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan service request: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// GetServiceRequestsByDateRange returns live requests with from <= bookingDate <= to.
func (s *Store) GetServiceRequestsByDateRange(ctx context.Context, from, to string) ([]*models.ServiceRequest, error) {
	rows, err := s.query(ctx, `SELECT `+serviceRequestColumns+` FROM service_requests
		WHERE deleted_at IS NULL AND booking_date >= ? AND booking_date <= ?
		ORDER BY booking_date ASC, start_at ASC, id ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get service requests by date range: %w", err)
	}
	defer rows.Close()

	var out []*models.ServiceRequest
	for rows.Next() {
		r, err := scanServiceRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
