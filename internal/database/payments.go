package database

import (
	"context"
	"fmt"

	"translink/internal/models"
)

const paymentColumns = `id, service_request_id, user_id, amount, method, status, transaction_ref, created_at, updated_at`

func scanPayment(sc scanner) (*models.Payment, error) {
	var p models.Payment
	err := sc.Scan(&p.ID, &p.ServiceRequestID, &p.UserID, &p.Amount, &p.Method, &p.Status,
		&p.TransactionRef, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	ts := now()
	if p.Status == "" {
		p.Status = models.PaymentPending
	}
	id, err := s.insert(ctx, `INSERT INTO payments (service_request_id, user_id, amount, method, status, transaction_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ServiceRequestID, p.UserID, p.Amount, p.Method, p.Status, p.TransactionRef, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	p.ID = id
	p.CreatedAt = ts
	p.UpdatedAt = ts
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := scanPayment(s.queryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %d: %w", id, notFound(err))
	}
	return p, nil
}

// UpdatePaymentStatus moves a payment from one status to another.
// ErrConcurrentModification means the payment was no longer in from.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id int64, from, to models.PaymentStatus) error {
	err := s.execOne(ctx, ErrConcurrentModification,
		`UPDATE payments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`, to, now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, serviceRequestID int64) ([]*models.Payment, error) {
	rows, err := s.query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE service_request_id = ? ORDER BY created_at ASC, id ASC`,
		serviceRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountOpenPayments counts payments that are pending or settled.
func (s *Store) CountOpenPayments(ctx context.Context, serviceRequestID int64) (int, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM payments WHERE service_request_id = ? AND status IN (?, ?)`,
		serviceRequestID, models.PaymentPending, models.PaymentSucceeded).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return n, nil
}
