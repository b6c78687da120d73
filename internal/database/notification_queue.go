package database

import (
	"context"
	"fmt"
	"time"

	"translink/internal/models"
)

const taskColumns = `id, channel, event, service_request_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func scanTask(sc scanner) (models.NotificationTask, error) {
	var t models.NotificationTask
	err := sc.Scan(&t.ID, &t.Channel, &t.Event, &t.ServiceRequestID, &t.Payload, &t.Status,
		&t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt)
	return t, err
}

func (s *Store) CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error {
	ts := now()
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	id, err := s.insert(ctx, `INSERT INTO notification_queue (channel, event, service_request_id, payload, status, retry_count, last_error, created_at, next_retry_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.Channel, task.Event, task.ServiceRequestID, task.Payload, task.Status, task.RetryCount, task.LastError, ts, task.NextRetryAt)
	if err != nil {
		return fmt.Errorf("failed to create notification task: %w", err)
	}
	task.ID = id
	task.CreatedAt = ts
	return nil
}

func (s *Store) GetNotificationTask(ctx context.Context, id int64) (*models.NotificationTask, error) {
	t, err := scanTask(s.queryRow(ctx, `SELECT `+taskColumns+` FROM notification_queue WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get notification task %d: %w", id, notFound(err))
	}
	return &t, nil
}

func (s *Store) GetPendingNotificationTasks(ctx context.Context, limit int) ([]models.NotificationTask, error) {
	rows, err := s.query(ctx, `SELECT `+taskColumns+` FROM notification_queue
		WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at ASC, id ASC LIMIT ?`,
		models.TaskPending, models.TaskRetry, now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending notification tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.NotificationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateNotificationTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var (
		query string
		args  []any
		ts    = now()
	)

	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}
	if nextRetryAt != nil {
		utc := nextRetryAt.UTC()
		nextRetryAt = &utc
	}

	switch status {
	case models.TaskRetry:
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, id}
	case models.TaskCompleted, models.TaskFailed:
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, ts, id}
	default:
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, id}
	}

	if err := s.execOne(ctx, ErrNotFound, query, args...); err != nil {
		return fmt.Errorf("failed to update notification task status: %w", err)
	}
	return nil
}
