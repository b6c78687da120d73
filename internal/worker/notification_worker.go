package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"translink/internal/config"
	"translink/internal/domain"
	"translink/internal/metrics"
	"translink/internal/models"
	"translink/internal/notify"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Deliverer sends one notification over one channel.
type Deliverer interface {
	Channels(event string) []string
	Deliver(ctx context.Context, channel string, payload models.NotificationPayload) error
}

// TaskStore is the slice of the repository the worker polls and updates.
type TaskStore interface {
	GetNotificationTask(ctx context.Context, id int64) (*models.NotificationTask, error)
	GetPendingNotificationTasks(ctx context.Context, limit int) ([]models.NotificationTask, error)
	UpdateNotificationTaskStatus(ctx context.Context, id int64, status, lastError string, nextRetryAt *time.Time) error
}

// NotificationWorker is the notification outbox. Tasks are written inside
// business transactions, pushed to Redis (or a local channel) after commit
// and consumed here; the table is polled as a fallback.
type NotificationWorker struct {
	db            TaskStore
	deliverer     Deliverer
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotificationTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
	now           func() time.Time
}

var _ domain.NotificationOutbox = (*NotificationWorker)(nil)

func NewNotificationWorker(db TaskStore, deliverer Deliverer, redisClient *redis.Client, cfg config.WorkerConfig, logger *zerolog.Logger) *NotificationWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.QueueKey == "" {
		cfg.QueueKey = "translink:notifications"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &NotificationWorker{
		db:            db,
		deliverer:     deliverer,
		redis:         redisClient,
		retryPolicy:   PolicyFromConfig(cfg),
		queue:         make(chan models.NotificationTask, models.WorkerQueueSize),
		redisQueueKey: cfg.QueueKey,
		deadLetterKey: cfg.QueueKey + ":deadletter",
		pollInterval:  cfg.PollInterval,
		batchSize:     cfg.BatchSize,
		logger:        logger,
		now:           time.Now,
	}
}

// Stage writes one task per channel that takes the event. It runs inside
// the caller's transaction.
func (w *NotificationWorker) Stage(ctx context.Context, tx domain.Repository, payload models.NotificationPayload) ([]models.NotificationTask, error) {
	if payload.Event == "" {
		return nil, errors.New("notification event is required")
	}
	if payload.RecipientUserID == 0 {
		return nil, errors.New("notification recipient is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	channels := w.deliverer.Channels(payload.Event)
	tasks := make([]models.NotificationTask, 0, len(channels))
	for _, ch := range channels {
		task := models.NotificationTask{
			Channel:          ch,
			Event:            payload.Event,
			ServiceRequestID: payload.ServiceRequestID,
			Payload:          string(raw),
			Status:           models.TaskPending,
		}
		if err := tx.CreateNotificationTask(ctx, &task); err != nil {
			return nil, fmt.Errorf("persist notification task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Dispatch schedules committed tasks. Tasks that fit nowhere stay pending
// and are picked up by polling.
func (w *NotificationWorker) Dispatch(ctx context.Context, tasks []models.NotificationTask) {
	for _, task := range tasks {
		// Сначала пробуем Redis
		if w.redis != nil {
			if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
				w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, fallback to memory queue")
			} else {
				continue
			}
		}

		select {
		case w.queue <- task:
		default:
			w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
		}
	}
}

// Start runs the consume loop until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notification worker started")
	defer w.logger.Info().Msg("notification worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if n := w.poll(ctx); n == 0 {
			w.sleep(ctx)
		}
	}
}

func (w *NotificationWorker) poll(ctx context.Context) int {
	tasks, err := w.db.GetPendingNotificationTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending notification tasks")
		}
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *NotificationWorker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *NotificationWorker) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (w *NotificationWorker) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	if w.redis == nil {
		return models.NotificationTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("redis BRPOP error")
		}
		return models.NotificationTask{}, false
	}
	if len(res) != 2 {
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.NotificationTask{}, false
	}
	return task, true
}

func (w *NotificationWorker) processTask(ctx context.Context, task *models.NotificationTask) {
	// Задача из очереди могла уже быть обработана через опрос таблицы
	current, err := w.db.GetNotificationTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("reload notification task")
		return
	}
	if current.Status == models.TaskCompleted || current.Status == models.TaskFailed {
		return
	}
	*task = *current

	var payload models.NotificationPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	err = w.deliverer.Deliver(ctx, task.Channel, payload)
	switch {
	case errors.Is(err, notify.ErrSkipped):
		metrics.IncNotification(task.Channel, metrics.OutcomeSkipped)
	case err != nil:
		w.retryOrFail(ctx, task, err)
		return
	default:
		metrics.IncNotification(task.Channel, metrics.OutcomeDelivered)
	}

	if err := w.db.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark notification completed")
	}
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failTask(ctx, task, cause)
		return
	}

	nextTime := w.now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.db.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark notification retry")
	}
	metrics.IncNotification(task.Channel, metrics.OutcomeRetried)
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Str("channel", task.Channel).
		Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("notification delivery failed, will retry")
}

func (w *NotificationWorker) failTask(ctx context.Context, task *models.NotificationTask, cause error) {
	if err := w.db.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark notification failed")
	}
	metrics.IncNotification(task.Channel, metrics.OutcomeFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("channel", task.Channel).Msg("notification dead-lettered")

	if w.redis == nil {
		return
	}
	failed := *task
	failed.Status = models.TaskFailed
	msg := cause.Error()
	failed.LastError = &msg
	if err := w.pushRedis(ctx, w.deadLetterKey, failed); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}

func (w *NotificationWorker) pushRedis(ctx context.Context, key string, task models.NotificationTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
