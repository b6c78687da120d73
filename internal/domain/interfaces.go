package domain

import (
	"context"
	"time"

	"translink/internal/models"

	"github.com/shopspring/decimal"
)

type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, user *models.User) error
	UpdateUserRole(ctx context.Context, id int64, role models.Role) error

	CreateLanguage(ctx context.Context, lang *models.Language) error
	GetLanguage(ctx context.Context, id int64) (*models.Language, error)
	ListLanguages(ctx context.Context) ([]*models.Language, error)
	CreateSpecialization(ctx context.Context, spec *models.Specialization) error
	GetSpecialization(ctx context.Context, id int64) (*models.Specialization, error)
	ListSpecializations(ctx context.Context) ([]*models.Specialization, error)

	CreateTranslator(ctx context.Context, translator *models.Translator) error
	GetTranslatorByID(ctx context.Context, id int64) (*models.Translator, error)
	GetTranslatorByUserID(ctx context.Context, userID int64) (*models.Translator, error)
	UpdateTranslatorStatus(ctx context.Context, id int64, status models.TranslatorStatus) error
	LockTranslator(ctx context.Context, id int64) error
	UpdateTranslatorRating(ctx context.Context, id int64, rating decimal.Decimal, reviewsCount, prevCount int) error

	CreateService(ctx context.Context, svc *models.Service) error
	GetService(ctx context.Context, id int64) (*models.Service, error)
	UpdateService(ctx context.Context, svc *models.Service) error
	ListServices(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error)

	CreateCoupon(ctx context.Context, coupon *models.Coupon) error
	GetCoupon(ctx context.Context, id int64) (*models.Coupon, error)
	GetCouponIncludingDeleted(ctx context.Context, id int64) (*models.Coupon, error)
	UpdateCoupon(ctx context.Context, coupon *models.Coupon) error
	SoftDeleteCoupon(ctx context.Context, id int64) error
	ListCoupons(ctx context.Context, usableAt *time.Time) ([]*models.Coupon, error)
	CreateUserCoupon(ctx context.Context, claim *models.UserCoupon) error
	GetUserCoupon(ctx context.Context, userID, couponID int64) (*models.UserCoupon, error)
	ListUserCoupons(ctx context.Context, userID int64) ([]*models.UserCoupon, error)
	MarkUserCouponUsed(ctx context.Context, userID, couponID int64) error
	RestoreUserCoupon(ctx context.Context, userID, couponID int64) error

	CreateServiceRequest(ctx context.Context, req *models.ServiceRequest) error
	GetServiceRequest(ctx context.Context, id int64) (*models.ServiceRequest, error)
	UpdateServiceRequestStatus(ctx context.Context, id, version int64, requestStatus models.RequestStatus, bookingStatus models.BookingStatus, reason string) error
	UpdateServiceRequestDetails(ctx context.Context, req *models.ServiceRequest) error
	ListServiceRequests(ctx context.Context, q models.ServiceRequestQuery) ([]*models.ServiceRequest, int, error)
	GetServiceRequestsByDateRange(ctx context.Context, from, to string) ([]*models.ServiceRequest, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, from, to models.PaymentStatus) error
	ListPayments(ctx context.Context, serviceRequestID int64) ([]*models.Payment, error)
	CountOpenPayments(ctx context.Context, serviceRequestID int64) (int, error)

	CreateReview(ctx context.Context, review *models.Review) error
	GetReviewByServiceRequest(ctx context.Context, serviceRequestID int64) (*models.Review, error)
	ListTranslatorReviews(ctx context.Context, translatorID int64, limit, offset int) ([]*models.Review, int, error)

	CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error
	GetNotificationTask(ctx context.Context, id int64) (*models.NotificationTask, error)
	GetPendingNotificationTasks(ctx context.Context, limit int) ([]models.NotificationTask, error)
	UpdateNotificationTaskStatus(ctx context.Context, id int64, status, lastError string, nextRetryAt *time.Time) error
}

// Store is a Repository that can run a function inside one transaction.
// fn may be invoked more than once when the transaction hits a transient
// storage failure.
type Store interface {
	Repository
	WithTx(ctx context.Context, fn func(tx Repository) error) error
	Ping(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// NotificationOutbox stages notification tasks inside a business transaction
// and hands them to delivery once it has committed.
type NotificationOutbox interface {
	Stage(ctx context.Context, tx Repository, payload models.NotificationPayload) ([]models.NotificationTask, error)
	Dispatch(ctx context.Context, tasks []models.NotificationTask)
}

type RateLimitRepository interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
