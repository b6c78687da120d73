package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"translink/internal/auth"
	"translink/internal/config"
	"translink/internal/database"
	"translink/internal/domain"
	"translink/internal/events"
	"translink/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// recordingOutbox writes one email task per payload and remembers what was
// dispatched.
type recordingOutbox struct {
	mu         sync.Mutex
	dispatched []models.NotificationTask
}

func (o *recordingOutbox) Stage(ctx context.Context, tx domain.Repository, payload models.NotificationPayload) ([]models.NotificationTask, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	task := &models.NotificationTask{
		Channel:          models.ChannelEmail,
		Event:            payload.Event,
		ServiceRequestID: payload.ServiceRequestID,
		Payload:          string(raw),
	}
	if err := tx.CreateNotificationTask(ctx, task); err != nil {
		return nil, err
	}
	return []models.NotificationTask{*task}, nil
}

func (o *recordingOutbox) Dispatch(_ context.Context, tasks []models.NotificationTask) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatched = append(o.dispatched, tasks...)
}

func (o *recordingOutbox) events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.dispatched))
	for _, t := range o.dispatched {
		out = append(out, t.Event)
	}
	return out
}

var fixedNow = time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	db     *database.DB
	outbox *recordingOutbox
	bus    *events.EventBus

	bookings     *BookingService
	payments     *PaymentService
	reviews      *ReviewService
	coupons      *CouponService
	translators  *TranslatorService
	catalog      *CatalogService
	users        *UserService
	references   *ReferenceService
	admin        auth.Principal
	client       auth.Principal
	otherClient  auth.Principal
	translatorP  auth.Principal
	otherTransP  auth.Principal
	translator   *models.Translator
	service      *models.Service
	otherService *models.Service
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db, outbox: &recordingOutbox{}, bus: events.NewEventBus()}
	deps := Deps{
		Store:  db,
		Events: env.bus,
		Outbox: env.outbox,
		Logger: &logger,
		Now:    func() time.Time { return fixedNow },
	}
	issuer := auth.NewIssuer(testAuthConfig)

	env.bookings = NewBookingService(deps)
	env.payments = NewPaymentService(deps, env.bookings)
	env.reviews = NewReviewService(deps)
	env.coupons = NewCouponService(deps)
	env.translators = NewTranslatorService(deps)
	env.catalog = NewCatalogService(deps)
	env.users = NewUserService(deps, issuer)
	env.references = NewReferenceService(deps)

	ctx := context.Background()
	mkUser := func(email string, role models.Role) auth.Principal {
		u := &models.User{Email: email, PasswordHash: "x", FullName: email, Role: role}
		require.NoError(t, db.CreateUser(ctx, u))
		return auth.Principal{UserID: u.ID, Role: role}
	}
	env.admin = mkUser("admin@example.com", models.RoleAdmin)
	env.client = mkUser("client@example.com", models.RoleClient)
	env.otherClient = mkUser("other@example.com", models.RoleClient)
	env.translatorP = mkUser("tr@example.com", models.RoleTranslator)
	env.otherTransP = mkUser("tr2@example.com", models.RoleTranslator)

	en := &models.Language{Code: "en", Name: "English"}
	vi := &models.Language{Code: "vi", Name: "Vietnamese"}
	require.NoError(t, db.CreateLanguage(ctx, en))
	require.NoError(t, db.CreateLanguage(ctx, vi))

	mkTranslator := func(p auth.Principal, price int64) (*models.Translator, *models.Service) {
		tr := &models.Translator{UserID: p.UserID, Status: models.TranslatorApproved, LanguageIDs: []int64{en.ID, vi.ID}}
		require.NoError(t, db.CreateTranslator(ctx, tr))
		svc := &models.Service{TranslatorID: tr.ID, SourceLanguageID: en.ID, TargetLanguageID: vi.ID,
			PricePerHour: decimal.NewFromInt(price), IsActive: true}
		require.NoError(t, db.CreateService(ctx, svc))
		return tr, svc
	}
	env.translator, env.service = mkTranslator(env.translatorP, 150000)
	_, env.otherService = mkTranslator(env.otherTransP, 1000)
	return env
}

func (e *testEnv) input() CreateRequestInput {
	return CreateRequestInput{
		ServiceID:    e.service.ID,
		TranslatorID: e.translator.ID,
		BookingDate:  "2030-01-05",
		StartAt:      "09:00",
		EndAt:        "10:30",
		Location:     "Hanoi",
	}
}

func (e *testEnv) claimedCoupon(t *testing.T, p auth.Principal, pct int) *models.Coupon {
	t.Helper()
	c, err := e.coupons.Create(context.Background(), e.admin, CouponInput{
		Name: "PROMO", DiscountPercentage: pct, ExpiredAt: fixedNow.AddDate(1, 0, 0),
	})
	require.NoError(t, err)
	_, err = e.coupons.Claim(context.Background(), p, c.ID)
	require.NoError(t, err)
	return c
}

func requireKind(t *testing.T, err error, kind error, msg string) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	if msg != "" {
		require.Equal(t, msg, domain.Message(err))
	}
}

var testAuthConfig = config.APIAuthConfig{JWTSecret: "0123456789abcdef", Issuer: "translink", TokenTTL: time.Hour}
