package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"translink/internal/auth"
	"translink/internal/config"
	"translink/internal/database"
	"translink/internal/domain"
	"translink/internal/models"
	"translink/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

var testAuthConfig = config.APIAuthConfig{JWTSecret: "0123456789abcdef", Issuer: "translink", TokenTTL: time.Hour}

type testAPI struct {
	t        *testing.T
	db       *database.DB
	issuer   *auth.Issuer
	services Services
	server   *httptest.Server

	admin      string
	client     string
	other      string
	translator string

	translatorID int64
	serviceID    int64
	clientID     int64
}

type apiOption func(*Options)

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	deps := service.Deps{Store: db, Logger: &logger, Now: func() time.Time { return fixedNow }}
	issuer := auth.NewIssuer(testAuthConfig)
	bookings := service.NewBookingService(deps)
	svc := Services{
		Users:       service.NewUserService(deps, issuer),
		Translators: service.NewTranslatorService(deps),
		Catalog:     service.NewCatalogService(deps),
		Bookings:    bookings,
		Payments:    service.NewPaymentService(deps, bookings),
		Reviews:     service.NewReviewService(deps),
		Coupons:     service.NewCouponService(deps),
		References:  service.NewReferenceService(deps),
	}

	o := Options{
		Issuer: issuer,
		Ready:  db.Ping,
		Now:    func() time.Time { return fixedNow },
		Logger: &logger,
	}
	for _, opt := range opts {
		opt(&o)
	}

	a := &testAPI{t: t, db: db, issuer: issuer, services: svc}
	a.server = httptest.NewServer(NewHandler(svc, o).Routes())
	t.Cleanup(a.server.Close)
	a.seed()
	return a
}

func (a *testAPI) seed() {
	ctx := context.Background()
	mkUser := func(email string, role models.Role) (int64, string) {
		u := &models.User{Email: email, PasswordHash: "x", FullName: email, Role: role}
		require.NoError(a.t, a.db.CreateUser(ctx, u))
		token, _, err := a.issuer.Sign(auth.Principal{UserID: u.ID, Role: role})
		require.NoError(a.t, err)
		return u.ID, token
	}
	_, a.admin = mkUser("admin@example.com", models.RoleAdmin)
	a.clientID, a.client = mkUser("client@example.com", models.RoleClient)
	_, a.other = mkUser("other@example.com", models.RoleClient)
	trUserID, trToken := mkUser("tr@example.com", models.RoleTranslator)
	a.translator = trToken

	en := &models.Language{Code: "en", Name: "English"}
	vi := &models.Language{Code: "vi", Name: "Vietnamese"}
	require.NoError(a.t, a.db.CreateLanguage(ctx, en))
	require.NoError(a.t, a.db.CreateLanguage(ctx, vi))

	tr := &models.Translator{UserID: trUserID, Status: models.TranslatorApproved, LanguageIDs: []int64{en.ID, vi.ID}}
	require.NoError(a.t, a.db.CreateTranslator(ctx, tr))
	svc := &models.Service{TranslatorID: tr.ID, SourceLanguageID: en.ID, TargetLanguageID: vi.ID,
		PricePerHour: decimal.NewFromInt(150000), IsActive: true}
	require.NoError(a.t, a.db.CreateService(ctx, svc))
	a.translatorID, a.serviceID = tr.ID, svc.ID
}

// call sends a JSON request and decodes the JSON response into out when
// out is not nil.
func (a *testAPI) call(method, path, token string, body any, out any) int {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (a *testAPI) bookingBody() map[string]any {
	return map[string]any{
		"translatorId": a.translatorID,
		"serviceId":    a.serviceID,
		"bookingDate":  "2030-01-05",
		"startAt":      "09:00",
		"endAt":        "10:30",
		"location":     "Hanoi",
	}
}

type bookingResponse struct {
	StatusCode int                   `json:"statusCode"`
	Message    string                `json:"message"`
	Data       models.ServiceRequest `json:"data"`
}

func (a *testAPI) createBooking() models.ServiceRequest {
	a.t.Helper()
	var resp bookingResponse
	code := a.call(http.MethodPost, "/api/v1/service-requests", a.client, a.bookingBody(), &resp)
	require.Equal(a.t, http.StatusCreated, code, resp.Message)
	return resp.Data
}

func failingReady(context.Context) error {
	return errors.New("db down")
}

var _ domain.RateLimitRepository = brokenLimiter{}

type brokenLimiter struct{}

func (brokenLimiter) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}
