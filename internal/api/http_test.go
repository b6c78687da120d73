package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"translink/internal/config"
	"translink/internal/export"
	"translink/internal/models"
	"translink/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	var body envelope
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/healthz", "", nil, &body))
	assert.Equal(t, "ok", body.Message)
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/readyz", "", nil, nil))
}

func TestReadyz_DependencyDown(t *testing.T) {
	a := newTestAPI(t, func(o *Options) { o.Ready = failingReady })
	var body errorResponse
	assert.Equal(t, http.StatusServiceUnavailable, a.call(http.MethodGet, "/readyz", "", nil, &body))
	assert.Equal(t, "not ready", body.Message)
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)

	var body errorResponse
	code := a.call(http.MethodGet, "/api/v1/users/me", "", nil, &body)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, errorResponse{StatusCode: 401, Message: "missing bearer token", Error: "Unauthorized"}, body)

	code = a.call(http.MethodGet, "/api/v1/users/me", "not-a-jwt", nil, &body)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid or expired token", body.Message)
}

func TestRegisterLoginProfile(t *testing.T) {
	a := newTestAPI(t)

	var reg struct {
		Data models.User `json:"data"`
	}
	code := a.call(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "Lan@Example.com", "password": "s3cret-pass", "fullName": "Lan",
	}, &reg)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "lan@example.com", reg.Data.Email)
	assert.Equal(t, models.RoleClient, reg.Data.Role)

	var session struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	code = a.call(http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "LAN@example.com", "password": "s3cret-pass",
	}, &session)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, session.Data.AccessToken)

	var me struct {
		Data models.User `json:"data"`
	}
	code = a.call(http.MethodPatch, "/api/v1/users/me", session.Data.AccessToken, map[string]any{
		"phone": "+84 90 000 0000", "telegramChatId": 555,
	}, &me)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(555), me.Data.TelegramChatID)

	var bad errorResponse
	code = a.call(http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "lan@example.com", "password": "wrong-pass",
	}, &bad)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid email or password", bad.Message)
}

func TestRegisterValidation(t *testing.T) {
	a := newTestAPI(t)
	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{"short password", map[string]any{"email": "a@b.co", "password": "short", "fullName": "A"}, "password must be at least 8 characters"},
		{"bad email", map[string]any{"email": "nope", "password": "longenough", "fullName": "A"}, "email must be a valid email"},
		{"missing name", map[string]any{"email": "a@b.co", "password": "longenough"}, "fullName is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorResponse
			assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/v1/auth/register", "", tt.body, &body))
			assert.Equal(t, tt.want, body.Message)
			assert.Equal(t, "Bad Request", body.Error)
		})
	}
}

func TestInvalidJSON(t *testing.T) {
	a := newTestAPI(t)
	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/api/v1/auth/login", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServiceRequestLifecycle(t *testing.T) {
	a := newTestAPI(t)
	booking := a.createBooking()

	assert.Equal(t, "247500", booking.TotalPrice.String())
	assert.Equal(t, models.RequestPending, booking.RequestStatus)
	assert.Equal(t, models.BookingNotStarted, booking.BookingStatus)

	path := fmt.Sprintf("/api/v1/service-requests/%d", booking.ID)

	var approved bookingResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, path+"/approve", a.translator, nil, &approved))
	assert.Equal(t, models.RequestApproved, approved.Data.RequestStatus)
	assert.Equal(t, models.BookingUnpaid, approved.Data.BookingStatus)

	var conflict errorResponse
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPut, path+"/approve", a.translator, nil, &conflict))
	assert.Equal(t, "only pending requests can be approved", conflict.Message)

	var forbidden errorResponse
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodGet, path, a.other, nil, &forbidden))

	var got bookingResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, path, a.client, nil, &got))
	require.NotNil(t, got.Data.Translator)
	require.NotNil(t, got.Data.Service)
	assert.Equal(t, a.translatorID, got.Data.Translator.ID)

	var list pageEnvelope[models.ServiceRequest]
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/service-requests?status=APPROVED&order=asc", a.client, nil, &list))
	assert.Equal(t, 200, list.StatusCode)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 1, list.TotalPages)
	assert.Equal(t, models.DefaultPageSize, list.Limit)
	require.Len(t, list.Data, 1)

	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/service-requests?status=PENDING", a.client, nil, &list))
	assert.Equal(t, 0, list.Total)
	assert.Empty(t, list.Data)
}

func TestRejectRequiresReason(t *testing.T) {
	a := newTestAPI(t)
	booking := a.createBooking()
	path := fmt.Sprintf("/api/v1/service-requests/%d/reject", booking.ID)

	var bad errorResponse
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPut, path, a.translator, map[string]any{}, &bad))
	assert.Equal(t, "reason is required", bad.Message)

	var rejected bookingResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, path, a.translator, map[string]any{"reason": "busy"}, &rejected))
	assert.Equal(t, models.RequestRejected, rejected.Data.RequestStatus)
	assert.Equal(t, "busy", rejected.Data.RejectionReason)
}

func TestCancelServiceRequest(t *testing.T) {
	a := newTestAPI(t)
	booking := a.createBooking()
	path := fmt.Sprintf("/api/v1/service-requests/%d", booking.ID)

	var forbidden errorResponse
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodDelete, path, a.other, nil, &forbidden))

	var cancelled bookingResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodDelete, path, a.client, nil, &cancelled))
	assert.Equal(t, models.RequestCancelled, cancelled.Data.RequestStatus)
	assert.Equal(t, models.BookingCancelled, cancelled.Data.BookingStatus)
}

func TestCreateServiceRequestValidation(t *testing.T) {
	a := newTestAPI(t)
	tests := []struct {
		name  string
		field string
		value any
		want  string
	}{
		{"clock without leading zero", "startAt", "9:00", "startAt must be in HH:mm format"},
		{"date in the past", "bookingDate", "2029-12-31", "bookingDate must be a date today or later"},
		{"date wrong layout", "bookingDate", "05-01-2030", "bookingDate must be YYYY-MM-DD"},
		{"missing location", "location", "", "location is required"},
		{"missing translator", "translatorId", 0, "translatorId is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := a.bookingBody()
			body[tt.field] = tt.value
			var resp errorResponse
			assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/v1/service-requests", a.client, body, &resp))
			assert.Equal(t, tt.want, resp.Message)
		})
	}

	body := a.bookingBody()
	body["bookingDate"] = "2030-01-01"
	var today bookingResponse
	assert.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/service-requests", a.client, body, &today))
}

func TestListQueryValidation(t *testing.T) {
	a := newTestAPI(t)
	for _, q := range []string{"limit=0", "limit=101", "page=0", "sortBy=price", "order=up", "status=DONE"} {
		var resp errorResponse
		assert.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/api/v1/service-requests?"+q, a.client, nil, &resp), q)
	}
}

func TestPaymentFlow(t *testing.T) {
	a := newTestAPI(t)
	booking := a.createBooking()
	base := fmt.Sprintf("/api/v1/service-requests/%d", booking.ID)
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, base+"/approve", a.translator, nil, nil))

	var invalid errorResponse
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, base+"/payments", a.client, map[string]any{"method": "CASH"}, &invalid))
	assert.Equal(t, "method must be one of CARD BANK_TRANSFER WALLET", invalid.Message)

	var created struct {
		Data models.Payment `json:"data"`
	}
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, base+"/payments", a.client, map[string]any{"method": "CARD"}, &created))
	assert.Equal(t, models.PaymentPending, created.Data.Status)

	confirm := fmt.Sprintf("/api/v1/payments/%d/confirm", created.Data.ID)
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPut, confirm, a.client, nil, nil))
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, confirm, a.admin, nil, nil))

	var got bookingResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, base, a.client, nil, &got))
	assert.Equal(t, models.BookingInProgress, got.Data.BookingStatus)

	var payments pageEnvelope[models.Payment]
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, base+"/payments", a.translator, nil, &payments))
	require.Len(t, payments.Data, 1)
	assert.Equal(t, models.PaymentSucceeded, payments.Data[0].Status)

	require.Equal(t, http.StatusOK, a.call(http.MethodPut, base+"/complete", a.translator, nil, nil))

	review := fmt.Sprintf("/api/v1/reviews/%d", booking.ID)
	var bad errorResponse
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, review, a.client, map[string]any{"rating": 6}, &bad))
	assert.Equal(t, "rating must be at most 5", bad.Message)
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, review, a.client, map[string]any{"rating": 5, "comment": "great"}, nil))
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPost, review, a.client, map[string]any{"rating": 4}, nil))

	var reviews pageEnvelope[models.Review]
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, fmt.Sprintf("/api/v1/translators/%d/reviews", a.translatorID), a.other, nil, &reviews))
	assert.Equal(t, 1, reviews.Total)
}

func TestCouponRoutes(t *testing.T) {
	a := newTestAPI(t)
	body := map[string]any{
		"name": "SPRING", "discountPercentage": 20, "expiredAt": fixedNow.AddDate(0, 1, 0).Format(time.RFC3339),
	}

	var forbidden errorResponse
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPost, "/api/v1/coupons", a.client, body, &forbidden))
	assert.Equal(t, "insufficient role", forbidden.Message)

	var created struct {
		Data models.Coupon `json:"data"`
	}
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/coupons", a.admin, body, &created))
	assert.Equal(t, models.CouponActive, created.Data.Status)

	claim := fmt.Sprintf("/api/v1/coupons/claim/%d", created.Data.ID)
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, claim, a.client, nil, nil))
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPost, claim, a.client, nil, nil))

	var mine pageEnvelope[models.UserCoupon]
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/coupons/mine", a.client, nil, &mine))
	require.Len(t, mine.Data, 1)

	booking := a.bookingBody()
	booking["couponId"] = created.Data.ID
	var resp bookingResponse
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/service-requests", a.client, booking, &resp))
	assert.Equal(t, "198000", resp.Data.TotalPrice.String())

	patch := fmt.Sprintf("/api/v1/coupons/%d", created.Data.ID)
	var bad errorResponse
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPatch, patch, a.admin, map[string]any{"discountPercentage": 0}, &bad))
	require.Equal(t, http.StatusOK, a.call(http.MethodDelete, patch, a.admin, nil, nil))
}

func TestReferenceAndCatalogRoutes(t *testing.T) {
	a := newTestAPI(t)

	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPost, "/api/v1/languages", a.client, map[string]any{"code": "fr", "name": "French"}, nil))
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/languages", a.admin, map[string]any{"code": "fr", "name": "French"}, nil))

	var langs pageEnvelope[models.Language]
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/languages", a.client, nil, &langs))
	assert.Equal(t, 3, langs.Total)

	var services pageEnvelope[models.Service]
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, fmt.Sprintf("/api/v1/services?translatorId=%d", a.translatorID), a.client, nil, &services))
	require.Len(t, services.Data, 1)

	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/api/v1/services?sourceLanguageId=x", a.client, nil, nil))
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/api/v1/services/abc", a.client, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/api/v1/services/999", a.client, nil, nil))

	path := fmt.Sprintf("/api/v1/services/%d", a.serviceID)
	var updated struct {
		Data models.Service `json:"data"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodPatch, path, a.translator, map[string]any{"pricePerHour": 200000}, &updated))
	assert.Equal(t, "200000", updated.Data.PricePerHour.String())
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPatch, path, a.client, map[string]any{"pricePerHour": 1}, nil))

	require.Equal(t, http.StatusOK, a.call(http.MethodDelete, path, a.translator, nil, &updated))
	assert.False(t, updated.Data.IsActive)
}

func TestTranslatorOnboardingRoutes(t *testing.T) {
	a := newTestAPI(t)

	var langs pageEnvelope[models.Language]
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/languages", a.other, nil, &langs))
	require.NotEmpty(t, langs.Data)

	var bad errorResponse
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/v1/translators/apply", a.other, map[string]any{"languageIds": []int64{}}, &bad))
	assert.Equal(t, "languageIds must have at least 1 items", bad.Message)

	var applied struct {
		Data models.Translator `json:"data"`
	}
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/translators/apply", a.other, map[string]any{
		"bio": "legal", "experienceYears": 3, "languageIds": []int64{langs.Data[0].ID},
	}, &applied))
	assert.Equal(t, models.TranslatorPending, applied.Data.Status)

	approve := fmt.Sprintf("/api/v1/translators/%d/approve", applied.Data.ID)
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPut, approve, a.other, nil, nil))
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, approve, a.admin, nil, nil))
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPut, approve, a.admin, nil, nil))

	var got struct {
		Data models.Translator `json:"data"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, fmt.Sprintf("/api/v1/translators/%d", applied.Data.ID), a.client, nil, &got))
	assert.Equal(t, models.TranslatorApproved, got.Data.Status)
}

func TestExportServiceRequests(t *testing.T) {
	dir := t.TempDir()
	a := newTestAPI(t, func(o *Options) { o.ExportDir = dir })
	booking := a.createBooking()

	assert.Equal(t, http.StatusForbidden, a.call(http.MethodGet, "/api/v1/admin/service-requests/export?from=2030-01-01&to=2030-01-31", a.client, nil, nil))

	var bad errorResponse
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/api/v1/admin/service-requests/export?from=2030-02-01&to=2030-01-01", a.admin, nil, &bad))
	assert.Equal(t, "from must not be after to", bad.Message)

	req, err := http.NewRequest(http.MethodGet, a.server.URL+"/api/v1/admin/service-requests/export?from=2030-01-01&to=2030-01-31", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+a.admin)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "service_requests_2030-01-01_2030-01-31.xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	id, err := f.GetCellValue("Service requests", "A3")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(booking.ID), id)

	_, err = os.Stat(filepath.Join(dir, "service_requests_2030-01-01_2030-01-31.xlsx"))
	assert.NoError(t, err)
}

func TestActionLimit(t *testing.T) {
	a := newTestAPI(t, func(o *Options) {
		o.Actions = repository.NewMemoryRateLimitRepository()
		o.RateLimit = config.APIRateLimitConfig{Actions: 2, ActionWindow: time.Minute}
	})

	patch := map[string]any{"address": "Hanoi"}
	assert.Equal(t, http.StatusOK, a.call(http.MethodPatch, "/api/v1/users/me", a.client, patch, nil))
	assert.Equal(t, http.StatusOK, a.call(http.MethodPatch, "/api/v1/users/me", a.client, patch, nil))

	var limited errorResponse
	assert.Equal(t, http.StatusTooManyRequests, a.call(http.MethodPatch, "/api/v1/users/me", a.client, patch, &limited))
	assert.Equal(t, "too many actions, try again later", limited.Message)

	// Чтение и другие пользователи не ограничены
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/users/me", a.client, nil, nil))
	assert.Equal(t, http.StatusOK, a.call(http.MethodPatch, "/api/v1/users/me", a.other, patch, nil))
}

func TestActionLimit_BackendDownAllows(t *testing.T) {
	a := newTestAPI(t, func(o *Options) {
		o.Actions = brokenLimiter{}
		o.RateLimit = config.APIRateLimitConfig{Actions: 1, ActionWindow: time.Minute}
	})
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, a.call(http.MethodPatch, "/api/v1/users/me", a.client, map[string]any{"address": "x"}, nil))
	}
}

func TestIPRateLimit(t *testing.T) {
	a := newTestAPI(t, func(o *Options) {
		o.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}
	})
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/healthz", "", nil, nil))

	var limited errorResponse
	assert.Equal(t, http.StatusTooManyRequests, a.call(http.MethodGet, "/healthz", "", nil, &limited))
	assert.Equal(t, "rate limit exceeded", limited.Message)
}

func TestRequestIDHeader(t *testing.T) {
	a := newTestAPI(t)

	req, err := http.NewRequest(http.MethodGet, a.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get(requestIDHeader))

	resp, err = http.Get(a.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestUnknownRoute(t *testing.T) {
	a := newTestAPI(t)
	var body errorResponse
	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/api/v2/nothing", "", nil, &body))
	assert.Equal(t, "route not found", body.Message)
}
