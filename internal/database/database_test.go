package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"translink/internal/config"
	"translink/internal/domain"
	"translink/internal/models"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	client     *models.User
	translator *models.Translator
	service    *models.Service
	source     *models.Language
	target     *models.Language
}

func seed(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()

	client := &models.User{Email: "Client@Example.com", PasswordHash: "x", FullName: "Client"}
	require.NoError(t, db.CreateUser(ctx, client))

	trUser := &models.User{Email: "tr@example.com", PasswordHash: "x", FullName: "Translator", Role: models.RoleTranslator}
	require.NoError(t, db.CreateUser(ctx, trUser))

	en := &models.Language{Code: "en", Name: "English"}
	vi := &models.Language{Code: "vi", Name: "Vietnamese"}
	require.NoError(t, db.CreateLanguage(ctx, en))
	require.NoError(t, db.CreateLanguage(ctx, vi))

	tr := &models.Translator{UserID: trUser.ID, Bio: "bio", ExperienceYears: 3, Status: models.TranslatorApproved,
		LanguageIDs: []int64{en.ID, vi.ID}}
	require.NoError(t, db.CreateTranslator(ctx, tr))

	svc := &models.Service{TranslatorID: tr.ID, SourceLanguageID: en.ID, TargetLanguageID: vi.ID,
		PricePerHour: decimal.NewFromInt(150000), IsActive: true}
	require.NoError(t, db.CreateService(ctx, svc))

	return fixture{client: client, translator: tr, service: svc, source: en, target: vi}
}

func newRequest(f fixture, date string, total int64) *models.ServiceRequest {
	return &models.ServiceRequest{
		UserID:        f.client.ID,
		TranslatorID:  f.translator.ID,
		ServiceID:     f.service.ID,
		BookingDate:   date,
		StartAt:       "09:00",
		EndAt:         "10:30",
		Duration:      decimal.RequireFromString("1.5"),
		Location:      "Hanoi",
		ServiceFee:    decimal.NewFromInt(total),
		SystemFee:     decimal.Zero,
		TotalPrice:    decimal.NewFromInt(total),
		RequestStatus: models.RequestPending,
		BookingStatus: models.BookingNotStarted,
	}
}

func TestOpen_CreatesDirectoryAndMigrates(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "nested", "dir", "translink.db")

	db, err := NewDB(path, &logger)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, db.Driver())
	assert.Equal(t, path, db.Path())
	assert.NoError(t, db.Ping(context.Background()))

	// Повторное открытие не применяет миграции заново
	require.NoError(t, db.Close())
	db2, err := NewDB(path, &logger)
	require.NoError(t, err)
	db2.Close()
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	logger := zerolog.Nop()
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, &logger)
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: config.DriverPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", pg.rebind("SELECT * FROM t WHERE a = ? AND b IN (?, ?)"))

	lite := &Store{driver: config.DriverSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))

	assert.Equal(t, " FOR UPDATE", pg.forUpdate())
	assert.Empty(t, lite.forUpdate())
}

func TestUsers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	u := &models.User{Email: " Alice@Example.com ", PasswordHash: "hash", FullName: "Alice"}
	require.NoError(t, db.CreateUser(ctx, u))
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, models.RoleClient, u.Role)

	got, err := db.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	err = db.CreateUser(ctx, &models.User{Email: "alice@example.com", PasswordHash: "x", FullName: "Dup"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got.Phone = "+84"
	got.TelegramChatID = 42
	require.NoError(t, db.UpdateUserProfile(ctx, got))
	require.NoError(t, db.UpdateUserRole(ctx, got.ID, models.RoleAdmin))

	reloaded, err := db.GetUserByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "+84", reloaded.Phone)
	assert.Equal(t, int64(42), reloaded.TelegramChatID)
	assert.Equal(t, models.RoleAdmin, reloaded.Role)

	_, err = db.GetUserByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdateUserRole(ctx, 999, models.RoleAdmin), ErrNotFound)
}

func TestTranslatorsAndServices(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	tr, err := db.GetTranslatorByUserID(ctx, f.translator.UserID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.source.ID, f.target.ID}, tr.LanguageIDs)
	assert.Empty(t, tr.SpecializationIDs)
	require.NotNil(t, tr.User)
	assert.Equal(t, "Translator", tr.User.FullName)

	require.NoError(t, db.UpdateTranslatorRating(ctx, tr.ID, decimal.RequireFromString("4.5"), 2, 0))
	tr, err = db.GetTranslatorByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("4.5").Equal(tr.Rating))
	assert.Equal(t, 2, tr.ReviewsCount)

	// Агрегат, посчитанный по устаревшему счетчику, не записывается
	err = db.UpdateTranslatorRating(ctx, tr.ID, decimal.RequireFromString("5"), 1, 0)
	assert.ErrorIs(t, err, ErrConcurrentModification)
	require.NoError(t, db.LockTranslator(ctx, tr.ID))
	assert.ErrorIs(t, db.LockTranslator(ctx, 9999), ErrNotFound)

	cheap := &models.Service{TranslatorID: tr.ID, SourceLanguageID: f.target.ID, TargetLanguageID: f.source.ID,
		PricePerHour: decimal.NewFromInt(1000), IsActive: false}
	require.NoError(t, db.CreateService(ctx, cheap))

	all, err := db.ListServices(ctx, models.ServiceFilter{TranslatorID: tr.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, cheap.ID, all[0].ID)

	active, err := db.ListServices(ctx, models.ServiceFilter{ActiveOnly: true, SourceLanguageID: f.source.ID})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, f.service.ID, active[0].ID)
	assert.True(t, decimal.NewFromInt(150000).Equal(active[0].PricePerHour))
}

func TestCouponClaims(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	c := &models.Coupon{Name: "HALF", Status: models.CouponActive, DiscountPercentage: 50, ExpiredAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, db.CreateCoupon(ctx, c))
	expired := &models.Coupon{Name: "OLD", Status: models.CouponActive, DiscountPercentage: 10, ExpiredAt: time.Now().Add(-time.Hour)}
	require.NoError(t, db.CreateCoupon(ctx, expired))

	now := time.Now()
	usable, err := db.ListCoupons(ctx, &now)
	require.NoError(t, err)
	require.Len(t, usable, 1)
	assert.Equal(t, c.ID, usable[0].ID)

	require.NoError(t, db.CreateUserCoupon(ctx, &models.UserCoupon{UserID: f.client.ID, CouponID: c.ID}))
	err = db.CreateUserCoupon(ctx, &models.UserCoupon{UserID: f.client.ID, CouponID: c.ID})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, db.MarkUserCouponUsed(ctx, f.client.ID, c.ID))
	assert.ErrorIs(t, db.MarkUserCouponUsed(ctx, f.client.ID, c.ID), ErrConcurrentModification)

	claim, err := db.GetUserCoupon(ctx, f.client.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, claim.IsUsed)
	assert.NotNil(t, claim.UsedAt)

	require.NoError(t, db.RestoreUserCoupon(ctx, f.client.ID, c.ID))
	claims, err := db.ListUserCoupons(ctx, f.client.ID)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.False(t, claims[0].IsUsed)
	assert.Nil(t, claims[0].UsedAt)
	require.NotNil(t, claims[0].Coupon)
	assert.Equal(t, "HALF", claims[0].Coupon.Name)

	require.NoError(t, db.SoftDeleteCoupon(ctx, c.ID))
	_, err = db.GetCoupon(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.SoftDeleteCoupon(ctx, c.ID), ErrNotFound)

	_, err = db.GetUserCoupon(ctx, f.client.ID, expired.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	kept, err := db.GetCouponIncludingDeleted(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, kept.DiscountPercentage)
	assert.NotNil(t, kept.DeletedAt)
}

func TestMarkUserCouponUsed_StaleClaim(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	c := &models.Coupon{Name: "ONCE", Status: models.CouponActive, DiscountPercentage: 20, ExpiredAt: time.Now().Add(time.Hour)}
	require.NoError(t, db.CreateCoupon(ctx, c))
	require.NoError(t, db.CreateUserCoupon(ctx, &models.UserCoupon{UserID: f.client.ID, CouponID: c.ID}))

	// Оба вызывающих видят неиспользованную заявку
	seen, err := db.GetUserCoupon(ctx, f.client.ID, c.ID)
	require.NoError(t, err)
	require.False(t, seen.IsUsed)

	require.NoError(t, db.MarkUserCouponUsed(ctx, f.client.ID, c.ID))
	// Второй переход решает только условный UPDATE
	assert.ErrorIs(t, db.MarkUserCouponUsed(ctx, f.client.ID, c.ID), ErrConcurrentModification)
	assert.ErrorIs(t, db.MarkUserCouponUsed(ctx, f.translator.UserID, c.ID), ErrConcurrentModification, "no claim at all")

	claim, err := db.GetUserCoupon(ctx, f.client.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, claim.IsUsed)
}

func TestConcurrentCouponUse(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	c := &models.Coupon{Name: "ONCE", Status: models.CouponActive, DiscountPercentage: 20, ExpiredAt: time.Now().Add(time.Hour)}
	require.NoError(t, db.CreateCoupon(ctx, c))
	require.NoError(t, db.CreateUserCoupon(ctx, &models.UserCoupon{UserID: f.client.ID, CouponID: c.ID}))

	const numGoroutines = 10
	results := make(chan error, numGoroutines)
	start := make(chan struct{})

	for i := 0; i < numGoroutines; i++ {
		go func() {
			<-start
			results <- db.WithTx(ctx, func(tx domain.Repository) error {
				return tx.MarkUserCouponUsed(ctx, f.client.ID, c.ID)
			})
		}()
	}
	close(start)

	successCount := 0
	for i := 0; i < numGoroutines; i++ {
		err := <-results
		if err == nil {
			successCount++
			continue
		}
		assert.ErrorIs(t, err, ErrConcurrentModification)
	}
	assert.Equal(t, 1, successCount, "only one use of a claim should succeed")
}

func TestServiceRequests(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	first := newRequest(f, "2030-01-10", 300)
	second := newRequest(f, "2030-01-05", 100)
	third := newRequest(f, "2030-01-20", 200)
	for _, r := range []*models.ServiceRequest{first, second, third} {
		require.NoError(t, db.CreateServiceRequest(ctx, r))
		assert.Equal(t, int64(1), r.Version)
	}

	t.Run("Get", func(t *testing.T) {
		got, err := db.GetServiceRequest(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "2030-01-10", got.BookingDate)
		assert.Equal(t, "09:00", got.StartAt)
		assert.True(t, decimal.RequireFromString("1.5").Equal(got.Duration))
		assert.False(t, got.DiscountAmount.Valid)
		assert.Nil(t, got.CouponID)
	})

	t.Run("VersionConflict", func(t *testing.T) {
		require.NoError(t, db.UpdateServiceRequestStatus(ctx, first.ID, 1, models.RequestApproved, models.BookingUnpaid, ""))
		err := db.UpdateServiceRequestStatus(ctx, first.ID, 1, models.RequestRejected, models.BookingNotStarted, "late")
		assert.ErrorIs(t, err, ErrConcurrentModification)

		got, err := db.GetServiceRequest(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestApproved, got.RequestStatus)
		assert.Equal(t, models.BookingUnpaid, got.BookingStatus)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("UpdateDetails", func(t *testing.T) {
		got, err := db.GetServiceRequest(ctx, second.ID)
		require.NoError(t, err)
		got.Location = "Da Nang"
		require.NoError(t, db.UpdateServiceRequestDetails(ctx, got))
		assert.Equal(t, int64(2), got.Version)

		stale := *second
		assert.ErrorIs(t, db.UpdateServiceRequestDetails(ctx, &stale), ErrConcurrentModification)
	})

	t.Run("ListSortAndFilter", func(t *testing.T) {
		rows, total, err := db.ListServiceRequests(ctx, models.ServiceRequestQuery{
			UserID: f.client.ID, SortBy: models.SortByTotalPrice, Order: models.OrderAsc,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, rows, 3)
		assert.Equal(t, []int64{second.ID, third.ID, first.ID}, []int64{rows[0].ID, rows[1].ID, rows[2].ID})

		rows, total, err = db.ListServiceRequests(ctx, models.ServiceRequestQuery{
			TranslatorID: f.translator.ID, SortBy: models.SortByBookingDate, Limit: 2, Page: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, rows, 2)
		assert.Equal(t, third.ID, rows[0].ID)
		assert.Equal(t, first.ID, rows[1].ID)

		rows, total, err = db.ListServiceRequests(ctx, models.ServiceRequestQuery{
			Statuses: []models.RequestStatus{models.RequestApproved},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, rows, 1)
		assert.Equal(t, first.ID, rows[0].ID)

		rows, _, err = db.ListServiceRequests(ctx, models.ServiceRequestQuery{SortBy: "id; DROP TABLE users"})
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})

	t.Run("SoftDeletedHidden", func(t *testing.T) {
		_, err := db.sqlDB.Exec(`UPDATE service_requests SET deleted_at = ? WHERE id = ?`, now(), third.ID)
		require.NoError(t, err)

		_, err = db.GetServiceRequest(ctx, third.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		_, total, err := db.ListServiceRequests(ctx, models.ServiceRequestQuery{})
		require.NoError(t, err)
		assert.Equal(t, 2, total)

		rows, err := db.GetServiceRequestsByDateRange(ctx, "2030-01-01", "2030-01-31")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, second.ID, rows[0].ID)
	})
}

func TestDiscountRequiresCoupon(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	r := newRequest(f, "2030-02-01", 100)
	r.DiscountAmount = decimal.NewNullDecimal(decimal.NewFromInt(10))
	err := db.CreateServiceRequest(ctx, r)
	require.Error(t, err)

	var sqliteErr sqlite3.Error
	require.True(t, errors.As(err, &sqliteErr))
	assert.Equal(t, sqlite3.ErrConstraint, sqliteErr.Code)
}

func TestPaymentsAndReviews(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	r := newRequest(f, "2030-03-01", 500)
	require.NoError(t, db.CreateServiceRequest(ctx, r))

	p := &models.Payment{ServiceRequestID: r.ID, UserID: f.client.ID, Amount: r.TotalPrice, Method: models.PaymentCard}
	require.NoError(t, db.CreatePayment(ctx, p))
	assert.Equal(t, models.PaymentPending, p.Status)

	n, err := db.CountOpenPayments(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	second := &models.Payment{ServiceRequestID: r.ID, UserID: f.client.ID, Amount: r.TotalPrice, Method: models.PaymentWallet}
	assert.ErrorIs(t, db.CreatePayment(ctx, second), ErrDuplicate, "one open payment per request")

	require.NoError(t, db.UpdatePaymentStatus(ctx, p.ID, models.PaymentPending, models.PaymentFailed))
	assert.ErrorIs(t, db.UpdatePaymentStatus(ctx, p.ID, models.PaymentPending, models.PaymentSucceeded), ErrConcurrentModification)

	n, err = db.CountOpenPayments(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// После неудачного платежа можно открыть новый
	retry := &models.Payment{ServiceRequestID: r.ID, UserID: f.client.ID, Amount: r.TotalPrice, Method: models.PaymentWallet}
	require.NoError(t, db.CreatePayment(ctx, retry))

	payments, err := db.ListPayments(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)

	review := &models.Review{ServiceRequestID: r.ID, UserID: f.client.ID, TranslatorID: f.translator.ID, Rating: 5, Comment: "great"}
	require.NoError(t, db.CreateReview(ctx, review))
	err = db.CreateReview(ctx, &models.Review{ServiceRequestID: r.ID, UserID: f.client.ID, TranslatorID: f.translator.ID, Rating: 4})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := db.GetReviewByServiceRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Rating)

	reviews, total, err := db.ListTranslatorReviews(ctx, f.translator.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, reviews, 1)
}

func TestWithTx_RollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx domain.Repository) error {
		if err := tx.CreateLanguage(ctx, &models.Language{Code: "fr", Name: "French"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	langs, err := db.ListLanguages(ctx)
	require.NoError(t, err)
	assert.Empty(t, langs)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, isTransient(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.False(t, isTransient(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, isTransient(ErrConcurrentModification))
	assert.False(t, isTransient(nil))
}
