package api

import (
	"context"
	"net/http"
	"time"

	"translink/internal/auth"
	"translink/internal/config"
	"translink/internal/domain"
	"translink/internal/logging"
	"translink/internal/models"
	"translink/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Services are the business operations behind the HTTP routes.
type Services struct {
	Users       *service.UserService
	Translators *service.TranslatorService
	Catalog     *service.CatalogService
	Bookings    *service.BookingService
	Payments    *service.PaymentService
	Reviews     *service.ReviewService
	Coupons     *service.CouponService
	References  *service.ReferenceService
}

// Options configure the HTTP handler.
type Options struct {
	Issuer    *auth.Issuer
	RateLimit config.APIRateLimitConfig
	// Actions counts mutating calls per user; nil disables the check.
	Actions domain.RateLimitRepository
	// Ready reports whether dependencies are reachable.
	Ready     func(ctx context.Context) error
	Location  *time.Location
	Now       func() time.Time
	ExportDir string
	Logger    *zerolog.Logger
}

type Handler struct {
	svc       Services
	issuer    *auth.Issuer
	validate  *requestValidator
	limiter   *rateLimiter
	actions   domain.RateLimitRepository
	rateCfg   config.APIRateLimitConfig
	ready     func(ctx context.Context) error
	exportDir string
	logger    *zerolog.Logger
}

func NewHandler(svc Services, opts Options) *Handler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	today := func() string { return now().In(loc).Format(models.DateLayout) }

	return &Handler{
		svc:       svc,
		issuer:    opts.Issuer,
		validate:  newRequestValidator(today),
		limiter:   newRateLimiter(opts.RateLimit),
		actions:   opts.Actions,
		rateCfg:   opts.RateLimit,
		ready:     opts.Ready,
		exportDir: opts.ExportDir,
		logger:    logging.Component(opts.Logger, "http"),
	}
}

// Routes builds the chi router with the full /api/v1 surface.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestID)
	r.Use(h.recoverer)
	r.Use(h.accessLog)
	r.Use(h.ipLimit)

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Use(h.actionLimit)
			admin := requireRoles(models.RoleAdmin)

			r.Get("/users/me", h.me)
			r.Patch("/users/me", h.updateMe)

			r.Get("/languages", h.listLanguages)
			r.With(admin).Post("/languages", h.createLanguage)
			r.Get("/specializations", h.listSpecializations)
			r.With(admin).Post("/specializations", h.createSpecialization)

			r.Route("/translators", func(r chi.Router) {
				r.Post("/apply", h.applyTranslator)
				r.Get("/{id}", h.getTranslator)
				r.Get("/{id}/reviews", h.translatorReviews)
				r.With(admin).Put("/{id}/approve", h.approveTranslator)
				r.With(admin).Put("/{id}/reject", h.rejectTranslator)
			})

			r.Route("/services", func(r chi.Router) {
				r.Get("/", h.listServices)
				r.Post("/", h.createService)
				r.Get("/{id}", h.getService)
				r.Patch("/{id}", h.updateService)
				r.Delete("/{id}", h.deactivateService)
			})

			r.Route("/service-requests", func(r chi.Router) {
				r.Post("/", h.createServiceRequest)
				r.Get("/", h.listServiceRequests)
				r.Get("/{id}", h.getServiceRequest)
				r.Patch("/{id}", h.updateServiceRequest)
				r.Delete("/{id}", h.cancelServiceRequest)
				r.Put("/{id}/approve", h.approveServiceRequest)
				r.Put("/{id}/reject", h.rejectServiceRequest)
				r.Put("/{id}/complete", h.completeServiceRequest)
				r.Post("/{id}/payments", h.createPayment)
				r.Get("/{id}/payments", h.listPayments)
			})

			r.Route("/payments/{id}", func(r chi.Router) {
				r.Use(admin)
				r.Put("/confirm", h.confirmPayment)
				r.Put("/fail", h.failPayment)
				r.Put("/refund", h.refundPayment)
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", h.listCoupons)
				r.Get("/mine", h.myCoupons)
				r.Post("/claim/{id}", h.claimCoupon)
				r.With(admin).Post("/", h.createCoupon)
				r.With(admin).Patch("/{id}", h.updateCoupon)
				r.With(admin).Delete("/{id}", h.deleteCoupon)
			})

			r.Post("/reviews/{bookingId}", h.createReview)

			r.With(admin).Get("/admin/service-requests/export", h.exportServiceRequests)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, "ok", nil)
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			logging.FromContext(r.Context(), h.logger).Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeData(w, http.StatusOK, "ready", nil)
}
