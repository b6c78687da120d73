package api

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"translink/internal/auth"
	"translink/internal/domain"
	"translink/internal/export"
	"translink/internal/logging"
	"translink/internal/models"
	"translink/internal/service"

	"github.com/shopspring/decimal"
)

type createBookingBody struct {
	TranslatorID int64            `json:"translatorId" validate:"required,gt=0"`
	ServiceID    int64            `json:"serviceId" validate:"required,gt=0"`
	BookingDate  string           `json:"bookingDate" validate:"required,datetime=2006-01-02,notpast"`
	StartAt      string           `json:"startAt" validate:"required,hhmm"`
	EndAt        string           `json:"endAt" validate:"required,hhmm"`
	Duration     *decimal.Decimal `json:"duration"`
	Location     string           `json:"location" validate:"required,max=255"`
	Notes        string           `json:"notes" validate:"max=2000"`
	CouponID     *int64           `json:"couponId" validate:"omitempty,gt=0"`
}

type updateBookingBody struct {
	BookingDate *string          `json:"bookingDate" validate:"omitempty,datetime=2006-01-02,notpast"`
	StartAt     *string          `json:"startAt" validate:"omitempty,hhmm"`
	EndAt       *string          `json:"endAt" validate:"omitempty,hhmm"`
	Duration    *decimal.Decimal `json:"duration"`
	Location    *string          `json:"location" validate:"omitempty,min=1,max=255"`
	Notes       *string          `json:"notes" validate:"omitempty,max=2000"`
}

type rejectBody struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type paymentBody struct {
	Method models.PaymentMethod `json:"method" validate:"required,oneof=CARD BANK_TRANSFER WALLET"`
}

// paging reads page and limit. Missing values fall back to the defaults.
func paging(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	page, limit := 1, models.DefaultPageSize
	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return 0, 0, domain.Validation("page must be at least 1")
		}
		page = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > models.MaxPageSize {
			return 0, 0, domain.Validation("limit must be between 1 and %d", models.MaxPageSize)
		}
		limit = v
	}
	return page, limit, nil
}

func listQuery(r *http.Request) (models.ServiceRequestQuery, error) {
	page, limit, err := paging(r)
	if err != nil {
		return models.ServiceRequestQuery{}, err
	}
	q := models.ServiceRequestQuery{Page: page, Limit: limit}

	for _, raw := range r.URL.Query()["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				q.Statuses = append(q.Statuses, models.RequestStatus(s))
			}
		}
	}

	switch sortBy := r.URL.Query().Get("sortBy"); sortBy {
	case "":
	case models.SortByCreatedAt, models.SortByBookingDate, models.SortByTotalPrice:
		q.SortBy = sortBy
	default:
		return models.ServiceRequestQuery{}, domain.Validation("sortBy must be one of createdAt bookingDate totalPrice")
	}

	switch order := strings.ToUpper(r.URL.Query().Get("order")); order {
	case "":
	case models.OrderAsc, models.OrderDesc:
		q.Order = order
	default:
		return models.ServiceRequestQuery{}, domain.Validation("order must be ASC or DESC")
	}
	return q, nil
}

func (h *Handler) createServiceRequest(w http.ResponseWriter, r *http.Request) {
	var req createBookingBody
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.svc.Bookings.Create(r.Context(), principal(r), service.CreateRequestInput{
		ServiceID:    req.ServiceID,
		TranslatorID: req.TranslatorID,
		CouponID:     req.CouponID,
		BookingDate:  req.BookingDate,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		Duration:     req.Duration,
		Location:     req.Location,
		Notes:        req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "service request created", booking)
}

func (h *Handler) listServiceRequests(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.svc.Bookings.List(r.Context(), principal(r), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePage(w, "ok", page)
}

func (h *Handler) getServiceRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.svc.Bookings.Get(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "ok", booking)
}

func (h *Handler) updateServiceRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req updateBookingBody
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.svc.Bookings.Update(r.Context(), principal(r), id, service.UpdateRequestInput{
		BookingDate: req.BookingDate,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Duration:    req.Duration,
		Location:    req.Location,
		Notes:       req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "service request updated", booking)
}

func (h *Handler) cancelServiceRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.svc.Bookings.Cancel(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "service request cancelled", booking)
}

func (h *Handler) approveServiceRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.svc.Bookings.Approve(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "service request approved", booking)
}

func (h *Handler) rejectServiceRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req rejectBody
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.svc.Bookings.Reject(r.Context(), principal(r), id, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "service request rejected", booking)
}

func (h *Handler) completeServiceRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.svc.Bookings.Complete(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "service request completed", booking)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req paymentBody
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	payment, err := h.svc.Payments.Create(r.Context(), principal(r), id, req.Method)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "payment created", payment)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	payments, err := h.svc.Payments.List(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, "ok", payments)
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	h.settlePayment(w, r, h.svc.Payments.Confirm, "payment confirmed")
}

func (h *Handler) failPayment(w http.ResponseWriter, r *http.Request) {
	h.settlePayment(w, r, h.svc.Payments.Fail, "payment failed")
}

func (h *Handler) refundPayment(w http.ResponseWriter, r *http.Request) {
	h.settlePayment(w, r, h.svc.Payments.Refund, "payment refunded")
}

type settleFunc = func(ctx context.Context, p auth.Principal, id int64) (*models.Payment, error)

func (h *Handler) settlePayment(w http.ResponseWriter, r *http.Request, settle settleFunc, message string) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	payment, err := settle(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, message, payment)
}

// exportServiceRequests streams the xlsx workbook of the date range. A copy
// is kept under the export directory when one is configured.
func (h *Handler) exportServiceRequests(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	rows, err := h.svc.Bookings.ByDateRange(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteServiceRequests(&buf, from, to, rows); err != nil {
		h.fail(w, r, err)
		return
	}

	name := export.Filename(from, to)
	if h.exportDir != "" {
		h.archiveExport(r, name, buf.Bytes())
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) archiveExport(r *http.Request, name string, data []byte) {
	log := logging.FromContext(r.Context(), h.logger)
	if err := os.MkdirAll(h.exportDir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", h.exportDir).Msg("create export dir")
		return
	}
	path := filepath.Join(h.exportDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("archive export")
		return
	}
	log.Info().Str("path", path).Int("bytes", len(data)).Msg("export archived")
}
