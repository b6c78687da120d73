package api

import (
	"net/http"
	"strconv"
	"time"

	"translink/internal/domain"
	"translink/internal/models"
	"translink/internal/service"

	"github.com/shopspring/decimal"
)

type serviceBody struct {
	SourceLanguageID int64           `json:"sourceLanguageId" validate:"required,gt=0"`
	TargetLanguageID int64           `json:"targetLanguageId" validate:"required,gt=0"`
	SpecializationID *int64          `json:"specializationId" validate:"omitempty,gt=0"`
	PricePerHour     decimal.Decimal `json:"pricePerHour"`
	Description      string          `json:"description" validate:"max=4000"`
}

type servicePatchBody struct {
	SourceLanguageID *int64           `json:"sourceLanguageId" validate:"omitempty,gt=0"`
	TargetLanguageID *int64           `json:"targetLanguageId" validate:"omitempty,gt=0"`
	SpecializationID *int64           `json:"specializationId" validate:"omitempty,gt=0"`
	PricePerHour     *decimal.Decimal `json:"pricePerHour"`
	Description      *string          `json:"description" validate:"omitempty,max=4000"`
	IsActive         *bool            `json:"isActive"`
}

type couponBody struct {
	Name               string              `json:"name" validate:"required,max=100"`
	Description        string              `json:"description" validate:"max=1000"`
	Status             models.CouponStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	DiscountPercentage int                 `json:"discountPercentage" validate:"required,gte=1,lte=100"`
	ExpiredAt          time.Time           `json:"expiredAt" validate:"required"`
}

type couponPatchBody struct {
	Name               *string              `json:"name" validate:"omitempty,min=1,max=100"`
	Description        *string              `json:"description" validate:"omitempty,max=1000"`
	Status             *models.CouponStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	DiscountPercentage *int                 `json:"discountPercentage" validate:"omitempty,gte=1,lte=100"`
	ExpiredAt          *time.Time           `json:"expiredAt"`
}

type reviewBody struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("invalid %s", name)
	}
	return id, nil
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	var (
		filter models.ServiceFilter
		err    error
	)
	if filter.TranslatorID, err = queryID(r, "translatorId"); err != nil {
		h.fail(w, r, err)
		return
	}
	if filter.SourceLanguageID, err = queryID(r, "sourceLanguageId"); err != nil {
		h.fail(w, r, err)
		return
	}
	if filter.TargetLanguageID, err = queryID(r, "targetLanguageId"); err != nil {
		h.fail(w, r, err)
		return
	}

	services, err := h.svc.Catalog.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, "ok", services)
}

func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	svc, err := h.svc.Catalog.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "ok", svc)
}

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	var req serviceBody
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	svc, err := h.svc.Catalog.Create(r.Context(), principal(r), service.ServiceInput{
		SourceLanguageID: req.SourceLanguageID,
		TargetLanguageID: req.TargetLanguageID,
		SpecializationID: req.SpecializationID,
		PricePerHour:     req.PricePerHour,
		Description:      req.Description,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "service created", svc)
}

func (h *Handler) updateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req servicePatchBody
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	svc, err := h.svc.Catalog.Update(r.Context(), principal(r), id, service.ServicePatch{
		SourceLanguageID: req.SourceLanguageID,
		TargetLanguageID: req.TargetLanguageID,
		SpecializationID: req.SpecializationID,
		PricePerHour:     req.PricePerHour,
		Description:      req.Description,
		IsActive:         req.IsActive,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "service updated", svc)
}

func (h *Handler) deactivateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	svc, err := h.svc.Catalog.Deactivate(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "service deactivated", svc)
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.svc.Coupons.List(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, "ok", coupons)
}

func (h *Handler) myCoupons(w http.ResponseWriter, r *http.Request) {
	claims, err := h.svc.Coupons.Mine(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, "ok", claims)
}

func (h *Handler) claimCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	claim, err := h.svc.Coupons.Claim(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "coupon claimed", claim)
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponBody
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.Coupons.Create(r.Context(), principal(r), service.CouponInput{
		Name:               req.Name,
		Description:        req.Description,
		Status:             req.Status,
		DiscountPercentage: req.DiscountPercentage,
		ExpiredAt:          req.ExpiredAt,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "coupon created", c)
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req couponPatchBody
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.Coupons.Update(r.Context(), principal(r), id, service.CouponPatch{
		Name:               req.Name,
		Description:        req.Description,
		Status:             req.Status,
		DiscountPercentage: req.DiscountPercentage,
		ExpiredAt:          req.ExpiredAt,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "coupon updated", c)
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Coupons.Delete(r.Context(), principal(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "coupon deleted", nil)
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookingId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req reviewBody
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	review, err := h.svc.Reviews.Create(r.Context(), principal(r), id, req.Rating, req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "review created", review)
}
