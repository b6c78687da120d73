package api

import (
	"net/http"
	"strconv"
	"strings"

	"translink/internal/auth"
	"translink/internal/domain"
	"translink/internal/service"

	"github.com/go-chi/chi/v5"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"fullName" validate:"required,max=255"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	FullName       *string `json:"fullName" validate:"omitempty,min=1,max=255"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	Address        *string `json:"address" validate:"omitempty,max=500"`
	TelegramChatID *int64  `json:"telegramChatId"`
}

type languageRequest struct {
	Code string `json:"code" validate:"required,max=16"`
	Name string `json:"name" validate:"required,max=100"`
}

type specializationRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type applyRequest struct {
	Bio               string  `json:"bio" validate:"max=4000"`
	ExperienceYears   int     `json:"experienceYears" validate:"gte=0,lte=80"`
	LanguageIDs       []int64 `json:"languageIds" validate:"required,min=1,dive,gt=0"`
	SpecializationIDs []int64 `json:"specializationIds" validate:"omitempty,dive,gt=0"`
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("invalid %s", name)
	}
	return id, nil
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.svc.Users.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "registered", user)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.svc.Users.Login(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "logged in", session)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Users.Profile(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "ok", user)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.svc.Users.UpdateProfile(r.Context(), principal(r), service.ProfileInput{
		FullName:       req.FullName,
		Phone:          req.Phone,
		Address:        req.Address,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "profile updated", user)
}

func (h *Handler) listLanguages(w http.ResponseWriter, r *http.Request) {
	langs, err := h.svc.References.Languages(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, "ok", langs)
}

func (h *Handler) createLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	lang, err := h.svc.References.CreateLanguage(r.Context(), principal(r), req.Code, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "language created", lang)
}

func (h *Handler) listSpecializations(w http.ResponseWriter, r *http.Request) {
	specs, err := h.svc.References.Specializations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, "ok", specs)
}

func (h *Handler) createSpecialization(w http.ResponseWriter, r *http.Request) {
	var req specializationRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	spec, err := h.svc.References.CreateSpecialization(r.Context(), principal(r), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "specialization created", spec)
}

func (h *Handler) applyTranslator(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	tr, err := h.svc.Translators.Apply(r.Context(), principal(r), service.ApplyInput{
		Bio:               req.Bio,
		ExperienceYears:   req.ExperienceYears,
		LanguageIDs:       req.LanguageIDs,
		SpecializationIDs: req.SpecializationIDs,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "application submitted", tr)
}

func (h *Handler) getTranslator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tr, err := h.svc.Translators.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "ok", tr)
}

func (h *Handler) translatorReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, limit, err := paging(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	reviews, err := h.svc.Translators.Reviews(r.Context(), id, page, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePage(w, "ok", reviews)
}

func (h *Handler) approveTranslator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tr, err := h.svc.Translators.Approve(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "translator approved", tr)
}

func (h *Handler) rejectTranslator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tr, err := h.svc.Translators.Reject(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "translator rejected", tr)
}
