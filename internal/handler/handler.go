// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
	"github.com/Shivanand-hulikatti/happening-registration/internal/repository"
	"github.com/Shivanand-hulikatti/happening-registration/internal/service"
)

// RegistrationHandler holds all HTTP handlers for the registration API.
type RegistrationHandler struct {
	admission  *service.AdmissionService
	happenings *service.HappeningService
	log        zerolog.Logger
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(admission *service.AdmissionService, happenings *service.HappeningService, log zerolog.Logger) *RegistrationHandler {
	return &RegistrationHandler{admission: admission, happenings: happenings, log: log}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Status handles GET /status
func Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Submit handles POST /happening/{slug}/registrations
// Runs the submission through the admission engine and reports the outcome.
func (h *RegistrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var sub model.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	out, err := h.admission.Submit(r.Context(), slug, sub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to submit registration")
		return
	}

	writeJSON(w, submitStatus(out.Code), describe(out))
}

// submitStatus maps an admission outcome to its HTTP status.
func submitStatus(code model.Code) int {
	switch {
	case code == model.OK:
		return http.StatusOK
	case code == model.WaitList:
		return http.StatusAccepted
	case code.IsValidationFailure():
		return http.StatusBadRequest
	case code == model.NotViaForm:
		return http.StatusUnauthorized
	case code == model.TooEarly, code == model.TooLate, code == model.NotInRange:
		return http.StatusForbidden
	case code == model.HappeningNotFound:
		return http.StatusConflict
	case code == model.AlreadySubmitted, code == model.AlreadySubmittedWaitList:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Cancel handles DELETE /happening/{link}/registrations/{email}
// Removes a registration and promotes from the wait list when a confirmed
// spot is freed.
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || strings.TrimSpace(email) == "" {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	hap, err := h.happenings.ByLink(r.Context(), chi.URLParam(r, "link"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "happening not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve registrations link")
		return
	}

	out, err := h.admission.CancelAndPromote(r.Context(), hap.Slug, email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete registration")
		return
	}

	switch out.Code {
	case model.RegistrationNotFound:
		writeError(w, http.StatusBadRequest, "registration not found")
	case model.DeletedAndPromoted:
		writeJSON(w, http.StatusOK, cancelResponse{
			Message: "Registration with email = " + out.Email + " and slug = " + out.Slug +
				" deleted, and registration with email = " + out.PromotedEmail + " moved off wait list.",
			PromotedSlug:  out.PromotedSlug,
			PromotedEmail: out.PromotedEmail,
		})
	default:
		writeJSON(w, http.StatusOK, cancelResponse{
			Message: "Registration with email = " + out.Email + " and slug = " + out.Slug + " deleted.",
		})
	}
}

type cancelResponse struct {
	Message       string `json:"message"`
	PromotedSlug  string `json:"promotedSlug,omitempty"`
	PromotedEmail string `json:"promotedEmail,omitempty"`
}

// ListRegistrations handles GET /happening/{link}/registrations
// Returns the registrations, oldest first.
func (h *RegistrationHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	_, regs, err := h.happenings.Registrations(r.Context(), chi.URLParam(r, "link"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "happening not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list registrations")
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

type countRequest struct {
	Slugs []string `json:"slugs"`
}

// CountRegistrations handles POST /happening/count/registrations
func (h *RegistrationHandler) CountRegistrations(w http.ResponseWriter, r *http.Request) {
	var req countRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	counts, err := h.happenings.Counts(r.Context(), req.Slugs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count registrations")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// PutHappening handles PUT /happening/{slug}
// Creates the happening or updates it in place.
func (h *RegistrationHandler) PutHappening(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var in service.HappeningInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.happenings.Put(r.Context(), slug, in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to submit happening")
		return
	}

	switch res {
	case service.Unchanged:
		writeJSON(w, http.StatusAccepted, messageResponse{Message: "Happening with slug = " + slug + " has already been submitted."})
	case service.Created:
		writeJSON(w, http.StatusOK, messageResponse{Message: strings.ToLower(string(in.Type)) + " submitted with slug = " + slug + "."})
	default:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Updated " + string(in.Type) + " with slug = " + slug + "."})
	}
}

// GetHappeningInfo handles GET /happening/{slug}
// Returns spot ranges with occupancy and the verification token.
func (h *RegistrationHandler) GetHappeningInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.happenings.Info(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "happening not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get happening")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// DeleteHappening handles DELETE /happening/{slug}
func (h *RegistrationHandler) DeleteHappening(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := h.happenings.Delete(r.Context(), slug); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "happening with slug = "+slug+" does not exist")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete happening")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Happening with slug = " + slug + " deleted."})
}
