package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Manish-basnet10/Blood-Donation/internal/domain"
	"github.com/Manish-basnet10/Blood-Donation/internal/http/response"
)

// SearchDonors handles the donor directory search. Results are scoped to
// what the caller's role may see.
func (h *Handlers) SearchDonors(w http.ResponseWriter, r *http.Request) {
	actor, err := h.currentUser(r)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	filter := domain.DonorFilter{
		BloodType: r.URL.Query().Get("blood_type"),
		City:      r.URL.Query().Get("city"),
	}
	limit, offset := parsePagination(r)

	donors, err := h.userService.SearchDonors(r.Context(), actor, filter, limit, offset)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, donors)
}

// GetDonor returns a single donor, scoped to the caller's entitlement
func (h *Handlers) GetDonor(w http.ResponseWriter, r *http.Request) {
	actor, err := h.currentUser(r)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid donor ID")
		return
	}

	donor, err := h.userService.GetDonor(r.Context(), actor, id)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, donor)
}

// UpdateProfile handles partial profile updates for the authenticated user
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req domain.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), claims.Sub, &req)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.ToUserInfo())
}

// SetAvailability toggles the authenticated donor's availability flag
func (h *Handlers) SetAvailability(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req domain.AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	user, err := h.userService.SetAvailability(r.Context(), claims.Sub, req.IsAvailable)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.ToUserInfo())
}
