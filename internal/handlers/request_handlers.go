package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Manish-basnet10/Blood-Donation/internal/domain"
	"github.com/Manish-basnet10/Blood-Donation/internal/http/response"
)

// CreateRequest handles creation of a direct donation request
func (h *Handlers) CreateRequest(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var payload domain.CreateRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	request, err := h.requestService.Create(r.Context(), claims.Sub, &payload)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, request)
}

// ListMyRequests lists the caller's requests: incoming for donors, outgoing
// for recipients and hospitals.
func (h *Handlers) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	actor, err := h.currentUser(r)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	limit, offset := parsePagination(r)

	var statusPtr *domain.RequestStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		if st, ok := domain.ParseRequestStatus(raw); ok {
			statusPtr = &st
		} else {
			response.BadRequest(w, "Invalid status parameter")
			return
		}
	}

	requests, err := h.requestService.ListMine(r.Context(), actor, statusPtr, limit, offset)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, requests)
}

// ListPendingRequests lists pending incoming requests for the donor
func (h *Handlers) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	limit, offset := parsePagination(r)

	requests, err := h.requestService.ListPending(r.Context(), claims.Sub, limit, offset)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, requests)
}

// AcceptRequest handles a donor accepting a pending request
func (h *Handlers) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.requestService.Accept)
}

// RejectRequest handles a donor declining a pending request
func (h *Handlers) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.requestService.Reject)
}

// CompleteRequest handles either party marking an accepted request fulfilled
func (h *Handlers) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.requestService.Complete)
}

// Broadcast handles a hospital emergency broadcast to eligible donors
func (h *Handlers) Broadcast(w http.ResponseWriter, r *http.Request) {
	hospital, err := h.currentUser(r)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	var payload domain.BroadcastPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	result, err := h.requestService.Broadcast(r.Context(), hospital, &payload)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handlers) transition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, requestID, actingUserID int64) (*domain.DonationRequest, error),
) {
	claims := getClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid request ID")
		return
	}

	request, err := fn(r.Context(), id, claims.Sub)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, request)
}
