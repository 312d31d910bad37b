package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Manish-basnet10/Blood-Donation/internal/domain"
	"github.com/Manish-basnet10/Blood-Donation/internal/http/response"
)

// Register handles new user registration
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	user, _, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user.ToUserInfo())
}

// Login handles credential authentication and token issuance
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// RefreshToken exchanges a valid refresh token for a fresh access token
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if req.RefreshToken == "" {
		response.BadRequest(w, "refresh_token is required")
		return
	}

	resp, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// VerifyEmail consumes a verification token from the emailed link
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		response.BadRequest(w, "token is required")
		return
	}

	user, err := h.authService.VerifyEmail(r.Context(), token)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Email verified successfully",
		"user":    user.ToUserInfo(),
	})
}

// Me returns the authenticated user's own profile
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	user, err := h.authService.GetUser(r.Context(), claims.Sub)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.ToUserInfo())
}
