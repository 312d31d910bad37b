package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/Manish-basnet10/Blood-Donation/internal/domain"
	"github.com/Manish-basnet10/Blood-Donation/internal/http/response"
	"github.com/Manish-basnet10/Blood-Donation/internal/service"
	"github.com/Manish-basnet10/Blood-Donation/pkg/auth"
	"github.com/Manish-basnet10/Blood-Donation/pkg/config"
	"github.com/Manish-basnet10/Blood-Donation/pkg/logger"
)

type contextKey string

const claimsKey contextKey = "claims"

type Handlers struct {
	authService    service.AuthService
	userService    service.UserService
	requestService service.RequestService
	config         *config.Config
}

func New(
	authService service.AuthService,
	userService service.UserService,
	requestService service.RequestService,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		authService:    authService,
		userService:    userService,
		requestService: requestService,
		config:         cfg,
	}
}

// RequireJWT authenticates the bearer token and optionally gates on roles.
// With no roles given, any authenticated user passes.
func (h *Handlers) RequireJWT(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Unauthorized(w, "Missing or invalid authorization header")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
			if err != nil {
				response.Unauthorized(w, "Invalid token")
				return
			}
			// Refresh tokens are not access tokens.
			if claims.Role == "refresh" {
				response.Unauthorized(w, "Invalid token")
				return
			}

			if len(roles) > 0 && !roleAllowed(claims.Role, roles) {
				response.Forbidden(w, "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
			ctx = context.WithValue(ctx, logger.RoleKey, claims.Role)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// Helper to get user claims from context
func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// currentUser loads the full user record for the authenticated caller.
// Handlers that pass the actor to role-scoped service calls need the full
// record, not just the claims.
func (h *Handlers) currentUser(r *http.Request) (*domain.User, error) {
	claims := getClaims(r)
	if claims == nil {
		return nil, domain.NewError(domain.KindUnauthenticated, "authentication required")
	}
	return h.userService.GetProfile(r.Context(), claims.Sub)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// Helper to parse pagination parameters
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
