package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/Manish-basnet10/Blood-Donation/internal/domain"
	"github.com/Manish-basnet10/Blood-Donation/internal/mailer"
	"github.com/Manish-basnet10/Blood-Donation/internal/repository"
	"github.com/Manish-basnet10/Blood-Donation/pkg/auth"
	"github.com/Manish-basnet10/Blood-Donation/pkg/config"
	"github.com/Manish-basnet10/Blood-Donation/pkg/logger"
)

type AuthService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, string, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.LoginResponse, error)
	VerifyEmail(ctx context.Context, token string) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

type authService struct {
	userRepo   repository.UserRepository
	verifyRepo repository.VerifyRepository
	mailer     mailer.Service
	config     *config.Config
}

func NewAuthService(
	userRepo repository.UserRepository,
	verifyRepo repository.VerifyRepository,
	mailer mailer.Service,
	config *config.Config,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		verifyRepo: verifyRepo,
		mailer:     mailer,
		config:     config,
	}
}

func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, "", domain.NewError(domain.KindConflict, "user with this email already exists")
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, req, passwordHash)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	verifyToken := uuid.NewString()
	expiresAt := time.Now().Add(s.config.Auth.EmailVerificationTTL)

	if err := s.verifyRepo.CreateEmailVerification(ctx, user.ID, verifyToken, expiresAt); err != nil {
		return nil, "", fmt.Errorf("failed to create verification token: %w", err)
	}

	verifyURL := fmt.Sprintf("/v1/auth/verify-email?token=%s", verifyToken)
	if err := s.mailer.SendVerificationEmail(user.Email, user.Name, verifyURL, verifyToken); err != nil {
		// Don't fail registration if email fails
		logger.ErrorContext(ctx, "Failed to send verification email", "error", err, "user_id", user.ID)
	}

	return user, verifyURL, nil
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.NewError(domain.KindUnauthenticated, "invalid credentials")
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.NewError(domain.KindUnauthenticated, "invalid credentials")
	}

	return s.issueTokens(user, "")
}

// RefreshToken exchanges a valid refresh token for a new access token. The
// refresh token itself is returned unchanged; callers retry the failed call
// exactly once with the new access token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*domain.LoginResponse, error) {
	claims, err := auth.Parse(refreshToken, s.config.Auth.JWTSecret)
	if err != nil {
		return nil, domain.WrapError(domain.KindUnauthenticated, "invalid refresh token", err)
	}
	if claims.Role != "refresh" {
		return nil, domain.NewError(domain.KindUnauthenticated, "invalid token type")
	}

	user, err := s.userRepo.FindByID(ctx, claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.NewError(domain.KindUnauthenticated, "user not found")
	}

	return s.issueTokens(user, refreshToken)
}

func (s *authService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.verifyRepo.ConsumeEmailVerification(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to consume verification token: %w", err)
	}
	if userID == 0 {
		return nil, domain.NewError(domain.KindValidation, "invalid or expired verification token")
	}

	if err := s.userRepo.MarkVerified(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to mark user as verified: %w", err)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get verified user: %w", err)
	}
	return user, nil
}

func (s *authService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.NewError(domain.KindNotFound, "user not found")
	}
	return user, nil
}

func (s *authService) issueTokens(user *domain.User, reuseRefresh string) (*domain.LoginResponse, error) {
	accessToken, err := auth.NewAccessToken(
		user.ID,
		user.Email,
		user.Role,
		s.config.Auth.JWTSecret,
		s.config.Auth.AccessTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken := reuseRefresh
	if refreshToken == "" {
		refreshToken, err = auth.NewRefreshToken(
			user.ID,
			user.Email,
			s.config.Auth.JWTSecret,
			s.config.Auth.RefreshTokenTTL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create refresh token: %w", err)
		}
	}

	return &domain.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.Auth.AccessTokenTTL.Seconds()),
		User:         user.ToUserInfo(),
	}, nil
}
