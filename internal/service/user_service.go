package service

import (
	"context"
	"fmt"

	"github.com/Manish-basnet10/Blood-Donation/internal/domain"
	"github.com/Manish-basnet10/Blood-Donation/internal/repository"
	"github.com/Manish-basnet10/Blood-Donation/pkg/events"
	"github.com/Manish-basnet10/Blood-Donation/pkg/logger"
)

type UserService interface {
	GetProfile(ctx context.Context, userID int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID int64, req *domain.UpdateProfileRequest) (*domain.User, error)
	SetAvailability(ctx context.Context, userID int64, available bool) (*domain.User, error)
	// SearchDonors returns role-scoped views: hospitals get full contact
	// fields, everyone else gets scoped cards. Scoping happens here, not in
	// the handler, so a caller can never see fields its role is not
	// entitled to.
	SearchDonors(ctx context.Context, actor *domain.User, filter domain.DonorFilter, limit, offset int) ([]any, error)
	GetDonor(ctx context.Context, actor *domain.User, donorID int64) (any, error)
}

type userService struct {
	userRepo    repository.UserRepository
	requestRepo repository.RequestRepository
	eventBus    events.Publisher
}

func NewUserService(userRepo repository.UserRepository, requestRepo repository.RequestRepository, eventBus events.Publisher) UserService {
	return &userService{
		userRepo:    userRepo,
		requestRepo: requestRepo,
		eventBus:    eventBus,
	}
}

func (s *userService) GetProfile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.NewError(domain.KindNotFound, "user not found")
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID int64, req *domain.UpdateProfileRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.UpdateProfile(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if user == nil {
		return nil, domain.NewError(domain.KindNotFound, "user not found")
	}
	return user, nil
}

func (s *userService) SetAvailability(ctx context.Context, userID int64, available bool) (*domain.User, error) {
	actor, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if actor == nil {
		return nil, domain.NewError(domain.KindNotFound, "user not found")
	}
	if !actor.IsDonor() {
		return nil, domain.NewError(domain.KindForbidden, "only donors can set availability")
	}

	user, err := s.userRepo.SetAvailability(ctx, userID, available)
	if err != nil {
		return nil, fmt.Errorf("failed to set availability: %w", err)
	}
	if user == nil {
		return nil, domain.NewError(domain.KindNotFound, "user not found")
	}

	event := events.AvailabilityChangedEvent{DonorID: user.ID, IsAvailable: user.IsAvailable}
	if err := s.eventBus.Publish(ctx, events.AvailabilityChanged, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish availability event", "error", err, "donor_id", user.ID)
	}

	return user, nil
}

func (s *userService) SearchDonors(ctx context.Context, actor *domain.User, filter domain.DonorFilter, limit, offset int) ([]any, error) {
	if filter.BloodType != "" && !domain.IsValidBloodType(filter.BloodType) {
		return nil, domain.Validationf("invalid blood type filter")
	}

	donors, err := s.userRepo.SearchDonors(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search donors: %w", err)
	}

	views := make([]any, 0, len(donors))
	for i := range donors {
		donor := &donors[i]
		linked := false
		if !actor.IsHospital() && actor.ID != donor.ID {
			linked, err = s.requestRepo.HasAcceptedBetween(ctx, donor.ID, actor.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve request link: %w", err)
			}
		}
		views = append(views, domain.ScopeDonor(actor.Role, actor.ID, donor, linked))
	}
	return views, nil
}

func (s *userService) GetDonor(ctx context.Context, actor *domain.User, donorID int64) (any, error) {
	donor, err := s.userRepo.FindByID(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}
	if donor == nil || !donor.IsDonor() {
		return nil, domain.NewError(domain.KindNotFound, "donor not found")
	}

	linked := false
	if !actor.IsHospital() && actor.ID != donor.ID {
		linked, err = s.requestRepo.HasAcceptedBetween(ctx, donor.ID, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve request link: %w", err)
		}
	}
	return domain.ScopeDonor(actor.Role, actor.ID, donor, linked), nil
}
