package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Manish-basnet10/Blood-Donation/internal/domain"
	"github.com/Manish-basnet10/Blood-Donation/internal/mailer"
	"github.com/Manish-basnet10/Blood-Donation/internal/repository"
	"github.com/Manish-basnet10/Blood-Donation/pkg/config"
	"github.com/Manish-basnet10/Blood-Donation/pkg/events"
	"github.com/Manish-basnet10/Blood-Donation/pkg/logger"
)

// broadcastConcurrency bounds the fan-out when a hospital broadcasts to a
// large donor roster.
const broadcastConcurrency = 8

type RequestService interface {
	Create(ctx context.Context, recipientID int64, p *domain.CreateRequestPayload) (*domain.DonationRequest, error)
	Accept(ctx context.Context, requestID, actingUserID int64) (*domain.DonationRequest, error)
	Reject(ctx context.Context, requestID, actingUserID int64) (*domain.DonationRequest, error)
	Complete(ctx context.Context, requestID, actingUserID int64) (*domain.DonationRequest, error)
	// Expire transitions a pending request to expired. Calling it on a
	// request already in a terminal state is a no-op, not an error.
	Expire(ctx context.Context, requestID int64) (*domain.DonationRequest, error)
	ExpireDue(ctx context.Context) (int, error)
	ListMine(ctx context.Context, actor *domain.User, status *domain.RequestStatus, limit, offset int) ([]domain.DonationRequest, error)
	ListPending(ctx context.Context, donorID int64, limit, offset int) ([]domain.DonationRequest, error)
	Broadcast(ctx context.Context, hospital *domain.User, p *domain.BroadcastPayload) (*domain.BroadcastResult, error)
}

type requestService struct {
	requestRepo repository.RequestRepository
	userRepo    repository.UserRepository
	eventBus    events.Publisher
	mailer      mailer.Service
	config      *config.Config
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	userRepo repository.UserRepository,
	eventBus events.Publisher,
	mailer mailer.Service,
	config *config.Config,
) RequestService {
	return &requestService{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		eventBus:    eventBus,
		mailer:      mailer,
		config:      config,
	}
}

func (s *requestService) Create(ctx context.Context, recipientID int64, p *domain.CreateRequestPayload) (*domain.DonationRequest, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	donor, err := s.userRepo.FindByID(ctx, p.DonorID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up donor: %w", err)
	}
	if donor == nil || !donor.IsDonor() {
		return nil, domain.NewError(domain.KindValidation, "target user is not a donor")
	}

	// Availability is a donor-declared signal, not a gate: requests may
	// target unavailable donors and creation never toggles the flag.
	request, err := s.requestRepo.Create(ctx, recipientID, p)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	event := events.RequestCreatedEvent{
		RequestID:   request.ID,
		RecipientID: request.RecipientID,
		DonorID:     request.DonorID,
		BloodType:   request.BloodType,
		UnitsNeeded: request.UnitsNeeded,
		Urgency:     string(request.Urgency),
		CreatedAt:   request.CreatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.RequestCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish request created event", "error", err, "request_id", request.ID)
	}

	return request, nil
}

func (s *requestService) Accept(ctx context.Context, requestID, actingUserID int64) (*domain.DonationRequest, error) {
	request, err := s.guardDonorTransition(ctx, requestID, actingUserID, domain.RequestAccepted)
	if err != nil {
		return nil, err
	}

	updated, err := s.requestRepo.Accept(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to accept request: %w", err)
	}
	if updated == nil {
		// Lost the race: another transition won between the guard and the
		// conditional update.
		return nil, domain.NewError(domain.KindInvalidState, "request is no longer pending")
	}

	event := events.RequestAcceptedEvent{
		RequestID:  updated.ID,
		DonorID:    updated.DonorID,
		AcceptedAt: *updated.AcceptedAt,
	}
	if err := s.eventBus.Publish(ctx, events.RequestAccepted, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish request accepted event", "error", err, "request_id", updated.ID)
	}

	s.notifyAccepted(ctx, request)

	return updated, nil
}

func (s *requestService) Reject(ctx context.Context, requestID, actingUserID int64) (*domain.DonationRequest, error) {
	if _, err := s.guardDonorTransition(ctx, requestID, actingUserID, domain.RequestRejected); err != nil {
		return nil, err
	}

	updated, err := s.requestRepo.Reject(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to reject request: %w", err)
	}
	if updated == nil {
		return nil, domain.NewError(domain.KindInvalidState, "request is no longer pending")
	}

	event := events.RequestRejectedEvent{RequestID: updated.ID, DonorID: updated.DonorID}
	if err := s.eventBus.Publish(ctx, events.RequestRejected, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish request rejected event", "error", err, "request_id", updated.ID)
	}

	return updated, nil
}

func (s *requestService) Complete(ctx context.Context, requestID, actingUserID int64) (*domain.DonationRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if request == nil {
		return nil, domain.NewError(domain.KindNotFound, "request not found")
	}
	// Either party may mark completion.
	if !request.IsParty(actingUserID) {
		return nil, domain.NewError(domain.KindForbidden, "not a party to this request")
	}
	if !request.Status.CanTransition(domain.RequestCompleted) {
		return nil, domain.NewError(domain.KindInvalidState,
			fmt.Sprintf("cannot complete a %s request", request.Status))
	}

	updated, err := s.requestRepo.Complete(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete request: %w", err)
	}
	if updated == nil {
		return nil, domain.NewError(domain.KindInvalidState, "request is no longer accepted")
	}

	event := events.RequestCompletedEvent{
		RequestID:   updated.ID,
		CompletedBy: actingUserID,
		CompletedAt: *updated.CompletedAt,
	}
	if err := s.eventBus.Publish(ctx, events.RequestCompleted, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish request completed event", "error", err, "request_id", updated.ID)
	}

	return updated, nil
}

func (s *requestService) Expire(ctx context.Context, requestID int64) (*domain.DonationRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if request == nil {
		return nil, domain.NewError(domain.KindNotFound, "request not found")
	}
	if request.Status != domain.RequestPending {
		// No-op on anything already transitioned.
		return request, nil
	}

	updated, err := s.requestRepo.Expire(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to expire request: %w", err)
	}
	if updated == nil {
		return request, nil
	}

	event := events.RequestExpiredEvent{RequestID: updated.ID, ExpiredAt: time.Now()}
	if err := s.eventBus.Publish(ctx, events.RequestExpired, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish request expired event", "error", err, "request_id", updated.ID)
	}

	return updated, nil
}

// ExpireDue transitions every pending request older than the configured TTL
// and returns how many were expired.
func (s *requestService) ExpireDue(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.config.Requests.PendingTTL)
	expired, err := s.requestRepo.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending requests: %w", err)
	}

	now := time.Now()
	for _, dr := range expired {
		event := events.RequestExpiredEvent{RequestID: dr.ID, ExpiredAt: now}
		if err := s.eventBus.Publish(ctx, events.RequestExpired, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish request expired event", "error", err, "request_id", dr.ID)
		}
	}
	return len(expired), nil
}

func (s *requestService) ListMine(ctx context.Context, actor *domain.User, status *domain.RequestStatus, limit, offset int) ([]domain.DonationRequest, error) {
	switch actor.Role {
	case domain.RoleDonor:
		return s.requestRepo.ListByDonor(ctx, actor.ID, status, limit, offset)
	case domain.RoleRecipient, domain.RoleHospital:
		return s.requestRepo.ListByRecipient(ctx, actor.ID, status, limit, offset)
	default:
		return nil, domain.NewError(domain.KindForbidden, "role cannot list requests")
	}
}

func (s *requestService) ListPending(ctx context.Context, donorID int64, limit, offset int) ([]domain.DonationRequest, error) {
	pending := domain.RequestPending
	return s.requestRepo.ListByDonor(ctx, donorID, &pending, limit, offset)
}

func (s *requestService) Broadcast(ctx context.Context, hospital *domain.User, p *domain.BroadcastPayload) (*domain.BroadcastResult, error) {
	if !hospital.IsHospital() {
		return nil, domain.NewError(domain.KindForbidden, "only hospitals can broadcast")
	}

	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// The target set is every available donor of the blood type, however
	// many there are. Fan-out concurrency is bounded below instead.
	eligible, err := s.userRepo.FindEligibleDonors(ctx, p.BloodType)
	if err != nil {
		return nil, fmt.Errorf("failed to find eligible donors: %w", err)
	}
	if len(eligible) == 0 {
		return nil, domain.NewError(domain.KindValidation, "no eligible donors for this blood type")
	}

	broadcastID := uuid.NewString()

	var (
		mu       sync.Mutex
		requests []domain.DonationRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(broadcastConcurrency)
	for _, donor := range eligible {
		donor := donor
		g.Go(func() error {
			dr, err := s.requestRepo.CreateBroadcast(gctx, hospital.ID, broadcastID, donor.ID, p)
			if err != nil {
				return fmt.Errorf("failed to create broadcast request for donor %d: %w", donor.ID, err)
			}

			if err := s.mailer.SendEmergencyBroadcastEmail(donor.Email, donor.Name, p.BloodType, hospital.Name, p.Message); err != nil {
				logger.ErrorContext(gctx, "Failed to send broadcast email", "error", err, "donor_id", donor.ID)
			}

			mu.Lock()
			requests = append(requests, *dr)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })

	event := events.BroadcastCreatedEvent{
		BroadcastID: broadcastID,
		HospitalID:  hospital.ID,
		BloodType:   p.BloodType,
		DonorCount:  len(requests),
		CreatedAt:   time.Now(),
	}
	if err := s.eventBus.Publish(ctx, events.BroadcastCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish broadcast created event", "error", err, "broadcast_id", broadcastID)
	}

	return &domain.BroadcastResult{BroadcastID: broadcastID, Requests: requests}, nil
}

// guardDonorTransition checks the shared preconditions of accept and reject:
// the request exists, the actor is its donor, and the transition is legal
// from the current state. The conditional update in the repository remains
// the authority under concurrency.
func (s *requestService) guardDonorTransition(ctx context.Context, requestID, actingUserID int64, to domain.RequestStatus) (*domain.DonationRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if request == nil {
		return nil, domain.NewError(domain.KindNotFound, "request not found")
	}
	if !request.IsDonor(actingUserID) {
		return nil, domain.NewError(domain.KindForbidden, "only the targeted donor may respond to this request")
	}
	if !request.Status.CanTransition(to) {
		return nil, domain.NewError(domain.KindInvalidState,
			fmt.Sprintf("cannot transition a %s request to %s", request.Status, to))
	}
	return request, nil
}

// notifyAccepted emails the recipient the donor's contact details once a
// request is accepted. Failures are logged, never surfaced.
func (s *requestService) notifyAccepted(ctx context.Context, request *domain.DonationRequest) {
	recipient, err := s.userRepo.FindByID(ctx, request.RecipientID)
	if err != nil || recipient == nil {
		logger.ErrorContext(ctx, "Failed to load recipient for notification", "error", err, "request_id", request.ID)
		return
	}
	donor, err := s.userRepo.FindByID(ctx, request.DonorID)
	if err != nil || donor == nil {
		logger.ErrorContext(ctx, "Failed to load donor for notification", "error", err, "request_id", request.ID)
		return
	}

	if err := s.mailer.SendRequestAcceptedEmail(recipient.Email, recipient.Name, donor.Name, donor.Phone); err != nil {
		logger.ErrorContext(ctx, "Failed to send acceptance email", "error", err, "request_id", request.ID)
	}
}
