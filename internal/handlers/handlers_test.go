package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Manish-basnet10/Blood-Donation/internal/domain"
	"github.com/Manish-basnet10/Blood-Donation/internal/handlers"
	"github.com/Manish-basnet10/Blood-Donation/internal/service"
	"github.com/Manish-basnet10/Blood-Donation/pkg/config"
)

// ---------- Mocks ----------

type mockEventBus struct{}

func (mockEventBus) Publish(context.Context, string, interface{}) error { return nil }
func (mockEventBus) Close() error                                       { return nil }

type mockMailer struct{}

func (mockMailer) SendVerificationEmail(string, string, string, string) error               { return nil }
func (mockMailer) SendRequestAcceptedEmail(string, string, string, string) error            { return nil }
func (mockMailer) SendEmergencyBroadcastEmail(string, string, string, string, string) error { return nil }

type mockUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{nextID: 1, users: make(map[int64]*domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, req *domain.RegisterRequest, passwordHash string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &domain.User{
		ID:           m.nextID,
		Role:         req.Role,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Name:         req.Name,
		Phone:        req.Phone,
		BloodType:    req.BloodType,
		IsAvailable:  req.Role == domain.RoleDonor,
		City:         req.City,
		Address:      req.Address,
		CreatedAt:    time.Now(),
	}
	m.nextID++
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id int64, req *domain.UpdateProfileRequest) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}
	if req.City != nil {
		u.City = *req.City
	}
	if req.Address != nil {
		u.Address = *req.Address
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) SetAvailability(_ context.Context, id int64, available bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Role != domain.RoleDonor {
		return nil, nil
	}
	u.IsAvailable = available
	cp := *u
	return &cp, nil
}

// SearchDonors clamps and applies limit and offset the way the SQL query
// does, so tests see the same page boundaries as production.
func (m *mockUserRepo) SearchDonors(_ context.Context, filter domain.DonorFilter, limit, offset int) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var out []domain.User
	for _, u := range m.users {
		if u.Role != domain.RoleDonor {
			continue
		}
		if filter.BloodType != "" && u.BloodType != filter.BloodType {
			continue
		}
		if filter.City != "" && !strings.Contains(strings.ToLower(u.City), strings.ToLower(filter.City)) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockUserRepo) FindEligibleDonors(_ context.Context, bloodType string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		if u.Role == domain.RoleDonor && u.IsAvailable && u.BloodType == bloodType {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUserRepo) MarkVerified(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.IsVerified = true
	}
	return nil
}

type mockVerifyRepo struct {
	mu     sync.Mutex
	tokens map[string]int64
}

func newMockVerifyRepo() *mockVerifyRepo {
	return &mockVerifyRepo{tokens: make(map[string]int64)}
}

func (m *mockVerifyRepo) CreateEmailVerification(_ context.Context, userID int64, token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = userID
	return nil
}

func (m *mockVerifyRepo) ConsumeEmailVerification(_ context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokens[token]
	if !ok {
		return 0, nil
	}
	delete(m.tokens, token)
	return id, nil
}

func (m *mockVerifyRepo) DeleteExpiredTokens(context.Context) (int64, error) { return 0, nil }

type mockRequestRepo struct {
	mu       sync.Mutex
	nextID   int64
	requests map[int64]*domain.DonationRequest
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{nextID: 1, requests: make(map[int64]*domain.DonationRequest)}
}

func (m *mockRequestRepo) Create(_ context.Context, recipientID int64, p *domain.CreateRequestPayload) (*domain.DonationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &domain.DonationRequest{
		ID:           m.nextID,
		RecipientID:  recipientID,
		DonorID:      p.DonorID,
		Status:       domain.RequestPending,
		BloodType:    p.BloodType,
		UnitsNeeded:  *p.UnitsNeeded,
		Urgency:      domain.Urgency(p.Urgency),
		PatientName:  p.PatientName,
		ContactPhone: p.ContactPhone,
		Message:      p.Message,
		CreatedAt:    time.Now(),
	}
	m.nextID++
	m.requests[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m *mockRequestRepo) CreateBroadcast(_ context.Context, hospitalID int64, broadcastID string, donorID int64, p *domain.BroadcastPayload) (*domain.DonationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &domain.DonationRequest{
		ID:           m.nextID,
		RecipientID:  hospitalID,
		DonorID:      donorID,
		HospitalID:   &hospitalID,
		BroadcastID:  &broadcastID,
		Status:       domain.RequestPending,
		BloodType:    p.BloodType,
		UnitsNeeded:  *p.UnitsNeeded,
		Urgency:      domain.UrgencyEmergency,
		PatientName:  p.PatientName,
		ContactPhone: p.ContactPhone,
		Message:      p.Message,
		CreatedAt:    time.Now(),
	}
	m.nextID++
	m.requests[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id int64) (*domain.DonationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *mockRequestRepo) transition(id int64, from, to domain.RequestStatus) (*domain.DonationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != from {
		return nil, nil
	}
	r.Status = to
	now := time.Now()
	switch to {
	case domain.RequestAccepted:
		r.AcceptedAt = &now
	case domain.RequestCompleted:
		r.CompletedAt = &now
	}
	cp := *r
	return &cp, nil
}

func (m *mockRequestRepo) Accept(_ context.Context, id int64) (*domain.DonationRequest, error) {
	return m.transition(id, domain.RequestPending, domain.RequestAccepted)
}

func (m *mockRequestRepo) Reject(_ context.Context, id int64) (*domain.DonationRequest, error) {
	return m.transition(id, domain.RequestPending, domain.RequestRejected)
}

func (m *mockRequestRepo) Complete(_ context.Context, id int64) (*domain.DonationRequest, error) {
	return m.transition(id, domain.RequestAccepted, domain.RequestCompleted)
}

func (m *mockRequestRepo) Expire(_ context.Context, id int64) (*domain.DonationRequest, error) {
	return m.transition(id, domain.RequestPending, domain.RequestExpired)
}

func (m *mockRequestRepo) ExpireOlderThan(context.Context, time.Time) ([]domain.DonationRequest, error) {
	return nil, nil
}

func (m *mockRequestRepo) ListByRecipient(_ context.Context, recipientID int64, status *domain.RequestStatus, _, _ int) ([]domain.DonationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DonationRequest
	for _, r := range m.requests {
		if r.RecipientID == recipientID && (status == nil || r.Status == *status) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) ListByDonor(_ context.Context, donorID int64, status *domain.RequestStatus, _, _ int) ([]domain.DonationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DonationRequest
	for _, r := range m.requests {
		if r.DonorID == donorID && (status == nil || r.Status == *status) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) HasAcceptedBetween(_ context.Context, donorID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.DonorID == donorID && r.RecipientID == userID &&
			(r.Status == domain.RequestAccepted || r.Status == domain.RequestCompleted) {
			return true, nil
		}
	}
	return false, nil
}

// ---------- Test server ----------

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret",
			AccessTokenTTL:       15 * time.Minute,
			RefreshTokenTTL:      7 * 24 * time.Hour,
			EmailVerificationTTL: 24 * time.Hour,
		},
		Requests: config.RequestsConfig{
			PendingTTL:    72 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := testConfig()
	userRepo := newMockUserRepo()
	requestRepo := newMockRequestRepo()
	verifyRepo := newMockVerifyRepo()
	bus := mockEventBus{}
	mail := mockMailer{}

	authService := service.NewAuthService(userRepo, verifyRepo, mail, cfg)
	userService := service.NewUserService(userRepo, requestRepo, bus)
	requestService := service.NewRequestService(requestRepo, userRepo, bus, mail, cfg)

	h := handlers.New(authService, userService, requestService, cfg)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.RefreshToken)
			r.Get("/verify-email", h.VerifyEmail)
			r.With(h.RequireJWT()).Get("/me", h.Me)
		})
		r.Route("/requests", func(r chi.Router) {
			r.With(h.RequireJWT(domain.RoleRecipient, domain.RoleHospital)).Post("/", h.CreateRequest)
			r.With(h.RequireJWT()).Get("/mine", h.ListMyRequests)
			r.With(h.RequireJWT(domain.RoleDonor)).Get("/pending", h.ListPendingRequests)
			r.With(h.RequireJWT(domain.RoleDonor)).Put("/{id}/accept", h.AcceptRequest)
			r.With(h.RequireJWT(domain.RoleDonor)).Put("/{id}/reject", h.RejectRequest)
			r.With(h.RequireJWT()).Put("/{id}/complete", h.CompleteRequest)
		})
		r.Route("/users", func(r chi.Router) {
			r.With(h.RequireJWT()).Get("/donors", h.SearchDonors)
			r.With(h.RequireJWT()).Get("/donors/{id}", h.GetDonor)
			r.With(h.RequireJWT(domain.RoleHospital)).Get("/hospital/donors", h.SearchDonors)
			r.With(h.RequireJWT(domain.RoleDonor)).Put("/availability", h.SetAvailability)
			r.With(h.RequireJWT()).Put("/profile", h.UpdateProfile)
		})
		r.With(h.RequireJWT(domain.RoleHospital)).Post("/broadcast", h.Broadcast)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out.Bytes()
}

// register creates a user and returns its id and an access token.
func register(t *testing.T, srv *httptest.Server, role, email, bloodType, city string) (int64, string) {
	t.Helper()

	reg := map[string]any{
		"email":    email,
		"password": "secret-password-1",
		"name":     "Test " + role,
		"phone":    "+9779810000000",
		"role":     role,
	}
	if bloodType != "" {
		reg["blood_type"] = bloodType
	}
	if city != "" {
		reg["city"] = city
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/register", "", reg)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", role, resp.StatusCode, body)
	}
	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		t.Fatalf("decode register response: %v", err)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "secret-password-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", role, resp.StatusCode, body)
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return user.ID, login.AccessToken
}

// ---------- Tests ----------

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	_, token := register(t, srv, domain.RoleRecipient, "rita@example.com", "", "")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d: %s", resp.StatusCode, body)
	}
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Email != "rita@example.com" || me.Role != domain.RoleRecipient {
		t.Errorf("me = %+v", me)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/auth/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("me without token: status %d, want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/auth/me", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("me with bad token: status %d, want 401", resp.StatusCode)
	}
}

func TestRefreshFlow(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, domain.RoleRecipient, "rita@example.com", "", "")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", "", map[string]string{
		"email":    "rita@example.com",
		"password": "secret-password-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d: %s", resp.StatusCode, body)
	}
	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/refresh", "", map[string]string{
		"refresh_token": login.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: status %d: %s", resp.StatusCode, body)
	}
	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &refreshed); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Error("refresh returned empty access token")
	}

	// A refresh token is not an access token.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/auth/me", login.RefreshToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("me with refresh token: status %d, want 401", resp.StatusCode)
	}

	// An access token is not a refresh token.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/refresh", "", map[string]string{
		"refresh_token": login.AccessToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("refresh with access token: status %d, want 401", resp.StatusCode)
	}
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	donorID, donorToken := register(t, srv, domain.RoleDonor, "dev@example.com", "O-", "Kathmandu")
	_, recipientToken := register(t, srv, domain.RoleRecipient, "rita@example.com", "", "")

	// Recipient creates a request targeting the donor.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/requests", recipientToken, map[string]any{
		"donor_id":      donorID,
		"blood_type":    "O-",
		"patient_name":  "Ram Shrestha",
		"contact_phone": "+9779812345678",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create request: status %d: %s", resp.StatusCode, body)
	}
	var created struct {
		ID          int64  `json:"id"`
		Status      string `json:"status"`
		UnitsNeeded int    `json:"units_needed"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode created request: %v", err)
	}
	if created.Status != "pending" || created.UnitsNeeded != 1 {
		t.Errorf("created = %+v", created)
	}

	// Donors cannot create requests.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/requests", donorToken, map[string]any{
		"donor_id": donorID, "blood_type": "O-", "patient_name": "x", "contact_phone": "y",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("donor create request: status %d, want 403", resp.StatusCode)
	}

	// The donor sees it pending.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/requests/pending", donorToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending: status %d: %s", resp.StatusCode, body)
	}
	var pending []json.RawMessage
	if err := json.Unmarshal(body, &pending); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending count = %d, want 1", len(pending))
	}

	acceptURL := fmt.Sprintf("%s/v1/requests/%d/accept", srv.URL, created.ID)

	// A recipient cannot hit the donor-gated accept route.
	resp, _ = doJSON(t, http.MethodPut, acceptURL, recipientToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("recipient accept: status %d, want 403", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPut, acceptURL, donorToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept: status %d: %s", resp.StatusCode, body)
	}

	// Rejecting after acceptance conflicts.
	rejectURL := fmt.Sprintf("%s/v1/requests/%d/reject", srv.URL, created.ID)
	resp, body = doJSON(t, http.MethodPut, rejectURL, donorToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("reject after accept: status %d, want 409: %s", resp.StatusCode, body)
	}

	// Recipient completes.
	completeURL := fmt.Sprintf("%s/v1/requests/%d/complete", srv.URL, created.ID)
	resp, body = doJSON(t, http.MethodPut, completeURL, recipientToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: status %d: %s", resp.StatusCode, body)
	}
	var completed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &completed); err != nil {
		t.Fatalf("decode completed: %v", err)
	}
	if completed.Status != "completed" {
		t.Errorf("status = %s, want completed", completed.Status)
	}

	// Unknown request id.
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/v1/requests/999/accept", donorToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("accept unknown: status %d, want 404", resp.StatusCode)
	}
}

func TestDonorSearchScoping(t *testing.T) {
	srv := newTestServer(t)

	donorID, _ := register(t, srv, domain.RoleDonor, "dev@example.com", "B+", "Pokhara")
	_, recipientToken := register(t, srv, domain.RoleRecipient, "rita@example.com", "", "")
	_, hospitalToken := register(t, srv, domain.RoleHospital, "hospital@example.com", "", "")

	// Recipient with no accepted link sees the card only.
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/users/donors?blood_type=B%2B&city=pokh", recipientToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: status %d: %s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), "dev@example.com") || strings.Contains(string(body), "+9779810000000") {
		t.Errorf("recipient search leaked contact fields: %s", body)
	}
	if !strings.Contains(string(body), "Pokhara") {
		t.Errorf("search missing city: %s", body)
	}

	// Hospital sees full contact details.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/users/hospital/donors", hospitalToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("hospital search: status %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "dev@example.com") {
		t.Errorf("hospital search missing contact fields: %s", body)
	}

	// Recipients cannot use the hospital route at all.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/users/hospital/donors", recipientToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("recipient on hospital route: status %d, want 403", resp.StatusCode)
	}

	// Without an accepted request the single-donor view stays scoped too.
	resp, body = doJSON(t, http.MethodGet, srv.URL+fmt.Sprintf("/v1/users/donors/%d", donorID), recipientToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get donor: status %d: %s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), "dev@example.com") {
		t.Errorf("unlinked recipient saw contact fields: %s", body)
	}
}

func TestLinkedRecipientSeesContact(t *testing.T) {
	srv := newTestServer(t)

	donorID, donorToken := register(t, srv, domain.RoleDonor, "dev@example.com", "B+", "Pokhara")
	_, recipientToken := register(t, srv, domain.RoleRecipient, "rita@example.com", "", "")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/requests", recipientToken, map[string]any{
		"donor_id":      donorID,
		"blood_type":    "B+",
		"patient_name":  "Ram Shrestha",
		"contact_phone": "+9779812345678",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create request: status %d: %s", resp.StatusCode, body)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	resp, body = doJSON(t, http.MethodPut, fmt.Sprintf("%s/v1/requests/%d/accept", srv.URL, created.ID), donorToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept: status %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+fmt.Sprintf("/v1/users/donors/%d", donorID), recipientToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get donor: status %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "dev@example.com") {
		t.Errorf("linked recipient should see contact fields: %s", body)
	}
}

func TestAvailabilityToggle(t *testing.T) {
	srv := newTestServer(t)

	_, donorToken := register(t, srv, domain.RoleDonor, "dev@example.com", "O+", "Kathmandu")
	_, recipientToken := register(t, srv, domain.RoleRecipient, "rita@example.com", "", "")

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/v1/users/availability", donorToken, map[string]bool{
		"is_available": false,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("availability: status %d: %s", resp.StatusCode, body)
	}
	var info struct {
		IsAvailable bool `json:"is_available"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("decode availability: %v", err)
	}
	if info.IsAvailable {
		t.Error("availability should be false after toggle")
	}

	// Role gate keeps recipients out.
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/v1/users/availability", recipientToken, map[string]bool{
		"is_available": true,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("recipient availability: status %d, want 403", resp.StatusCode)
	}
}

func TestBroadcastOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, domain.RoleDonor, "d1@example.com", "A+", "Kathmandu")
	register(t, srv, domain.RoleDonor, "d2@example.com", "A+", "Lalitpur")
	register(t, srv, domain.RoleDonor, "d3@example.com", "B-", "Kathmandu")
	_, hospitalToken := register(t, srv, domain.RoleHospital, "hospital@example.com", "", "")
	_, recipientToken := register(t, srv, domain.RoleRecipient, "rita@example.com", "", "")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/broadcast", hospitalToken, map[string]any{
		"blood_type":    "A+",
		"patient_name":  "Hari Thapa",
		"contact_phone": "+9779811111111",
		"message":       "urgent surgery",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("broadcast: status %d: %s", resp.StatusCode, body)
	}
	var result struct {
		BroadcastID string `json:"broadcast_id"`
		Requests    []struct {
			ID          int64   `json:"id"`
			Status      string  `json:"status"`
			Urgency     string  `json:"urgency"`
			BroadcastID *string `json:"broadcast_id"`
		} `json:"requests"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if len(result.Requests) != 2 {
		t.Fatalf("broadcast created %d requests, want 2", len(result.Requests))
	}
	for _, r := range result.Requests {
		if r.Status != "pending" || r.Urgency != "emergency" {
			t.Errorf("broadcast request %d: %+v", r.ID, r)
		}
		if r.BroadcastID == nil || *r.BroadcastID != result.BroadcastID {
			t.Errorf("broadcast request %d missing group id", r.ID)
		}
	}

	// Only hospitals may broadcast.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/broadcast", recipientToken, map[string]any{
		"blood_type":    "A+",
		"patient_name":  "Hari Thapa",
		"contact_phone": "+9779811111111",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("recipient broadcast: status %d, want 403", resp.StatusCode)
	}
}

func TestVerifyEmailFlow(t *testing.T) {
	srv := newTestServer(t)

	// Missing token is a validation failure.
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/auth/verify-email", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("verify without token: status %d, want 400", resp.StatusCode)
	}

	// Unknown tokens are rejected the same way.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/auth/verify-email?token=nope", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("verify with bad token: status %d, want 400", resp.StatusCode)
	}
}
