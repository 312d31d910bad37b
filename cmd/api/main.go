package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/Manish-basnet10/Blood-Donation/internal/domain"
	"github.com/Manish-basnet10/Blood-Donation/internal/handlers"
	"github.com/Manish-basnet10/Blood-Donation/internal/mailer"
	"github.com/Manish-basnet10/Blood-Donation/internal/ratelimit"
	"github.com/Manish-basnet10/Blood-Donation/internal/repository"
	"github.com/Manish-basnet10/Blood-Donation/internal/service"
	"github.com/Manish-basnet10/Blood-Donation/internal/worker"
	"github.com/Manish-basnet10/Blood-Donation/pkg/config"
	"github.com/Manish-basnet10/Blood-Donation/pkg/database"
	"github.com/Manish-basnet10/Blood-Donation/pkg/events"
	"github.com/Manish-basnet10/Blood-Donation/pkg/logger"
	mw "github.com/Manish-basnet10/Blood-Donation/pkg/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	rdb, err := ratelimit.NewClient(cfg.Redis.URL)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var mail mailer.Service
	if cfg.Email.DevMode || cfg.Email.MailerSendKey == "" {
		mail = mailer.NewDevMailer()
	} else {
		mail = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	requestRepo := repository.NewRequestRepository(pool)
	verifyRepo := repository.NewVerifyRepository(pool)

	// Services
	authService := service.NewAuthService(userRepo, verifyRepo, mail, cfg)
	userService := service.NewUserService(userRepo, requestRepo, eventBus)
	requestService := service.NewRequestService(requestRepo, userRepo, eventBus, mail, cfg)

	// Background expiry sweep
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	expiry := worker.NewExpiryWorker(requestService, verifyRepo, cfg.Requests.SweepInterval)
	go expiry.Start(workerCtx)

	h := handlers.New(authService, userService, requestService, cfg)

	// Rate limiters: auth endpoints by IP, broadcasts per hospital
	authLimiter := ratelimit.NewLimiter(rdb, ratelimit.Config{
		Requests: 10,
		Window:   time.Minute,
		KeyFunc:  ratelimit.IPKeyFunc,
	})
	broadcastLimiter := ratelimit.NewLimiter(rdb, ratelimit.Config{
		Requests: cfg.Requests.BroadcastRate,
		Window:   cfg.Requests.BroadcastWindow,
		KeyFunc: ratelimit.UserKeyFunc(func(r *http.Request) (int64, bool) {
			id, ok := r.Context().Value(logger.UserIDKey).(int64)
			return id, ok
		}),
	})

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(mw.CORS())
	r.Use(mw.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter.Middleware()).Post("/register", h.Register)
			r.With(authLimiter.Middleware()).Post("/login", h.Login)
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

		r.With(h.RequireJWT(domain.RoleHospital), broadcastLimiter.Middleware()).
			Post("/broadcast", h.Broadcast)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server...")
		stopWorker()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting API server", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
