package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/calebreyes/driveshare-backend/api/routes"
	"github.com/calebreyes/driveshare-backend/internal/auth"
	"github.com/calebreyes/driveshare-backend/internal/bookings"
	"github.com/calebreyes/driveshare-backend/internal/checkout"
	"github.com/calebreyes/driveshare-backend/internal/instruments"
	"github.com/calebreyes/driveshare-backend/internal/notifications"
	"github.com/calebreyes/driveshare-backend/internal/payments"
	"github.com/calebreyes/driveshare-backend/internal/users"
	"github.com/calebreyes/driveshare-backend/internal/vehicles"
	"github.com/calebreyes/driveshare-backend/internal/wallet"
	"github.com/calebreyes/driveshare-backend/pkg/auth/session"
	"github.com/calebreyes/driveshare-backend/pkg/config"
	"github.com/calebreyes/driveshare-backend/pkg/db"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/migrate"
	"github.com/calebreyes/driveshare-backend/pkg/outbox"
	"github.com/calebreyes/driveshare-backend/pkg/redis"
	"github.com/calebreyes/driveshare-backend/pkg/square"
	"github.com/calebreyes/driveshare-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square client", err)
		os.Exit(1)
	}

	var stripeClient *stripe.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = stripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap stripe client", err)
			os.Exit(1)
		}
	}

	provider, err := payments.NewProvider(cfg.Payments, cfg.Square, payments.ProviderDeps{
		Stripe: stripeClient,
		Square: squareClient,
	}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to select payment provider", err)
		os.Exit(1)
	}

	compensator, err := payments.NewCompensator(provider, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment compensator", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	vehicleService, err := vehicles.NewService(vehicles.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create vehicle service", err)
		os.Exit(1)
	}

	bookingService, err := bookings.NewService(bookings.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create booking service", err)
		os.Exit(1)
	}

	walletService, err := wallet.NewService(wallet.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	instrumentRepo := instruments.NewRepository(dbClient.DB())
	instrumentService, err := instruments.NewService(instruments.ServiceParams{
		Repo:              instrumentRepo,
		Users:             userRepo,
		Vault:             squareClient,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create instrument service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	checkoutService, err := checkout.NewService(
		dbClient,
		checkout.NewRepository(dbClient.DB()),
		vehicleService,
		walletService,
		instrumentRepo,
		provider,
		compensator,
		outboxService,
		logg,
		cfg.Checkout.SessionTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			checkoutService,
			vehicleService,
			bookingService,
			instrumentService,
			notificationsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
