package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/calebreyes/driveshare-backend/api/controllers"
	"github.com/calebreyes/driveshare-backend/api/middleware"
	"github.com/calebreyes/driveshare-backend/internal/auth"
	"github.com/calebreyes/driveshare-backend/internal/bookings"
	checkoutsvc "github.com/calebreyes/driveshare-backend/internal/checkout"
	"github.com/calebreyes/driveshare-backend/internal/instruments"
	"github.com/calebreyes/driveshare-backend/internal/notifications"
	"github.com/calebreyes/driveshare-backend/internal/vehicles"
	"github.com/calebreyes/driveshare-backend/pkg/auth/session"
	"github.com/calebreyes/driveshare-backend/pkg/config"
	"github.com/calebreyes/driveshare-backend/pkg/db"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager sessionManager,
	authService auth.Service,
	checkoutService checkoutsvc.Service,
	vehicleService vehicles.Service,
	bookingService bookings.Service,
	instrumentService instruments.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(authService, logg))
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutInit(checkoutService, logg))
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", controllers.CheckoutResume(checkoutService, logg))
				r.Patch("/", controllers.CheckoutUpdate(checkoutService, logg))
				r.Post("/swap", controllers.CheckoutSwap(checkoutService, logg))
				r.Post("/authorize", controllers.CheckoutAuthorize(checkoutService, logg))
				r.Post("/confirm", controllers.CheckoutConfirm(checkoutService, logg))
			})
		})

		r.Route("/v1/vehicles", func(r chi.Router) {
			r.Get("/", controllers.VehicleList(vehicleService, logg))
			r.Get("/{vehicleId}", controllers.VehicleDetail(vehicleService, logg))
		})

		r.Route("/v1/bookings", func(r chi.Router) {
			r.Get("/", controllers.BookingList(bookingService, logg))
			r.Get("/{bookingId}", controllers.BookingDetail(bookingService, logg))
		})

		r.Route("/v1/payment-methods", func(r chi.Router) {
			r.Get("/", controllers.PaymentMethodList(instrumentService, logg))
			r.Post("/", controllers.PaymentMethodSave(instrumentService, logg))
			r.Post("/{paymentMethodId}/default", controllers.PaymentMethodSetDefault(instrumentService, logg))
			r.Delete("/{paymentMethodId}", controllers.PaymentMethodRemove(instrumentService, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		r.Get("/ping", controllers.AdminPing())
	})

	return r
}
