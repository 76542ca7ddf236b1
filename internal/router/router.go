package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"green-rewards/internal/config"
	"green-rewards/internal/handlers"
	"green-rewards/internal/middleware"
	"green-rewards/internal/models"
	"green-rewards/internal/services"
	"green-rewards/internal/store"
)

func SetupRouter(st store.Store, cfg config.Config, logger zerolog.Logger) *mux.Router {
	balanceService := services.NewBalanceService(st, logger)
	partnerService := services.NewPartnerService(st, logger)
	redemptionService := services.NewRedemptionService(st, partnerService, balanceService, logger)
	voucherService := services.NewVoucherService(st, balanceService, logger)
	userService := services.NewUserService(st, balanceService, logger)
	authService := services.NewAuthService(cfg.JWTSecret, logger)

	authHandler := handlers.NewAuthHandler(userService, authService, logger)
	userHandler := handlers.NewUserHandler(userService, voucherService, logger)
	balanceHandler := handlers.NewBalanceHandler(balanceService, logger)
	transactionHandler := handlers.NewTransactionHandler(redemptionService, voucherService, logger)
	voucherHandler := handlers.NewVoucherHandler(voucherService, logger)
	partnerHandler := handlers.NewPartnerHandler(partnerService, logger)
	healthHandler := handlers.NewHealthHandler(st, cfg.StoreDriver, logger)

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.PerformanceMonitoring(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimiter.Middleware())

	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequestValidation())
	api.HandleFunc("/health", healthHandler.Health).Methods("GET")

	authn := middleware.Authentication(authService, logger)
	admin := middleware.RequireRole(string(models.RoleAdmin))
	staff := middleware.RequireRole(string(models.RoleAdmin), string(models.RoleManager))

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", authHandler.Register).Methods("POST")
	auth.HandleFunc("/login", authHandler.Login).Methods("POST")
	auth.HandleFunc("/refresh", authHandler.Refresh).Methods("POST")

	me := api.PathPrefix("/users/me").Subrouter()
	me.Use(authn)
	me.HandleFunc("", userHandler.Me).Methods("GET")
	me.HandleFunc("/history", balanceHandler.GetMyHistory).Methods("GET")
	me.HandleFunc("/vouchers", userHandler.MyVouchers).Methods("GET")

	users := api.PathPrefix("/users").Subrouter()
	users.Use(authn, admin)
	users.HandleFunc("", userHandler.GetUsers).Methods("GET")
	users.HandleFunc("/{id}", userHandler.GetUser).Methods("GET")
	users.HandleFunc("/{id}", userHandler.DeleteUser).Methods("DELETE")
	users.HandleFunc("/{id}/role", userHandler.UpdateRole).Methods("PUT")
	users.HandleFunc("/{id}/reset-point", balanceHandler.ResetPoints).Methods("PUT")
	users.HandleFunc("/{id}/history", balanceHandler.GetUserHistory).Methods("GET")

	scan := api.PathPrefix("/scan").Subrouter()
	scan.Use(authn, staff)
	scan.HandleFunc("/add-point", transactionHandler.AddPoint).Methods("POST")

	vouchers := api.PathPrefix("/vouchers").Subrouter()
	vouchers.HandleFunc("", voucherHandler.ListAvailable).Methods("GET")
	vouchers.HandleFunc("/{id}", voucherHandler.Get).Methods("GET")
	vouchers.Handle("/{id}/exchange", authn(http.HandlerFunc(transactionHandler.Exchange))).Methods("POST")

	grants := api.PathPrefix("/grants").Subrouter()
	grants.Use(authn, staff)
	grants.HandleFunc("/{id}/use", transactionHandler.UseGrant).Methods("PUT")

	partners := api.PathPrefix("/partners").Subrouter()
	partners.HandleFunc("", partnerHandler.List).Methods("GET")
	partners.HandleFunc("/names", partnerHandler.Names).Methods("GET")
	partners.HandleFunc("/{id}", partnerHandler.Get).Methods("GET")

	adminAPI := api.PathPrefix("/admin").Subrouter()
	adminAPI.Use(authn, admin)
	adminAPI.HandleFunc("/vouchers", voucherHandler.ListAll).Methods("GET")
	adminAPI.HandleFunc("/vouchers", voucherHandler.Create).Methods("POST")
	adminAPI.HandleFunc("/vouchers/stats", voucherHandler.Stats).Methods("GET")
	adminAPI.HandleFunc("/vouchers/{id}", voucherHandler.Update).Methods("PUT")
	adminAPI.HandleFunc("/partners", partnerHandler.Create).Methods("POST")
	adminAPI.HandleFunc("/partners/{id}", partnerHandler.Update).Methods("PUT")
	adminAPI.HandleFunc("/partners/{id}", partnerHandler.Delete).Methods("DELETE")

	return r
}
