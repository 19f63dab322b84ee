package main

import (
	"net/http"

	"pagepilot-go/config"
	"pagepilot-go/database"
	"pagepilot-go/handlers"
	"pagepilot-go/mailer"
	"pagepilot-go/middleware"
	"pagepilot-go/utils"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found")
	}

	cfg := config.Load()
	config.ValidateConfig(cfg)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	if err := utils.InitializeEncryption(cfg.EncryptionKey); err != nil {
		log.WithError(err).Fatal("Failed to initialize encryption")
	}

	if err := utils.InitializeJWT(cfg.JWTSecret); err != nil {
		log.WithError(err).Fatal("Failed to initialize JWT")
	}

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	sender := mailer.NewSendGridSender(cfg.SendGridAPIKey, cfg.FromEmail, cfg.SiteName)
	m := mailer.New(sender, cfg.SiteName, cfg.SiteURL)

	h := handlers.NewHandlers(db, cfg, m)

	r := mux.NewRouter()
	r.Use(middleware.RateLimit)

	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/privacy-policy/{email_prefix}", h.PrivacyPolicy).Methods("GET")

	// External config API (shared secret, no session)
	r.HandleFunc("/api/user/{admin_password}/{email_prefix}/{field}", h.UserConfigAPI).Methods("GET")

	// Media: profile pictures public, KYC documents staff-only. Auth is
	// optional here so the handler itself can decide.
	r.Handle("/media/{path:.*}", middleware.OptionalJWT(db)(http.HandlerFunc(h.ServeMedia))).Methods("GET")

	// Authenticated routes behind the subscription gate
	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.JWTAuth(db))
	protected.Use(middleware.SubscriptionGate(db))

	protected.HandleFunc("/logout", h.Logout).Methods("POST")
	protected.HandleFunc("/dashboard", h.Dashboard).Methods("GET")
	protected.HandleFunc("/profile", h.GetProfile).Methods("GET")
	protected.HandleFunc("/profile", h.UpdateProfile).Methods("POST", "PUT")
	protected.HandleFunc("/ai-agent", h.GetAgentConfig).Methods("GET")
	protected.HandleFunc("/ai-agent", h.UpdateAgentConfig).Methods("POST")
	protected.HandleFunc("/feed", h.Feed).Methods("GET")
	protected.HandleFunc("/create-post", h.CreatePost).Methods("POST")
	protected.HandleFunc("/delete-comment", h.DeleteComment).Methods("POST")
	protected.HandleFunc("/report", h.Report).Methods("GET", "POST")
	protected.HandleFunc("/report-data", h.ReportData).Methods("GET")
	protected.HandleFunc("/kyc-required", h.KYCRequired).Methods("GET")
	protected.HandleFunc("/subscription-expired", h.SubscriptionExpired).Methods("GET")

	// Admin portal
	admin := protected.PathPrefix("/portal/admin").Subrouter()
	admin.Use(middleware.StaffAuth)
	admin.HandleFunc("", h.AdminDashboard).Methods("GET")
	admin.HandleFunc("/users", h.AdminUserList).Methods("GET")
	admin.HandleFunc("/users/{user_id:[0-9]+}", h.AdminUserDetail).Methods("GET")
	admin.HandleFunc("/users/{user_id:[0-9]+}", h.AdminUserAction).Methods("POST")
	admin.HandleFunc("/kyc", h.AdminKYCList).Methods("GET")
	admin.HandleFunc("/kyc/action", h.AdminKYCAction).Methods("POST")
	admin.HandleFunc("/kyc/bulk", h.AdminBulkAction).Methods("POST")
	admin.HandleFunc("/subscriptions", h.AdminSubscriptionList).Methods("GET")
	admin.HandleFunc("/subscriptions/extend", h.AdminQuickExtend).Methods("POST")
	admin.HandleFunc("/notify-expiry", h.NotifyExpiry).Methods("POST")

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.WithFields(log.Fields{
		"port":        port,
		"environment": cfg.Environment,
		"database":    cfg.DatabaseURL,
	}).Info("Server starting")

	log.Fatal(http.ListenAndServe(":"+port, r))
}
