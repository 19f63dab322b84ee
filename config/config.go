package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL      string
	JWTSecret        string
	EncryptionKey    string
	AdminCode        string
	APIAdminPassword string
	Port             string
	Environment      string
	MediaRoot        string
	SiteName         string
	SiteURL          string
	WebhookBaseURL   string
	SendGridAPIKey   string
	FromEmail        string
	GraphAPIBase     string
	SheetsExportBase string
}

func Load() *Config {
	return &Config{
		DatabaseURL:      getEnv("DATABASE_URL", "pagepilot.db"),
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		EncryptionKey:    getEnv("ENCRYPTION_KEY", "PagePilot2025SecureKey1234567890"),
		AdminCode:        getEnv("ADMIN_CODE", "PAGEPILOT_ADMIN_2025"),
		APIAdminPassword: getEnv("API_ADMIN_PASSWORD", "change-me"),
		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		MediaRoot:        getEnv("MEDIA_ROOT", "media"),
		SiteName:         getEnv("SITE_NAME", "Page Pilot"),
		SiteURL:          getEnv("SITE_URL", "http://localhost:8080"),
		WebhookBaseURL:   getEnv("WEBHOOK_BASE_URL", "https://ftn8nbd.onrender.com/webhook/"),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		FromEmail:        getEnv("FROM_EMAIL", "noreply@pagepilot.local"),
		GraphAPIBase:     getEnv("GRAPH_API_BASE", "https://graph.facebook.com/v24.0"),
		SheetsExportBase: getEnv("SHEETS_EXPORT_BASE", "https://docs.google.com/spreadsheets/d"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func ValidateConfig(cfg *Config) {
	if len(cfg.EncryptionKey) != 32 {
		log.Fatalf("ENCRYPTION_KEY must be exactly 32 characters, got %d", len(cfg.EncryptionKey))
	}
	if len(cfg.JWTSecret) < 32 {
		log.Warn("JWT_SECRET should be at least 32 characters for security")
	}
	if cfg.Environment == "production" {
		if cfg.AdminCode == "PAGEPILOT_ADMIN_2025" {
			log.Warn("Change ADMIN_CODE in production environment")
		}
		if cfg.APIAdminPassword == "change-me" {
			log.Warn("Change API_ADMIN_PASSWORD in production environment")
		}
		if cfg.SendGridAPIKey == "" {
			log.Warn("SENDGRID_API_KEY is empty; notification emails will fail")
		}
	}
}
