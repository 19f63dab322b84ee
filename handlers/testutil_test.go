package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pagepilot-go/config"
	"pagepilot-go/mailer"
	"pagepilot-go/middleware"
	"pagepilot-go/models"
	"pagepilot-go/utils"
)

var initOnce sync.Once

func testConfig() *config.Config {
	return &config.Config{
		DatabaseURL:      "file::memory:",
		JWTSecret:        "test-jwt-secret-value-0123456789abcdef",
		EncryptionKey:    "PagePilot2025SecureKey1234567890",
		AdminCode:        "TEST_ADMIN_CODE",
		APIAdminPassword: "s3cret",
		MediaRoot:        "testmedia",
		SiteName:         "Page Pilot",
		SiteURL:          "http://localhost:8080",
		WebhookBaseURL:   "https://hooks.example.com/webhook/",
		GraphAPIBase:     "http://127.0.0.1:0",
		SheetsExportBase: "http://127.0.0.1:0",
	}
}

// stubSender records outgoing mail and can be told to fail.
type stubSender struct {
	mu   sync.Mutex
	fail bool
	sent []string
}

func (s *stubSender) Send(to, subject, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("mail relay unavailable")
	}
	s.sent = append(s.sent, to)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.AgentConfig{},
		&models.SubscriptionHistory{},
		&models.AuditLog{},
		&models.RevokedToken{},
	))
	return db
}

func newTestHandlers(t *testing.T) (*Handlers, *stubSender) {
	t.Helper()
	cfg := testConfig()
	initOnce.Do(func() {
		if err := utils.InitializeEncryption(cfg.EncryptionKey); err != nil {
			t.Fatalf("init encryption: %v", err)
		}
		if err := utils.InitializeJWT(cfg.JWTSecret); err != nil {
			t.Fatalf("init jwt: %v", err)
		}
	})
	sender := &stubSender{}
	h := NewHandlers(newTestDB(t), cfg, mailer.New(sender, cfg.SiteName, cfg.SiteURL))
	return h, sender
}

func createUser(t *testing.T, h *Handlers, email string, isStaff bool) *models.User {
	t.Helper()
	hashed, err := utils.HashPassword("password123")
	require.NoError(t, err)
	user := &models.User{Email: email, Password: hashed, IsActive: true, IsStaff: isStaff}
	require.NoError(t, h.db.Create(user).Error)
	return user
}

func createProfile(t *testing.T, h *Handlers, userID uint, kycStatus string, expiry *time.Time) *models.Profile {
	t.Helper()
	profile := &models.Profile{
		UserID:             userID,
		Name:               "Test User",
		MobileNumber:       "01700000000",
		HomeAddress:        "Dhaka",
		BusinessInfo:       "A small shop",
		ProfilePicture:     "profile_pictures/x.png",
		KYCStatus:          kycStatus,
		SubscriptionExpiry: expiry,
		PackageName:        "Free Trial",
	}
	require.NoError(t, h.db.Create(profile).Error)
	return profile
}

func createAgentConfig(t *testing.T, h *Handlers, userID uint, active bool) *models.AgentConfig {
	t.Helper()
	cfg := &models.AgentConfig{UserID: userID, IsActive: active}
	require.NoError(t, h.db.Create(cfg).Error)
	if !active {
		// The column default is true, so a zero-value create needs an
		// explicit update to stick.
		require.NoError(t, h.db.Model(cfg).Update("is_active", false).Error)
	}
	return cfg
}

// withClaims attaches authenticated-session claims to a request.
func withClaims(r *http.Request, user *models.User) *http.Request {
	claims := &utils.Claims{UserID: user.ID, Email: user.Email, IsStaff: user.IsStaff}
	return withClaimsValue(r, claims)
}

func withClaimsValue(r *http.Request, claims *utils.Claims) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, claims)
	return r.WithContext(ctx)
}

func timePtr(t time.Time) *time.Time { return &t }
