package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"pagepilot-go/config"
	"pagepilot-go/facebook"
	"pagepilot-go/mailer"
	"pagepilot-go/models"
	"pagepilot-go/sheets"
)

// ErrorResponse is the standardized error envelope.
type ErrorResponse struct {
	Status    int         `json:"status"`
	Error     string      `json:"error"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func sendError(w http.ResponseWriter, status int, err string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Status:    status,
		Error:     err,
		Details:   details,
		Timestamp: time.Now(),
	})
}

func sendJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

type Handlers struct {
	db     *gorm.DB
	config *config.Config
	mailer *mailer.Mailer
	fb     *facebook.Client
	sheets *sheets.Client
}

func NewHandlers(db *gorm.DB, cfg *config.Config, m *mailer.Mailer) *Handlers {
	return &Handlers{
		db:     db,
		config: cfg,
		mailer: m,
		fb:     facebook.NewClient(cfg.GraphAPIBase),
		sheets: sheets.NewClient(cfg.SheetsExportBase),
	}
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "PagePilot",
		"version":   "1.0.0",
	})
}

func (h *Handlers) logAudit(userID *uint, action, resource, details, ipAddress, userAgent string) {
	audit := models.AuditLog{
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		Details:   details,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	h.db.Create(&audit)
}

// getOrCreateProfile returns the user's profile, creating an empty one on
// first access. Idempotent; the create is the only side effect.
func (h *Handlers) getOrCreateProfile(userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := h.db.Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	profile = models.Profile{UserID: userID, KYCStatus: models.KYCStatusNone, PackageName: "Free Trial"}
	if err := h.db.Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// getOrCreateAgentConfig returns the user's agent configuration, creating
// a default (active, empty credentials) one on first access.
func (h *Handlers) getOrCreateAgentConfig(userID uint) (*models.AgentConfig, error) {
	var cfg models.AgentConfig
	err := h.db.Where("user_id = ?", userID).First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	cfg = models.AgentConfig{UserID: userID, IsActive: true}
	if err := h.db.Create(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func muxVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}

// pageParams reads page/limit query parameters with the given default
// page size, capped at 100.
func pageParams(r *http.Request, defaultLimit int) (page, limit, offset int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	return page, limit, (page - 1) * limit
}
