package handlers

import (
	"encoding/json"
	"net/http"

	"pagepilot-go/middleware"
	"pagepilot-go/models"
	"pagepilot-go/utils"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
		return
	}

	var existingUser models.User
	if err := h.db.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		sendError(w, http.StatusConflict, "User already exists", nil)
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to hash password", nil)
		return
	}

	isStaff := false
	if req.AdminCode != "" {
		if req.AdminCode != h.config.AdminCode {
			log.WithField("email", req.Email).Warn("invalid admin code on registration")
			sendError(w, http.StatusBadRequest, "Invalid admin code", nil)
			return
		}
		isStaff = true
	}

	user := models.User{
		Email:    req.Email,
		Password: hashedPassword,
		IsActive: true,
		IsStaff:  isStaff,
	}

	if err := h.db.Create(&user).Error; err != nil {
		log.WithError(err).WithField("email", req.Email).Error("failed to create user")
		sendError(w, http.StatusInternalServerError, "Failed to create user", nil)
		return
	}

	// Registration seeds the profile and agent config so every later
	// read path finds them.
	profile := models.Profile{
		UserID:       user.ID,
		Name:         req.FullName,
		MobileNumber: req.PhoneNumber,
		KYCStatus:    models.KYCStatusNone,
		PackageName:  "Free Trial",
	}
	if err := h.db.Create(&profile).Error; err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("failed to create profile")
	}
	agentConfig := models.AgentConfig{UserID: user.ID, IsActive: true}
	if err := h.db.Create(&agentConfig).Error; err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("failed to create agent config")
	}

	h.logAudit(&user.ID, "CREATE", "USER", "User registered", r.RemoteAddr, r.UserAgent())

	outcome := h.mailer.SendWelcome(req.FullName, user.Email)
	if !outcome.Sent {
		h.logAudit(&user.ID, "EMAIL_FAILED", "USER", outcome.Reason, r.RemoteAddr, r.UserAgent())
	}

	user.Password = ""
	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Account created successfully! Please log in.",
		"user":    user,
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		sendError(w, http.StatusInternalServerError, "Database error", nil)
		return
	}

	if !utils.CheckPasswordHash(req.Password, user.Password) {
		sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	if !user.IsActive {
		sendError(w, http.StatusForbidden, "Account is deactivated", nil)
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Email, user.IsStaff)
	if err != nil {
		log.WithError(err).WithField("email", user.Email).Error("failed to generate token")
		sendError(w, http.StatusInternalServerError, "Failed to generate token", nil)
		return
	}

	h.logAudit(&user.ID, "LOGIN", "AUTH", "User logged in", r.RemoteAddr, r.UserAgent())

	user.Password = ""
	sendJSON(w, http.StatusOK, models.LoginResponse{Token: token, User: user})
}

// Logout revokes the presented token so it cannot be reused.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	if claims.ID != "" && claims.ExpiresAt != nil {
		revoked := models.RevokedToken{
			JTI:       claims.ID,
			UserID:    claims.UserID,
			ExpiresAt: claims.ExpiresAt.Time,
			Reason:    "logout",
		}
		if err := h.db.Create(&revoked).Error; err != nil {
			log.WithError(err).WithField("user_id", claims.UserID).Error("failed to revoke token")
		}
	}

	h.logAudit(&claims.UserID, "LOGOUT", "AUTH", "User logged out", r.RemoteAddr, r.UserAgent())

	sendJSON(w, http.StatusOK, map[string]string{
		"message": "You have been logged out.",
	})
}
