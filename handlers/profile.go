package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"pagepilot-go/middleware"
	"pagepilot-go/models"
	"pagepilot-go/utils"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dashboard returns the signed-in user's account, profile and agent
// configuration in one payload.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	var user models.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		sendError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	user.Password = ""

	profile, err := h.getOrCreateProfile(claims.UserID)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to load profile", nil)
		return
	}
	agentConfig, err := h.getOrCreateAgentConfig(claims.UserID)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to load agent config", nil)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"user":                user,
		"profile":             profile,
		"ai_config":           agentConfig,
		"kyc_status_label":    models.KYCStatusLabel(profile.KYCStatus),
		"subscription_active": profile.IsSubscriptionActive(),
	})
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	profile, err := h.getOrCreateProfile(claims.UserID)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to load profile", nil)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"profile":          profile,
		"kyc_status_label": models.KYCStatusLabel(profile.KYCStatus),
		"is_complete":      profile.IsComplete(),
	})
}

type profileUpdateRequest struct {
	Name         string `json:"name"`
	MobileNumber string `json:"mobile_number"`
	HomeAddress  string `json:"home_address"`
	BusinessInfo string `json:"business_info"`
}

// UpdateProfile handles both profile edits and KYC document submission.
// Multipart requests may carry a profile_picture upload, or kyc_submit=1
// with the two document images.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	profile, err := h.getOrCreateProfile(claims.UserID)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to load profile", nil)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			sendError(w, http.StatusBadRequest, "Invalid multipart form", err.Error())
			return
		}
		if r.FormValue("kyc_submit") != "" {
			h.submitKYC(w, r, profile)
			return
		}
		h.updateProfileFields(w, r, profile, profileUpdateRequest{
			Name:         r.FormValue("name"),
			MobileNumber: r.FormValue("mobile_number"),
			HomeAddress:  r.FormValue("home_address"),
			BusinessInfo: r.FormValue("business_info"),
		}, true)
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	h.updateProfileFields(w, r, profile, req, false)
}

func (h *Handlers) updateProfileFields(w http.ResponseWriter, r *http.Request, profile *models.Profile, req profileUpdateRequest, multipart bool) {
	if req.MobileNumber != "" && !utils.ValidateMobile(req.MobileNumber) {
		sendError(w, http.StatusBadRequest, "Invalid mobile number format", nil)
		return
	}

	profile.Name = utils.SanitizeString(req.Name)
	profile.MobileNumber = utils.SanitizeString(req.MobileNumber)
	profile.HomeAddress = utils.SanitizeString(req.HomeAddress)
	profile.BusinessInfo = utils.SanitizeString(req.BusinessInfo)

	if multipart {
		if file, header, err := r.FormFile("profile_picture"); err == nil {
			path, err := h.saveUpload(file, header, "profile_pictures")
			if err != nil {
				log.WithError(err).WithField("user_id", profile.UserID).Error("profile picture upload failed")
				sendError(w, http.StatusInternalServerError, "Failed to store profile picture", nil)
				return
			}
			profile.ProfilePicture = path
		}
	}

	if err := h.db.Save(profile).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to update profile", nil)
		return
	}

	h.logAudit(&profile.UserID, "UPDATE", "PROFILE", "Profile updated", r.RemoteAddr, r.UserAgent())

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Profile updated successfully!",
		"profile":     profile,
		"is_complete": profile.IsComplete(),
	})
}

// submitKYC stores the document images and moves the profile to PENDING.
// Requires a complete profile first.
func (h *Handlers) submitKYC(w http.ResponseWriter, r *http.Request, profile *models.Profile) {
	if !profile.IsComplete() {
		sendError(w, http.StatusBadRequest,
			"Please complete your profile information before submitting KYC.", nil)
		return
	}

	if profile.KYCStatus == models.KYCStatusVerified || profile.KYCStatus == models.KYCStatusPending {
		sendError(w, http.StatusConflict, "KYC already submitted", map[string]string{
			"status": models.KYCStatusLabel(profile.KYCStatus),
		})
		return
	}

	frontFile, frontHeader, err := r.FormFile("kyc_front_image")
	if err != nil {
		sendError(w, http.StatusBadRequest, "KYC front image is required", nil)
		return
	}
	frontPath, err := h.saveUpload(frontFile, frontHeader, "kyc_documents/front")
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to store KYC document", nil)
		return
	}

	backFile, backHeader, err := r.FormFile("kyc_back_image")
	if err != nil {
		sendError(w, http.StatusBadRequest, "KYC back image is required", nil)
		return
	}
	backPath, err := h.saveUpload(backFile, backHeader, "kyc_documents/back")
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to store KYC document", nil)
		return
	}

	profile.KYCFrontImage = frontPath
	profile.KYCBackImage = backPath
	profile.KYCStatus = models.KYCStatusPending

	if err := h.db.Save(profile).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to submit KYC", nil)
		return
	}

	h.logAudit(&profile.UserID, "CREATE", "KYC", "KYC documents submitted", r.RemoteAddr, r.UserAgent())

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "KYC document submitted successfully! Your verification is under review.",
		"status":  models.KYCStatusPending,
	})
}

// KYCRequired is the redirect target for agent-config access without a
// verified profile.
func (h *Handlers) KYCRequired(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	var status, reason string
	if claims != nil {
		var profile models.Profile
		if err := h.db.Where("user_id = ?", claims.UserID).First(&profile).Error; err == nil {
			status = profile.KYCStatus
			reason = profile.KYCRejectionReason
		}
	}
	if status == "" {
		status = models.KYCStatusNone
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message":              "KYC verification is required before configuring your AI agent.",
		"kyc_status":           status,
		"kyc_status_label":     models.KYCStatusLabel(status),
		"kyc_rejection_reason": reason,
	})
}

// SubscriptionExpired is the redirect target of the subscription gate.
func (h *Handlers) SubscriptionExpired(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Your subscription has expired. Please renew to continue using the service.",
	})
}

// PrivacyPolicy is the public per-user page resolved by email prefix.
// 404 unless the user, profile and business info all exist.
func (h *Handlers) PrivacyPolicy(w http.ResponseWriter, r *http.Request) {
	emailPrefix := strings.TrimSpace(muxVar(r, "email_prefix"))

	var user models.User
	err := h.db.Where("email LIKE ?", emailPrefix+"@%").Order("id").First(&user).Error
	if err == gorm.ErrRecordNotFound {
		err = h.db.Where("email = ?", emailPrefix).First(&user).Error
	}
	if err != nil {
		sendError(w, http.StatusNotFound, "Privacy policy page not found.", nil)
		return
	}

	var profile models.Profile
	if err := h.db.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		sendError(w, http.StatusNotFound, "Privacy policy page not found.", nil)
		return
	}
	if profile.BusinessInfo == "" {
		sendError(w, http.StatusNotFound, "Privacy policy page not found.", nil)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"email":         user.Email,
		"name":          profile.Name,
		"business_info": profile.BusinessInfo,
	})
}
