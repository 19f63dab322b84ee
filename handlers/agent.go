package handlers

import (
	"encoding/json"
	"net/http"

	"pagepilot-go/middleware"
	"pagepilot-go/models"
	"pagepilot-go/utils"

	log "github.com/sirupsen/logrus"
)

// kycVerifiedProfile enforces the KYC gate for the agent-config surface:
// without a VERIFIED profile the request is redirected to /kyc-required
// and the handler never runs.
func (h *Handlers) kycVerifiedProfile(w http.ResponseWriter, r *http.Request) (*models.Profile, bool) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return nil, false
	}

	var profile models.Profile
	err := h.db.Where("user_id = ?", claims.UserID).First(&profile).Error
	if err != nil || profile.KYCStatus != models.KYCStatusVerified {
		http.Redirect(w, r, "/kyc-required", http.StatusSeeOther)
		return nil, false
	}
	return &profile, true
}

// GetAgentConfig renders the agent configuration for its owner, with the
// credential decrypted and the derived webhook URL included.
func (h *Handlers) GetAgentConfig(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.kycVerifiedProfile(w, r)
	if !ok {
		return
	}
	claims := middleware.GetUserFromContext(r)

	agentConfig, err := h.getOrCreateAgentConfig(claims.UserID)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to load agent config", nil)
		return
	}

	var user models.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		sendError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	pageAPI, err := utils.DecryptSecret(agentConfig.FacebookPageAPI)
	if err != nil {
		log.WithError(err).WithField("user_id", claims.UserID).Error("failed to decrypt page API credential")
		pageAPI = ""
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"is_active":           agentConfig.IsActive,
		"facebook_page_id":    agentConfig.FacebookPageID,
		"facebook_page_api":   pageAPI,
		"system_prompt":       agentConfig.SystemPrompt,
		"blocked_post_ids":    agentConfig.BlockedPostIDs,
		"webhook_url":         agentConfig.WebhookURL(h.config.WebhookBaseURL, &user),
		"subscription_active": profile.IsSubscriptionActive(),
	})
}

type agentConfigUpdateRequest struct {
	IsActive        *bool   `json:"is_active"`
	FacebookPageID  *string `json:"facebook_page_id" validate:"omitempty,max=2000"`
	FacebookPageAPI *string `json:"facebook_page_api" validate:"omitempty,max=2000"`
	SystemPrompt    *string `json:"system_prompt"`
	BlockedPostIDs  *string `json:"blocked_post_ids"`
}

// UpdateAgentConfig applies a partial update. Empty identifiers and
// credentials are permitted; they just leave the agent inoperative.
// Requests declaring X-Requested-With: XMLHttpRequest get the terse
// autosave response.
func (h *Handlers) UpdateAgentConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.kycVerifiedProfile(w, r); !ok {
		return
	}
	claims := middleware.GetUserFromContext(r)
	isXHR := r.Header.Get("X-Requested-With") == "XMLHttpRequest"

	agentConfig, err := h.getOrCreateAgentConfig(claims.UserID)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to load agent config", nil)
		return
	}

	var req agentConfigUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		if isXHR {
			sendJSON(w, http.StatusBadRequest, map[string]interface{}{
				"status": "error",
				"errors": utils.FormatValidationError(err),
			})
			return
		}
		sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
		return
	}

	if req.IsActive != nil {
		agentConfig.IsActive = *req.IsActive
	}
	if req.FacebookPageID != nil {
		agentConfig.FacebookPageID = utils.SanitizeString(*req.FacebookPageID)
	}
	if req.FacebookPageAPI != nil {
		encrypted, err := utils.EncryptSecret(utils.SanitizeString(*req.FacebookPageAPI))
		if err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to store credential", nil)
			return
		}
		agentConfig.FacebookPageAPI = encrypted
	}
	if req.SystemPrompt != nil {
		agentConfig.SystemPrompt = *req.SystemPrompt
	}
	if req.BlockedPostIDs != nil {
		agentConfig.BlockedPostIDs = *req.BlockedPostIDs
	}

	if err := h.db.Save(agentConfig).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to save agent config", nil)
		return
	}

	h.logAudit(&claims.UserID, "UPDATE", "AGENT_CONFIG", "Agent configuration saved", r.RemoteAddr, r.UserAgent())

	if isXHR {
		sendJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "Variable saved",
		})
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "AI Agent configuration saved successfully!",
	})
}
