package handlers

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"pagepilot-go/models"
	"pagepilot-go/utils"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ConfigField is the closed set of selectors the external config API
// accepts. Adding a field means adding a constant and a switch arm.
type ConfigField int

const (
	FieldPageID ConfigField = iota
	FieldPageAPI
	FieldSystemPrompt
	FieldWebhookURL
	FieldAgentStatus
	FieldBlockedPostIDs
	FieldAll
)

const invalidFieldMessage = "Invalid field. Available fields: fb_page_id, fb_page_api, system_prompt, webhook_url, ai_agent_status, block_post_ids, all"

func parseConfigField(s string) (ConfigField, bool) {
	switch s {
	case "fb_page_id":
		return FieldPageID, true
	case "fb_page_api":
		return FieldPageAPI, true
	case "system_prompt":
		return FieldSystemPrompt, true
	case "webhook_url":
		return FieldWebhookURL, true
	case "ai_agent_status":
		return FieldAgentStatus, true
	case "block_post_ids":
		return FieldBlockedPostIDs, true
	case "all":
		return FieldAll, true
	}
	return 0, false
}

func sendPlainText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, body)
}

// UserConfigAPI is the shared-secret endpoint an external automation
// system uses to read one field of a user's agent configuration:
// GET /api/user/{admin_password}/{email_prefix}/{field}. The secret is
// checked before any database work; internal failures become a generic
// 500 rather than a stack trace.
func (h *Handlers) UserConfigAPI(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Error("user config API panicked")
			http.Error(w, "Error: internal server error", http.StatusInternalServerError)
		}
	}()

	password := muxVar(r, "admin_password")
	if subtle.ConstantTimeCompare([]byte(password), []byte(h.config.APIAdminPassword)) != 1 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	field, ok := parseConfigField(muxVar(r, "field"))
	if !ok {
		http.Error(w, invalidFieldMessage, http.StatusBadRequest)
		return
	}

	emailPrefix := muxVar(r, "email_prefix")

	// Prefer the user whose email starts with "<prefix>@"; fall back to a
	// case-insensitive substring match anywhere in the email.
	var user models.User
	err := h.db.Where("email LIKE ?", emailPrefix+"@%").Order("id").First(&user).Error
	if err == gorm.ErrRecordNotFound {
		err = h.db.Where("LOWER(email) LIKE LOWER(?)", "%"+emailPrefix+"%").Order("id").First(&user).Error
	}
	if err == gorm.ErrRecordNotFound {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Error: internal server error", http.StatusInternalServerError)
		return
	}

	var agentConfig models.AgentConfig
	if err := h.db.Where("user_id = ?", user.ID).First(&agentConfig).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			http.Error(w, "AI configuration not found for this user", http.StatusNotFound)
			return
		}
		http.Error(w, "Error: internal server error", http.StatusInternalServerError)
		return
	}

	// A missing profile counts as an inactive subscription.
	subscriptionActive := false
	var profile models.Profile
	if err := h.db.Where("user_id = ?", user.ID).First(&profile).Error; err == nil {
		subscriptionActive = profile.IsSubscriptionActive()
	}
	effectiveActive := agentConfig.IsActive && subscriptionActive

	pageAPI, err := utils.DecryptSecret(agentConfig.FacebookPageAPI)
	if err != nil {
		http.Error(w, "Error: internal server error", http.StatusInternalServerError)
		return
	}

	switch field {
	case FieldPageID:
		sendPlainText(w, agentConfig.FacebookPageID)

	case FieldPageAPI:
		sendPlainText(w, pageAPI)

	case FieldSystemPrompt:
		sendPlainText(w, agentConfig.SystemPrompt)

	case FieldWebhookURL:
		sendPlainText(w, agentConfig.WebhookURL(h.config.WebhookBaseURL, &user))

	case FieldAgentStatus:
		status := "off"
		if effectiveActive {
			status = "on"
		}
		sendJSON(w, http.StatusOK, map[string]string{"status": status})

	case FieldBlockedPostIDs:
		sendJSON(w, http.StatusOK, map[string]interface{}{
			"blocked_post_ids": agentConfig.BlockedPostIDList(),
		})

	case FieldAll:
		status := "off"
		if effectiveActive {
			status = "on"
		}
		sendJSON(w, http.StatusOK, map[string]interface{}{
			"email":               user.Email,
			"email_prefix":        user.EmailPrefix(),
			"ai_agent_status":     status,
			"is_active":           effectiveActive,
			"subscription_active": subscriptionActive,
			"fb_page_id":          agentConfig.FacebookPageID,
			"fb_page_api":         pageAPI,
			"system_prompt":       agentConfig.SystemPrompt,
			"webhook_url":         agentConfig.WebhookURL(h.config.WebhookBaseURL, &user),
			"blocked_post_ids":    agentConfig.BlockedPostIDList(),
		})
	}
}
