package handlers

import (
	"net/http"
	"strings"

	"pagepilot-go/middleware"
	"pagepilot-go/models"
	"pagepilot-go/utils"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// agentCredentials loads the user's page ID and decrypted access token.
func (h *Handlers) agentCredentials(userID uint) (pageID, accessToken string, err error) {
	var agentConfig models.AgentConfig
	if err := h.db.Where("user_id = ?", userID).First(&agentConfig).Error; err != nil {
		return "", "", err
	}
	token, err := utils.DecryptSecret(agentConfig.FacebookPageAPI)
	if err != nil {
		return "", "", err
	}
	return agentConfig.FacebookPageID, token, nil
}

// Feed proxies the user's Facebook Page feed. Third-party failures come
// back as an error message with whatever partial state is available, not
// as a request failure.
func (h *Handlers) Feed(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	response := map[string]interface{}{
		"page_name": nil,
		"posts":     []interface{}{},
		"error":     nil,
	}

	pageID, accessToken, err := h.agentCredentials(claims.UserID)
	if err == gorm.ErrRecordNotFound {
		response["error"] = "AI Agent configuration not found. Please set it up first."
		sendJSON(w, http.StatusOK, response)
		return
	}
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to load agent config", nil)
		return
	}

	if pageID == "" || accessToken == "" {
		response["error"] = "Facebook Page ID or API key is missing. Please configure your AI Agent first."
		sendJSON(w, http.StatusOK, response)
		return
	}

	response["page_name"] = h.fb.PageName(pageID, accessToken)

	posts, err := h.fb.Feed(pageID, accessToken)
	if err != nil {
		log.WithError(err).WithField("user_id", claims.UserID).Warn("feed fetch failed")
		response["error"] = err.Error()
	} else {
		response["posts"] = posts
	}

	sendJSON(w, http.StatusOK, response)
}

// CreatePost publishes a text or photo post to the user's page.
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	if err := r.ParseMultipartForm(16 << 20); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid multipart form", err.Error())
		return
	}

	message := strings.TrimSpace(r.FormValue("message"))
	imageFile, imageHeader, imageErr := r.FormFile("image")
	hasImage := imageErr == nil

	if message == "" && !hasImage {
		sendError(w, http.StatusBadRequest, "Please provide a message or an image for the post.", nil)
		return
	}

	pageID, accessToken, err := h.agentCredentials(claims.UserID)
	if err == gorm.ErrRecordNotFound {
		sendError(w, http.StatusBadRequest, "AI Agent configuration not found.", nil)
		return
	}
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to load agent config", nil)
		return
	}
	if pageID == "" || accessToken == "" {
		sendError(w, http.StatusBadRequest,
			"Facebook Page ID or API key is missing. Please configure your AI Agent first.", nil)
		return
	}

	if hasImage {
		defer imageFile.Close()
		err = h.fb.CreatePhotoPost(pageID, accessToken, message, imageHeader.Filename, imageFile)
	} else {
		err = h.fb.CreateTextPost(pageID, accessToken, message)
	}
	if err != nil {
		log.WithError(err).WithField("user_id", claims.UserID).Warn("post publish failed")
		sendJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": "Failed to publish post: " + err.Error(),
		})
		return
	}

	sendJSON(w, http.StatusOK, map[string]string{
		"message": "Post published successfully!",
	})
}

// DeleteComment removes a Facebook comment using the stored credential.
func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	commentID := strings.TrimSpace(r.FormValue("comment_id"))
	if commentID == "" {
		sendError(w, http.StatusBadRequest, "Please provide a valid Comment ID.", nil)
		return
	}

	_, accessToken, err := h.agentCredentials(claims.UserID)
	if err == gorm.ErrRecordNotFound {
		sendError(w, http.StatusBadRequest, "AI Agent configuration not found.", nil)
		return
	}
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to load agent config", nil)
		return
	}
	if accessToken == "" {
		sendError(w, http.StatusBadRequest,
			"Facebook Page API token is missing. Please configure your AI agent first.", nil)
		return
	}

	if err := h.fb.DeleteComment(commentID, accessToken); err != nil {
		log.WithError(err).WithField("user_id", claims.UserID).Warn("comment delete failed")
		sendJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": "Failed to delete comment: " + err.Error(),
		})
		return
	}

	sendJSON(w, http.StatusOK, map[string]string{
		"message": "Comment " + commentID + " deleted successfully!",
	})
}
