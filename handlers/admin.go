package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pagepilot-go/mailer"
	"pagepilot-go/middleware"
	"pagepilot-go/models"
	"pagepilot-go/utils"

	log "github.com/sirupsen/logrus"
)

const defaultRejectionReason = "Your KYC submission did not meet our requirements. Please re-submit with clear images."
const defaultBulkRejectionReason = "Your KYC submission did not meet our requirements. Please re-submit with clear, high-resolution images of a valid NID or Passport."

// AdminDashboard returns overview statistics and recent signups.
func (h *Handlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var totalUsers, newUsersToday, pendingKYC, totalAgents, activeSubscriptions int64
	h.db.Model(&models.User{}).Count(&totalUsers)
	h.db.Model(&models.User{}).Where("created_at >= ?", startOfDay).Count(&newUsersToday)
	h.db.Model(&models.Profile{}).Where("kyc_status = ?", models.KYCStatusPending).Count(&pendingKYC)
	h.db.Model(&models.AgentConfig{}).Count(&totalAgents)
	h.db.Model(&models.Profile{}).Where("subscription_expiry > ?", now).Count(&activeSubscriptions)

	var recentUsers []models.User
	h.db.Order("created_at DESC").Limit(5).Find(&recentUsers)
	for i := range recentUsers {
		recentUsers[i].Password = ""
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"total_users":          totalUsers,
		"new_users_today":      newUsersToday,
		"pending_kyc":          pendingKYC,
		"total_ai_agents":      totalAgents,
		"active_subscriptions": activeSubscriptions,
		"recent_users":         recentUsers,
	})
}

// AdminUserList lists users with search, status filter and pagination.
func (h *Handlers) AdminUserList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	statusFilter := r.URL.Query().Get("status")
	page, limit, offset := pageParams(r, 20)

	tx := h.db.Model(&models.User{}).
		Joins("LEFT JOIN profiles ON profiles.user_id = users.id").
		Order("users.created_at DESC")

	if query != "" {
		like := "%" + query + "%"
		tx = tx.Where("users.email LIKE ? OR profiles.name LIKE ? OR profiles.mobile_number LIKE ?", like, like, like)
	}

	switch statusFilter {
	case "active":
		tx = tx.Where("users.is_active = ?", true)
	case "inactive":
		tx = tx.Where("users.is_active = ?", false)
	case "verified":
		tx = tx.Where("profiles.kyc_status = ?", models.KYCStatusVerified)
	case "pending":
		tx = tx.Where("profiles.kyc_status = ?", models.KYCStatusPending)
	}

	var total int64
	tx.Count(&total)

	var users []models.User
	if err := tx.Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to fetch users", nil)
		return
	}
	for i := range users {
		users[i].Password = ""
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"users":         users,
		"page":          page,
		"total_records": total,
		"query":         query,
		"status_filter": statusFilter,
	})
}

// AdminUserDetail returns one user with profile and agent config.
func (h *Handlers) AdminUserDetail(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(muxVar(r, "user_id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "Invalid user id", nil)
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		sendError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	user.Password = ""

	var profile models.Profile
	h.db.Where("user_id = ?", user.ID).First(&profile)
	var agentConfig models.AgentConfig
	h.db.Where("user_id = ?", user.ID).First(&agentConfig)

	var history []models.SubscriptionHistory
	h.db.Where("profile_id = ?", profile.ID).Order("created_at DESC").Find(&history)

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"user":                 user,
		"profile":              profile,
		"ai_config":            agentConfig,
		"subscription_history": history,
	})
}

type adminUserActionRequest struct {
	Action       string `json:"action" validate:"required,oneof=toggle_status assign_subscription update_info"`
	Days         int    `json:"days,omitempty"`
	Name         string `json:"name,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty"`
	Email        string `json:"email,omitempty"`
}

// AdminUserAction applies a single-user state change: toggle active,
// absolute-from-now subscription assignment, or info update.
func (h *Handlers) AdminUserAction(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	userID, err := strconv.Atoi(muxVar(r, "user_id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "Invalid user id", nil)
		return
	}

	var req adminUserActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		sendError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	switch req.Action {
	case "toggle_status":
		user.IsActive = !user.IsActive
		if err := h.db.Save(&user).Error; err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to update user", nil)
			return
		}
		status := "Inactive"
		if user.IsActive {
			status = "Active"
		}
		h.logAudit(&claims.UserID, "UPDATE", "USER", fmt.Sprintf("User %d status set to %s", user.ID, status), r.RemoteAddr, r.UserAgent())
		sendJSON(w, http.StatusOK, map[string]string{
			"message": "User status updated to " + status + ".",
		})

	case "assign_subscription":
		if req.Days <= 0 {
			sendError(w, http.StatusBadRequest, "days must be positive", nil)
			return
		}
		profile, err := h.getOrCreateProfile(user.ID)
		if err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to load profile", nil)
			return
		}
		// Absolute replacement from now; the quick-extend entry point on
		// the subscription list is the additive one.
		expiry := time.Now().AddDate(0, 0, req.Days)
		packageName := fmt.Sprintf("%d Days Package", req.Days)
		profile.SubscriptionExpiry = &expiry
		profile.PackageName = packageName
		if err := h.db.Save(profile).Error; err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to update subscription", nil)
			return
		}
		h.db.Create(&models.SubscriptionHistory{
			ProfileID:   profile.ID,
			PackageName: packageName + " - Admin Assigned",
			ExpiryDate:  expiry,
		})
		h.logAudit(&claims.UserID, "UPDATE", "SUBSCRIPTION", fmt.Sprintf("Assigned %d days to user %d", req.Days, user.ID), r.RemoteAddr, r.UserAgent())
		sendJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("Subscription extended by %d days.", req.Days),
		})

	case "update_info":
		profile, err := h.getOrCreateProfile(user.ID)
		if err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to load profile", nil)
			return
		}
		if req.Name != "" {
			profile.Name = req.Name
		}
		if req.MobileNumber != "" {
			profile.MobileNumber = req.MobileNumber
		}
		if req.Email != "" {
			user.Email = req.Email
		}
		if err := h.db.Save(profile).Error; err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to update profile", nil)
			return
		}
		if err := h.db.Save(&user).Error; err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to update user", nil)
			return
		}
		h.logAudit(&claims.UserID, "UPDATE", "USER", fmt.Sprintf("User %d information updated", user.ID), r.RemoteAddr, r.UserAgent())
		sendJSON(w, http.StatusOK, map[string]string{"message": "User information updated."})
	}
}

// AdminKYCList returns profiles waiting for review.
func (h *Handlers) AdminKYCList(w http.ResponseWriter, r *http.Request) {
	var profiles []models.Profile
	if err := h.db.Where("kyc_status = ?", models.KYCStatusPending).
		Preload("User").
		Order("created_at DESC").
		Find(&profiles).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to fetch pending KYC records", nil)
		return
	}
	for i := range profiles {
		profiles[i].User.Password = ""
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"kyc_requests": profiles})
}

type kycActionRequest struct {
	UserID          uint   `json:"user_id" validate:"required,gt=0"`
	Action          string `json:"action" validate:"required,oneof=approve reject"`
	RejectionReason string `json:"rejection_reason"`
}

// AdminKYCAction approves or rejects a single profile's KYC submission
// and notifies the user. Notification failure never rolls back the
// status change.
func (h *Handlers) AdminKYCAction(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)

	var req kycActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
		return
	}

	var profile models.Profile
	if err := h.db.Preload("User").Where("user_id = ?", req.UserID).First(&profile).Error; err != nil {
		sendError(w, http.StatusNotFound, "Profile not found", nil)
		return
	}

	var message string
	var outcome mailer.Outcome
	switch req.Action {
	case "approve":
		profile.KYCStatus = models.KYCStatusVerified
		profile.KYCRejectionReason = ""
		if err := h.db.Save(&profile).Error; err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to update KYC status", nil)
			return
		}
		outcome = h.mailer.SendKYCApproved(profile.Name, profile.User.Email)
		message = fmt.Sprintf("KYC for %s has been APPROVED.", profile.User.Email)

	case "reject":
		reason := utils.SanitizeString(req.RejectionReason)
		if reason == "" {
			reason = defaultRejectionReason
		}
		profile.KYCStatus = models.KYCStatusRejected
		profile.KYCRejectionReason = reason
		if err := h.db.Save(&profile).Error; err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to update KYC status", nil)
			return
		}
		outcome = h.mailer.SendKYCRejected(profile.Name, profile.User.Email, reason)
		message = fmt.Sprintf("KYC for %s has been REJECTED.", profile.User.Email)
	}

	if !outcome.Sent {
		h.logAudit(&claims.UserID, "EMAIL_FAILED", "KYC", outcome.Reason, r.RemoteAddr, r.UserAgent())
	}
	h.logAudit(&claims.UserID, "UPDATE", "KYC", message, r.RemoteAddr, r.UserAgent())

	sendJSON(w, http.StatusOK, map[string]string{"message": message})
}

// notificationJob is a deferred best-effort email produced by a bulk
// action; the dispatcher runs jobs after the state change is committed.
type notificationJob func() mailer.Outcome

// bulkActionFunc applies one bulk action to the selected profile IDs and
// returns the number of affected records plus the notification jobs.
type bulkActionFunc func(ids []uint) (int64, []notificationJob, error)

// bulkActions maps action names to their implementations. No global
// registry; the mapping is built per Handlers instance.
func (h *Handlers) bulkActions() map[string]bulkActionFunc {
	return map[string]bulkActionFunc{
		"approve_kyc": h.bulkApproveKYC,
		"reject_kyc":  h.bulkRejectKYC,
		"assign_7_days": func(ids []uint) (int64, []notificationJob, error) {
			return h.bulkAssignDays(ids, 7, "7 Days Pack")
		},
		"assign_15_days": func(ids []uint) (int64, []notificationJob, error) {
			return h.bulkAssignDays(ids, 15, "15 Days Pack")
		},
		"assign_30_days": func(ids []uint) (int64, []notificationJob, error) {
			return h.bulkAssignDays(ids, 30, "30 Days Pack")
		},
	}
}

type bulkActionRequest struct {
	Action     string `json:"action" validate:"required"`
	ProfileIDs []uint `json:"profile_ids" validate:"required,min=1"`
}

// AdminBulkAction dispatches a named bulk action over selected profiles
// and reports the affected-record count. Notification failures are
// logged and swallowed; the committed state change stands.
func (h *Handlers) AdminBulkAction(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)

	var req bulkActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
		return
	}

	action, ok := h.bulkActions()[req.Action]
	if !ok {
		sendError(w, http.StatusBadRequest, "Unknown bulk action", map[string]string{"action": req.Action})
		return
	}

	count, jobs, err := action(req.ProfileIDs)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Bulk action failed", err.Error())
		return
	}

	notified := 0
	for _, job := range jobs {
		if outcome := job(); outcome.Sent {
			notified++
		}
	}

	h.logAudit(&claims.UserID, "BULK", "KYC",
		fmt.Sprintf("Bulk action %s on %d profile(s)", req.Action, count),
		r.RemoteAddr, r.UserAgent())

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message":  fmt.Sprintf("%d record(s) updated.", count),
		"count":    count,
		"notified": notified,
	})
}

// bulkApproveKYC applies the status change as one bulk update, then
// re-reads the rows so the notification text reflects post-update state.
func (h *Handlers) bulkApproveKYC(ids []uint) (int64, []notificationJob, error) {
	result := h.db.Model(&models.Profile{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"kyc_status":           models.KYCStatusVerified,
			"kyc_rejection_reason": "",
		})
	if result.Error != nil {
		return 0, nil, result.Error
	}

	var profiles []models.Profile
	if err := h.db.Preload("User").Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return result.RowsAffected, nil, nil
	}

	jobs := make([]notificationJob, 0, len(profiles))
	for i := range profiles {
		p := profiles[i]
		jobs = append(jobs, func() mailer.Outcome {
			return h.mailer.SendKYCApproved(p.Name, p.User.Email)
		})
	}
	return result.RowsAffected, jobs, nil
}

func (h *Handlers) bulkRejectKYC(ids []uint) (int64, []notificationJob, error) {
	result := h.db.Model(&models.Profile{}).Where("id IN ?", ids).
		Update("kyc_status", models.KYCStatusRejected)
	if result.Error != nil {
		return 0, nil, result.Error
	}

	var profiles []models.Profile
	if err := h.db.Preload("User").Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return result.RowsAffected, nil, nil
	}

	jobs := make([]notificationJob, 0, len(profiles))
	for i := range profiles {
		p := profiles[i]
		if p.KYCRejectionReason == "" {
			p.KYCRejectionReason = defaultBulkRejectionReason
			if err := h.db.Model(&models.Profile{}).Where("id = ?", p.ID).
				Update("kyc_rejection_reason", p.KYCRejectionReason).Error; err != nil {
				log.WithError(err).WithField("profile_id", p.ID).Error("failed to store default rejection reason")
			}
		}
		reason := p.KYCRejectionReason
		jobs = append(jobs, func() mailer.Outcome {
			return h.mailer.SendKYCRejected(p.Name, p.User.Email, reason)
		})
	}
	return result.RowsAffected, jobs, nil
}

// bulkAssignDays replaces each profile's expiry with now+days (absolute,
// not additive) and appends one history row per profile.
func (h *Handlers) bulkAssignDays(ids []uint, days int, packageName string) (int64, []notificationJob, error) {
	expiry := time.Now().AddDate(0, 0, days)

	var profiles []models.Profile
	if err := h.db.Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return 0, nil, err
	}

	var count int64
	for i := range profiles {
		profiles[i].SubscriptionExpiry = &expiry
		profiles[i].PackageName = packageName
		if err := h.db.Save(&profiles[i]).Error; err != nil {
			log.WithError(err).WithField("profile_id", profiles[i].ID).Error("failed to assign package")
			continue
		}
		h.db.Create(&models.SubscriptionHistory{
			ProfileID:   profiles[i].ID,
			PackageName: packageName,
			ExpiryDate:  expiry,
		})
		count++
	}
	return count, nil, nil
}

// AdminSubscriptionList lists profiles with subscription stats, search
// and status filters.
func (h *Handlers) AdminSubscriptionList(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	query := r.URL.Query().Get("q")
	statusFilter := r.URL.Query().Get("status")
	page, limit, offset := pageParams(r, 20)

	var totalActive, expiringSoon, totalExpired, neverSubscribed int64
	h.db.Model(&models.Profile{}).Where("subscription_expiry > ?", now).Count(&totalActive)
	h.db.Model(&models.Profile{}).Where("subscription_expiry > ? AND subscription_expiry <= ?", now, now.AddDate(0, 0, 7)).Count(&expiringSoon)
	h.db.Model(&models.Profile{}).Where("subscription_expiry <= ?", now).Count(&totalExpired)
	h.db.Model(&models.Profile{}).Where("subscription_expiry IS NULL").Count(&neverSubscribed)

	tx := h.db.Model(&models.Profile{}).Preload("User").
		Joins("LEFT JOIN users ON users.id = profiles.user_id").
		Order("subscription_expiry DESC")

	if query != "" {
		like := "%" + query + "%"
		tx = tx.Where("users.email LIKE ? OR profiles.name LIKE ? OR profiles.mobile_number LIKE ?", like, like, like)
	}

	switch statusFilter {
	case "active":
		tx = tx.Where("subscription_expiry > ?", now)
	case "expired":
		tx = tx.Where("subscription_expiry <= ?", now)
	case "expiring_soon":
		tx = tx.Where("subscription_expiry > ? AND subscription_expiry <= ?", now, now.AddDate(0, 0, 7))
	case "never":
		tx = tx.Where("subscription_expiry IS NULL")
	}

	var profiles []models.Profile
	if err := tx.Limit(limit).Offset(offset).Find(&profiles).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to fetch subscriptions", nil)
		return
	}
	for i := range profiles {
		profiles[i].User.Password = ""
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"profiles":         profiles,
		"page":             page,
		"total_active":     totalActive,
		"expiring_soon":    expiringSoon,
		"total_expired":    totalExpired,
		"never_subscribed": neverSubscribed,
		"status_filter":    statusFilter,
		"query":            query,
	})
}

type quickExtendRequest struct {
	UserID uint `json:"user_id" validate:"required,gt=0"`
	Days   int  `json:"days" validate:"required,gt=0"`
}

// AdminQuickExtend extends a subscription from the subscription list:
// additive when the current expiry is still in the future, absolute from
// now otherwise.
func (h *Handlers) AdminQuickExtend(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	now := time.Now()

	var req quickExtendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
		return
	}

	var profile models.Profile
	if err := h.db.Preload("User").Where("user_id = ?", req.UserID).First(&profile).Error; err != nil {
		sendError(w, http.StatusNotFound, "Profile not found", nil)
		return
	}

	var expiry time.Time
	if profile.SubscriptionExpiry != nil && profile.SubscriptionExpiry.After(now) {
		expiry = profile.SubscriptionExpiry.AddDate(0, 0, req.Days)
	} else {
		expiry = now.AddDate(0, 0, req.Days)
	}
	packageName := fmt.Sprintf("%d Days Package", req.Days)

	profile.SubscriptionExpiry = &expiry
	profile.PackageName = packageName
	if err := h.db.Save(&profile).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to update subscription", nil)
		return
	}

	h.db.Create(&models.SubscriptionHistory{
		ProfileID:   profile.ID,
		PackageName: packageName + " - Admin Assigned",
		ExpiryDate:  expiry,
	})

	h.logAudit(&claims.UserID, "UPDATE", "SUBSCRIPTION",
		fmt.Sprintf("Extended user %d by %d days", req.UserID, req.Days),
		r.RemoteAddr, r.UserAgent())

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message":             fmt.Sprintf("Subscription for %s extended by %d days.", profile.User.Email, req.Days),
		"subscription_expiry": expiry,
	})
}

// NotifyExpiry is the externally-triggered one-shot expiry-warning batch.
// An invoker (cron) calls it daily; running it twice duplicates mail, no
// sent-state is tracked. dry_run previews recipients without sending.
func (h *Handlers) NotifyExpiry(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 3
	}
	dryRun := r.URL.Query().Get("dry_run") == "true"

	now := time.Now()
	windowEnd := now.AddDate(0, 0, days)

	var profiles []models.Profile
	if err := h.db.Preload("User").
		Where("subscription_expiry > ? AND subscription_expiry <= ?", now, windowEnd).
		Find(&profiles).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to scan subscriptions", nil)
		return
	}

	type recipient struct {
		Email         string `json:"email"`
		DaysRemaining int    `json:"days_remaining"`
		ExpiryDate    string `json:"expiry_date"`
	}

	recipients := make([]recipient, 0, len(profiles))
	sent, failedCount := 0, 0
	for _, profile := range profiles {
		daysRemaining := int(profile.SubscriptionExpiry.Sub(now).Hours() / 24)
		if daysRemaining < 1 {
			daysRemaining = 1
		}
		recipients = append(recipients, recipient{
			Email:         profile.User.Email,
			DaysRemaining: daysRemaining,
			ExpiryDate:    profile.SubscriptionExpiry.Format("2006-01-02"),
		})

		if dryRun {
			continue
		}
		outcome := h.mailer.SendExpiryWarning(profile.Name, profile.User.Email,
			profile.PackageName, *profile.SubscriptionExpiry, daysRemaining)
		if outcome.Sent {
			sent++
		} else {
			failedCount++
		}
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"found":      len(profiles),
		"sent":       sent,
		"failed":     failedCount,
		"dry_run":    dryRun,
		"days":       days,
		"recipients": recipients,
	})
}
