package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot-go/models"
	"pagepilot-go/utils"
)

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRegister_SeedsProfileAndAgentConfig(t *testing.T) {
	h, sender := newTestHandlers(t)

	rec := postJSON(t, h.Register, "/register", map[string]string{
		"email":        "alice@example.com",
		"password":     "password123",
		"full_name":    "Alice",
		"phone_number": "01700000000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, h.db.Where("email = ?", "alice@example.com").First(&user).Error)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsStaff)

	var profile models.Profile
	require.NoError(t, h.db.Where("user_id = ?", user.ID).First(&profile).Error)
	assert.Equal(t, models.KYCStatusNone, profile.KYCStatus)
	assert.Equal(t, "Free Trial", profile.PackageName)
	assert.Nil(t, profile.SubscriptionExpiry)

	var agentConfig models.AgentConfig
	require.NoError(t, h.db.Where("user_id = ?", user.ID).First(&agentConfig).Error)
	assert.True(t, agentConfig.IsActive)

	assert.Equal(t, []string{"alice@example.com"}, sender.sent)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h, _ := newTestHandlers(t)
	createUser(t, h, "alice@example.com", false)

	rec := postJSON(t, h.Register, "/register", map[string]string{
		"email":        "alice@example.com",
		"password":     "password123",
		"full_name":    "Alice",
		"phone_number": "01700000000",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_AdminCode(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := postJSON(t, h.Register, "/register", map[string]string{
		"email":        "admin@example.com",
		"password":     "password123",
		"full_name":    "Admin",
		"phone_number": "01700000000",
		"admin_code":   "TEST_ADMIN_CODE",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, h.db.Where("email = ?", "admin@example.com").First(&user).Error)
	assert.True(t, user.IsStaff)

	rec = postJSON(t, h.Register, "/register", map[string]string{
		"email":        "fake@example.com",
		"password":     "password123",
		"full_name":    "Fake",
		"phone_number": "01700000000",
		"admin_code":   "WRONG_CODE",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_MailFailureStillCreatesAccount(t *testing.T) {
	h, sender := newTestHandlers(t)
	sender.fail = true

	rec := postJSON(t, h.Register, "/register", map[string]string{
		"email":        "alice@example.com",
		"password":     "password123",
		"full_name":    "Alice",
		"phone_number": "01700000000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var count int64
	h.db.Model(&models.User{}).Where("email = ?", "alice@example.com").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLogin(t *testing.T) {
	h, _ := newTestHandlers(t)
	createUser(t, h, "alice@example.com", false)

	rec := postJSON(t, h.Login, "/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "alice@example.com", body.User.Email)

	claims, err := utils.ValidateToken(body.Token)
	require.NoError(t, err)
	assert.Equal(t, body.User.ID, claims.UserID)
}

func TestLogin_WrongPassword(t *testing.T) {
	h, _ := newTestHandlers(t)
	createUser(t, h, "alice@example.com", false)

	rec := postJSON(t, h.Login, "/login", map[string]string{
		"email":    "alice@example.com",
		"password": "not-the-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)
	require.NoError(t, h.db.Model(user).Update("is_active", false).Error)

	rec := postJSON(t, h.Login, "/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogout_RevokesToken(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)

	token, err := utils.GenerateToken(user.ID, user.Email, user.IsStaff)
	require.NoError(t, err)
	claims, err := utils.ValidateToken(token)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/logout", nil)
	req = withClaimsValue(req, claims)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var revoked models.RevokedToken
	require.NoError(t, h.db.Where("jti = ?", claims.ID).First(&revoked).Error)
	assert.Equal(t, user.ID, revoked.UserID)
	assert.Equal(t, "logout", revoked.Reason)
}
