package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot-go/models"
)

func kycSubmitRequest(t *testing.T, withImages bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("kyc_submit", "1"))
	if withImages {
		for _, field := range []string{"kyc_front_image", "kyc_back_image"} {
			part, err := writer.CreateFormFile(field, field+".jpg")
			require.NoError(t, err)
			_, err = io.WriteString(part, "jpegbytes")
			require.NoError(t, err)
		}
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/profile", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestSubmitKYC_RequiresCompleteProfile(t *testing.T) {
	h, _ := newTestHandlers(t)
	h.config.MediaRoot = t.TempDir()
	user := createUser(t, h, "alice@example.com", false)
	profile := createProfile(t, h, user.ID, models.KYCStatusNone, nil)
	h.db.Model(profile).Update("home_address", "")

	req := kycSubmitRequest(t, true)
	req = withClaims(req, user)
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "complete your profile")
}

func TestSubmitKYC_MovesProfileToPending(t *testing.T) {
	h, _ := newTestHandlers(t)
	h.config.MediaRoot = t.TempDir()
	user := createUser(t, h, "alice@example.com", false)
	createProfile(t, h, user.ID, models.KYCStatusNone, nil)

	req := kycSubmitRequest(t, true)
	req = withClaims(req, user)
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Profile
	require.NoError(t, h.db.Where("user_id = ?", user.ID).First(&got).Error)
	assert.Equal(t, models.KYCStatusPending, got.KYCStatus)
	assert.NotEmpty(t, got.KYCFrontImage)
	assert.NotEmpty(t, got.KYCBackImage)
}

func TestSubmitKYC_ConflictWhenAlreadyPending(t *testing.T) {
	h, _ := newTestHandlers(t)
	h.config.MediaRoot = t.TempDir()
	user := createUser(t, h, "alice@example.com", false)
	createProfile(t, h, user.ID, models.KYCStatusPending, nil)

	req := kycSubmitRequest(t, true)
	req = withClaims(req, user)
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitKYC_RejectedAllowsResubmission(t *testing.T) {
	h, _ := newTestHandlers(t)
	h.config.MediaRoot = t.TempDir()
	user := createUser(t, h, "alice@example.com", false)
	createProfile(t, h, user.ID, models.KYCStatusRejected, nil)

	req := kycSubmitRequest(t, true)
	req = withClaims(req, user)
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Profile
	require.NoError(t, h.db.Where("user_id = ?", user.ID).First(&got).Error)
	assert.Equal(t, models.KYCStatusPending, got.KYCStatus)
}

func TestUpdateProfile_InvalidMobileNumber(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)
	createProfile(t, h, user.ID, models.KYCStatusNone, nil)

	payload, _ := json.Marshal(map[string]string{
		"name":          "Alice",
		"mobile_number": "not-a-number",
	})
	req := httptest.NewRequest("PUT", "/profile", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req = withClaims(req, user)
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func privacyRequest(h *Handlers, prefix string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/privacy-policy/"+prefix, nil)
	req = mux.SetURLVars(req, map[string]string{"email_prefix": prefix})
	rec := httptest.NewRecorder()
	h.PrivacyPolicy(rec, req)
	return rec
}

func TestPrivacyPolicy(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)
	createProfile(t, h, user.ID, models.KYCStatusVerified, nil)

	rec := privacyRequest(h, "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, "A small shop", body["business_info"])
}

func TestPrivacyPolicy_NotFoundWithoutBusinessInfo(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)
	profile := createProfile(t, h, user.ID, models.KYCStatusVerified, nil)
	h.db.Model(profile).Update("business_info", "")

	rec := privacyRequest(h, "alice")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrivacyPolicy_UnknownPrefix(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := privacyRequest(h, "nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboard(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)
	createProfile(t, h, user.ID, models.KYCStatusVerified, nil)

	req := withClaims(httptest.NewRequest("GET", "/dashboard", nil), user)
	rec := httptest.NewRecorder()
	h.Dashboard(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "user")
	assert.Contains(t, body, "profile")
}
