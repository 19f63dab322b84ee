package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot-go/facebook"
	"pagepilot-go/utils"
)

func seedConfiguredAgent(t *testing.T, h *Handlers, userID uint) {
	t.Helper()
	encrypted, err := utils.EncryptSecret("page-token")
	require.NoError(t, err)
	cfg := createAgentConfig(t, h, userID, true)
	require.NoError(t, h.db.Model(cfg).Updates(map[string]interface{}{
		"facebook_page_id":  "page-1",
		"facebook_page_api": encrypted,
	}).Error)
}

func TestFeed_MissingConfigIsMessageNotFailure(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)

	req := withClaims(httptest.NewRequest("GET", "/feed", nil), user)
	rec := httptest.NewRecorder()
	h.Feed(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "not found")
	assert.Empty(t, body["posts"])
}

func TestFeed_ProxiesPageNameAndPosts(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)
	seedConfiguredAgent(t, h, user.ID)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page-1":
			fmt.Fprint(w, `{"name":"My Shop"}`)
		case "/page-1/feed":
			fmt.Fprint(w, `{"data":[{"id":"post-1","message":"hello"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	h.fb = facebook.NewClient(server.URL)

	req := withClaims(httptest.NewRequest("GET", "/feed", nil), user)
	rec := httptest.NewRecorder()
	h.Feed(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		PageName string          `json:"page_name"`
		Posts    []facebook.Post `json:"posts"`
		Error    interface{}     `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "My Shop", body.PageName)
	require.Len(t, body.Posts, 1)
	assert.Equal(t, "post-1", body.Posts[0].ID)
	assert.Nil(t, body.Error)
}

func TestFeed_GraphErrorEmbeddedInResponse(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)
	seedConfiguredAgent(t, h, user.ID)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token"}}`)
	}))
	t.Cleanup(server.Close)
	h.fb = facebook.NewClient(server.URL)

	req := withClaims(httptest.NewRequest("GET", "/feed", nil), user)
	rec := httptest.NewRecorder()
	h.Feed(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid OAuth access token", body["error"])
}

func multipartPostRequest(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	req := httptest.NewRequest("POST", "/create-post", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestCreatePost_Text(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)
	seedConfiguredAgent(t, h, user.ID)

	var posted url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		posted = r.PostForm
		fmt.Fprint(w, `{"id":"post-9"}`)
	}))
	t.Cleanup(server.Close)
	h.fb = facebook.NewClient(server.URL)

	req := withClaims(multipartPostRequest(t, map[string]string{"message": "big sale"}), user)
	rec := httptest.NewRecorder()
	h.CreatePost(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "big sale", posted.Get("message"))
	assert.Equal(t, "page-token", posted.Get("access_token"))
}

func TestCreatePost_RequiresMessageOrImage(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)
	seedConfiguredAgent(t, h, user.ID)

	req := withClaims(multipartPostRequest(t, map[string]string{"message": "   "}), user)
	rec := httptest.NewRecorder()
	h.CreatePost(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePost_GraphFailureIs502(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)
	seedConfiguredAgent(t, h, user.ID)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Permissions error"}}`)
	}))
	t.Cleanup(server.Close)
	h.fb = facebook.NewClient(server.URL)

	req := withClaims(multipartPostRequest(t, map[string]string{"message": "big sale"}), user)
	rec := httptest.NewRecorder()
	h.CreatePost(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Permissions error")
}

func TestDeleteComment(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)
	seedConfiguredAgent(t, h, user.ID)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/comment-5", r.URL.Path)
		fmt.Fprint(w, `{"success":true}`)
	}))
	t.Cleanup(server.Close)
	h.fb = facebook.NewClient(server.URL)

	form := url.Values{"comment_id": {"comment-5"}}
	req := httptest.NewRequest("POST", "/delete-comment", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = withClaims(req, user)
	rec := httptest.NewRecorder()
	h.DeleteComment(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "deleted successfully")
}

func TestDeleteComment_MissingID(t *testing.T) {
	h, _ := newTestHandlers(t)
	user := createUser(t, h, "alice@example.com", false)

	req := httptest.NewRequest("POST", "/delete-comment", strings.NewReader("comment_id="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = withClaims(req, user)
	rec := httptest.NewRecorder()
	h.DeleteComment(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
