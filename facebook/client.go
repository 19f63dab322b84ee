// Package facebook is a thin client for the subset of the Graph API the
// portal proxies: page lookup, feed listing, post creation and comment
// deletion. Calls are synchronous and run on the caller's request.
package facebook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
}

// Post is a single page feed entry.
type Post struct {
	ID           string `json:"id"`
	Message      string `json:"message,omitempty"`
	CreatedTime  string `json:"created_time,omitempty"`
	FullPicture  string `json:"full_picture,omitempty"`
	PermalinkURL string `json:"permalink_url,omitempty"`
}

type feedResponse struct {
	Data []Post `json:"data"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// apiError extracts the Graph error message from a non-200 response body.
func apiError(body []byte) error {
	var ge graphError
	if err := json.Unmarshal(body, &ge); err == nil && ge.Error.Message != "" {
		return fmt.Errorf("%s", ge.Error.Message)
	}
	return fmt.Errorf("unexpected Graph API response")
}

// PageName fetches the display name of a page. Failures degrade to
// "Unknown Page" rather than an error, matching the feed page behavior.
func (c *Client) PageName(pageID, accessToken string) string {
	endpoint := fmt.Sprintf("%s/%s?fields=name&access_token=%s",
		c.baseURL, url.PathEscape(pageID), url.QueryEscape(accessToken))
	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return "Unknown Page"
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "Unknown Page"
	}
	var out struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Name == "" {
		return "Unknown Page"
	}
	return out.Name
}

// Feed returns the page's recent posts.
func (c *Client) Feed(pageID, accessToken string) ([]Post, error) {
	endpoint := fmt.Sprintf("%s/%s/feed?access_token=%s&fields=%s",
		c.baseURL, url.PathEscape(pageID), url.QueryEscape(accessToken),
		url.QueryEscape("id,message,created_time,full_picture,permalink_url"))
	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(body)
	}

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	return feed.Data, nil
}

// CreateTextPost publishes a text-only post to the page feed.
func (c *Client) CreateTextPost(pageID, accessToken, message string) error {
	endpoint := fmt.Sprintf("%s/%s/feed", c.baseURL, url.PathEscape(pageID))
	form := url.Values{
		"message":      {message},
		"access_token": {accessToken},
	}
	resp, err := c.httpClient.PostForm(endpoint, form)
	if err != nil {
		return fmt.Errorf("failed to publish post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apiError(body)
	}
	return nil
}

// CreatePhotoPost publishes a photo post with an optional caption.
func (c *Client) CreatePhotoPost(pageID, accessToken, caption, filename string, image io.Reader) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("source", filename)
	if err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	writer.WriteField("access_token", accessToken)
	if caption != "" {
		writer.WriteField("caption", caption)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/photos", c.baseURL, url.PathEscape(pageID))
	resp, err := c.httpClient.Post(endpoint, writer.FormDataContentType(), &buf)
	if err != nil {
		return fmt.Errorf("failed to publish photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apiError(body)
	}
	return nil
}

// DeleteComment removes a comment by ID.
func (c *Client) DeleteComment(commentID, accessToken string) error {
	endpoint := fmt.Sprintf("%s/%s?access_token=%s",
		c.baseURL, url.PathEscape(commentID), url.QueryEscape(accessToken))
	req, err := http.NewRequest(http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apiError(body)
	}
	return nil
}
