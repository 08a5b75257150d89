package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/feedback-service/internal/api/dto"
)

const unknownErrorMessage = "An unknown error occurred"

// APIError is a failed call to the feedback API. Status is zero when no
// response arrived; Err then holds the transport failure.
type APIError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Code == "":
		return fmt.Sprintf("%d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ReviewInput is a public review submission.
type ReviewInput struct {
	Name     string
	Rating   int
	Feedback string
	Image    *string
}

// Client is a typed HTTP client for the feedback API. The session cookie
// lives in its jar and is never exposed to callers except for persistence.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New returns a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: u, http: &http.Client{Jar: jar, Timeout: timeout}}, nil
}

// Cookies returns the cookies the jar would send to the API.
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.baseURL)
}

// SetCookies restores previously saved cookies into the jar.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	restored := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		restored = append(restored, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
	}
	c.http.Jar.SetCookies(c.baseURL, restored)
}

// ClearCookies expires every cookie held for the API.
func (c *Client) ClearCookies() {
	current := c.http.Jar.Cookies(c.baseURL)
	expired := make([]*http.Cookie, 0, len(current))
	for _, ck := range current {
		expired = append(expired, &http.Cookie{Name: ck.Name, Path: "/", MaxAge: -1})
	}
	c.http.Jar.SetCookies(c.baseURL, expired)
}

// Login exchanges the admin PIN for a session cookie.
func (c *Client) Login(ctx context.Context, pin string) (*dto.LoginResponse, error) {
	var out dto.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/admin/auth/login", map[string]string{"pin": pin}, &out)
	return &out, err
}

// Logout ends the session server-side and drops the cookie.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/admin/auth/logout", nil, nil)
}

// VerifyToken checks that the stored session is still valid.
func (c *Client) VerifyToken(ctx context.Context) (*dto.VerifyResponse, error) {
	var out dto.VerifyResponse
	err := c.do(ctx, http.MethodGet, "/api/admin/auth/verify-token", nil, &out)
	return &out, err
}

// ResetPin replaces the admin PIN.
func (c *Client) ResetPin(ctx context.Context, oldPin, newPin string) error {
	body := map[string]string{"oldPin": oldPin, "newPin": newPin}
	return c.do(ctx, http.MethodPut, "/api/admin/auth/reset-pin", body, nil)
}

// ListReviews fetches one page of reviews.
func (c *Client) ListReviews(ctx context.Context, page int) (*dto.ReviewPageResponse, error) {
	var out dto.ReviewPageResponse
	path := "/api/reviews?pageNumber=" + strconv.Itoa(page)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return &out, err
}

// Featured fetches the featured reviews.
func (c *Client) Featured(ctx context.Context) ([]dto.ReviewResponse, error) {
	var out []dto.ReviewResponse
	err := c.do(ctx, http.MethodGet, "/api/reviews/featured", nil, &out)
	return out, err
}

// CreateReview submits a review and returns its id.
func (c *Client) CreateReview(ctx context.Context, in ReviewInput) (string, error) {
	body := map[string]any{"name": in.Name, "rating": in.Rating, "feedback": in.Feedback}
	if in.Image != nil {
		body["image"] = *in.Image
	}
	var out dto.CreateReviewResponse
	if err := c.do(ctx, http.MethodPost, "/api/reviews", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Like increments a review's like counter.
func (c *Client) Like(ctx context.Context, id string) (int, error) {
	var out dto.LikeResponse
	err := c.do(ctx, http.MethodPut, "/api/reviews/"+url.PathEscape(id)+"/like", nil, &out)
	return out.Likes, err
}

// Unlike decrements a review's like counter.
func (c *Client) Unlike(ctx context.Context, id string) (int, error) {
	var out dto.LikeResponse
	err := c.do(ctx, http.MethodPut, "/api/reviews/"+url.PathEscape(id)+"/unlike", nil, &out)
	return out.Likes, err
}

// Acknowledge sets a review's acknowledged flag. Admin only.
func (c *Client) Acknowledge(ctx context.Context, id string, acknowledged bool) error {
	body := map[string]bool{"acknowledge": acknowledged}
	return c.do(ctx, http.MethodPut, "/api/reviews/"+url.PathEscape(id)+"/acknowledge", body, nil)
}

// Reply adds an admin reply. An empty name uses the server's admin name.
func (c *Client) Reply(ctx context.Context, id, text, name string) error {
	body := map[string]string{"reply": text}
	if name != "" {
		body["name"] = name
	}
	return c.do(ctx, http.MethodPost, "/api/reviews/"+url.PathEscape(id)+"/reply", body, nil)
}

// DeleteReview removes a review. Admin only.
func (c *Client) DeleteReview(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/reviews/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Message: unknownErrorMessage, Err: fmt.Errorf("%s %s: %w", method, path, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: unknownErrorMessage, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status, Message: unknownErrorMessage}
	var payload struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Code = payload.Code
		if payload.Message != "" {
			apiErr.Message = payload.Message
		}
	}
	return apiErr
}
