package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/tooldir/internal/pkg/response"
)

const defaultTimeout = 15 * time.Second

// ErrCodeRejected mirrors the server's single verdict for a bad code.
var ErrCodeRejected = errors.New("invalid or expired code")

type APIError struct {
	Status  int
	Code    int
	Message string
	// RetryAfter is set when the server asks the caller to hold off.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%d message=%s", e.Status, e.Code, e.Message)
}

func (e *APIError) Throttled() bool {
	return e.Status == http.StatusTooManyRequests
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

type SendResult struct {
	Message   string
	ExpiresAt time.Time
	Cooldown  time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// Client talks to the verification endpoints under baseURL, e.g.
// http://127.0.0.1:8080/api/v1.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SendVerification(ctx context.Context, email, purpose, template string) (*SendResult, error) {
	var data struct {
		ExpiresAt       int64 `json:"expires_at"`
		CooldownSeconds int   `json:"cooldown_seconds"`
	}
	body := map[string]string{"email": email, "type": purpose}
	if template != "" {
		body["template"] = template
	}
	msg, err := c.post(ctx, "/email/send-verification", body, &data)
	if err != nil {
		return nil, err
	}
	return &SendResult{
		Message:   msg,
		ExpiresAt: time.Unix(data.ExpiresAt, 0),
		Cooldown:  time.Duration(data.CooldownSeconds) * time.Second,
	}, nil
}

// VerifyCode uppercases code before sending; the server compares
// case-insensitively anyway.
func (c *Client) VerifyCode(ctx context.Context, email, purpose, code string) error {
	_, err := c.post(ctx, "/email/verify-code", map[string]string{
		"email": email,
		"type":  purpose,
		"code":  strings.ToUpper(strings.TrimSpace(code)),
	}, nil)
	return err
}

func (c *Client) CheckEmail(ctx context.Context, email string) (bool, error) {
	return c.check(ctx, "/auth/check-email", map[string]string{"email": email})
}

func (c *Client) CheckUsername(ctx context.Context, username string) (bool, error) {
	return c.check(ctx, "/auth/check-username", map[string]string{"username": username})
}

func (c *Client) check(ctx context.Context, path string, body map[string]string) (bool, error) {
	var data struct {
		Available bool `json:"available"`
	}
	if _, err := c.post(ctx, path, body, &data); err != nil {
		return false, err
	}
	return data.Available, nil
}

func (c *Client) post(ctx context.Context, path string, in interface{}, out interface{}) (string, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		response.Body
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: status=%d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		return "", newAPIError(resp, body.Body)
	}
	if out != nil && len(body.Data) > 0 {
		if err := json.Unmarshal(body.Data, out); err != nil {
			return "", fmt.Errorf("decode data: %w", err)
		}
	}
	return body.Message, nil
}

func newAPIError(resp *http.Response, body response.Body) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: body.Code, Message: body.Error}
	secs := body.RetryAfter
	if v, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && v > 0 {
		secs = v
	}
	if secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	if body.Error == ErrCodeRejected.Error() {
		return fmt.Errorf("%w: %w", ErrCodeRejected, apiErr)
	}
	return apiErr
}
