// Package client talks to the task HTTP API on behalf of a signed-in user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/models"
)

var (
	// ErrUnauthorized is returned when the server rejects the caller's identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when a patch matched no task owned by the caller.
	ErrNotFound = errors.New("task not found")
	// ErrRequestFailed wraps every other non-success response.
	ErrRequestFailed = errors.New("request failed")
)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrRequestFailed
}

// Client calls the task collection endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticated reports whether requests carry an identity.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// List fetches the caller's tasks matching f, newest first. A 401 yields an
// empty list together with ErrUnauthorized.
func (c *Client) List(ctx context.Context, f filter.Filter) ([]models.Task, error) {
	target := c.baseURL + "/tasks"
	if !f.IsZero() {
		target += "?" + f.Query().Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return []models.Task{}, ErrUnauthorized
	default:
		return nil, statusError(resp)
	}

	tasks := []models.Task{}
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

// Create posts a draft and returns the stored task.
func (c *Client) Create(ctx context.Context, draft models.Draft) (*models.Task, error) {
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/tasks", draft)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, statusError(resp)
	}

	var task models.Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

type patchBody struct {
	ID string `json:"id"`
	models.Patch
}

// Patch sends {id, ...fields}. A 404 means no owned task matched.
func (c *Client) Patch(ctx context.Context, id string, p models.Patch) error {
	resp, err := c.do(ctx, http.MethodPatch, c.baseURL+"/tasks", patchBody{ID: id, Patch: p})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return statusError(resp)
	}
}

// Remove deletes the task with id. Missing tasks are not an error.
func (c *Client) Remove(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.baseURL+"/tasks", map[string]string{"id": id})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return statusError(resp)
	}
}

// SignIn asks the development sign-in endpoint for a token.
func (c *Client) SignIn(ctx context.Context, userID string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/auth/token", map[string]string{"userId": userID})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token: %w", err)
	}
	if body.Token == "" {
		return "", errors.New("sign-in returned no token")
	}
	return body.Token, nil
}

func (c *Client) do(ctx context.Context, method, target string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Method: resp.Request.Method,
		Path:   resp.Request.URL.Path,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(data)),
	}
}
