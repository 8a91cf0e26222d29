// Package portalapi is the client for the external portal REST API, the
// system of record for accounts, students, attempts and enrollments.
package portalapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/imroc/req/v3"
)

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Token   string
}

// Client calls the portal API. Requests are never retried; callers surface
// failures and let the user re-invoke the action.
type Client struct {
	http *req.Client
}

// New builds a client against cfg.BaseURL.
func New(cfg Config) *Client {
	c := req.C().
		SetBaseURL(cfg.BaseURL).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal).
		SetCommonHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	if cfg.Token != "" {
		c.SetCommonBearerAuthToken(cfg.Token)
	}
	return &Client{http: c}
}

// envelope is the uniform response shape of every JSON endpoint.
type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// APIError is a non-2xx response or a success:false envelope.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// Message is the text to show the user for err.
func Message(err error) string {
	if apiErr, ok := AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Something went wrong, please try again"
}

// IsNotFound reports whether err is a 404 from the portal API.
func IsNotFound(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == http.StatusNotFound
}

// send performs one request and unwraps the envelope into out (which may be nil).
func (c *Client) send(ctx context.Context, method, path string, out any, build func(*req.Request)) error {
	r := c.http.R().SetContext(ctx)
	if build != nil {
		build(r)
	}
	resp, err := r.Send(method, path)
	if err != nil {
		glog.Errorf("portal api %s %s: %v", method, path, err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	body, err := resp.ToBytes()
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	status := resp.GetStatusCode()
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if status < 200 || status >= 300 {
			glog.Errorf("portal api %s %s: status %d", method, path, status)
			return &APIError{Method: method, Path: path, Status: status, Message: http.StatusText(status)}
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if status < 200 || status >= 300 || !env.Success {
		glog.Errorf("portal api %s %s: status %d: %s", method, path, status, env.Message)
		return &APIError{Method: method, Path: path, Status: status, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any, build func(*req.Request)) error {
	return c.send(ctx, http.MethodGet, path, out, build)
}

func withBody(v any) func(*req.Request) {
	return func(r *req.Request) { r.SetBody(v) }
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Pages is the number of pages needed for Total items.
func (p Page[T]) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
