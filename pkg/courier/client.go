package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
)

const (
	defaultBaseURL           = "https://apiv2.shiprocket.in/v1/external"
	defaultTimeout           = 20 * time.Second
	errorBodyReadLimit int64 = 2048
	loginPath                = "/auth/login"
	operationLogin           = "auth.login"
)

var (
	errCredentialsRequired = errors.New("courier email and password are required")
)

// Recorder receives call metrics. *metrics.CourierMetrics satisfies it.
type Recorder interface {
	ObserveCall(operation string, duration time.Duration)
	IncFailure(operation, code string)
	IncReauth()
}

// Client is the courier REST gateway. It logs in lazily, caches the token in
// its Session and retries a request exactly once after a 401.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	baseURL    string
	email      string
	password   string
	session    *Session
	metrics    Recorder
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. The client is used as is;
// WithTimeout does not touch it.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the courier API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithSession shares a session between clients.
func WithSession(session *Session) Option {
	return func(c *Client) {
		if session != nil {
			c.session = session
		}
	}
}

// WithMetrics attaches a call recorder.
func WithMetrics(recorder Recorder) Option {
	return func(c *Client) {
		c.metrics = recorder
	}
}

// WithLogger attaches a logger for call tracing.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds the gateway for the given API user.
func NewClient(email, password string, opts ...Option) (*Client, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errCredentialsRequired
	}

	client := &Client{
		timeout:  defaultTimeout,
		baseURL:  defaultBaseURL,
		email:    email,
		password: password,
		session:  NewSession(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: client.timeout}
	}
	return client, nil
}

// Close drops the cached session token.
func (c *Client) Close() {
	c.session.Reset()
}

// Authenticate logs in and caches a fresh token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	payload := map[string]string{"email": c.email, "password": c.password}
	var out struct {
		Token string `json:"token"`
	}
	status, err := c.send(ctx, operationLogin, http.MethodPost, loginPath, nil, payload, "", &out)
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.fail(operationLogin, pkgerrors.CodeCourierAuthExpired)
		return "", pkgerrors.New(pkgerrors.CodeCourierAuthExpired, "courier rejected credentials")
	}
	if out.Token == "" {
		c.fail(operationLogin, pkgerrors.CodeCourierUnavailable)
		return "", pkgerrors.New(pkgerrors.CodeCourierUnavailable, "courier login returned no token")
	}
	c.session.Store(out.Token)
	return out.Token, nil
}

// call performs an authenticated request. A 401 triggers one re-login and one
// retry; a second 401 surfaces as CodeCourierAuthExpired.
func (c *Client) call(ctx context.Context, operation, method, path string, query url.Values, body, out any) error {
	token := c.session.Token()
	if token == "" {
		var err error
		if token, err = c.Authenticate(ctx); err != nil {
			return err
		}
	}

	status, err := c.send(ctx, operation, method, path, query, body, token, out)
	if err != nil {
		return err
	}
	if status != http.StatusUnauthorized {
		return nil
	}

	c.debug(ctx, operation, "courier token rejected, re-authenticating")
	if c.metrics != nil {
		c.metrics.IncReauth()
	}
	c.session.Invalidate(token)
	if token, err = c.Authenticate(ctx); err != nil {
		return err
	}

	status, err = c.send(ctx, operation, method, path, query, body, token, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.fail(operation, pkgerrors.CodeCourierAuthExpired)
		return pkgerrors.New(pkgerrors.CodeCourierAuthExpired, "courier rejected refreshed token").
			WithDetails(map[string]any{"operation": operation})
	}
	return nil
}

// send executes a single HTTP exchange. A 401 is reported through the status
// with a nil error so call can decide whether to retry.
func (c *Client) send(ctx context.Context, operation, method, path string, query url.Values, body any, token string, out any) (int, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal courier request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build courier request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.ObserveCall(operation, time.Since(started))
	}
	if err != nil {
		c.fail(operation, pkgerrors.CodeCourierUnavailable)
		return 0, pkgerrors.Wrap(pkgerrors.CodeCourierUnavailable, err, "courier request failed").
			WithDetails(map[string]any{"operation": operation})
	}
	defer func() { _ = resp.Body.Close() }()

	c.debug(ctx, operation, fmt.Sprintf("courier %s %s -> %d", method, path, resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyReadLimit))
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		if operation == operationLogin && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return resp.StatusCode, nil
		}
		c.fail(operation, pkgerrors.CodeCourierUnavailable)
		return resp.StatusCode, pkgerrors.Wrap(
			pkgerrors.CodeCourierUnavailable,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"courier request rejected",
		).WithDetails(map[string]any{"operation": operation, "status": resp.StatusCode, "body": strings.TrimSpace(string(msg))})
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			c.fail(operation, pkgerrors.CodeCourierUnavailable)
			return resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeCourierUnavailable, err, "decode courier response").
				WithDetails(map[string]any{"operation": operation})
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) fail(operation string, code pkgerrors.Code) {
	if c.metrics != nil {
		c.metrics.IncFailure(operation, string(code))
	}
}

func (c *Client) debug(ctx context.Context, operation, msg string) {
	if c.logg == nil {
		return
	}
	c.logg.Debug(c.logg.WithField(ctx, "courier_operation", operation), msg)
}
