package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncleJim21/pullthatupjamie/internal/quota"
	"github.com/uncleJim21/pullthatupjamie/internal/session"
)

// Entitlements defines the operations the onboarding flow needs from the
// backend. It is implemented by *Client and can be faked in tests.
type Entitlements interface {
	CheckEligibility(ctx context.Context) *Eligibility
	SubmitBody(ctx context.Context, body []byte) (*SubmitResult, error)
	PollJobStatus(ctx context.Context, jobID string) (*JobStatus, error)
}

// Ensure Client implements Entitlements at compile time.
var _ Entitlements = (*Client)(nil)

// Client talks to the Pull That Up Jamie REST API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	session   session.Store
	logger    zerolog.Logger
}

const (
	defaultBaseURL   = "https://www.pullthatupjamie.ai"
	defaultUserAgent = "jamie-cli/0.1"
	requestTimeout   = 20 * time.Second
	maxErrorBody     = 64 << 10

	pathEligibility    = "/api/on-demand/checkEligibility"
	pathSubmit         = "/api/on-demand/submitOnDemandRun"
	pathJobStatus      = "/api/on-demand/getOnDemandJobStatus/"
	pathSignIn         = "/api/auth/signin"
	pathSignUp         = "/api/auth/signup"
	pathCheckout       = "/api/checkout/session"
	pathCheckoutStatus = "/api/checkout/session/"
)

// Options configure a Client.
type Options struct {
	BaseURL    string
	Session    session.Store
	Timeout    time.Duration // zero uses 20s
	HTTPClient *http.Client  // optional; its Timeout is overridden
	Logger     zerolog.Logger
	UserAgent  string
}

// NewClient builds a Client. A nil Session behaves as a permanently anonymous
// in-memory session.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	hc := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		hc = &copied
	}
	hc.Timeout = timeout

	store := opts.Session
	if store == nil {
		store = &session.Memory{}
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{
		baseURL:   base,
		http:      hc,
		userAgent: ua,
		session:   store,
		logger:    opts.Logger,
	}, nil
}

// Session exposes the store the client reads credentials from.
func (c *Client) Session() session.Store { return c.session }

// CheckEligibility fetches per-entitlement usage for the current caller. It
// feeds passive UI hints, so every failure (network, status, body) is logged
// and reported as nil rather than returned.
func (c *Client) CheckEligibility(ctx context.Context) *Eligibility {
	if c == nil {
		return nil
	}
	var payload Eligibility
	err := c.call(ctx, "check eligibility", http.MethodGet, pathEligibility, nil, "", &payload)
	if err != nil {
		c.logger.Debug().Err(err).Msg("eligibility unavailable")
		return nil
	}
	payload.Tier = quota.ParseTier(string(payload.Tier))
	return &payload
}

// SubmitOnDemandRun encodes req and submits it. Callers that may need to replay
// the request should use EncodeSubmit and SubmitBody directly so they hold the
// exact bytes that were sent.
func (c *Client) SubmitOnDemandRun(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	body, err := EncodeSubmit(req)
	if err != nil {
		return nil, fmt.Errorf("encode submit: %w", err)
	}
	return c.SubmitBody(ctx, body)
}

// SubmitBody posts an already encoded submit request verbatim.
//
// Errors: *quota.ExceededError on 429, *AuthError on 401 (credentials cleared
// first), *RequestError otherwise.
func (c *Client) SubmitBody(ctx context.Context, body []byte) (*SubmitResult, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload SubmitResult
	if err := c.call(ctx, "submit on-demand run", http.MethodPost, pathSubmit, body, quota.EntitlementOnDemandRun, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.JobID) == "" {
		return nil, &RequestError{Op: "submit on-demand run", Status: http.StatusOK, Message: "server did not return a job id"}
	}
	return &payload, nil
}

// PollJobStatus fetches the status of an on-demand job.
func (c *Client) PollJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job id required")
	}
	var payload JobStatus
	if err := c.call(ctx, "poll job status", http.MethodGet, pathJobStatus+url.PathEscape(jobID), nil, quota.EntitlementOnDemandRun, &payload); err != nil {
		return nil, err
	}
	if payload.JobID == "" {
		payload.JobID = jobID
	}
	return &payload, nil
}

// SignIn exchanges credentials for a token and stores it in the session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.authenticate(ctx, "sign in", pathSignIn, email, password)
}

// SignUp creates an account and stores the returned token in the session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.authenticate(ctx, "sign up", pathSignUp, email, password)
}

func (c *Client) authenticate(ctx context.Context, op, path, email, password string) (*AuthResult, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &RequestError{Op: op, Status: http.StatusBadRequest, Message: "email and password are required"}
	}
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op, err)
	}
	var payload AuthResult
	if err := c.call(ctx, op, http.MethodPost, path, body, "", &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.Token) == "" {
		return nil, &RequestError{Op: op, Status: http.StatusOK, Message: "server did not return a token"}
	}
	if err := c.session.SetCredentials(payload.Token, payload.ResolvedTier()); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &payload, nil
}

// CreateCheckout opens a hosted checkout session for plan.
func (c *Client) CreateCheckout(ctx context.Context, plan Plan) (*CheckoutSession, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	body, err := json.Marshal(map[string]Plan{"plan": plan})
	if err != nil {
		return nil, fmt.Errorf("encode checkout: %w", err)
	}
	var payload CheckoutSession
	if err := c.call(ctx, "create checkout", http.MethodPost, pathCheckout, body, "", &payload); err != nil {
		return nil, err
	}
	if payload.Plan == "" {
		payload.Plan = plan
	}
	return &payload, nil
}

// CheckoutStatus reports whether a hosted checkout session has been paid.
func (c *Client) CheckoutStatus(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("checkout session id required")
	}
	var payload CheckoutSession
	if err := c.call(ctx, "checkout status", http.MethodGet, pathCheckoutStatus+url.PathEscape(sessionID), nil, "", &payload); err != nil {
		return nil, err
	}
	if payload.ID == "" {
		payload.ID = sessionID
	}
	return &payload, nil
}

// call performs one request against an already escaped path. The quota parser
// runs before any other status handling; a 401 clears the session before the
// error is returned.
func (c *Client) call(ctx context.Context, op, method, path string, body []byte, hint string, dest any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse path %q: %w", path, err)
	}
	reqURL := c.baseURL.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Op: op, Message: "could not reach server", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := quota.CheckResponse(resp, hint); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if clearErr := c.session.Clear(); clearErr != nil {
			c.logger.Warn().Err(clearErr).Msg("clear session after 401")
		}
		c.logger.Info().Str("op", op).Msg("credentials rejected; session cleared")
		return &AuthError{Op: op}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Op: op, Status: resp.StatusCode, Message: errorMessage(resp)}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &RequestError{Op: op, Status: resp.StatusCode, Message: "unexpected response from server", Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage extracts a user-facing message from an error body, falling back
// to a status-coded generic message.
func errorMessage(resp *http.Response) string {
	fallback := fmt.Sprintf("request failed with status %d", resp.StatusCode)
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return fallback
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fallback
	}
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return msg
	}
	if len(body.Error) > 0 {
		var text string
		if err := json.Unmarshal(body.Error, &text); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body.Error, &nested); err == nil && strings.TrimSpace(nested.Message) != "" {
			return strings.TrimSpace(nested.Message)
		}
	}
	return fallback
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api base %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
