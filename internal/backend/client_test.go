package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/uncleJim21/pullthatupjamie/internal/quota"
	"github.com/uncleJim21/pullthatupjamie/internal/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, store session.Store) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Options{BaseURL: server.URL, Session: store, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func sampleRequest() SubmitRequest {
	return SubmitRequest{
		Message:  "process these",
		Episodes: []Episode{{GUID: "ep-1", FeedGUID: "feed-1", FeedID: 42}},
	}
}

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "https" || u.Host != "www.pullthatupjamie.ai" {
		t.Fatalf("default base = %q", u.String())
	}

	u, err = parseBaseURL("api.example.com/some/path?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "https" || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}

	if _, err := parseBaseURL("http://"); err == nil {
		t.Fatalf("expected error for missing host")
	}
}

func TestClient_SubmitSendsBearerAndRequestID(t *testing.T) {
	t.Parallel()

	var gotAuth, gotRequestID, gotContentType string
	var gotBody []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathSubmit || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `{"success":true,"jobId":"job-7","totalItems":1}`)
	}, sessionWith("tok-123", quota.TierRegistered))

	res, err := c.SubmitOnDemandRun(testContext(t), sampleRequest())
	if err != nil {
		t.Fatalf("SubmitOnDemandRun returned error: %v", err)
	}
	if res.JobID != "job-7" || res.TotalItems != 1 {
		t.Fatalf("result = %#v", res)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Fatalf("missing X-Request-ID")
	}
	if gotContentType != "application/json" {
		t.Fatalf("Content-Type = %q", gotContentType)
	}
	want, _ := EncodeSubmit(sampleRequest())
	if !bytes.Equal(gotBody, want) {
		t.Fatalf("body = %s, want %s", gotBody, want)
	}
}

func TestClient_NoAuthorizationHeaderWithoutToken(t *testing.T) {
	t.Parallel()

	var sawHeader bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["Authorization"]
		_, _ = io.WriteString(w, `{"success":true,"tier":"anonymous","entitlements":{}}`)
	}, &session.Memory{})

	if got := c.CheckEligibility(testContext(t)); got == nil {
		t.Fatalf("CheckEligibility returned nil")
	}
	if sawHeader {
		t.Fatalf("Authorization header sent for anonymous session")
	}
}

func TestClient_SubmitQuotaExceededWithEmptyBody(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, &session.Memory{})

	_, err := c.SubmitOnDemandRun(testContext(t), sampleRequest())
	qe, ok := quota.AsExceeded(err)
	if !ok {
		t.Fatalf("error = %v, want *quota.ExceededError", err)
	}
	rec := qe.Record
	if rec.Tier != quota.TierAnonymous || rec.Used != 0 || rec.Max != 0 {
		t.Fatalf("record = %#v, want defaults", rec)
	}
	if rec.EntitlementType != quota.EntitlementOnDemandRun {
		t.Fatalf("entitlement = %q, want hint", rec.EntitlementType)
	}
}

func TestClient_SubmitQuotaExceededWithRecord(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"tier":"registered","used":1,"max":1,"resetDate":"2026-01-02T00:00:00Z"}`)
	}, sessionWith("tok", quota.TierRegistered))

	_, err := c.SubmitOnDemandRun(testContext(t), sampleRequest())
	if !errors.Is(err, quota.ErrExceeded) {
		t.Fatalf("error = %v, want quota exceeded", err)
	}
	qe, _ := quota.AsExceeded(err)
	if qe.Record.Tier != quota.TierRegistered || qe.Record.ResetDate == "" {
		t.Fatalf("record = %#v", qe.Record)
	}
}

func TestClient_UnauthorizedClearsSessionBeforeReturning(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var authHeaders []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		n := len(authHeaders)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"jobId":"job-2"}`)
	}, sessionWith("stale", quota.TierRegistered))

	_, err := c.SubmitOnDemandRun(testContext(t), sampleRequest())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error type = %T, want *AuthError", err)
	}
	if c.Session().Token() != "" {
		t.Fatalf("token not cleared")
	}
	if c.Session().Tier() != quota.TierAnonymous {
		t.Fatalf("tier = %q after clear", c.Session().Tier())
	}

	if _, err := c.SubmitOnDemandRun(testContext(t), sampleRequest()); err != nil {
		t.Fatalf("second submit returned error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if authHeaders[0] != "Bearer stale" {
		t.Fatalf("first Authorization = %q", authHeaders[0])
	}
	if authHeaders[1] != "" {
		t.Fatalf("second Authorization = %q, want none", authHeaders[1])
	}
}

func TestClient_GenericFailureMessages(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "message", status: http.StatusBadRequest, body: `{"message":"episodes missing"}`, want: "episodes missing"},
		{name: "error string", status: http.StatusConflict, body: `{"error":"already running"}`, want: "already running"},
		{name: "error object", status: http.StatusBadGateway, body: `{"error":{"message":"upstream down"}}`, want: "upstream down"},
		{name: "not json", status: http.StatusInternalServerError, body: `<html>oops</html>`, want: "request failed with status 500"},
		{name: "empty", status: http.StatusServiceUnavailable, body: ``, want: "request failed with status 503"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}, &session.Memory{})

			_, err := c.SubmitOnDemandRun(testContext(t), sampleRequest())
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("error = %v, want *RequestError", err)
			}
			if reqErr.Status != tc.status || reqErr.Message != tc.want {
				t.Fatalf("got status=%d message=%q, want %d %q", reqErr.Status, reqErr.Message, tc.status, tc.want)
			}
			if errors.Is(err, quota.ErrExceeded) {
				t.Fatalf("generic failure must not carry a quota record")
			}
		})
	}
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":`)
	}, &session.Memory{})

	_, err := c.PollJobStatus(testContext(t), "job-1")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
	if reqErr.Message != "unexpected response from server" {
		t.Fatalf("message = %q", reqErr.Message)
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	c, err := NewClient(Options{BaseURL: base, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := testContext(t)

	if got := c.CheckEligibility(ctx); got != nil {
		t.Fatalf("CheckEligibility = %#v, want nil on network failure", got)
	}

	_, err = c.SubmitOnDemandRun(ctx, sampleRequest())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || !reqErr.Network() {
		t.Fatalf("error = %v, want network RequestError", err)
	}
}

func TestClient_CheckEligibilityParsesEntitlements(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathEligibility {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"tier":"Anonymous","entitlements":{"submit-on-demand-run":{"eligible":false,"used":3,"max":3,"daysUntilReset":2}}}`)
	}, &session.Memory{})

	got := c.CheckEligibility(testContext(t))
	if got == nil {
		t.Fatalf("CheckEligibility returned nil")
	}
	if got.Tier != quota.TierAnonymous {
		t.Fatalf("tier = %q", got.Tier)
	}
	status, rec, ok := got.Entitlement(quota.EntitlementOnDemandRun)
	if !ok || status.Eligible {
		t.Fatalf("entitlement = %#v ok=%v", status, ok)
	}
	if rec.Used != 3 || rec.Max != 3 || rec.DaysUntilReset == nil || *rec.DaysUntilReset != 2 {
		t.Fatalf("record = %#v", rec)
	}
}

func TestClient_CheckEligibilitySwallowsErrors(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}, &session.Memory{})
		if got := c.CheckEligibility(testContext(t)); got != nil {
			t.Fatalf("status %d: got %#v, want nil", status, got)
		}
	}
}

func TestClient_PollJobStatus(t *testing.T) {
	t.Parallel()

	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"status":"complete","stats":{"processed":2,"skipped":1,"failed":0,"total":3}}`)
	}, &session.Memory{})

	st, err := c.PollJobStatus(testContext(t), "job 9")
	if err != nil {
		t.Fatalf("PollJobStatus returned error: %v", err)
	}
	if gotPath != pathJobStatus+"job 9" {
		t.Fatalf("path = %q", gotPath)
	}
	if st.JobID != "job 9" || !st.Status.Terminal() || st.Stats.Total != 3 {
		t.Fatalf("status = %#v", st)
	}

	if _, err := c.PollJobStatus(testContext(t), "  "); err == nil {
		t.Fatalf("expected error for blank job id")
	}
}

func TestClient_SubmitBodyIsSentVerbatim(t *testing.T) {
	t.Parallel()

	var bodies [][]byte
	var mu sync.Mutex
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, b)
		mu.Unlock()
		_, _ = io.WriteString(w, `{"success":true,"jobId":"j"}`)
	}, &session.Memory{})

	body, err := EncodeSubmit(SubmitRequest{
		Parameters: map[string]string{"b": "2", "a": "1"},
		Episodes:   []Episode{{GUID: "x"}, {GUID: "y"}},
	})
	if err != nil {
		t.Fatalf("EncodeSubmit returned error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := c.SubmitBody(testContext(t), body); err != nil {
			t.Fatalf("SubmitBody returned error: %v", err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(bodies[0], body) || !bytes.Equal(bodies[1], body) {
		t.Fatalf("bodies differ from encoded request")
	}

	if _, err := EncodeSubmit(SubmitRequest{}); !errors.Is(err, ErrNoEpisodes) {
		t.Fatalf("EncodeSubmit empty = %v, want ErrNoEpisodes", err)
	}
}

func TestClient_SubmitWithoutJobID(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true}`)
	}, &session.Memory{})

	_, err := c.SubmitOnDemandRun(testContext(t), sampleRequest())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || !strings.Contains(reqErr.Message, "job id") {
		t.Fatalf("error = %v", err)
	}
}

func TestClient_SignInStoresCredentials(t *testing.T) {
	t.Parallel()

	store := &session.Memory{}
	var gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathSignIn {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = io.WriteString(w, `{"token":"new-token","subscriptionValid":true,"subscriptionType":"plus"}`)
	}, store)

	res, err := c.SignIn(testContext(t), " fan@example.com ", "hunter2")
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if res.Token != "new-token" {
		t.Fatalf("token = %q", res.Token)
	}
	if store.Token() != "new-token" || store.Tier() != quota.TierSubscriber {
		t.Fatalf("session = %q/%q", store.Token(), store.Tier())
	}
	if !strings.Contains(gotBody, `"email":"fan@example.com"`) {
		t.Fatalf("body = %s", gotBody)
	}

	if _, err := c.SignUp(testContext(t), "", "x"); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestClient_Checkout(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == pathCheckout:
			_, _ = io.WriteString(w, `{"sessionId":"cs_1","url":"https://pay.example/cs_1"}`)
		case r.Method == http.MethodGet && r.URL.Path == pathCheckoutStatus+"cs_1":
			_, _ = io.WriteString(w, `{"status":"paid","plan":"pro"}`)
		default:
			http.NotFound(w, r)
		}
	}, sessionWith("tok", quota.TierSubscriber))

	ctx := testContext(t)
	cs, err := c.CreateCheckout(ctx, PlanPro)
	if err != nil {
		t.Fatalf("CreateCheckout returned error: %v", err)
	}
	if cs.ID != "cs_1" || cs.Plan != PlanPro || cs.URL == "" {
		t.Fatalf("checkout = %#v", cs)
	}

	st, err := c.CheckoutStatus(ctx, cs.ID)
	if err != nil {
		t.Fatalf("CheckoutStatus returned error: %v", err)
	}
	if st.Status != CheckoutPaid || st.ID != "cs_1" {
		t.Fatalf("status = %#v", st)
	}
}

func TestAuthResult_ResolvedTier(t *testing.T) {
	cases := []struct {
		in   AuthResult
		want quota.Tier
	}{
		{AuthResult{Tier: "ADMIN"}, quota.TierAdmin},
		{AuthResult{SubscriptionValid: true}, quota.TierSubscriber},
		{AuthResult{}, quota.TierRegistered},
	}
	for _, tc := range cases {
		if got := tc.in.ResolvedTier(); got != tc.want {
			t.Fatalf("ResolvedTier(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestJobState_Terminal(t *testing.T) {
	if JobPending.Terminal() {
		t.Fatalf("pending should not be terminal")
	}
	if !JobState("COMPLETE").Terminal() || !JobFailed.Terminal() {
		t.Fatalf("complete and failed should be terminal")
	}
	if JobState("queued").Terminal() {
		t.Fatalf("unknown status should not be terminal")
	}
}

func sessionWith(token string, tier quota.Tier) *session.Memory {
	s := &session.Memory{}
	_ = s.SetCredentials(token, tier)
	return s
}
