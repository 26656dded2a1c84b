package quota

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type trackingBody struct {
	io.Reader
	read bool
}

func (b *trackingBody) Read(p []byte) (int, error) {
	b.read = true
	return b.Reader.Read(p)
}

func (b *trackingBody) Close() error { return nil }

func TestCheckResponse_WellFormedBodyCopiesFields(t *testing.T) {
	resp := response(http.StatusTooManyRequests, `{
		"tier": "registered",
		"used": 5,
		"max": 5,
		"resetDate": "2026-10-17T09:00:00Z",
		"daysUntilReset": 3,
		"entitlementType": "jamie-assist"
	}`)

	err := CheckResponse(resp, EntitlementOnDemandRun)
	qe, ok := AsExceeded(err)
	require.True(t, ok, "want *ExceededError, got %v", err)

	rec := qe.Record
	assert.Equal(t, TierRegistered, rec.Tier)
	assert.Equal(t, 5, rec.Used)
	assert.Equal(t, 5, rec.Max)
	assert.Equal(t, "2026-10-17T09:00:00Z", rec.ResetDate)
	require.NotNil(t, rec.DaysUntilReset)
	assert.Equal(t, 3, *rec.DaysUntilReset)
	assert.Equal(t, "jamie-assist", rec.EntitlementType)
	assert.True(t, errors.Is(err, ErrExceeded))
}

func TestCheckResponse_AbsentFieldsUseDefaultsAndHint(t *testing.T) {
	err := CheckResponse(response(http.StatusTooManyRequests, `{"used": 2}`), EntitlementOnDemandRun)
	qe, ok := AsExceeded(err)
	require.True(t, ok)

	assert.Equal(t, TierAnonymous, qe.Record.Tier)
	assert.Equal(t, 2, qe.Record.Used)
	assert.Equal(t, 0, qe.Record.Max)
	assert.Empty(t, qe.Record.ResetDate)
	assert.Nil(t, qe.Record.DaysUntilReset)
	assert.Equal(t, EntitlementOnDemandRun, qe.Record.EntitlementType)
}

func TestCheckResponse_UnparseableBodiesFallBackToDefaults(t *testing.T) {
	bodies := map[string]string{
		"empty":      "",
		"whitespace": "   \n",
		"malformed":  "{not-json",
		"html":       "<html>Too Many Requests</html>",
		"wrong type": `{"used": "three"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				err = CheckResponse(response(http.StatusTooManyRequests, body), EntitlementOnDemandRun)
			})
			qe, ok := AsExceeded(err)
			require.True(t, ok)
			assert.Equal(t, Record{Tier: TierAnonymous, EntitlementType: EntitlementOnDemandRun}, qe.Record)
			assert.NotEmpty(t, qe.Error())
		})
	}
}

func TestCheckResponse_NilBodyStillSignals(t *testing.T) {
	err := CheckResponse(&http.Response{StatusCode: http.StatusTooManyRequests}, "x")
	qe, ok := AsExceeded(err)
	require.True(t, ok)
	assert.Equal(t, "x", qe.Record.EntitlementType)
}

func TestCheckResponse_NonQuotaStatusIsNoop(t *testing.T) {
	for _, status := range []int{200, 201, 400, 401, 403, 404, 428, 430, 500, 503} {
		body := &trackingBody{Reader: strings.NewReader(`{"tier":"admin"}`)}
		resp := &http.Response{StatusCode: status, Body: body}

		assert.NoError(t, CheckResponse(resp, EntitlementOnDemandRun), "status %d", status)
		assert.False(t, body.read, "status %d: body should not be read", status)
	}
	assert.NoError(t, CheckResponse(nil, "x"))
}

func TestCheckResponse_ServerMessageBecomesSummary(t *testing.T) {
	err := CheckResponse(response(http.StatusTooManyRequests, `{"error":"Free limit reached","max":3,"used":3}`), "")
	require.Error(t, err)
	assert.Equal(t, "Free limit reached", err.Error())

	err = CheckResponse(response(http.StatusTooManyRequests, `{"max":3,"used":3}`), EntitlementOnDemandRun)
	assert.Equal(t, "quota exceeded for submit-on-demand-run: 3/3 used (anonymous)", err.Error())
}

func TestRecord_ResetAt(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
	}{
		{"", false},
		{"2026-10-17T09:00:00Z", true},
		{"2026-10-17T09:00:00.123Z", true},
		{"2026-10-17", true},
		{"next tuesday", false},
	}
	for _, tc := range cases {
		_, ok := Record{ResetDate: tc.value}.ResetAt()
		assert.Equal(t, tc.ok, ok, "ResetAt(%q)", tc.value)
	}
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierAnonymous, ParseTier(""))
	assert.Equal(t, TierSubscriber, ParseTier(" Subscriber "))
	assert.False(t, ParseTier("gold").Known())
	assert.True(t, ParseTier("admin").Known())
}
