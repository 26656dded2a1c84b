package quota

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const maxQuotaBody = 64 << 10

// quotaBody mirrors the 429 payload. Pointers distinguish absent fields from zero.
type quotaBody struct {
	Tier            *string `json:"tier"`
	Used            *int    `json:"used"`
	Max             *int    `json:"max"`
	ResetDate       *string `json:"resetDate"`
	DaysUntilReset  *int    `json:"daysUntilReset"`
	EntitlementType *string `json:"entitlementType"`
	Message         string  `json:"message"`
	Error           string  `json:"error"`
}

// CheckResponse inspects resp and returns an *ExceededError when the status is
// 429. Any other status is left untouched (the body is not read) and nil is
// returned. hint names the entitlement the caller was exercising and fills in
// entitlementType when the body omits it.
//
// A 429 whose body is empty or not valid JSON still yields a record built from
// the defaults plus hint.
func CheckResponse(resp *http.Response, hint string) error {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}

	rec := defaultRecord(hint)
	if resp.Body == nil {
		return Exceeded(rec, "")
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxQuotaBody))
	if err != nil || len(strings.TrimSpace(string(raw))) == 0 {
		return Exceeded(rec, "")
	}

	var body quotaBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return Exceeded(rec, "")
	}

	if body.Tier != nil {
		rec.Tier = ParseTier(*body.Tier)
	}
	if body.Used != nil {
		rec.Used = *body.Used
	}
	if body.Max != nil {
		rec.Max = *body.Max
	}
	if body.ResetDate != nil {
		rec.ResetDate = *body.ResetDate
	}
	if body.DaysUntilReset != nil {
		days := *body.DaysUntilReset
		rec.DaysUntilReset = &days
	}
	if body.EntitlementType != nil && strings.TrimSpace(*body.EntitlementType) != "" {
		rec.EntitlementType = *body.EntitlementType
	}

	summary := strings.TrimSpace(body.Message)
	if summary == "" {
		summary = strings.TrimSpace(body.Error)
	}
	return Exceeded(rec, summary)
}
