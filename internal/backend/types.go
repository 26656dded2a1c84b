package backend

import (
	"encoding/json"
	"strings"

	"github.com/uncleJim21/pullthatupjamie/internal/quota"
)

// Eligibility mirrors /api/on-demand/checkEligibility.
type Eligibility struct {
	Success      bool                         `json:"success"`
	Tier         quota.Tier                   `json:"tier"`
	Entitlements map[string]EntitlementStatus `json:"entitlements"`
}

// EntitlementStatus is one named entitlement in an eligibility response.
type EntitlementStatus struct {
	Eligible       bool   `json:"eligible"`
	Used           int    `json:"used"`
	Max            int    `json:"max"`
	Remaining      *int   `json:"remaining"`
	ResetDate      string `json:"resetDate"`
	DaysUntilReset *int   `json:"daysUntilReset"`
}

// Entitlement looks up name and converts it to a quota record for the
// response's tier.
func (e *Eligibility) Entitlement(name string) (EntitlementStatus, quota.Record, bool) {
	if e == nil {
		return EntitlementStatus{}, quota.Record{}, false
	}
	status, ok := e.Entitlements[name]
	if !ok {
		return EntitlementStatus{}, quota.Record{}, false
	}
	rec := quota.Record{
		Tier:            e.Tier,
		EntitlementType: name,
		Used:            status.Used,
		Max:             status.Max,
		ResetDate:       status.ResetDate,
	}
	if status.DaysUntilReset != nil {
		days := *status.DaysUntilReset
		rec.DaysUntilReset = &days
	}
	return status, rec, true
}

// Episode identifies one podcast episode to process.
type Episode struct {
	GUID     string `json:"guid"`
	FeedGUID string `json:"feedGuid,omitempty"`
	FeedID   int64  `json:"feedId,omitempty"`
}

// SubmitRequest is the body of /api/on-demand/submitOnDemandRun.
type SubmitRequest struct {
	Message    string            `json:"message,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Episodes   []Episode         `json:"episodes"`
}

// EncodeSubmit produces the exact bytes SubmitBody sends. Callers keep these
// bytes when they need to replay the request.
func EncodeSubmit(req SubmitRequest) ([]byte, error) {
	if len(req.Episodes) == 0 {
		return nil, ErrNoEpisodes
	}
	return json.Marshal(req)
}

// SubmitResult mirrors a successful submit response.
type SubmitResult struct {
	Success    bool   `json:"success"`
	JobID      string `json:"jobId"`
	TotalItems int    `json:"totalItems"`
	Message    string `json:"message"`
}

// JobState is the coarse status of an on-demand job.
type JobState string

const (
	JobPending  JobState = "pending"
	JobComplete JobState = "complete"
	JobFailed   JobState = "failed"
)

// Terminal reports whether polling can stop.
func (s JobState) Terminal() bool {
	switch JobState(strings.ToLower(string(s))) {
	case JobComplete, JobFailed:
		return true
	}
	return false
}

// JobStats counts per-item outcomes.
type JobStats struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// JobStatus mirrors /api/on-demand/getOnDemandJobStatus/{jobId}.
type JobStatus struct {
	JobID  string   `json:"jobId"`
	Status JobState `json:"status"`
	Stats  JobStats `json:"stats"`
}

// Plan is a paid tier offered at checkout.
type Plan string

const (
	// PlanPlus is the mid tier offered to registered users.
	PlanPlus Plan = "plus"
	// PlanPro is the top tier offered to subscribers.
	PlanPro Plan = "pro"
)

// AuthResult mirrors /api/auth/signin and /api/auth/signup.
type AuthResult struct {
	Token             string `json:"token"`
	Tier              string `json:"tier"`
	SubscriptionValid bool   `json:"subscriptionValid"`
	SubscriptionType  string `json:"subscriptionType"`
}

// ResolvedTier picks the tier for the session after a successful sign-in.
func (a AuthResult) ResolvedTier() quota.Tier {
	if strings.TrimSpace(a.Tier) != "" {
		return quota.ParseTier(a.Tier)
	}
	if a.SubscriptionValid {
		return quota.TierSubscriber
	}
	return quota.TierRegistered
}

// CheckoutState tracks a hosted checkout session.
type CheckoutState string

const (
	CheckoutOpen    CheckoutState = "open"
	CheckoutPaid    CheckoutState = "paid"
	CheckoutExpired CheckoutState = "expired"
)

// CheckoutSession mirrors /api/checkout/session.
type CheckoutSession struct {
	ID     string        `json:"sessionId"`
	URL    string        `json:"url"`
	Status CheckoutState `json:"status"`
	Plan   Plan          `json:"plan"`
}

type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}
