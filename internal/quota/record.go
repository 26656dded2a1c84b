package quota

import (
	"strings"
	"time"
)

// Tier is the caller's entitlement level as reported by the backend.
type Tier string

const (
	TierAnonymous  Tier = "anonymous"
	TierRegistered Tier = "registered"
	TierSubscriber Tier = "subscriber"
	TierAdmin      Tier = "admin"
)

// Known reports whether t is one of the four tiers the backend issues.
func (t Tier) Known() bool {
	switch t {
	case TierAnonymous, TierRegistered, TierSubscriber, TierAdmin:
		return true
	}
	return false
}

// ParseTier normalizes a tier string. Blank input maps to anonymous; unknown
// values are kept verbatim so callers can log them.
func ParseTier(value string) Tier {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return TierAnonymous
	}
	return Tier(trimmed)
}

// Entitlement names used by this client.
const (
	EntitlementOnDemandRun = "submit-on-demand-run"
	EntitlementJamieAssist = "jamie-assist"
)

// Record is a snapshot of one entitlement's usage at the moment its limit was hit.
// Records are values; nothing mutates them after construction.
type Record struct {
	Tier            Tier
	EntitlementType string
	Used            int
	Max             int
	ResetDate       string
	DaysUntilReset  *int
}

var resetLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ResetAt parses ResetDate. The bool is false when the field is absent or unparseable.
func (r Record) ResetAt() (time.Time, bool) {
	value := strings.TrimSpace(r.ResetDate)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range resetLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Remaining returns how many units are left, never negative.
func (r Record) Remaining() int {
	if r.Max <= r.Used {
		return 0
	}
	return r.Max - r.Used
}

func defaultRecord(hint string) Record {
	return Record{
		Tier:            TierAnonymous,
		EntitlementType: hint,
	}
}
