// Package present turns a quota record into the copy shown in the quota modal.
// Everything here is a pure function of its inputs.
package present

import (
	"fmt"
	"time"

	"github.com/uncleJim21/pullthatupjamie/internal/quota"
)

// Copy is the text of one quota modal.
type Copy struct {
	Title              string
	AccomplishmentText string
	CTALabel           string
	ResetMessage       string
}

// Renderer renders records with a particular catalog.
type Renderer struct {
	Catalog Catalog
}

// Render uses the default catalog.
func Render(rec quota.Record, tier quota.Tier, now time.Time) Copy {
	return Renderer{Catalog: DefaultCatalog()}.Render(rec, tier, now)
}

// Render builds the modal copy. tier selects the call to action and normally
// equals rec.Tier; callers pass the session tier when they know better.
func (r Renderer) Render(rec quota.Record, tier quota.Tier, now time.Time) Copy {
	phrase := r.Catalog.Phrase(rec.EntitlementType)
	reset := ResetMessage(rec, now)

	c := Copy{ResetMessage: reset}
	switch tier {
	case quota.TierRegistered:
		c.Title = "You've hit your free limit"
		c.CTALabel = "Upgrade to Plus"
	case quota.TierSubscriber:
		c.Title = "You've hit your Plus limit"
		c.CTALabel = "Upgrade to Pro"
	case quota.TierAdmin:
		c.Title = "Limit reached"
		c.CTALabel = "Close"
	default:
		c.Title = "Create a free account to keep going"
		c.CTALabel = "Create account"
	}

	if rec.Max > 0 {
		c.AccomplishmentText = fmt.Sprintf("You've %s %d of %d times this period. Your allowance resets %s.", phrase, rec.Used, rec.Max, reset)
	} else {
		c.AccomplishmentText = fmt.Sprintf("You've %s as many times as your plan allows. Your allowance resets %s.", phrase, reset)
	}
	return c
}

// ResetMessage describes when the allowance resets. daysUntilReset wins over
// resetDate; neither yields "soon". It never returns a raw timestamp.
func ResetMessage(rec quota.Record, now time.Time) string {
	if rec.DaysUntilReset != nil {
		days := *rec.DaysUntilReset
		switch {
		case days <= 0:
			return "tomorrow"
		case days == 1:
			return "in 2 days"
		default:
			return fmt.Sprintf("in %d days", days+1)
		}
	}

	at, ok := rec.ResetAt()
	if !ok {
		return "soon"
	}
	hours := at.Sub(now).Hours()
	switch {
	case hours <= 24:
		return "tomorrow"
	case hours <= 48:
		return "in 2 days"
	default:
		return at.In(now.Location()).Weekday().String()
	}
}
