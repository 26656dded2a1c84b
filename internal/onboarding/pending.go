package onboarding

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PendingAction is the request the user was making when recovery began. Body
// is a private copy of the bytes that were sent; it is never modified.
type PendingAction struct {
	ID          string
	Entitlement string
	Body        []byte
	CapturedAt  time.Time
}

// NewPending snapshots body.
func NewPending(entitlement string, body []byte) *PendingAction {
	return &PendingAction{
		ID:          uuid.NewString(),
		Entitlement: entitlement,
		Body:        append([]byte(nil), body...),
		CapturedAt:  time.Now(),
	}
}

// Refresher reloads cached entitlements.
type Refresher interface {
	Refresh(ctx context.Context)
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context)

func (f RefreshFunc) Refresh(ctx context.Context) { f(ctx) }

// Replayer resubmits a pending action.
type Replayer interface {
	Replay(ctx context.Context, p *PendingAction) error
}

// ReplayFunc adapts a function to Replayer.
type ReplayFunc func(ctx context.Context, p *PendingAction) error

func (f ReplayFunc) Replay(ctx context.Context, p *PendingAction) error { return f(ctx, p) }

// ReplayOutcome records the result of the automatic resubmission.
type ReplayOutcome struct {
	ActionID string
	Err      error
	At       time.Time
}
