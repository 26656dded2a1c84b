// Package analytics defines the quota modal signals and the sinks that record
// them. Sinks must not block: they are called from the UI event loop.
package analytics

import (
	"sync"
	"time"

	"github.com/uncleJim21/pullthatupjamie/internal/quota"
)

// Name identifies an event.
type Name string

const (
	// ModalShown fires at most once per quota modal activation.
	ModalShown Name = "quota_modal_shown"
	// ModalAction fires exactly once per user choice in the quota modal.
	ModalAction Name = "quota_modal_action"
)

// Action is the choice a user made in the quota modal.
type Action string

const (
	ActionDismissed  Action = "dismissed"
	ActionSignup     Action = "signup"
	ActionUpgradeMid Action = "upgrade-mid"
	ActionUpgradeTop Action = "upgrade-top"
)

// Event is one analytics signal.
type Event struct {
	Name         Name       `json:"name"`
	ActivationID string     `json:"activationId"`
	Tier         quota.Tier `json:"tier"`
	Entitlement  string     `json:"entitlement"`
	Action       Action     `json:"action,omitempty"`
	At           time.Time  `json:"at"`
}

// Sink receives events.
type Sink interface {
	Track(Event)
}

// Noop discards events.
type Noop struct{}

func (Noop) Track(Event) {}

// Multi fans an event out to several sinks in order.
type Multi []Sink

func (m Multi) Track(e Event) {
	for _, s := range m {
		if s != nil {
			s.Track(e)
		}
	}
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Track(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events named n were recorded.
func (r *Recorder) Count(n Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, e := range r.events {
		if e.Name == n {
			total++
		}
	}
	return total
}
