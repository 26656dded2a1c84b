package onboarding

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncleJim21/pullthatupjamie/internal/analytics"
	"github.com/uncleJim21/pullthatupjamie/internal/backend"
	"github.com/uncleJim21/pullthatupjamie/internal/quota"
	"github.com/uncleJim21/pullthatupjamie/internal/session"
)

var (
	// ErrInvalidTransition is returned when an event does not apply to the
	// current state.
	ErrInvalidTransition = errors.New("invalid onboarding transition")
	// ErrInFlight is returned when a completion is already being committed.
	ErrInFlight = errors.New("onboarding transition already in flight")
)

// Prompt is the quota modal shown on top of AwaitingAuth or AwaitingCheckout
// until the user accepts or dismisses it.
type Prompt struct {
	ActivationID string
	Record       quota.Record
	Tier         quota.Tier
	Summary      string
	Plan         backend.Plan
}

// Action is the analytics choice accepting this prompt represents.
func (p Prompt) Action() analytics.Action {
	switch p.Plan {
	case backend.PlanPlus:
		return analytics.ActionUpgradeMid
	case backend.PlanPro:
		return analytics.ActionUpgradeTop
	default:
		return analytics.ActionSignup
	}
}

// Snapshot is a point-in-time copy of the machine.
type Snapshot struct {
	State      State
	Prompt     *Prompt
	HasPending bool
	InFlight   bool
	LastReplay *ReplayOutcome
}

// Config wires a Machine. Every field is optional.
type Config struct {
	Session   session.Store
	Refresher Refresher
	Replayer  Replayer
	Analytics analytics.Sink
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Machine drives quota recovery. Transitions are serialized; hooks run
// outside the lock so Cancel stays responsive while a request is in flight.
type Machine struct {
	cfg Config

	mu         sync.Mutex
	state      State
	prompt     *Prompt
	shown      bool
	acted      bool
	pending    *PendingAction
	inFlight   bool
	lastReplay *ReplayOutcome
}

// New returns an idle machine.
func New(cfg Config) *Machine {
	if cfg.Session == nil {
		cfg.Session = &session.Memory{}
	}
	if cfg.Analytics == nil {
		cfg.Analytics = analytics.Noop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Machine{cfg: cfg, state: Idle()}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of the machine's observable fields.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		State:      m.state,
		HasPending: m.pending != nil,
		InFlight:   m.inFlight,
	}
	if m.prompt != nil {
		p := *m.prompt
		snap.Prompt = &p
	}
	if m.lastReplay != nil {
		r := *m.lastReplay
		snap.LastReplay = &r
	}
	return snap
}

// Signal routes a quota-exceeded error to a recovery path. pending may be nil
// when there is nothing to replay. Signals are accepted from Idle and
// Processing; anything else is logged and ignored.
func (m *Machine) Signal(qe *quota.ExceededError, pending *PendingAction) State {
	if qe == nil {
		return m.State()
	}
	rec := qe.Record

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Kind != KindIdle && m.state.Kind != KindProcessing {
		m.cfg.Logger.Warn().Str("state", m.state.String()).Str("entitlement", rec.EntitlementType).Msg("quota signal ignored; recovery already open")
		return m.state
	}

	tier := rec.Tier
	if !tier.Known() {
		m.cfg.Logger.Warn().Str("tier", string(tier)).Msg("unknown tier in quota record; treating as anonymous")
		tier = quota.TierAnonymous
	}

	var next State
	var plan backend.Plan
	switch tier {
	case quota.TierAdmin:
		m.cfg.Logger.Error().Str("entitlement", rec.EntitlementType).Int("used", rec.Used).Int("max", rec.Max).Msg("quota exceeded for admin tier; inconsistent state")
		m.reset()
		return m.state
	case quota.TierRegistered:
		plan = backend.PlanPlus
		next = m.upgradePath(plan)
	case quota.TierSubscriber:
		plan = backend.PlanPro
		next = m.upgradePath(plan)
	default:
		next = AwaitingAuth(false, "")
	}

	m.state = next
	m.pending = pending
	m.prompt = &Prompt{
		ActivationID: uuid.NewString(),
		Record:       rec,
		Tier:         tier,
		Summary:      qe.Summary,
		Plan:         plan,
	}
	m.shown = false
	m.acted = false
	m.cfg.Logger.Info().Str("tier", string(tier)).Str("entitlement", rec.EntitlementType).Str("state", next.String()).Bool("pending", pending != nil).Msg("quota recovery started")
	return m.state
}

func (m *Machine) upgradePath(plan backend.Plan) State {
	if session.Authenticated(m.cfg.Session, m.cfg.Now()) {
		return AwaitingCheckout(plan)
	}
	return AwaitingAuth(true, plan)
}

// AuthRequired opens the sign-in modal after a 401. The pending action is
// replayed once sign-in completes.
func (m *Machine) AuthRequired(pending *PendingAction) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Kind != KindIdle && m.state.Kind != KindProcessing {
		m.cfg.Logger.Warn().Str("state", m.state.String()).Msg("auth required ignored; recovery already open")
		return m.state
	}
	m.state = AwaitingAuth(false, "")
	m.pending = pending
	m.prompt = nil
	m.cfg.Logger.Info().Bool("pending", pending != nil).Msg("sign-in required")
	return m.state
}

// PromptShown records that the quota modal is visible. Only the first call per
// activation emits an event.
func (m *Machine) PromptShown() {
	m.mu.Lock()
	if m.prompt == nil || m.shown {
		m.mu.Unlock()
		return
	}
	m.shown = true
	ev := m.event(analytics.ModalShown, "")
	m.mu.Unlock()

	m.cfg.Analytics.Track(ev)
}

// AcceptPrompt records the user's choice to follow the call to action and
// hides the quota modal. The underlying auth or checkout step stays open.
func (m *Machine) AcceptPrompt() State {
	m.mu.Lock()
	if m.prompt == nil || m.acted {
		defer m.mu.Unlock()
		return m.state
	}
	m.acted = true
	ev := m.event(analytics.ModalAction, m.prompt.Action())
	m.prompt = nil
	state := m.state
	m.mu.Unlock()

	m.cfg.Analytics.Track(ev)
	return state
}

// DismissPrompt is the user closing the quota modal without acting on it.
func (m *Machine) DismissPrompt() State {
	return m.Cancel()
}

// Cancel abandons an open recovery and drops the pending action. It is
// ignored while a completion is being committed and in states without an
// open modal.
func (m *Machine) Cancel() State {
	m.mu.Lock()
	if !m.state.Recovering() {
		defer m.mu.Unlock()
		return m.state
	}
	if m.inFlight {
		defer m.mu.Unlock()
		m.cfg.Logger.Debug().Str("state", m.state.String()).Msg("cancel ignored; completion in flight")
		return m.state
	}

	var ev *analytics.Event
	if m.prompt != nil && !m.acted {
		m.acted = true
		e := m.event(analytics.ModalAction, analytics.ActionDismissed)
		ev = &e
	}
	from := m.state
	m.reset()
	state := m.state
	m.mu.Unlock()

	if ev != nil {
		m.cfg.Analytics.Track(*ev)
	}
	m.cfg.Logger.Info().Str("from", from.String()).Msg("quota recovery cancelled")
	return state
}

// CompleteAuth is the sign-in/sign-up success callback. Without upgrade
// intent it moves to Done and replays the pending action; with upgrade intent
// it moves on to checkout for the plan captured when the signal arrived.
func (m *Machine) CompleteAuth(ctx context.Context) (State, error) {
	m.mu.Lock()
	if m.state.Kind != KindAwaitingAuth {
		defer m.mu.Unlock()
		return m.state, ErrInvalidTransition
	}
	if m.inFlight {
		defer m.mu.Unlock()
		return m.state, ErrInFlight
	}

	if m.state.UpgradeIntent {
		m.state = AwaitingCheckout(m.state.TargetPlan)
		m.prompt = nil
		state := m.state
		m.mu.Unlock()
		m.cfg.Logger.Info().Str("plan", string(state.TargetPlan)).Msg("signed in; continuing to checkout")
		return state, nil
	}

	m.inFlight = true
	m.mu.Unlock()

	return m.finish(ctx, Done(false))
}

// CompleteCheckout is the payment success callback.
func (m *Machine) CompleteCheckout(ctx context.Context, paid backend.Plan) (State, error) {
	m.mu.Lock()
	if m.state.Kind != KindAwaitingCheckout {
		defer m.mu.Unlock()
		return m.state, ErrInvalidTransition
	}
	if m.inFlight {
		defer m.mu.Unlock()
		return m.state, ErrInFlight
	}
	if paid != "" && paid != m.state.TargetPlan {
		m.cfg.Logger.Warn().Str("target", string(m.state.TargetPlan)).Str("paid", string(paid)).Msg("checkout completed for a different plan")
	}
	m.inFlight = true
	m.mu.Unlock()

	return m.finish(ctx, Done(true))
}

// finish refreshes entitlements, commits done, clears the in-flight flag and
// only then replays the pending action.
func (m *Machine) finish(ctx context.Context, done State) (State, error) {
	if m.cfg.Refresher != nil {
		m.cfg.Refresher.Refresh(ctx)
	}

	m.mu.Lock()
	m.state = done
	m.prompt = nil
	m.inFlight = false
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	m.cfg.Logger.Info().Str("state", done.String()).Bool("replay", pending != nil).Msg("quota recovery complete")

	if pending != nil && m.cfg.Replayer != nil {
		err := m.cfg.Replayer.Replay(ctx, pending)
		if err != nil {
			m.cfg.Logger.Warn().Err(err).Str("action", pending.ID).Msg("replay failed")
		}
		outcome := &ReplayOutcome{ActionID: pending.ID, Err: err, At: m.cfg.Now()}
		m.mu.Lock()
		m.lastReplay = outcome
		m.mu.Unlock()
	}
	return done, nil
}

// Dismiss closes the confirmation. From Done it returns to Idle and refreshes
// entitlements; from a recovery state it behaves like Cancel; elsewhere it is
// a no-op.
func (m *Machine) Dismiss(ctx context.Context) State {
	m.mu.Lock()
	switch {
	case m.state.Kind == KindDone:
		m.reset()
		m.lastReplay = nil
		state := m.state
		m.mu.Unlock()
		if m.cfg.Refresher != nil {
			m.cfg.Refresher.Refresh(ctx)
		}
		return state
	case m.state.Recovering():
		m.mu.Unlock()
		return m.Cancel()
	default:
		defer m.mu.Unlock()
		return m.state
	}
}

// StartJob marks a unit of work as in flight.
func (m *Machine) StartJob(jobID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind == KindIdle {
		m.state = Processing(jobID)
	}
	return m.state
}

// FinishJob returns to Idle when jobID is the job being tracked.
func (m *Machine) FinishJob(jobID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind == KindProcessing && m.state.JobID == jobID {
		m.state = Idle()
	}
	return m.state
}

// reset returns to Idle. Callers hold the lock.
func (m *Machine) reset() {
	m.state = Idle()
	m.prompt = nil
	m.pending = nil
	m.shown = false
	m.acted = false
}

// event builds an analytics event for the current prompt. Callers hold the
// lock and have checked that a prompt exists.
func (m *Machine) event(name analytics.Name, action analytics.Action) analytics.Event {
	return analytics.Event{
		Name:         name,
		ActivationID: m.prompt.ActivationID,
		Tier:         m.prompt.Tier,
		Entitlement:  m.prompt.Record.EntitlementType,
		Action:       action,
		At:           m.cfg.Now(),
	}
}
