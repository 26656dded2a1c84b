package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/uncleJim21/pullthatupjamie/internal/analytics"
	"github.com/uncleJim21/pullthatupjamie/internal/backend"
	"github.com/uncleJim21/pullthatupjamie/internal/onboarding"
	"github.com/uncleJim21/pullthatupjamie/internal/quota"
	"github.com/uncleJim21/pullthatupjamie/internal/session"
	"github.com/uncleJim21/pullthatupjamie/internal/state"
	"github.com/uncleJim21/pullthatupjamie/internal/ui"
)

// ErrNoCheckout is returned when there is no plan to check out.
var ErrNoCheckout = errors.New("no checkout in progress")

// maxBlockingAge bounds how long a cached "not eligible" answer may refuse a
// submit without asking the backend again.
const maxBlockingAge = 10 * time.Minute

// API is everything the service needs from the backend client.
type API interface {
	backend.Entitlements
	SignIn(ctx context.Context, email, password string) (*backend.AuthResult, error)
	SignUp(ctx context.Context, email, password string) (*backend.AuthResult, error)
	CreateCheckout(ctx context.Context, plan backend.Plan) (*backend.CheckoutSession, error)
	CheckoutStatus(ctx context.Context, sessionID string) (*backend.CheckoutSession, error)
}

var _ API = (*backend.Client)(nil)

var _ ui.Service = (*Service)(nil)

// ServiceOptions wire a Service.
type ServiceOptions struct {
	API       API
	Store     *state.Store
	Session   session.Store
	Analytics analytics.Sink
	Poll      PollOptions
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Service connects user intents to the backend, the entitlement cache and the
// onboarding machine. The UI talks only to the Service.
type Service struct {
	api     API
	store   *state.Store
	machine *onboarding.Machine
	poll    PollOptions
	logger  zerolog.Logger
	now     func() time.Time

	// ctx bounds background pollers started by replays.
	ctx context.Context

	// mu guards the tracked poller. It is held across a swap so two tracks
	// cannot both start pollers.
	mu     sync.Mutex
	poller *JobPoller
	jobID  string
	closed bool
}

// NewService builds the service and its onboarding machine. ctx bounds the
// lifetime of background job pollers.
func NewService(ctx context.Context, opts ServiceOptions) *Service {
	store := opts.Store
	if store == nil {
		store = state.NewStore(opts.API.CheckEligibility)
	}
	s := &Service{
		api:    opts.API,
		store:  store,
		poll:   opts.Poll,
		logger: opts.Logger,
		now:    opts.Now,
		ctx:    ctx,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.poll.Logger = opts.Logger
	s.machine = onboarding.New(onboarding.Config{
		Session:   opts.Session,
		Refresher: store,
		Replayer:  onboarding.ReplayFunc(s.replay),
		Analytics: opts.Analytics,
		Logger:    opts.Logger,
		Now:       opts.Now,
	})
	return s
}

// Machine exposes the onboarding machine for rendering.
func (s *Service) Machine() *onboarding.Machine { return s.machine }

// Store exposes the snapshot store for rendering.
func (s *Service) Store() *state.Store { return s.store }

// Refresh reloads eligibility.
func (s *Service) Refresh(ctx context.Context) { s.store.Refresh(ctx) }

// Submit sends an on-demand run. When cached eligibility already says the
// entitlement is used up, the quota signal is raised locally without a
// request. A cached answer whose reset has passed is refreshed first, and
// sent to the backend when the refresh cannot confirm it. Quota and auth
// failures are routed to the onboarding machine and still returned so the
// caller can stop its spinner.
func (s *Service) Submit(ctx context.Context, req backend.SubmitRequest) (*backend.SubmitResult, error) {
	body, err := backend.EncodeSubmit(req)
	if err != nil {
		return nil, err
	}

	rec, verdict := s.cachedBlock()
	if verdict == blockOutdated {
		s.logger.Debug().Str("entitlement", quota.EntitlementOnDemandRun).Msg("cached exhaustion outdated; refreshing")
		s.store.Refresh(ctx)
		rec, verdict = s.cachedBlock()
	}
	if verdict == blockCurrent {
		qe := quota.Exceeded(rec, "")
		s.logger.Info().Str("entitlement", rec.EntitlementType).Int("used", rec.Used).Int("max", rec.Max).Msg("submit blocked by cached eligibility")
		s.machine.Signal(qe, onboarding.NewPending(quota.EntitlementOnDemandRun, body))
		return nil, qe
	}

	res, err := s.api.SubmitBody(ctx, body)
	if err != nil {
		s.route(err, body)
		return nil, err
	}
	s.store.Invalidate()
	s.track(res.JobID)
	return res, nil
}

type blockVerdict int

const (
	blockNone blockVerdict = iota
	blockCurrent
	blockOutdated
)

// cachedBlock reports whether cached eligibility refuses an on-demand run.
// A refusal is outdated once its reset time has passed, once the day count it
// carried has run out, or once the payload is older than maxBlockingAge.
func (s *Service) cachedBlock() (quota.Record, blockVerdict) {
	status, rec, at, ok := s.store.EntitlementAt(quota.EntitlementOnDemandRun)
	if !ok || status.Eligible {
		return rec, blockNone
	}
	now := s.now()
	if resetAt, ok := rec.ResetAt(); ok && !now.Before(resetAt) {
		return rec, blockOutdated
	}
	if rec.DaysUntilReset != nil && !now.Before(at.AddDate(0, 0, *rec.DaysUntilReset+1)) {
		return rec, blockOutdated
	}
	if now.Sub(at) > maxBlockingAge {
		return rec, blockOutdated
	}
	return rec, blockCurrent
}

// route hands quota and auth failures to the machine. Other errors are left
// for the caller to show.
func (s *Service) route(err error, body []byte) {
	if qe, ok := quota.AsExceeded(err); ok {
		s.machine.Signal(qe, onboarding.NewPending(qe.Record.EntitlementType, body))
		return
	}
	if errors.Is(err, backend.ErrUnauthorized) {
		s.machine.AuthRequired(onboarding.NewPending(quota.EntitlementOnDemandRun, body))
	}
}

// replay is the machine's Replayer. It runs after Done is committed.
func (s *Service) replay(ctx context.Context, p *onboarding.PendingAction) error {
	res, err := s.api.SubmitBody(ctx, p.Body)
	if err != nil {
		return fmt.Errorf("replay %s: %w", p.ID, err)
	}
	s.logger.Info().Str("action", p.ID).Str("job", res.JobID).Msg("pending action replayed")
	s.store.Invalidate()
	s.track(res.JobID)
	return nil
}

// track replaces the tracked job. The machine only enters Processing from
// Idle, so a replayed job is polled while the confirmation stays up. Nothing
// is tracked after Close.
func (s *Service) track(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopPollerLocked()
	s.machine.StartJob(jobID)

	s.poller = StartJobPoller(s.ctx, s.store, s.api, jobID, s.poll, func(view state.JobView, err error) {
		s.machine.FinishJob(jobID)
		s.store.Refresh(s.ctx)
		if err == nil {
			s.logger.Info().Str("job", jobID).Str("status", string(view.Status)).Bool("timed_out", view.TimedOut).Msg("job finished")
			return
		}
		if qe, ok := quota.AsExceeded(err); ok {
			s.machine.Signal(qe, nil)
		} else if errors.Is(err, backend.ErrUnauthorized) {
			s.machine.AuthRequired(nil)
		}
	})
	s.jobID = jobID
}

// stopPollerLocked stops the tracked poller and waits for it. The poller's
// finished callback must never take s.mu.
func (s *Service) stopPollerLocked() {
	p, jobID := s.poller, s.jobID
	s.poller, s.jobID = nil, ""

	p.Stop()
	if jobID != "" {
		s.machine.FinishJob(jobID)
	}
}

// SignIn authenticates (or registers, when signUp is set) and completes the
// auth step of an open recovery.
func (s *Service) SignIn(ctx context.Context, email, password string, signUp bool) (onboarding.State, error) {
	var err error
	if signUp {
		_, err = s.api.SignUp(ctx, email, password)
	} else {
		_, err = s.api.SignIn(ctx, email, password)
	}
	if err != nil {
		return s.machine.State(), err
	}
	s.store.Invalidate()
	if s.machine.State().Kind != onboarding.KindAwaitingAuth {
		s.store.Refresh(ctx)
		return s.machine.State(), nil
	}
	return s.machine.CompleteAuth(ctx)
}

// StartCheckout opens a hosted checkout for the plan the machine is waiting on.
func (s *Service) StartCheckout(ctx context.Context) (*backend.CheckoutSession, error) {
	st := s.machine.State()
	if st.Kind != onboarding.KindAwaitingCheckout || st.TargetPlan == "" {
		return nil, ErrNoCheckout
	}
	return s.api.CreateCheckout(ctx, st.TargetPlan)
}

// ConfirmCheckout checks the hosted session and, once paid, completes the
// checkout step.
func (s *Service) ConfirmCheckout(ctx context.Context, sessionID string) (onboarding.State, error) {
	cs, err := s.api.CheckoutStatus(ctx, sessionID)
	if err != nil {
		return s.machine.State(), err
	}
	switch cs.Status {
	case backend.CheckoutPaid:
		s.store.Invalidate()
		return s.machine.CompleteCheckout(ctx, cs.Plan)
	case backend.CheckoutExpired:
		return s.machine.State(), backend.ErrCheckoutExpired
	default:
		return s.machine.State(), backend.ErrCheckoutPending
	}
}

// Dismiss closes whatever the machine is showing.
func (s *Service) Dismiss(ctx context.Context) onboarding.State {
	return s.machine.Dismiss(ctx)
}

// Close stops the background job poller. Later submits are still sent but
// their jobs are not polled.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopPollerLocked()
}
