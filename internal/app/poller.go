package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/uncleJim21/pullthatupjamie/internal/backend"
	"github.com/uncleJim21/pullthatupjamie/internal/quota"
	"github.com/uncleJim21/pullthatupjamie/internal/state"
)

const (
	defaultPollInterval = 15 * time.Second
	defaultMaxAttempts  = 100
)

// JobFetcher is the part of the backend client the poller needs.
type JobFetcher interface {
	PollJobStatus(ctx context.Context, jobID string) (*backend.JobStatus, error)
}

// PollOptions bound a job poll loop.
type PollOptions struct {
	Interval    time.Duration // zero uses 15s
	MaxAttempts int           // zero uses 100
	Logger      zerolog.Logger
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = defaultPollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	return o
}

// PollJob polls jobID at a fixed interval until the job is terminal, the
// attempt budget is spent or ctx is cancelled. Running out of attempts yields
// a terminal failed view with TimedOut set. onUpdate runs on the calling
// goroutine after every attempt and never after ctx is done.
//
// Transport and server errors count as attempts and polling continues. Auth
// and quota failures stop the loop and are returned.
func PollJob(ctx context.Context, fetcher JobFetcher, jobID string, opts PollOptions, onUpdate func(state.JobView, error)) (state.JobView, error) {
	opts = opts.withDefaults()
	view := state.JobView{JobID: jobID, Status: backend.JobPending}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		status, err := fetcher.PollJobStatus(ctx, jobID)
		if ctx.Err() != nil {
			return view, ctx.Err()
		}
		view.Attempts = attempt
		view.LastPolled = time.Now()

		switch {
		case err != nil && (errors.Is(err, backend.ErrUnauthorized) || errors.Is(err, quota.ErrExceeded)):
			return view, err
		case err != nil:
			opts.Logger.Warn().Err(err).Str("job", jobID).Int("attempt", attempt).Msg("job status poll failed")
			if onUpdate != nil {
				onUpdate(view, err)
			}
		default:
			view.Status = status.Status
			view.Stats = status.Stats
			view.Terminal = status.Status.Terminal()
			if onUpdate != nil {
				onUpdate(view, nil)
			}
			if view.Terminal {
				return view, nil
			}
		}

		if attempt == opts.MaxAttempts {
			break
		}
		timer := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return view, ctx.Err()
		case <-timer.C:
		}
	}

	view.Status = backend.JobFailed
	view.TimedOut = true
	view.Terminal = true
	opts.Logger.Warn().Str("job", jobID).Int("attempts", view.Attempts).Msg("job polling gave up")
	if onUpdate != nil && ctx.Err() == nil {
		onUpdate(view, nil)
	}
	return view, nil
}

// JobPoller is a running background poll. Stop cancels it and waits for the
// goroutine to exit, so no store update happens after Stop returns.
type JobPoller struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop is safe to call more than once.
func (p *JobPoller) Stop() {
	if p == nil {
		return
	}
	p.once.Do(p.cancel)
	<-p.done
}

// Done is closed when the poll loop has exited.
func (p *JobPoller) Done() <-chan struct{} { return p.done }

// StartJobPoller launches PollJob in a goroutine that writes every update into
// store. finished, when non-nil, runs once with the final view unless the
// poller was stopped first. It returns immediately.
func StartJobPoller(ctx context.Context, store *state.Store, fetcher JobFetcher, jobID string, opts PollOptions, finished func(state.JobView, error)) *JobPoller {
	pollCtx, cancel := context.WithCancel(ctx)
	p := &JobPoller{cancel: cancel, done: make(chan struct{})}

	store.UpdateJob(state.JobView{JobID: jobID, Status: backend.JobPending}, nil)

	go func() {
		defer close(p.done)
		defer cancel()

		view, err := PollJob(pollCtx, fetcher, jobID, opts, func(v state.JobView, err error) {
			store.UpdateJob(v, err)
		})
		if pollCtx.Err() != nil {
			return
		}
		if err != nil {
			store.UpdateJob(view, err)
		}
		if finished != nil {
			finished(view, err)
		}
	}()
	return p
}
