// Package app is the composition root for the jamie terminal client.
//
// # Overview
//
// Run wires configuration, logging, the persisted session, the backend
// client, analytics sinks and the eligibility store, then hands a Service to
// the UI and blocks until the user quits.
//
// # Components
//
//   - app.go: Run and analytics sink assembly
//   - service.go: Service, the only thing the UI talks to
//   - poller.go: PollJob and the background JobPoller
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()        Read ~/.config/jamie/config.toml
//	       ├─────> session.OpenFile()   Persisted token and tier
//	       ├─────> backend.NewClient()  HTTP client for the API
//	       ├─────> buildSinks()         Prometheus and Kafka analytics
//	       ├─────> NewService()         Store + onboarding machine
//	       └─────> ui.Run()             Start TUI (blocks)
//
//	Submit:
//	┌─────────────────────────────────────────────┐
//	│ Service.Submit()                            │
//	│  ├─> cached entitlement exhausted?          │
//	│  │     └─> machine.Signal() (no request)    │
//	│  ├─> SubmitBody()                           │
//	│  │     ├─> 429  ─> machine.Signal()         │
//	│  │     └─> 401  ─> machine.AuthRequired()   │
//	│  └─> StartJobPoller()                       │
//	│        └─> store.UpdateJob() per attempt    │
//	└─────────────────────────────────────────────┘
//
// # Replay
//
// The encoded submit body is captured once, before the first request, and
// parked on the onboarding machine. When sign-in or checkout completes the
// machine commits Done and then calls Service.replay, which sends the same
// bytes again and starts polling the new job.
//
// # Job Polling
//
// PollJob polls immediately and then once per interval (default 15s) for at
// most MaxAttempts (default 100) attempts. Failed polls count as attempts.
// Exhausting the budget produces a terminal failed view marked TimedOut.
// Auth and quota failures end the loop early and are routed back to the
// machine. Cancelling the context stops the loop without a final update.
//
// # Thread Safety
//
// Service methods may be called from the UI goroutine and from pollers.
// Store and Machine serialize their own state; Service only guards the
// current JobPoller.
package app
