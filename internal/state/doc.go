// Package state holds the data the terminal client renders: the cached
// eligibility payload and the on-demand job being tracked.
//
// # Overview
//
// The Store sits between background work (eligibility refreshes, the job
// poller) and the UI, which reads a Snapshot on every tick:
//
//	Producers:                      Consumer (UI):
//	┌──────────────────────┐       ┌──────────────────┐
//	│ Refresh()            │       │                  │
//	│  -> UpdateEligibility│──────→│ store.Snapshot() │
//	│ job poller           │(mutex)│      ↓           │
//	│  -> UpdateJob        │       │  render          │
//	└──────────────────────┘       └──────────────────┘
//
// # Update Semantics
//
// A failed eligibility fetch (nil payload) keeps the previous data and counts a
// miss; two misses in a row mark the snapshot offline. A job error keeps the
// previous job view and records the error.
//
// Invalidate marks eligibility stale without dropping it. Stale data is still
// shown but Entitlement refuses to serve it, so the submit pre-flight never
// blocks on numbers from before an upgrade.
//
// # Refresh
//
// Refresh runs the Fetcher given to NewStore. Concurrent calls are coalesced
// with singleflight, so the onboarding machine, the dismiss path and the
// startup fetch never issue parallel eligibility requests.
//
// # Defensive Copying
//
// Snapshot deep-copies the eligibility map (including its pointer fields), the
// job view and the last error. Callers may mutate what they get back.
//
// The zero Store is ready to use; only Refresh needs NewStore.
package state
