// Package quota models entitlement usage records and the typed quota-exceeded
// signal.
//
// # Overview
//
// The backend answers 429 Too Many Requests when a caller exhausts an
// entitlement. CheckResponse turns that response into an *ExceededError whose
// Record holds the tier, usage, limit and reset information. Parsing never
// fails: an empty or malformed body produces a record built from defaults
// (anonymous tier, zero usage) plus the entitlement hint supplied by the caller.
//
// # Error Channel
//
// ExceededError is the only error type that carries a Record. Ordinary HTTP
// failures are reported by the backend package with their own types, so callers
// can route on type alone:
//
//	if qe, ok := quota.AsExceeded(err); ok {
//		machine.QuotaExceeded(qe, pending)
//	}
//
// Nothing in this package logs, retries or keeps state.
package quota
