// Package backend provides an HTTP client for the Pull That Up Jamie REST API.
//
// # Overview
//
// The client wraps the on-demand operations (eligibility, submit, job status),
// the account operations (sign in, sign up) and the hosted checkout handshake.
// Every request carries a User-Agent and an X-Request-ID, and carries
// "Authorization: Bearer <token>" only when the injected session store holds a
// token.
//
// # Response Handling
//
// Each response goes through the same steps, in order:
//
//  1. transport failure: *RequestError with Status 0
//  2. HTTP 429: *quota.ExceededError from quota.CheckResponse
//  3. HTTP 401: the session is cleared, then *AuthError is returned
//  4. any other non-2xx: *RequestError with the server's message, or
//     "request failed with status N"
//  5. a 2xx body that does not decode: *RequestError with a generic message
//
// CheckEligibility is the exception: it feeds passive UI hints, so it returns
// nil on any failure instead of an error.
//
// # Replay
//
// Callers that may need to resubmit a request after recovery encode it once
// with EncodeSubmit and send the bytes with SubmitBody. Replaying the same
// slice produces a byte-identical request.
//
//	body, err := backend.EncodeSubmit(req)
//	if err != nil {
//		return err
//	}
//	res, err := client.SubmitBody(ctx, body)
//	if qe, ok := quota.AsExceeded(err); ok {
//		machine.Signal(qe, onboarding.NewPending(quota.EntitlementOnDemandRun, body))
//	}
//
// The client performs no automatic retries.
package backend
