// Package refresh renews an expired access token with exactly one network call no matter how
// many callers notice the expiry at once.
//
// # Single flight
//
// The first caller to see an expired token becomes the leader and starts the renewal; every
// caller, leader included, is queued as a waiter and receives the same [Result] when the
// renewal settles. Waiters are settled in enqueue order and the in-flight flag is cleared in
// the same critical section, so a new renewal can never start while an old batch is still
// being answered.
//
// # Failure
//
// A failed renewal (transport error, non-success status, timeout, missing refresh token, or
// an unusable renewed token) clears the session, emits one session-expired notification,
// navigates to the login route, and rejects the whole batch with [ErrRefreshFailed].
//
// # What this package must NOT do
//
//   - Retry a failed renewal.
//   - Attach headers or dispatch the caller's request (gatekeeper does that).
//   - Write durable storage except through the session store.
package refresh
