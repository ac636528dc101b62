// Package session owns the current access/refresh credentials of the process and keeps them
// written through to durable storage.
//
// # Durability
//
// [Store] is the in-memory cache of a [Persistence] backend. It hydrates from the backend
// when created, and every mutation writes the backend before the cache changes, so the two
// never disagree after a successful call. Backends: [MemoryPersistence], [FilePersistence]
// (a local JSON document, the counterpart of browser local storage), and
// [RedisPersistence].
//
// # Architecture boundaries
//
// This package stores opaque strings. It does NOT decode tokens, judge expiry, or talk to
// the auth endpoints; those belong to token and refresh.
//
// # What this package must NOT do
//
//   - Import authclient, token, refresh, or gatekeeper (no upward imports).
//   - Log token values.
//   - Expose a way to change credentials other than SetCredentials and Clear.
package session
