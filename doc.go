// Package authclient is the session and request authorization layer of the insurance
// back-office client.
//
// A [Manager], built once per process through [Builder.Build], owns the current session and
// hands out an [net/http.Client] whose transport attaches the bearer token to every call,
// renews an expired token with a single refresh call shared by all concurrent callers, and
// rejects calls made without a session. The same Manager answers route questions for the
// views: may the current role enter this path, and where to redirect if not.
//
// # Architecture boundaries
//
// authclient is the public surface and the wiring point. Token decoding lives in token,
// storage in session, renewal in refresh, the transport in gatekeeper, and route rules in
// route. Sub-packages never import authclient.
//
// # What this package must NOT do
//
//   - Log token values or passwords.
//   - Panic or exit on auth failures; the worst outcome is forced re-authentication.
//   - Import metrics/export/* (exporters import authclient, not the reverse).
package authclient
