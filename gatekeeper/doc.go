// Package gatekeeper is the [net/http.RoundTripper] every outgoing back-office API call goes
// through.
//
// For each call it decides, in order: is the endpoint exempt (login, register, token,
// refresh), is there a session, is the access token still valid. An expired token is renewed
// through the refresh coordinator before the Authorization header is attached, so no call
// leaves with a token that was known to be expired. Calls without a session are rejected
// before reaching the network.
//
// The package never writes the session store; renewal is delegated.
package gatekeeper
