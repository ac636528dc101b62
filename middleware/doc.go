// Package middleware applies route decisions to net/http views for server-rendered or
// backend-for-frontend hosts.
//
// # Guards
//
//   - [Guard]: evaluates the request path against a route table.
//   - [RequireRole]: admits only sessions holding one of the listed roles.
//   - [PublicOnly]: sends authenticated sessions away from login-style views.
//
// A disallowed request is answered with 302 Found to the decision's redirect. The wrapped
// handler never runs.
//
// This package does not decode tokens or touch session storage. Every decision is
// delegated to the source it is given, usually an *authclient.Manager.
package middleware
