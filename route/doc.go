// Package route decides whether the current session may enter a view.
//
// Decisions are pure functions of the path and the session role: nothing here reads token
// storage or mutates session state. Applying a redirect is the caller's job, through a
// [Navigator].
package route
