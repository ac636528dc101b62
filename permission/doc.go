// Package permission provides the role tags of the back office, a registry that maps each role
// to a bit, and the [RoleSet] bitmask used by route authorization.
//
// # Bit layout
//
// Masks are 64 bits wide. Bit positions are assigned by [Registry.Register] in registration
// order and are stable for the lifetime of the process. [DefaultRegistry] registers the
// known back-office roles in a fixed order.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access storage or the network.
//   - Import authclient, token, session, or route.
//   - Grow beyond 64 role bits.
package permission
