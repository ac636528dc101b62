// Package token decodes bearer access tokens into typed [Claims] and decides expiry.
//
// # Fail-closed decoding
//
// [Codec.Decode] never returns an error. Malformed, empty, or unverifiable input yields
// "no claims" and a warn-level log line. [Codec.IsExpired] treats a missing or unparseable
// expiry as expired, and an expiry equal to the current instant as expired.
//
// # Verification
//
// A client normally cannot verify signatures, so by default claims are decoded without
// verification. When a verify key is configured the signature is checked as well.
//
// # What this package must NOT do
//
//   - Read or write stored credentials.
//   - Perform network I/O.
//   - Panic or propagate errors to decode callers.
package token
