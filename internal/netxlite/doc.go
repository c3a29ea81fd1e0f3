// Package netxlite contains the plaintext dialer, the TLS engines, and the
// error wrapping and classification used by the secure connection.
//
// Every error leaving this package is an [*ErrWrapper] carrying an OONI-like
// failure string and the operation that produced it.
package netxlite
