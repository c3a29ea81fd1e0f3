// Package sslsocket establishes TLS connections for HTTP clients,
// optionally traversing a forward proxy through an HTTP CONNECT tunnel.
//
// A [*Conn] composes three steps into one failure-atomic Connect: the
// plaintext connect (see [model.Dialer]), the optional CONNECT tunnel
// (see [EstablishTunnel]) and the TLS handshake governed by a
// [*TrustPolicy] (see [BuildTrustPolicy]). The TLS protocol itself is
// delegated to a [model.TLSEngine].
//
// Every failure is a [*ConnectionError] whose Kind can be checked with
// errors.Is against [ErrConfig], [ErrProxyTunnel], [ErrHandshake],
// [ErrCertificateVerification] and [ErrTransport].
package sslsocket
