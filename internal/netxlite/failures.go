package netxlite

// Operations.
const (
	// ConfigOperation is the operation where we load trust anchors,
	// client certificates and private keys.
	ConfigOperation = "config"

	// ConnectOperation is the operation where we connect to the
	// target endpoint or to the proxy.
	ConnectOperation = "connect"

	// ProxyTunnelOperation is the operation where we send CONNECT
	// to the proxy and read its response.
	ProxyTunnelOperation = "proxy_tunnel"

	// TLSHandshakeOperation is the TLS handshake.
	TLSHandshakeOperation = "tls_handshake"

	// HostnameCheckOperation is the post-connection check of the
	// leaf certificate against the target host.
	HostnameCheckOperation = "hostname_check"

	// ReadOperation is when we read from a socket.
	ReadOperation = "read"

	// WriteOperation is when we write to a socket.
	WriteOperation = "write"

	// CloseOperation is when we close a socket.
	CloseOperation = "close"
)

// Failure strings. The network failures are loosely backward
// compatible with the failures used by OONI and Measurement Kit.
const (
	FailureConfigError             = "config_error"
	FailureConnectionAborted       = "connection_aborted"
	FailureConnectionAlreadyClosed = "connection_already_closed"
	FailureConnectionRefused       = "connection_refused"
	FailureConnectionReset         = "connection_reset"
	FailureDNSNXDOMAINError        = "dns_nxdomain_error"
	FailureEOFError                = "eof_error"
	FailureGenericTimeoutError     = "generic_timeout_error"
	FailureHostUnreachable         = "host_unreachable"
	FailureInterrupted             = "interrupted"
	FailureNetworkUnreachable      = "network_unreachable"
	FailureProxyMalformedResponse  = "proxy_malformed_response"
	FailureProxyTunnelFailed       = "proxy_tunnel_failed"
	FailureSSLFailedHandshake      = "ssl_failed_handshake"
	FailureSSLInvalidCertificate   = "ssl_invalid_certificate"
	FailureSSLInvalidHostname      = "ssl_invalid_hostname"
	FailureSSLUnknownAuthority     = "ssl_unknown_authority"
	FailureTimedOut                = "timed_out"
)
