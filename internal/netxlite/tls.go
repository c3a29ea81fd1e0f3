package netxlite

//
// TLS engines
//

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/ooni/sslsocket/internal/model"
)

// TLSVersionString returns a TLS version string. If value is zero, we
// return the empty string. If the value is unknown, we return
// `TLS_VERSION_UNKNOWN_ddd` where `ddd` is the numeric value passed
// to this function.
func TLSVersionString(value uint16) string {
	switch value {
	case 0:
		return ""
	case tls.VersionTLS10:
		return "TLSv1"
	case tls.VersionTLS11, tls.VersionTLS12, tls.VersionTLS13:
		return "TLSv" + tls.VersionName(value)[len("TLS "):]
	default:
		return fmt.Sprintf("TLS_VERSION_UNKNOWN_%d", value)
	}
}

// TLSCipherSuiteString returns the TLS cipher suite as a string. If value
// is zero, we return the empty string. If we don't know the mapping from
// the value to a cipher suite name, we return `TLS_CIPHER_SUITE_UNKNOWN_ddd`
// where `ddd` is the numeric value passed to this function.
func TLSCipherSuiteString(value uint16) string {
	if value == 0 {
		return ""
	}
	name := tls.CipherSuiteName(value)
	if name == fmt.Sprintf("0x%04X", value) {
		return fmt.Sprintf("TLS_CIPHER_SUITE_UNKNOWN_%d", value)
	}
	return name
}

// TLSEngineStdlib is the TLS engine using crypto/tls.
//
// A crypto/tls handshake that fails because of a deadline leaves the
// connection in a permanently broken state, hence the engine does not
// support non-blocking operation.
type TLSEngineStdlib struct{}

var _ model.TLSEngine = &TLSEngineStdlib{}

// Name implements model.TLSEngine.
func (*TLSEngineStdlib) Name() string {
	return "stdlib"
}

// SupportsNonblock implements model.TLSEngine.
func (*TLSEngineStdlib) SupportsNonblock() bool {
	return false
}

// SupportsSNI implements model.TLSEngine.
func (*TLSEngineStdlib) SupportsSNI() bool {
	return true
}

// NewConn implements model.TLSEngine.
func (*TLSEngineStdlib) NewConn(conn net.Conn, config *tls.Config) (model.TLSConn, error) {
	return tls.Client(conn, config), nil
}

// ErrUnknownTLSEngine indicates that we don't know the requested TLS engine.
var ErrUnknownTLSEngine = errors.New("netxlite: unknown TLS engine")

// NewTLSEngine returns the TLS engine with the given name. The empty
// string selects the default engine, which uses crypto/tls.
func NewTLSEngine(name string) (model.TLSEngine, error) {
	switch name {
	case "", "stdlib":
		return &TLSEngineStdlib{}, nil
	case "utls":
		return NewTLSEngineUTLS(nil), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTLSEngine, name)
	}
}
