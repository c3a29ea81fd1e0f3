package sslsocket

//
// Trust policy
//

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/certifi/gocertifi"
	"github.com/ooni/sslsocket/internal/model"
)

// TrustMode tells whether we verify the peer.
type TrustMode int

const (
	// TrustModeNone disables chain and hostname verification.
	TrustModeNone = TrustMode(iota)

	// TrustModePeer verifies the chain and the hostname.
	TrustModePeer
)

// String implements fmt.Stringer.
func (m TrustMode) String() string {
	switch m {
	case TrustModeNone:
		return "none"
	case TrustModePeer:
		return "peer"
	default:
		return "unknown"
	}
}

// AnchorSource is where the trust anchors come from.
type AnchorSource int

const (
	// AnchorNone means we do not use trust anchors (TrustModeNone).
	AnchorNone = AnchorSource(iota)

	// AnchorCAPath means Config.CAPath.
	AnchorCAPath

	// AnchorCAFile means Config.CAFile.
	AnchorCAFile

	// AnchorPlatformDefault means the platform trust store.
	AnchorPlatformDefault

	// AnchorBundledFallback means the bundled Mozilla CA store.
	AnchorBundledFallback
)

// String implements fmt.Stringer.
func (s AnchorSource) String() string {
	switch s {
	case AnchorNone:
		return "none"
	case AnchorCAPath:
		return "ca_path"
	case AnchorCAFile:
		return "ca_file"
	case AnchorPlatformDefault:
		return "platform_default"
	case AnchorBundledFallback:
		return "bundled_fallback"
	default:
		return "unknown"
	}
}

// TrustPolicy is the certificate verification policy of a connection. It
// is the only place deciding whether we verify the peer. Do not modify
// a TrustPolicy after [BuildTrustPolicy] returns it.
type TrustPolicy struct {
	// Mode is the trust mode.
	Mode TrustMode

	// AnchorSource is the source of Roots.
	AnchorSource AnchorSource

	// Roots contains the trust anchors. It is nil with TrustModeNone.
	Roots *x509.CertPool

	// ClientIdentity is the OPTIONAL client certificate.
	ClientIdentity *tls.Certificate
}

// PlatformTrust is the platform trust store.
type PlatformTrust interface {
	// Present returns whether the platform has a trust configuration.
	Present() bool

	// Roots loads the platform trust anchors.
	Roots() (*x509.CertPool, error)
}

// SystemTrust is the default [PlatformTrust]. It is present when the
// SSL_CERT_FILE or SSL_CERT_DIR environment variables are set or
// when a well known CA bundle exists.
type SystemTrust struct{}

var _ PlatformTrust = SystemTrust{}

// systemBundles lists well known CA bundle locations.
var systemBundles = []string{
	"/etc/ssl/certs/ca-certificates.crt",                // Debian/Ubuntu/Gentoo etc.
	"/etc/pki/tls/certs/ca-bundle.crt",                  // Fedora/RHEL 6
	"/etc/ssl/ca-bundle.pem",                            // OpenSUSE
	"/etc/pki/tls/cacert.pem",                           // OpenELEC
	"/etc/pki/ca-trust/extracted/pem/tls-ca-bundle.pem", // CentOS/RHEL 7
	"/etc/ssl/cert.pem",                                 // Alpine Linux, macOS, BSDs
}

// Present implements PlatformTrust.
func (SystemTrust) Present() bool {
	if os.Getenv("SSL_CERT_FILE") != "" || os.Getenv("SSL_CERT_DIR") != "" {
		return true
	}
	for _, path := range systemBundles {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}

// Roots implements PlatformTrust.
func (SystemTrust) Roots() (*x509.CertPool, error) {
	return x509.SystemCertPool()
}

var (
	errNoCertificates        = errors.New("no certificates found")
	errPartialClientIdentity = errors.New("client certificate and key must be set together")
)

// BuildTrustPolicy derives the [*TrustPolicy] of config.
//
// When config.VerifyPeer is set, we use exactly one anchor source, the
// first one available among CAPath, CAFile, the platform trust store
// and the bundled Mozilla CA store.
//
// The client identity comes from the file pair, if both are set, or
// from the inline PEM pair, if both are set. A partial pair is ignored
// unless config.StrictClientIdentity is set.
//
// Failures are [*ConnectionError] of kind [ErrConfig].
func BuildTrustPolicy(config *Config, platform PlatformTrust, logger model.DebugLogger) (*TrustPolicy, error) {
	policy := &TrustPolicy{}
	if config.VerifyPeer {
		policy.Mode = TrustModePeer
		source, roots, err := loadTrustAnchors(config, platform)
		if err != nil {
			return nil, newConfigError(config.Address(), err)
		}
		policy.AnchorSource, policy.Roots = source, roots
	}
	identity, err := loadClientIdentity(config, logger)
	if err != nil {
		return nil, newConfigError(config.Address(), err)
	}
	policy.ClientIdentity = identity
	return policy, nil
}

func loadTrustAnchors(config *Config, platform PlatformTrust) (AnchorSource, *x509.CertPool, error) {
	switch {
	case config.CAPath != "":
		roots, err := loadCAPath(config.CAPath)
		return AnchorCAPath, roots, err

	case config.CAFile != "":
		roots, err := loadCAFile(config.CAFile)
		return AnchorCAFile, roots, err

	case platform != nil && platform.Present():
		roots, err := platform.Roots()
		return AnchorPlatformDefault, roots, err

	default:
		roots, err := gocertifi.CACerts()
		return AnchorBundledFallback, roots, err
	}
}

// loadCAPath loads every regular file in dir as PEM. Files without
// certificates are skipped but the directory must contain at least one.
func loadCAPath(dir string) (*x509.CertPool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	var found bool
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path) // follows hash symlinks
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		found = pool.AppendCertsFromPEM(data) || found
	}
	if !found {
		return nil, fmt.Errorf("%w in %s", errNoCertificates, dir)
	}
	return pool, nil
}

func loadCAFile(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%w in %s", errNoCertificates, path)
	}
	return pool, nil
}

func loadClientIdentity(config *Config, logger model.DebugLogger) (*tls.Certificate, error) {
	switch {
	case config.ClientCertPath != "" && config.ClientKeyPath != "":
		cert, err := tls.LoadX509KeyPair(config.ClientCertPath, config.ClientKeyPath)
		if err != nil {
			return nil, err
		}
		return &cert, nil

	case config.ClientCertPEM != "" && config.ClientKeyPEM != "":
		cert, err := tls.X509KeyPair([]byte(config.ClientCertPEM), []byte(config.ClientKeyPEM))
		if err != nil {
			return nil, err
		}
		return &cert, nil

	case config.ClientCertPath != "" || config.ClientKeyPath != "" ||
		config.ClientCertPEM != "" || config.ClientKeyPEM != "":
		if config.StrictClientIdentity {
			return nil, errPartialClientIdentity
		}
		logger.Debug("sslsocket: ignoring partial client identity")
		return nil, nil

	default:
		return nil, nil
	}
}
