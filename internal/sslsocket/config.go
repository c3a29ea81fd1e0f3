package sslsocket

//
// Connection configuration
//

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ooni/sslsocket/internal/hujsonx"
	pkgerrors "github.com/pkg/errors"
)

// ProxyConfig describes an HTTP proxy reached through CONNECT.
type ProxyConfig struct {
	// Host is the MANDATORY proxy host, without brackets.
	Host string

	// Port is the MANDATORY proxy port.
	Port string

	// User is the OPTIONAL proxy user.
	User string

	// Password is the OPTIONAL proxy password.
	Password string
}

// Address returns the proxy endpoint.
func (p *ProxyConfig) Address() string {
	return net.JoinHostPort(p.Host, p.Port)
}

// hasCredentials returns whether we should send Proxy-Authorization.
func (p *ProxyConfig) hasCredentials() bool {
	return p.User != "" || p.Password != ""
}

// Config contains the settings of a [*Conn]. Do not modify a Config
// after passing it to [NewConn].
type Config struct {
	// Host is the MANDATORY target host, also used for SNI and for
	// checking the leaf certificate. IPv6 literals go without brackets.
	Host string

	// Port is the MANDATORY target port.
	Port string

	// VerifyPeer enables chain and hostname verification. When false,
	// TLS only provides confidentiality.
	VerifyPeer bool

	// CAPath is an OPTIONAL directory of PEM trust anchors.
	CAPath string

	// CAFile is an OPTIONAL PEM bundle of trust anchors.
	CAFile string

	// ClientCertPath and ClientKeyPath are the OPTIONAL client identity files.
	ClientCertPath string
	ClientKeyPath  string

	// ClientCertPEM and ClientKeyPEM are the OPTIONAL inline client identity,
	// used only when the file pair is not set.
	ClientCertPEM string
	ClientKeyPEM  string

	// StrictClientIdentity turns a partially specified client identity
	// into an error. By default, a partial pair is ignored.
	StrictClientIdentity bool

	// Proxy is the OPTIONAL HTTP proxy.
	Proxy *ProxyConfig

	// SOCKS5Proxy is the OPTIONAL socks5:// URL through which we
	// create the plaintext connection.
	SOCKS5Proxy string

	// Nonblock requests non-blocking operation. It is downgraded with a
	// warning when the TLS engine does not support it.
	Nonblock bool

	// NonblockWait is how long a non-blocking operation may wait before
	// returning ErrWouldBlock. Zero means 1ms.
	NonblockWait time.Duration

	// Engine is the TLS engine: "stdlib" (the default) or "utls".
	Engine string

	// HandshakeTimeout bounds the TLS handshake. Zero means 10s.
	HandshakeTimeout time.Duration

	// TunnelTimeout bounds the CONNECT exchange. Zero means 10s.
	TunnelTimeout time.Duration

	// NextProtos is the OPTIONAL list of ALPN protocols.
	NextProtos []string
}

// NewConfig returns a Config for host and port verifying the peer.
func NewConfig(host, port string) *Config {
	return &Config{Host: host, Port: port, VerifyPeer: true}
}

// Address returns the target endpoint.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) handshakeTimeout() time.Duration {
	if c.HandshakeTimeout > 0 {
		return c.HandshakeTimeout
	}
	return 10 * time.Second
}

func (c *Config) tunnelTimeout() time.Duration {
	if c.TunnelTimeout > 0 {
		return c.TunnelTimeout
	}
	return 10 * time.Second
}

func (c *Config) nonblockWait() time.Duration {
	if c.NonblockWait > 0 {
		return c.NonblockWait
	}
	return time.Millisecond
}

// socks5URL parses SOCKS5Proxy, returning nil when it is empty.
func (c *Config) socks5URL() (*url.URL, error) {
	if c.SOCKS5Proxy == "" {
		return nil, nil
	}
	URL, err := url.Parse(c.SOCKS5Proxy)
	if err != nil {
		return nil, err
	}
	switch URL.Scheme {
	case "socks5", "socks5h":
		return URL, nil
	default:
		return nil, fmt.Errorf("unsupported SOCKS5 proxy scheme: %q", URL.Scheme)
	}
}

var (
	errMissingHost      = errors.New("missing host")
	errMissingPort      = errors.New("missing port")
	errMissingProxyHost = errors.New("missing proxy host")
	errMissingProxyPort = errors.New("missing proxy port")
	errBracketedHost    = errors.New("host must not be enclosed in brackets")
	errUnknownEngine    = errors.New("unknown TLS engine")
)

// Validate returns a [*ConnectionError] of kind [ErrConfig] when the
// configuration cannot possibly work.
func (c *Config) Validate() error {
	var err error
	switch {
	case c.Host == "":
		err = errMissingHost
	case c.Port == "":
		err = errMissingPort
	case c.Proxy != nil && c.Proxy.Host == "":
		err = errMissingProxyHost
	case c.Proxy != nil && c.Proxy.Port == "":
		err = errMissingProxyPort
	case strings.ContainsAny(c.Host, "[]"):
		err = errBracketedHost
	case c.Proxy != nil && strings.ContainsAny(c.Proxy.Host, "[]"):
		err = errBracketedHost
	}
	if err == nil {
		switch c.Engine {
		case "", "stdlib", "utls":
		default:
			err = fmt.Errorf("%w: %s", errUnknownEngine, c.Engine)
		}
	}
	if err == nil {
		_, err = c.socks5URL()
	}
	if err != nil {
		return newConfigError(c.Address(), err)
	}
	return nil
}

// fileConfig is the on-disk representation of a Config.
type fileConfig struct {
	Host                 string     `json:"host"`
	Port                 string     `json:"port"`
	VerifyPeer           *bool      `json:"ssl_verify_peer"`
	CAPath               string     `json:"ssl_ca_path"`
	CAFile               string     `json:"ssl_ca_file"`
	ClientCert           string     `json:"client_cert"`
	ClientKey            string     `json:"client_key"`
	ClientCertData       string     `json:"client_cert_data"`
	ClientKeyData        string     `json:"client_key_data"`
	CertificatePath      string     `json:"certificate_path"`
	PrivateKeyPath       string     `json:"private_key_path"`
	StrictClientIdentity bool       `json:"strict_client_identity"`
	Proxy                *fileProxy `json:"proxy"`
	SOCKS5Proxy          string     `json:"socks5_proxy"`
	Nonblock             bool       `json:"nonblock"`
	Engine               string     `json:"tls_engine"`
	HandshakeTimeout     string     `json:"handshake_timeout"`
	TunnelTimeout        string     `json:"tunnel_timeout"`
	NextProtos           []string   `json:"alpn"`
}

type fileProxy struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// ParseConfig parses a JSON-with-comments configuration and validates it.
//
// The legacy certificate_path and private_key_path keys are accepted as
// aliases of client_cert and client_key, which take precedence. When
// ssl_verify_peer is missing, we verify the peer.
func ParseConfig(data []byte) (*Config, error) {
	var fc fileConfig
	if err := hujsonx.Unmarshal(data, &fc); err != nil {
		return nil, pkgerrors.Wrap(err, "cannot parse config")
	}
	config := &Config{
		Host:                 fc.Host,
		Port:                 fc.Port,
		VerifyPeer:           fc.VerifyPeer == nil || *fc.VerifyPeer,
		CAPath:               fc.CAPath,
		CAFile:               fc.CAFile,
		ClientCertPath:       firstNonEmpty(fc.ClientCert, fc.CertificatePath),
		ClientKeyPath:        firstNonEmpty(fc.ClientKey, fc.PrivateKeyPath),
		ClientCertPEM:        fc.ClientCertData,
		ClientKeyPEM:         fc.ClientKeyData,
		StrictClientIdentity: fc.StrictClientIdentity,
		SOCKS5Proxy:          fc.SOCKS5Proxy,
		Nonblock:             fc.Nonblock,
		Engine:               fc.Engine,
		NextProtos:           fc.NextProtos,
	}
	if fc.Proxy != nil {
		config.Proxy = &ProxyConfig{
			Host:     fc.Proxy.Host,
			Port:     fc.Proxy.Port,
			User:     fc.Proxy.User,
			Password: fc.Proxy.Password,
		}
	}
	var err error
	if config.HandshakeTimeout, err = parseOptionalDuration(fc.HandshakeTimeout); err != nil {
		return nil, pkgerrors.Wrap(err, "invalid handshake_timeout")
	}
	if config.TunnelTimeout, err = parseOptionalDuration(fc.TunnelTimeout); err != nil {
		return nil, pkgerrors.Wrap(err, "invalid tunnel_timeout")
	}
	if err := config.Validate(); err != nil {
		return nil, pkgerrors.Wrap(err, "invalid config")
	}
	return config, nil
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "cannot read config")
	}
	return ParseConfig(data)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func parseOptionalDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}
