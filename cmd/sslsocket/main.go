// Command sslsocket opens a secure connection to a host, optionally
// through a proxy, sends a request and prints the response.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/ooni/sslsocket/internal/bytecounter"
	"github.com/ooni/sslsocket/internal/humanize"
	"github.com/ooni/sslsocket/internal/logx"
	"github.com/ooni/sslsocket/internal/netxlite"
	"github.com/ooni/sslsocket/internal/sslsocket"
	"github.com/spf13/cobra"
)

// Options contains the options you can set from the CLI.
type Options struct {
	ALPN             []string
	CAFile           string
	CAPath           string
	ClientCert       string
	ClientKey        string
	ConfigFile       string
	Emoji            bool
	Engine           string
	HandshakeTimeout time.Duration
	NoVerify         bool
	Nonblock         bool
	Proxy            string
	ProxyPassword    string
	ProxyUser        string
	ReadMax          int
	Send             string
	SOCKS5Proxy      string
	StrictIdentity   bool
	Verbose          bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand(&Options{})
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCommand creates the command, binding flags to opts.
func newRootCommand(opts *Options) *cobra.Command {
	root := &cobra.Command{
		Use:          "sslsocket [flags] [HOST:PORT]",
		Short:        "Opens a secure connection and optionally exchanges data",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(opts, cmd.ErrOrStderr())
			config, err := newConfig(cmd, opts, args)
			if err != nil {
				logger.WithError(err).Error("invalid configuration")
				return err
			}
			return run(cmd.Context(), config, opts, logger, cmd.OutOrStdout())
		},
	}
	flags := root.Flags()

	flags.StringSliceVar(
		&opts.ALPN,
		"alpn",
		[]string{},
		"ALPN protocol to negotiate (may be specified multiple times)",
	)

	flags.StringVar(
		&opts.CAFile,
		"ca-file",
		"",
		"PEM bundle of trust anchors",
	)

	flags.StringVar(
		&opts.CAPath,
		"ca-path",
		"",
		"directory of PEM trust anchors (takes precedence over --ca-file)",
	)

	flags.StringVar(
		&opts.ClientCert,
		"client-cert",
		"",
		"PEM client certificate",
	)

	flags.StringVar(
		&opts.ClientKey,
		"client-key",
		"",
		"PEM client private key",
	)

	flags.StringVarP(
		&opts.ConfigFile,
		"config",
		"c",
		"",
		"JSON config file (flags take precedence)",
	)

	flags.BoolVar(
		&opts.Emoji,
		"emoji",
		false,
		"whether to use emojis when logging",
	)

	flags.StringVar(
		&opts.Engine,
		"engine",
		"",
		"TLS engine to use (one of: stdlib, utls)",
	)

	flags.DurationVar(
		&opts.HandshakeTimeout,
		"handshake-timeout",
		0,
		"maximum duration of the TLS handshake",
	)

	flags.BoolVarP(
		&opts.NoVerify,
		"insecure",
		"k",
		false,
		"do not verify the server certificate",
	)

	flags.BoolVar(
		&opts.Nonblock,
		"nonblock",
		false,
		"request non-blocking operation",
	)

	flags.StringVar(
		&opts.Proxy,
		"proxy",
		"",
		"HOST:PORT of the HTTP proxy to tunnel through using CONNECT",
	)

	flags.StringVar(
		&opts.ProxyPassword,
		"proxy-password",
		"",
		"password for the HTTP proxy",
	)

	flags.StringVar(
		&opts.ProxyUser,
		"proxy-user",
		"",
		"username for the HTTP proxy",
	)

	flags.IntVar(
		&opts.ReadMax,
		"read-max",
		0,
		"read until this many bytes (zero means a single read)",
	)

	flags.StringVarP(
		&opts.Send,
		"send",
		"d",
		"",
		"data to send after connecting (\\r and \\n are unescaped)",
	)

	flags.StringVar(
		&opts.SOCKS5Proxy,
		"socks5-proxy",
		"",
		"socks5:// URL to create the plaintext connection through",
	)

	flags.BoolVar(
		&opts.StrictIdentity,
		"strict-identity",
		false,
		"fail when only one of --client-cert and --client-key is set",
	)

	flags.BoolVarP(
		&opts.Verbose,
		"verbose",
		"v",
		false,
		"increase verbosity level",
	)

	root.MarkFlagsMutuallyExclusive("proxy", "socks5-proxy")
	return root
}

// newLogger creates the apex/log logger writing on w.
func newLogger(opts *Options, w io.Writer) *log.Logger {
	handler := logx.NewHandler(w)
	handler.Emoji = opts.Emoji
	logger := &log.Logger{Level: log.InfoLevel, Handler: handler}
	if opts.Verbose {
		logger.Level = log.DebugLevel
	}
	return logger
}

var errMissingEndpoint = errors.New("missing HOST:PORT and no host in the config file")

var errProxyCredentialsWithoutProxy = errors.New(
	"--proxy-user and --proxy-password require --proxy or a proxy in the config file")

// newConfig loads the config file, if any, and applies the flags the user
// explicitly set along with the HOST:PORT argument.
func newConfig(cmd *cobra.Command, opts *Options, args []string) (*sslsocket.Config, error) {
	config := sslsocket.NewConfig("", "443")
	if opts.ConfigFile != "" {
		loaded, err := sslsocket.LoadConfig(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	if len(args) > 0 {
		host, port, err := net.SplitHostPort(args[0])
		if err != nil {
			return nil, err
		}
		config.Host, config.Port = host, port
	}
	if config.Host == "" {
		return nil, errMissingEndpoint
	}

	flags := cmd.Flags()
	if flags.Changed("alpn") {
		config.NextProtos = opts.ALPN
	}
	if flags.Changed("ca-file") {
		config.CAFile = opts.CAFile
	}
	if flags.Changed("ca-path") {
		config.CAPath = opts.CAPath
	}
	if flags.Changed("client-cert") {
		config.ClientCertPath = opts.ClientCert
	}
	if flags.Changed("client-key") {
		config.ClientKeyPath = opts.ClientKey
	}
	if flags.Changed("engine") {
		config.Engine = opts.Engine
	}
	if flags.Changed("handshake-timeout") {
		config.HandshakeTimeout = opts.HandshakeTimeout
	}
	if flags.Changed("insecure") {
		config.VerifyPeer = !opts.NoVerify
	}
	if flags.Changed("nonblock") {
		config.Nonblock = opts.Nonblock
	}
	if flags.Changed("socks5-proxy") {
		config.SOCKS5Proxy = opts.SOCKS5Proxy
	}
	if flags.Changed("strict-identity") {
		config.StrictClientIdentity = opts.StrictIdentity
	}
	if flags.Changed("proxy") {
		host, port, err := net.SplitHostPort(opts.Proxy)
		if err != nil {
			return nil, err
		}
		config.Proxy = &sslsocket.ProxyConfig{Host: host, Port: port}
	}
	credentials := flags.Changed("proxy-user") || flags.Changed("proxy-password")
	if credentials && config.Proxy == nil {
		return nil, errProxyCredentialsWithoutProxy
	}
	if flags.Changed("proxy-user") {
		config.Proxy.User = opts.ProxyUser
	}
	if flags.Changed("proxy-password") {
		config.Proxy.Password = opts.ProxyPassword
	}
	return config, nil
}

// unescape expands the \r and \n escapes in data.
func unescape(data string) string {
	return strings.NewReplacer(`\r`, "\r", `\n`, "\n").Replace(data)
}

// run connects, exchanges data and logs a summary of the session.
func run(ctx context.Context, config *sslsocket.Config, opts *Options, logger *log.Logger, w io.Writer) error {
	counter := bytecounter.New()
	conn := sslsocket.NewConn(config, sslsocket.WithLogger(logger), sslsocket.WithByteCounter(counter))
	defer conn.Close()

	logger.Infof("connecting to %s", config.Address())
	start := time.Now()
	if err := conn.Connect(ctx); err != nil {
		logger.WithError(err).Error("connect failed")
		return err
	}
	elapsed := time.Since(start)

	if opts.Send != "" {
		if _, err := conn.Write([]byte(unescape(opts.Send))); err != nil {
			logger.WithError(err).Error("write failed")
			return err
		}
		data, err := conn.ReadAvailable(opts.ReadMax)
		if err != nil && !errors.Is(err, io.EOF) {
			logger.WithError(err).Error("read failed")
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}

	state := conn.ConnectionState()
	logger.WithFields(log.Fields{
		"type":           "table",
		"address":        config.Address(),
		"alpn":           state.NegotiatedProtocol,
		"bytes_received": humanize.Bytes(counter.BytesReceived()),
		"bytes_sent":     humanize.Bytes(counter.BytesSent()),
		"cipher_suite":   netxlite.TLSCipherSuiteString(state.CipherSuite),
		"connect_time":   elapsed.String(),
		"tls_version":    netxlite.TLSVersionString(state.Version),
		"verify_peer":    fmt.Sprintf("%t", config.VerifyPeer),
	}).Info("Session summary")
	return nil
}
