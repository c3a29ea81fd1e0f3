package logx

import (
	"fmt"

	"github.com/ooni/sslsocket/internal/model"
)

// PrefixLogger is a model.Logger that adds a prefix to each message.
type PrefixLogger struct {
	// Prefix is the MANDATORY prefix.
	Prefix string

	// Logger is the MANDATORY underlying logger.
	Logger model.Logger
}

var _ model.Logger = &PrefixLogger{}

// Debug implements model.Logger.
func (p *PrefixLogger) Debug(msg string) {
	p.Logger.Debug(p.Prefix + msg)
}

// Debugf implements model.Logger.
func (p *PrefixLogger) Debugf(format string, v ...interface{}) {
	p.Debug(fmt.Sprintf(format, v...))
}

// Info implements model.Logger.
func (p *PrefixLogger) Info(msg string) {
	p.Logger.Info(p.Prefix + msg)
}

// Infof implements model.Logger.
func (p *PrefixLogger) Infof(format string, v ...interface{}) {
	p.Info(fmt.Sprintf(format, v...))
}

// Warn implements model.Logger.
func (p *PrefixLogger) Warn(msg string) {
	p.Logger.Warn(p.Prefix + msg)
}

// Warnf implements model.Logger.
func (p *PrefixLogger) Warnf(format string, v ...interface{}) {
	p.Warn(fmt.Sprintf(format, v...))
}
