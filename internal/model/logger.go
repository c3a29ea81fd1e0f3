package model

//
// Logger
//

// DebugLogger is the logger used by the connection phases (dial,
// CONNECT, handshake) to trace their progress.
type DebugLogger interface {
	// Debug emits a debug message.
	Debug(msg string)

	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)
}

// Logger is the logger of a secure connection. It is out of the box
// compatible with `log.Log` in `apex/log`.
type Logger interface {
	DebugLogger

	// Info emits an informational message.
	Info(msg string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Warn emits a warning message, such as the nonblock downgrade.
	Warn(msg string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)
}

// DiscardLogger is the [Logger] used when the caller does not provide one.
var DiscardLogger Logger = discardLogger{}

type discardLogger struct{}

func (discardLogger) Debug(msg string)               {}
func (discardLogger) Debugf(format string, v ...any) {}
func (discardLogger) Info(msg string)                {}
func (discardLogger) Infof(format string, v ...any)  {}
func (discardLogger) Warn(msg string)                {}
func (discardLogger) Warnf(format string, v ...any)  {}

// ErrorToStringOrOK returns "ok" when err is nil and err.Error() otherwise,
// which is how we log the outcome of each phase.
func ErrorToStringOrOK(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

// ValidLoggerOrDefault returns logger unless it is nil, in which
// case it returns [DiscardLogger].
func ValidLoggerOrDefault(logger Logger) Logger {
	if logger != nil {
		return logger
	}
	return DiscardLogger
}
