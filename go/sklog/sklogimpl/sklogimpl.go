// Package sklogimpl holds the pluggable logger behind the sklog functions.
package sklogimpl

import "sync"

// Severity identifies the level of a log line.
type Severity int

// Severities, in increasing order of importance.
const (
	Debug Severity = iota
	Info
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	}
	return "UNKNOWN"
}

// Logger is implemented by the sinks sklog can write to.
type Logger interface {
	// Log writes one line. depth is the number of stack frames between the sklog call site and
	// this method. If format is empty the args are formatted with fmt.Sprint.
	Log(depth int, severity Severity, format string, args ...interface{})

	// Flush flushes any buffered lines.
	Flush()
}

var (
	mtx    sync.RWMutex
	logger Logger
)

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	mtx.Lock()
	defer mtx.Unlock()
	logger = l
}

// Log forwards to the current logger, if any.
func Log(depth int, severity Severity, format string, args ...interface{}) {
	mtx.RLock()
	defer mtx.RUnlock()
	if logger != nil {
		logger.Log(depth+1, severity, format, args...)
	}
}

// Flush flushes the current logger, if any.
func Flush() {
	mtx.RLock()
	defer mtx.RUnlock()
	if logger != nil {
		logger.Flush()
	}
}
