package driver

import (
	"sync"
	"time"

	"github.com/irctrakz/wgnt/pkg/logging"
)

// LogLevel is the severity of a native log record.
type LogLevel int

// Severities, matching the native logger callback's level codes.
const (
	LogInfo LogLevel = 0
	LogWarn LogLevel = 1
	LogErr  LogLevel = 2
)

func (l LogLevel) String() string {
	switch l {
	case LogInfo:
		return "info"
	case LogWarn:
		return "warn"
	case LogErr:
		return "error"
	default:
		return "unknown"
	}
}

// LogRecord is one decoded native log line. Records are transient: built per
// callback invocation, handed to the sink, then discarded.
type LogRecord struct {
	Level     LogLevel
	Timestamp time.Time
	Message   string
}

// LogSink receives native log records. The native library invokes it from a
// thread it owns, potentially concurrently with any adapter operation, so the
// sink must be thread-safe and must not block: a stalled sink stalls the
// library's internal logging thread.
type LogSink func(LogRecord)

// LogrusSink returns a sink that forwards native records to the process
// logger with the adapter component tagged.
func LogrusSink() LogSink {
	return func(rec LogRecord) {
		fields := map[string]interface{}{"component": "wireguard-nt", "ts": rec.Timestamp}
		switch rec.Level {
		case LogErr:
			logging.ErrorWithFields(fields, "%s", rec.Message)
		case LogWarn:
			logging.WarnWithFields(fields, "%s", rec.Message)
		default:
			logging.InfoWithFields(fields, "%s", rec.Message)
		}
	}
}

// sinkRegistry holds the process-wide sink slot. One sink is active at a
// time; registering a new one replaces the old one, and the lock makes
// replace-while-logging race-free.
type sinkRegistry struct {
	mu   sync.Mutex
	sink LogSink
}

var logRegistry sinkRegistry

func (r *sinkRegistry) set(sink LogSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

func (r *sinkRegistry) dispatch(level uint32, timestamp uint64, message string) {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink == nil {
		return
	}
	sink(LogRecord{
		Level:     LogLevel(level),
		Timestamp: timeFromFiletime(timestamp),
		Message:   message,
	})
}

// SetLogger registers sink as the process-wide receiver of the native
// library's log output. Only one sink is active per process; a second call
// replaces the first. See LogSink for the sink's obligations.
func SetLogger(session Session, sink LogSink) error {
	logRegistry.set(sink)
	if err := session.SetLoggerCallback(sink); err != nil {
		logRegistry.set(nil)
		return err
	}
	return nil
}

// ClearLogger removes the registered sink and restores the library's silent
// default behavior.
func ClearLogger(session Session) error {
	if err := session.SetLoggerCallback(nil); err != nil {
		return err
	}
	logRegistry.set(nil)
	return nil
}

// timeFromFiletime converts a Windows FILETIME-style timestamp, 100ns
// intervals since 1601-01-01, to a time.Time.
func timeFromFiletime(ft uint64) time.Time {
	const unixDelta = 116444736000000000
	return time.Unix(0, (int64(ft)-unixDelta)*100)
}
