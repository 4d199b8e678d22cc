package monitoring

import (
	"log"
	"sync"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// debugLevel gates Debugf output. It is set once at startup from
// configuration and read on the tick path.
var debugLevel atomic.Int32

// warned records WarnOnce keys that have already been emitted.
var warned sync.Map

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebugLevel sets the verbosity for Debugf. Zero disables debug output.
func SetDebugLevel(level int) {
	debugLevel.Store(int32(level))
}

// DebugLevel returns the current debug verbosity.
func DebugLevel() int {
	return int(debugLevel.Load())
}

// Debugf logs only when the configured debug level is at least level.
func Debugf(level int, format string, v ...interface{}) {
	if DebugLevel() < level {
		return
	}
	Logf(format, v...)
}

// Warnf logs a warning with a uniform prefix.
func Warnf(format string, v ...interface{}) {
	Logf("WARN: "+format, v...)
}

// WarnOnce logs a warning the first time key is seen and is silent afterwards.
// It reports whether the warning was emitted.
func WarnOnce(key string, format string, v ...interface{}) bool {
	if _, loaded := warned.LoadOrStore(key, struct{}{}); loaded {
		return false
	}
	Warnf(format, v...)
	return true
}

// ResetWarnings forgets every WarnOnce key. Intended for tests.
func ResetWarnings() {
	warned.Range(func(k, _ any) bool {
		warned.Delete(k)
		return true
	})
}
