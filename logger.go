package stereossim

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// live tracks reducers created through the registry so SetLogger can
// reach them.
var (
	liveMu sync.Mutex
	live   = make(map[Reducer]struct{})
)

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for stereossim and its reducers.
// By default, stereossim produces no log output.
//
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by stereossim:
//   - [slog.LevelDebug]: per-pass values, target sizes, resource counts
//   - [slog.LevelInfo]: adapter selection, validation results
//   - [slog.LevelWarn]: reducer fallbacks, resource release errors
//
// Example:
//
//	stereossim.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	liveMu.Lock()
	defer liveMu.Unlock()
	for r := range live {
		if ls, ok := r.(loggerSetter); ok {
			ls.SetLogger(l)
		}
	}
}

// Logger returns the current logger used by stereossim.
// Sub-packages call this to share the same logger configuration
// without introducing import cycles.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by reducers that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the logger to a reducer if it implements
// loggerSetter, and remembers the reducer for later SetLogger calls
// until forgetReducer is called.
func propagateLogger(r Reducer, l *slog.Logger) {
	ls, ok := r.(loggerSetter)
	if !ok {
		return
	}
	ls.SetLogger(l)
	liveMu.Lock()
	live[r] = struct{}{}
	liveMu.Unlock()
}

// forgetReducer stops logger propagation to r. Validator.Close calls it.
func forgetReducer(r Reducer) {
	liveMu.Lock()
	delete(live, r)
	liveMu.Unlock()
}
