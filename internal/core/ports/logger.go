package ports

// Logger is the leveled logging seam used throughout the engine and
// adapters. The concrete implementation wraps log/slog with a termenv
// colorized handler; a context-scoped variant (With) lets the scheduler
// attach a unit identifier to every line a build emits.
//
//go:generate go run go.uber.org/mock/mockgen -source=logger.go -destination=mocks/mock_logger.go -package=mocks
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// With returns a Logger that prepends the given key/value pairs to every
	// subsequent call, without mutating the receiver.
	With(args ...any) Logger
}
