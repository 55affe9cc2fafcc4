package reporting

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
)

// ErrPanic is wrapped by errors produced from recovered panics.
var ErrPanic = errors.New("panic recovered")

// Reporter receives errors that have nowhere else to go.
type Reporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(err error)

// Report calls f.
func (f ReporterFunc) Report(err error) { f(err) }

// PanicError carries a recovered panic value and the stack it came from.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return errors.Join(ErrPanic, err)
	}
	return ErrPanic
}

// Recover converts a value returned by recover() into an error.
// It returns nil when v is nil.
func Recover(v any) error {
	if v == nil {
		return nil
	}
	return &PanicError{Value: v, Stack: debug.Stack()}
}

// SourceError tags an error with the subsystem that produced it.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string { return e.Source + ": " + e.Err.Error() }
func (e *SourceError) Unwrap() error { return e.Err }

// WithSource tags err with source for metrics labelling.
func WithSource(source string, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{Source: source, Err: err}
}

// Sink logs and counts reported errors.
type Sink struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewSink creates a sink. A nil logger discards log output.
func NewSink(logger *zap.Logger, metrics *monitoring.Metrics) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{logger: logger.Named("unexpected"), metrics: metrics}
}

// Report logs err. Nil errors are ignored.
func (s *Sink) Report(err error) {
	if err == nil {
		return
	}

	source := "unknown"
	var se *SourceError
	if errors.As(err, &se) {
		source = se.Source
	}
	s.metrics.RecordUnexpectedError(source)

	fields := []zap.Field{zap.Error(err), zap.String("source", source)}
	var pe *PanicError
	if errors.As(err, &pe) {
		fields = append(fields, zap.ByteString("panic_stack", pe.Stack))
	}
	s.logger.Error("Unexpected error", fields...)
}

var defaultReporter atomic.Pointer[Reporter]

func init() {
	SetDefault(NewSink(nil, nil))
}

// SetDefault replaces the process-wide reporter.
func SetDefault(r Reporter) {
	if r == nil {
		r = NewSink(nil, nil)
	}
	defaultReporter.Store(&r)
}

// Default returns the process-wide reporter.
func Default() Reporter {
	return *defaultReporter.Load()
}

// OnUnexpectedError reports err to the process-wide reporter.
func OnUnexpectedError(err error) {
	if err == nil {
		return
	}
	Default().Report(err)
}
