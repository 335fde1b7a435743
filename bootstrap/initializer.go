package bootstrap

import (
	"reflect"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

var _initializer = new(initializer)

// initializer runs a fixed ordered list of startup functions, each timed
// and logged, then discards the list. bootstrap.Bootstrap only ever needs
// one Register/Init pass (spec.md §2 L8's component graph has no optional,
// concurrently-started provider), so unlike the teacher's initializer this
// carries no second goroutine-dispatched half.
type initializer struct {
	fns []func() error
}

func (i *initializer) Register(fn ...func() error) {
	i.fns = append(i.fns, fn...)
}

// Init executes all registered initialization functions sequentially
// and logs their execution time for performance monitoring
func (i *initializer) Init() error {
	defer func() {
		i.fns = make([]func() error, 0)
	}()

	for j := range i.fns {
		fn := i.fns[j]
		if fn == nil {
			continue
		}

		// Execute function with timing measurement using defer pattern
		if err := i.executeWithTiming(fn); err != nil {
			return err
		}
	}
	return nil
}

// executeWithTiming executes a function and logs its execution time
func (i *initializer) executeWithTiming(fn func() error) error {
	funcName := i.getFunctionName(fn)

	// Use defer pattern for cleaner timing measurement
	start := time.Now()
	defer func() {
		duration := time.Since(start)
		// Log with structured fields for better observability
		zap.S().Debugw("Init function executed", "function", funcName, "cost", duration.Round(time.Microsecond).String())
	}()

	return fn()
}

// getFunctionName extracts a clean function name from function pointer
func (i *initializer) getFunctionName(fn func() error) string {
	if fn == nil {
		return "<nil>"
	}

	pc := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if pc == nil {
		return "<unknown>"
	}

	fullName := pc.Name()
	// Extract package.function from full path for cleaner logs
	if lastSlash := strings.LastIndex(fullName, "/"); lastSlash >= 0 {
		fullName = fullName[lastSlash+1:]
	}

	return fullName
}

func Register(fn ...func() error) { _initializer.Register(fn...) }
func Init() (err error)           { return _initializer.Init() }
