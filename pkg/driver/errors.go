package driver

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every Session implementation.
var (
	// ErrAdapterReleased is returned by any Adapter method invoked after
	// Delete or Close.
	ErrAdapterReleased = errors.New("driver: adapter handle has been released")

	// ErrInsufficientBuffer is returned by Session.GetConfiguration when the
	// supplied buffer is too small; the returned size is the required one.
	ErrInsufficientBuffer = errors.New("driver: buffer too small for configuration")

	// ErrConfigTooVolatile is returned by Adapter.Configuration when the
	// driver keeps reporting a growing required size across the bounded
	// retry loop, which indicates a concurrent reconfiguration storm or a
	// misbehaving driver.
	ErrConfigTooVolatile = errors.New("driver: configuration size kept growing; giving up")

	// ErrDriverNotInstalled is returned by version queries when no WireGuard
	// driver service is present or running.
	ErrDriverNotInstalled = errors.New("driver: wireguard driver is not installed")
)

// LoadError reports a failure to load the native library or to resolve one of
// its required exports. It is distinct from driver call failures: nothing was
// executed yet.
type LoadError struct {
	// Path is the library path or name passed to the loader.
	Path string

	// Symbol is the unresolvable export, empty when the library itself
	// failed to load.
	Symbol string

	// Err is the underlying OS error.
	Err error
}

func (e *LoadError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("driver: %s: missing export %s: %v", e.Path, e.Symbol, e.Err)
	}
	return fmt.Sprintf("driver: failed to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// CallError reports a native driver call that failed. Err carries the OS
// error code verbatim so callers can distinguish privilege, not-found,
// name-collision and malformed-config cases.
type CallError struct {
	// Op is the native entry point that failed.
	Op string

	// Err is the OS error, typically a windows.Errno.
	Err error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("driver: %s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
