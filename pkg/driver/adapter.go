package driver

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/irctrakz/wgnt/pkg/logging"
	"github.com/irctrakz/wgnt/pkg/wgcfg"
)

// Initial buffer for get-configuration and the bound on its grow-retry loop.
// The driver reports the required size via ErrInsufficientBuffer; a concurrent
// reconfiguration can keep growing it, so the loop must terminate.
const (
	initialConfigBufSize = 512
	maxGetConfigAttempts = 8
)

// Adapter owns one native adapter handle together with the Session it was
// created from. Holding the Session keeps the native library loaded for as
// long as the Adapter is reachable.
//
// The handle is valid from a successful CreateAdapter or OpenAdapter until
// Delete or Close; afterwards every method fails with ErrAdapterReleased.
// An Adapter that goes out of scope without an explicit Delete is closed by a
// finalizer — closed, not deleted, so the adapter stays in its pool and a
// later OpenAdapter finds it again.
//
// An Adapter is not safe for concurrent mutation. Callers must serialize
// Create/Delete/Close/SetConfiguration/Up/Down on the same value; concurrent
// reads (Configuration, LUID, GUID) on distinct Adapters are fine.
type Adapter struct {
	session  Session
	handle   AdapterHandle
	pool     string
	name     string
	released bool
}

func validateName(kind, s string) error {
	if s == "" {
		return fmt.Errorf("driver: %s name must not be empty", kind)
	}
	if len(s) >= MaxPoolName {
		return fmt.Errorf("driver: %s name %q exceeds %d characters", kind, s, MaxPoolName-1)
	}
	return nil
}

// CreateAdapter asks the driver to allocate a new adapter named name in pool.
// A non-nil requestedGUID pins the adapter's GUID across recreations.
//
// rebootRequired is the driver's soft signal that a kernel support component
// finishes installing only after a restart; the adapter is fully usable
// immediately, so it is part of the success result rather than an error.
func CreateAdapter(session Session, pool, name string, requestedGUID *GUID) (*Adapter, bool, error) {
	if err := validateName("pool", pool); err != nil {
		return nil, false, err
	}
	if err := validateName("adapter", name); err != nil {
		return nil, false, err
	}

	handle, rebootRequired, err := session.CreateAdapter(pool, name, requestedGUID)
	if err != nil {
		return nil, false, fmt.Errorf("driver: create adapter %s/%s: %w", pool, name, err)
	}
	logging.InfoWithFields(map[string]interface{}{
		"pool": pool, "name": name, "rebootRequired": rebootRequired,
	}, "created wireguard adapter")

	a := &Adapter{session: session, handle: handle, pool: pool, name: name}
	runtime.SetFinalizer(a, (*Adapter).finalize)
	return a, rebootRequired, nil
}

// OpenAdapter looks up an existing adapter by pool and name.
func OpenAdapter(session Session, pool, name string) (*Adapter, error) {
	if err := validateName("pool", pool); err != nil {
		return nil, err
	}
	if err := validateName("adapter", name); err != nil {
		return nil, err
	}

	handle, err := session.OpenAdapter(pool, name)
	if err != nil {
		return nil, fmt.Errorf("driver: open adapter %s/%s: %w", pool, name, err)
	}
	logging.Debugf("opened wireguard adapter %s/%s", pool, name)

	a := &Adapter{session: session, handle: handle, pool: pool, name: name}
	runtime.SetFinalizer(a, (*Adapter).finalize)
	return a, nil
}

// Pool returns the pool the adapter was created in or opened from.
func (a *Adapter) Pool() string { return a.pool }

// Name returns the adapter name within its pool.
func (a *Adapter) Name() string { return a.name }

// SetConfiguration encodes cfg and pushes it to the driver. Malformed
// configurations (invalid prefixes, invalid endpoints) are rejected locally
// before any native call is made.
func (a *Adapter) SetConfiguration(cfg *wgcfg.Config) error {
	if a.released {
		return ErrAdapterReleased
	}
	buf, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := a.session.SetConfiguration(a.handle, buf); err != nil {
		return fmt.Errorf("driver: set configuration of %s/%s: %w", a.pool, a.name, err)
	}
	return nil
}

// Configuration reads the driver's current configuration for the adapter and
// decodes it. The driver reports the buffer size it needs, so the read runs a
// bounded reallocate-and-retry loop; if the required size keeps growing past
// the bound the call fails with ErrConfigTooVolatile.
func (a *Adapter) Configuration() (*wgcfg.Config, error) {
	if a.released {
		return nil, ErrAdapterReleased
	}
	buf := make([]byte, initialConfigBufSize)
	for attempt := 0; attempt < maxGetConfigAttempts; attempt++ {
		size, err := a.session.GetConfiguration(a.handle, buf)
		if errors.Is(err, ErrInsufficientBuffer) {
			next := int(size)
			if next <= len(buf) {
				next = len(buf) * 2
			}
			buf = make([]byte, next)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("driver: get configuration of %s/%s: %w", a.pool, a.name, err)
		}
		return wgcfg.Decode(buf[:size])
	}
	return nil, ErrConfigTooVolatile
}

// Up enables the adapter. Idempotent.
func (a *Adapter) Up() error {
	return a.setState(true)
}

// Down disables the adapter. Idempotent.
func (a *Adapter) Down() error {
	return a.setState(false)
}

func (a *Adapter) setState(up bool) error {
	if a.released {
		return ErrAdapterReleased
	}
	if err := a.session.SetAdapterState(a.handle, up); err != nil {
		return fmt.Errorf("driver: set state of %s/%s: %w", a.pool, a.name, err)
	}
	return nil
}

// LUID reports the OS interface identifier assigned to the adapter.
func (a *Adapter) LUID() (LUID, error) {
	if a.released {
		return 0, ErrAdapterReleased
	}
	return a.session.AdapterLUID(a.handle), nil
}

// GUID reports the adapter's stable GUID.
func (a *Adapter) GUID() (GUID, error) {
	if a.released {
		return GUID{}, ErrAdapterReleased
	}
	return a.session.AdapterGUID(a.handle)
}

// Delete removes the adapter from its pool and releases the handle. After a
// successful Delete every further method on the Adapter fails with
// ErrAdapterReleased. On failure the adapter stays open so the caller can
// retry or fall back to Close.
//
// rebootRequired carries the driver's soft restart signal, as with
// CreateAdapter.
func (a *Adapter) Delete() (bool, error) {
	if a.released {
		return false, ErrAdapterReleased
	}
	rebootRequired, err := a.session.DeleteAdapter(a.handle)
	if err != nil {
		return false, fmt.Errorf("driver: delete adapter %s/%s: %w", a.pool, a.name, err)
	}
	a.session.CloseAdapter(a.handle)
	a.released = true
	runtime.SetFinalizer(a, nil)
	logging.Infof("deleted wireguard adapter %s/%s", a.pool, a.name)
	return rebootRequired, nil
}

// Close releases the handle without deleting the adapter, leaving it in the
// pool for a later OpenAdapter. Safe to call after Delete or a previous
// Close; further calls are no-ops.
func (a *Adapter) Close() error {
	if a.released {
		return nil
	}
	a.session.CloseAdapter(a.handle)
	a.released = true
	runtime.SetFinalizer(a, nil)
	return nil
}

func (a *Adapter) finalize() {
	logging.Warnf("wireguard adapter %s/%s leaked without Delete or Close; closing handle", a.pool, a.name)
	a.Close()
}
