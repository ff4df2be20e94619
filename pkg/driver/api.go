// Package driver wraps the WireGuard NT user-space library (wireguard.dll):
// loading the native library, managing virtual adapter lifecycles, pushing
// binary tunnel configuration into the kernel driver and bridging its log
// callbacks into Go logging.
//
// The native function table is modelled as the Session interface, one method
// per driver entry point. The Windows loader is the only implementation that
// touches native code; everything above it (Adapter, the log sink registry,
// the configuration codec) is portable and testable against a fake Session.
package driver

import (
	"fmt"
	"strings"
)

// MaxPoolName is the maximum length, including the terminating NUL, of a pool
// or adapter name accepted by the driver.
const MaxPoolName = 256

// AdapterHandle is the driver's opaque handle for one virtual adapter.
type AdapterHandle uintptr

// LUID is the locally unique identifier the OS assigns to a network
// interface. Stable for the adapter's lifetime.
type LUID uint64

// GUID identifies an adapter across reboots. Layout matches the Windows GUID
// structure.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

func (g GUID) String() string {
	return fmt.Sprintf("{%08x-%04x-%04x-%02x%02x-%02x%02x%02x%02x%02x%02x}",
		g.Data1, g.Data2, g.Data3,
		g.Data4[0], g.Data4[1], g.Data4[2], g.Data4[3],
		g.Data4[4], g.Data4[5], g.Data4[6], g.Data4[7])
}

// ParseGUID parses the canonical {xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx}
// form, with or without braces.
func ParseGUID(s string) (GUID, error) {
	s = strings.TrimPrefix(strings.TrimSuffix(s, "}"), "{")
	var g GUID
	var d4a uint16
	var d4b uint64
	n, err := fmt.Sscanf(s, "%08x-%04x-%04x-%04x-%012x", &g.Data1, &g.Data2, &g.Data3, &d4a, &d4b)
	if err != nil || n != 5 {
		return GUID{}, fmt.Errorf("driver: malformed GUID %q", s)
	}
	g.Data4[0] = byte(d4a >> 8)
	g.Data4[1] = byte(d4a)
	for i := 0; i < 6; i++ {
		g.Data4[2+i] = byte(d4b >> uint(40-8*i))
	}
	return g, nil
}

// DriverVersion is the running kernel driver's version as reported by the
// native library, major in the high word and minor in the low word.
type DriverVersion uint32

func (v DriverVersion) String() string {
	return fmt.Sprintf("%d.%d", uint32(v)>>16&0xffff, uint32(v)&0xffff)
}

// Session is the resolved native function table: one method per driver entry
// point. A Session is immutable once loaded and safe for concurrent use; the
// handles it returns are not (see Adapter for the caller's obligations).
//
// Implementations translate native failure into errors carrying the OS error
// code verbatim. Methods taking an AdapterHandle trust the caller to pass a
// live handle; Adapter is the layer that enforces that.
type Session interface {
	// CreateAdapter allocates a new adapter named name in pool. A non-nil
	// requestedGUID pins the adapter's identity; nil lets the driver choose.
	// rebootRequired reports the driver's soft signal that a support
	// component finishes installing only after a restart — the adapter is
	// nonetheless fully usable immediately.
	CreateAdapter(pool, name string, requestedGUID *GUID) (handle AdapterHandle, rebootRequired bool, err error)

	// OpenAdapter looks up an existing adapter by pool and name.
	OpenAdapter(pool, name string) (AdapterHandle, error)

	// CloseAdapter releases the handle without removing the adapter from its
	// pool; a later OpenAdapter with the same pool and name finds it again.
	CloseAdapter(handle AdapterHandle)

	// DeleteAdapter removes the adapter from its pool. The handle must still
	// be released with CloseAdapter afterwards.
	DeleteAdapter(handle AdapterHandle) (rebootRequired bool, err error)

	// AdapterLUID reports the OS interface identifier for the adapter.
	AdapterLUID(handle AdapterHandle) LUID

	// AdapterGUID reports the adapter's stable GUID.
	AdapterGUID(handle AdapterHandle) (GUID, error)

	// SetConfiguration pushes an encoded configuration buffer to the driver.
	SetConfiguration(handle AdapterHandle, config []byte) error

	// GetConfiguration fills buf with the driver's current configuration and
	// returns the number of bytes used. When buf is too small it returns the
	// required size together with ErrInsufficientBuffer.
	GetConfiguration(handle AdapterHandle, buf []byte) (uint32, error)

	// SetAdapterState toggles the driver's enabled flag for the adapter.
	SetAdapterState(handle AdapterHandle, up bool) error

	// RunningDriverVersion reports the loaded kernel driver's version, or
	// ErrDriverNotInstalled when no driver is running.
	RunningDriverVersion() (DriverVersion, error)

	// SetLoggerCallback registers or, with a nil sink, removes the
	// process-wide native log callback.
	SetLoggerCallback(sink LogSink) error
}
