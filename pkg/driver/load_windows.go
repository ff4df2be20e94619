//go:build windows

package driver

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Library is the Windows Session implementation: the wireguard.dll module
// with every required export resolved. A Library is immutable after Load and
// safe for concurrent use by any number of Adapters.
//
// The DLL stays loaded while any Adapter (or logger registration) still
// references the Library; Close unloads it and must only be called by the
// last user.
type Library struct {
	dll *windows.DLL

	createAdapter           *windows.Proc
	openAdapter             *windows.Proc
	freeAdapter             *windows.Proc
	deleteAdapter           *windows.Proc
	getAdapterLUID          *windows.Proc
	setConfiguration        *windows.Proc
	getConfiguration        *windows.Proc
	setAdapterState         *windows.Proc
	getRunningDriverVersion *windows.Proc
	setLogger               *windows.Proc
}

var _ Session = (*Library)(nil)

// Load loads "wireguard.dll" using the default system search order.
//
// Loading a DLL executes its initialization code: the caller is trusting
// arbitrary native code. Prefer LoadFromPath with an absolute path to a
// signed driver library when the working directory is not controlled.
func Load() (*Library, error) {
	return LoadFromPath("wireguard.dll")
}

// LoadFromPath loads the driver library from path and resolves every export
// the bindings require. A missing export fails with a LoadError naming the
// symbol; nothing about the library is otherwise verified, so a file that
// exports the documented interface with mismatched signatures is undefined
// behavior, not a recoverable error.
func LoadFromPath(path string) (*Library, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	lib, err := resolve(dll)
	if err != nil {
		dll.Release()
		return nil, err
	}
	return lib, nil
}

// LoadFromLibrary resolves the driver interface from an already-loaded module
// handle. The handle's ownership transfers to the returned Library.
func LoadFromLibrary(handle windows.Handle) (*Library, error) {
	return resolve(&windows.DLL{Name: "wireguard.dll", Handle: handle})
}

func resolve(dll *windows.DLL) (*Library, error) {
	lib := &Library{dll: dll}
	for _, export := range []struct {
		name string
		proc **windows.Proc
	}{
		{"WireGuardCreateAdapter", &lib.createAdapter},
		{"WireGuardOpenAdapter", &lib.openAdapter},
		{"WireGuardFreeAdapter", &lib.freeAdapter},
		{"WireGuardDeleteAdapter", &lib.deleteAdapter},
		{"WireGuardGetAdapterLUID", &lib.getAdapterLUID},
		{"WireGuardSetConfiguration", &lib.setConfiguration},
		{"WireGuardGetConfiguration", &lib.getConfiguration},
		{"WireGuardSetAdapterState", &lib.setAdapterState},
		{"WireGuardGetRunningDriverVersion", &lib.getRunningDriverVersion},
		{"WireGuardSetLogger", &lib.setLogger},
	} {
		proc, err := dll.FindProc(export.name)
		if err != nil {
			return nil, &LoadError{Path: dll.Name, Symbol: export.name, Err: err}
		}
		*export.proc = proc
	}
	return lib, nil
}

// Close unloads the DLL. No Adapter created from this Library may be used
// afterwards.
func (l *Library) Close() error {
	return l.dll.Release()
}

func utf16Name(kind, s string) (*uint16, error) {
	p, err := windows.UTF16PtrFromString(s)
	if err != nil {
		return nil, fmt.Errorf("driver: %s name %q: %w", kind, s, err)
	}
	return p, nil
}

// CreateAdapter implements Session.
func (l *Library) CreateAdapter(pool, name string, requestedGUID *GUID) (AdapterHandle, bool, error) {
	pool16, err := utf16Name("pool", pool)
	if err != nil {
		return 0, false, err
	}
	name16, err := utf16Name("adapter", name)
	if err != nil {
		return 0, false, err
	}
	var rebootRequired int32
	r1, _, e := l.createAdapter.Call(
		uintptr(unsafe.Pointer(pool16)),
		uintptr(unsafe.Pointer(name16)),
		uintptr(unsafe.Pointer(requestedGUID)),
		uintptr(unsafe.Pointer(&rebootRequired)),
	)
	if r1 == 0 {
		return 0, false, &CallError{Op: "WireGuardCreateAdapter", Err: e}
	}
	return AdapterHandle(r1), rebootRequired != 0, nil
}

// OpenAdapter implements Session.
func (l *Library) OpenAdapter(pool, name string) (AdapterHandle, error) {
	pool16, err := utf16Name("pool", pool)
	if err != nil {
		return 0, err
	}
	name16, err := utf16Name("adapter", name)
	if err != nil {
		return 0, err
	}
	r1, _, e := l.openAdapter.Call(
		uintptr(unsafe.Pointer(pool16)),
		uintptr(unsafe.Pointer(name16)),
	)
	if r1 == 0 {
		return 0, &CallError{Op: "WireGuardOpenAdapter", Err: e}
	}
	return AdapterHandle(r1), nil
}

// CloseAdapter implements Session.
func (l *Library) CloseAdapter(handle AdapterHandle) {
	l.freeAdapter.Call(uintptr(handle))
}

// DeleteAdapter implements Session.
func (l *Library) DeleteAdapter(handle AdapterHandle) (bool, error) {
	var rebootRequired int32
	r1, _, e := l.deleteAdapter.Call(
		uintptr(handle),
		uintptr(unsafe.Pointer(&rebootRequired)),
	)
	if r1 == 0 {
		return false, &CallError{Op: "WireGuardDeleteAdapter", Err: e}
	}
	return rebootRequired != 0, nil
}

// AdapterLUID implements Session. The native call cannot fail on a live
// handle.
func (l *Library) AdapterLUID(handle AdapterHandle) LUID {
	var luid LUID
	l.getAdapterLUID.Call(uintptr(handle), uintptr(unsafe.Pointer(&luid)))
	return luid
}

// SetConfiguration implements Session.
func (l *Library) SetConfiguration(handle AdapterHandle, config []byte) error {
	r1, _, e := l.setConfiguration.Call(
		uintptr(handle),
		uintptr(unsafe.Pointer(&config[0])),
		uintptr(len(config)),
	)
	if r1 == 0 {
		return &CallError{Op: "WireGuardSetConfiguration", Err: e}
	}
	return nil
}

// GetConfiguration implements Session.
func (l *Library) GetConfiguration(handle AdapterHandle, buf []byte) (uint32, error) {
	size := uint32(len(buf))
	var bufPtr *byte
	if len(buf) > 0 {
		bufPtr = &buf[0]
	}
	r1, _, e := l.getConfiguration.Call(
		uintptr(handle),
		uintptr(unsafe.Pointer(bufPtr)),
		uintptr(unsafe.Pointer(&size)),
	)
	if r1 == 0 {
		if e == windows.ERROR_MORE_DATA {
			return size, ErrInsufficientBuffer
		}
		return 0, &CallError{Op: "WireGuardGetConfiguration", Err: e}
	}
	return size, nil
}

// SetAdapterState implements Session.
func (l *Library) SetAdapterState(handle AdapterHandle, up bool) error {
	state := uintptr(0) // WIREGUARD_ADAPTER_STATE_DOWN
	if up {
		state = 1 // WIREGUARD_ADAPTER_STATE_UP
	}
	r1, _, e := l.setAdapterState.Call(uintptr(handle), state)
	if r1 == 0 {
		return &CallError{Op: "WireGuardSetAdapterState", Err: e}
	}
	return nil
}

// RunningDriverVersion implements Session.
func (l *Library) RunningDriverVersion() (DriverVersion, error) {
	r1, _, e := l.getRunningDriverVersion.Call()
	if r1 == 0 {
		if e == windows.ERROR_FILE_NOT_FOUND {
			return 0, ErrDriverNotInstalled
		}
		return 0, &CallError{Op: "WireGuardGetRunningDriverVersion", Err: e}
	}
	return DriverVersion(r1), nil
}
