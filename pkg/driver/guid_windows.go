//go:build windows

package driver

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	iphlpapi                   = windows.NewLazySystemDLL("iphlpapi.dll")
	convertInterfaceLuidToGuid = iphlpapi.NewProc("ConvertInterfaceLuidToGuid")
)

// AdapterGUID implements Session. The driver does not export a GUID query, so
// the adapter's LUID is converted through the OS interface table.
func (l *Library) AdapterGUID(handle AdapterHandle) (GUID, error) {
	luid := l.AdapterLUID(handle)
	var guid GUID
	r1, _, _ := convertInterfaceLuidToGuid.Call(
		uintptr(unsafe.Pointer(&luid)),
		uintptr(unsafe.Pointer(&guid)),
	)
	if r1 != 0 {
		return GUID{}, &CallError{Op: "ConvertInterfaceLuidToGuid", Err: windows.Errno(r1)}
	}
	return guid, nil
}
