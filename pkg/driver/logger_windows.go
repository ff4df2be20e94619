//go:build windows

package driver

import (
	"sync"
	"syscall"

	"golang.org/x/sys/windows"
)

// The native callback receives (level, DWORD64 timestamp, LPCWSTR message)
// with the timestamp as a single register argument, so this thunk is correct
// on 64-bit targets only, matching the platforms the driver ships for.
//
// The message pointer is owned by the native library and valid only for the
// duration of the call; it is decoded to a Go string before dispatch and
// never retained.
var (
	loggerThunkOnce sync.Once
	loggerThunk     uintptr
)

func newLoggerThunk() uintptr {
	loggerThunkOnce.Do(func() {
		loggerThunk = syscall.NewCallback(func(level, timestamp uintptr, message *uint16) uintptr {
			logRegistry.dispatch(uint32(level), uint64(timestamp), windows.UTF16PtrToString(message))
			return 0
		})
	})
	return loggerThunk
}

// SetLoggerCallback implements Session. A nil sink unregisters the native
// callback; the sink itself lives in the process-wide registry so replacing
// it does not require re-registering with native code.
func (l *Library) SetLoggerCallback(sink LogSink) error {
	var cb uintptr
	if sink != nil {
		cb = newLoggerThunk()
	}
	l.setLogger.Call(cb)
	return nil
}
