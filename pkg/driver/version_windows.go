//go:build windows

package driver

import (
	"errors"

	"golang.org/x/sys/windows/registry"
)

const driverServiceKey = `SYSTEM\CurrentControlSet\Services\WireGuard`

// InstalledDriverVersion reads the installed driver's version from its
// service registry key without loading the library or talking to the driver.
// Returns ErrDriverNotInstalled when no WireGuard driver service exists, and
// "unknown" when the service is present but records no version value.
func InstalledDriverVersion() (string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, driverServiceKey, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", ErrDriverNotInstalled
		}
		return "", err
	}
	defer key.Close()

	version, _, err := key.GetStringValue("Version")
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "unknown", nil
		}
		return "", err
	}
	return version, nil
}
