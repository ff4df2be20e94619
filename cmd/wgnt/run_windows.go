//go:build windows

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/irctrakz/wgnt/pkg/config"
	"github.com/irctrakz/wgnt/pkg/driver"
	"github.com/irctrakz/wgnt/pkg/logging"
)

func run(cfg *config.Config) error {
	if version, err := driver.InstalledDriverVersion(); err == nil {
		logging.Debugf("installed wireguard driver version: %s", version)
	}

	var lib *driver.Library
	var err error
	if cfg.Library != "" {
		lib, err = driver.LoadFromPath(cfg.Library)
	} else {
		lib, err = driver.Load()
	}
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := driver.SetLogger(lib, driver.LogrusSink()); err != nil {
		return err
	}
	defer driver.ClearLogger(lib)

	// Reuse an adapter left over from a previous run before creating one.
	adapter, err := driver.OpenAdapter(lib, cfg.Tunnel.Pool, cfg.Tunnel.Name)
	if err != nil {
		guid, gerr := cfg.RequestedGUID()
		if gerr != nil {
			return gerr
		}
		var rebootRequired bool
		adapter, rebootRequired, err = driver.CreateAdapter(lib, cfg.Tunnel.Pool, cfg.Tunnel.Name, guid)
		if err != nil {
			return err
		}
		if rebootRequired {
			if cfg.Tunnel.FailOnRebootRequired {
				_, _ = adapter.Delete()
				return errors.New("driver requests a reboot to finish installing")
			}
			logging.Warnf("driver requests a reboot to finish installing; tunnel is usable now")
		}
	}
	defer adapter.Close()

	luid, err := adapter.LUID()
	if err != nil {
		return err
	}
	logging.Infof("adapter %s/%s ready, LUID %#x", cfg.Tunnel.Pool, cfg.Tunnel.Name, uint64(luid))

	tunnel, err := cfg.ToDriver()
	if err != nil {
		return err
	}
	if err := adapter.SetConfiguration(tunnel); err != nil {
		return err
	}
	if err := adapter.Up(); err != nil {
		return err
	}

	if version, err := lib.RunningDriverVersion(); err == nil {
		logging.Infof("running wireguard driver version: %s", version)
	} else if errors.Is(err, driver.ErrDriverNotInstalled) {
		logging.Warnf("driver not reported as running yet")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logging.Infof("shutting down")
	if err := adapter.Down(); err != nil {
		return err
	}
	if _, err := adapter.Delete(); err != nil {
		return fmt.Errorf("deleting adapter: %w", err)
	}
	return nil
}
