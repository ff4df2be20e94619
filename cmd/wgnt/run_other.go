//go:build !windows

package main

import (
	"errors"

	"github.com/irctrakz/wgnt/pkg/config"
)

func run(*config.Config) error {
	return errors.New("the wireguard-nt driver is Windows-only")
}
