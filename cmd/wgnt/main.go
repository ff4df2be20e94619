// wgnt brings up a WireGuard NT tunnel from a config file: it loads
// wireguard.dll, creates or opens the configured adapter, pushes the tunnel
// configuration into the driver and keeps the adapter up until interrupted.
//
// Usage: wgnt [config.yaml]
// Configuration can also come from WGNT_* environment variables.
package main

import (
	"log"
	"os"

	"github.com/irctrakz/wgnt/pkg/config"
)

func main() {
	cfg := config.DefaultConfig()
	if len(os.Args) > 1 {
		if err := config.LoadFromFile(os.Args[1], cfg); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ApplyLogging(); err != nil {
		log.Fatalf("logging: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("wgnt: %v", err)
	}
}
