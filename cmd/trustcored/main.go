// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package main implements the trust core daemon: the crypto engine and
// the hotplug uevent router wired together as a single long-running
// process.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gyroidos/trustcore/src/config"
	"github.com/gyroidos/trustcore/src/crypto"
	"github.com/gyroidos/trustcore/src/hotplug"
	"github.com/gyroidos/trustcore/src/hotplug/uevent"
	"github.com/gyroidos/trustcore/src/logger"
	"github.com/gyroidos/trustcore/src/utils"
)

var (
	configDir  = flag.String("config_dir", "/etc/trustcore", "Path to the configuration directory.")
	configFile = flag.String("config_file", "trustcored.yaml", "Configuration file name, relative to config_dir.")
	version    = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()
	utils.PrintVersion(*version)

	cfg, err := config.Load(*configDir, *configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	lg, err := logger.NewLogger(cfg.LogFile, cfg.LogLevelValue())
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer lg.Close()

	srkPin, err := cfg.SrkPin()
	if err != nil {
		lg.Fatal(err, "could not read srk pin file")
	}

	engine, err := crypto.NewEngine(crypto.EngineConfig{
		UseTPM:        cfg.UseTPM,
		TPMDevicePath: cfg.TPMDevicePath,
		SrkPin:        srkPin,
		Logger:        lg,
	})
	if err != nil {
		lg.Fatal(err, "could not initialize crypto engine")
	}
	defer engine.Close()

	src, err := uevent.Open()
	if err != nil {
		lg.Fatal(err, "could not open uevent source")
	}

	registry := hotplug.NewRegistry()
	c0 := hotplug.NewHostCompartment()

	// A standalone daemon only knows compartment zero; claims for
	// containers managed elsewhere stay in the seed until their manager
	// registers them.
	if seed, err := hotplug.LoadClaimSeed(cfg.ClaimSeedFile); err != nil {
		lg.Warn(err, "could not load claim seed")
	} else {
		skipped, err := seed.Apply(registry, func(name string) hotplug.Container {
			if name == c0.Name() {
				return c0
			}
			return nil
		})
		if err != nil {
			lg.Fatal(err, "could not apply claim seed")
		}
		if skipped > 0 {
			lg.Info(infoErrf(fmt.Sprintf("claim seed: %d entries reference unmanaged containers", skipped)))
		}
	}

	// Now that claims exist, pick up devices attached before startup.
	if err := registry.PrefillFromSysfs(); err != nil {
		lg.Warn(err, "could not pre-populate claim registry from sysfs")
	}

	router := hotplug.NewRouter(src, registry, hotplug.NewSysNetworkHelper(), hotplug.NewNetnsInjector(), c0, lg)

	ifaces, err := hotplug.ListPhysicalIfaces()
	if err != nil {
		lg.Warn(err, "could not enumerate physical interfaces")
	}
	if err := router.Init(cfg.HostedMode, ifaces); err != nil {
		lg.Fatal(err, "hotplug router init failed")
	}

	go router.Run()
	defer router.Stop()

	lg.Info(infoErrf("trust core daemon started"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	lg.Info(infoErrf("trust core daemon shutting down"))
}

type infoErr string

func (s infoErr) Error() string { return string(s) }

func infoErrf(msg string) error { return infoErr(msg) }
