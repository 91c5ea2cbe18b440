// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"fmt"

	"github.com/gyroidos/trustcore/src/hotplug/uevent"
)

// eligibleForMove is the set of container states a netdev move accepts
// a target container in; anything else aborts the move with a warning
// rather than attaching the interface to a half-torn-down compartment.
func eligibleForMove(s ContainerState) bool {
	switch s {
	case ContainerBooting, ContainerStarting, ContainerRunning:
		return true
	default:
		return false
	}
}

// moveNetdev renames the physical interface named by ev's INTERFACE
// member, looks up the claim matching its MAC address, falls back to
// compartment zero when unclaimed, and hands the renamed interface to
// the resolved container, injecting a synthesized uevent into its
// network namespace unless the claim uses MAC filtering (bridge mode).
func (rt *Router) moveNetdev(ev uevent.Event) error {
	ifname := ev.Members["INTERFACE"]
	if ifname == "" {
		return fmt.Errorf("hotplug: move event has no INTERFACE member")
	}

	mac, err := rt.net.GetMacByIfname(ifname)
	if err != nil {
		return fmt.Errorf("hotplug: could not read mac for %q: %w", ifname, err)
	}

	claim := rt.registry.findNetdevClaimByMAC(mac)

	var target Container
	var cfg PnetConfig
	if claim == nil {
		rt.log.Info(errInfo(fmt.Sprintf("no netdev claim for %s (%s), falling back to c0", ifname, mac)))
		target = rt.c0
		cfg = PnetConfig{IfName: ifname, MAC: mac}
	} else {
		target = claim.Container
		cfg = claim.Config
	}

	if !eligibleForMove(target.State()) {
		rt.log.Warn(errInfo(fmt.Sprintf("container %s is not in a state eligible for netdev move", target.Name())))
		return nil
	}

	// A failed rename does not abort the move: the event is forwarded
	// as-is, just without the INTERFACE/DEVPATH substitution a
	// successful rename would apply.
	newName := ifname
	movedEvent := ev

	renamed, err := rt.renamer.Rename(ifname)
	if err != nil {
		rt.log.Warn(errInfo(fmt.Sprintf("could not rename %q, proceeding with original name: %v", ifname, err)))
	} else {
		newName = renamed
		cfg.IfName = newName
		rt.retrackIface(ifname, newName)
		movedEvent = ev.
			WithMember("INTERFACE", newName).
			WithMember("DEVPATH", replaceDevPathComponent(ev.DevPath, ifname, newName))
	}
	if cfg.IfName == "" {
		cfg.IfName = ifname
	}

	if err := target.AddNetIface(cfg, false); err != nil {
		return fmt.Errorf("hotplug: could not add interface %q to container %s: %w", newName, target.Name(), err)
	}

	// Bridge mode keeps the physical device on the host side, so the
	// container must not see a uevent for it.
	if cfg.MACFilter {
		return nil
	}

	if rt.injector != nil {
		if err := rt.injector.InjectIntoNetns(target, movedEvent); err != nil {
			rt.log.Warn(errInfo(fmt.Sprintf("could not inject uevent into %s's netns: %v", target.Name(), err)))
		}
	}

	return nil
}

func errInfo(msg string) error { return infoErr(msg) }

type infoErr string

func (s infoErr) Error() string { return string(s) }
