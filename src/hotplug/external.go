// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"net"

	"github.com/gyroidos/trustcore/src/hotplug/uevent"
)

// ContainerState mirrors the container lifecycle states the router
// needs to reason about before handing a device or interface to a
// compartment.
type ContainerState int

const (
	ContainerStopped ContainerState = iota
	ContainerBooting
	ContainerStarting
	ContainerRunning
	ContainerStopping
)

// PnetConfig is the physical-network-interface configuration a netdev
// claim attaches to a container.
type PnetConfig struct {
	// IfName is the name the interface carries inside the container.
	IfName string
	MAC    net.HardwareAddr
	// MACFilter selects bridge mode: the container gets a MAC-filtered
	// bridge port instead of the physical interface itself, so no
	// uevent is injected for the physical device.
	MACFilter bool
}

// Container is the subset of the container subsystem's contract the
// hotplug router depends on. A real daemon's container manager
// implements this; tests substitute a fake.
type Container interface {
	// Name identifies the container for logging.
	Name() string
	// State reports the container's current lifecycle state.
	State() ContainerState
	// Pid is the container's init process, used to locate its
	// namespaces under /proc.
	Pid() int
	// HasUserns reports whether the container runs in its own user
	// namespace.
	HasUserns() bool
	// TokenAttach notifies the container that its USB security token
	// device node is now present at devnode.
	TokenAttach(devnode string) error
	// TokenDetach notifies the container that its USB security token
	// has been removed.
	TokenDetach() error
	// DeviceAllow grants the container access to the device node
	// identified by major/minor. assign requests exclusive assignment
	// rather than a plain allow.
	DeviceAllow(major, minor uint32, assign bool) error
	// DeviceDeny revokes the container's access to the device node
	// identified by major/minor.
	DeviceDeny(major, minor uint32) error
	// AddNetIface moves the interface named by cfg into the
	// container's network namespace. persistent claims survive
	// container restarts.
	AddNetIface(cfg PnetConfig, persistent bool) error
}

// CompartmentZero is the privileged host compartment unclaimed physical
// network interfaces fall back to.
type CompartmentZero interface {
	Container
}

// NetworkHelper wraps the host networking operations the router needs:
// interface renaming, MAC address lookup, and wireless classification.
type NetworkHelper interface {
	RenameIfi(oldName, newName string) error
	GetMacByIfname(ifname string) (net.HardwareAddr, error)
	// IsWifi reports whether ifname is a wireless device, judged by
	// the "wireless"/"phy80211" attributes under the interface's
	// /sys/class/net entry.
	IsWifi(ifname string) bool
}

// EventInjector delivers a synthesized uevent into a container's
// network namespace after a netdev move, so the container's own udev
// sees the interface appear.
type EventInjector interface {
	InjectIntoNetns(c Container, ev uevent.Event) error
}
