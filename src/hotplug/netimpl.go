// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sysClassNetDir is the sysfs directory IsWifi probes; a variable so
// tests can point it at a fixture tree.
var sysClassNetDir = "/sys/class/net"

// sysNetworkHelper is the production NetworkHelper implementation,
// driving the kernel directly via the interface ioctls.
type sysNetworkHelper struct{}

// NewSysNetworkHelper returns the production NetworkHelper.
func NewSysNetworkHelper() NetworkHelper {
	return sysNetworkHelper{}
}

// ifreqName is the fixed-size name field every SIOCG*/SIOCS* ioctl's
// ifreq struct starts with.
type ifreqName [unix.IFNAMSIZ]byte

func (sysNetworkHelper) GetMacByIfname(ifname string) (net.HardwareAddr, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("hotplug: could not look up interface %q: %w", ifname, err)
	}
	if len(iface.HardwareAddr) == 0 {
		return nil, fmt.Errorf("hotplug: interface %q has no hardware address", ifname)
	}
	return iface.HardwareAddr, nil
}

// IsWifi reports whether ifname carries the "wireless" sysfs attribute
// (or its cfg80211 successor "phy80211") under /sys/class/net.
func (sysNetworkHelper) IsWifi(ifname string) bool {
	base := filepath.Join(sysClassNetDir, ifname)
	if _, err := os.Stat(filepath.Join(base, "wireless")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(base, "phy80211")); err == nil {
		return true
	}
	return false
}

// ListPhysicalIfaces enumerates the physical network interfaces
// currently present: the /sys/class/net entries backed by a real
// device. Virtual interfaces (lo, veth, bridges) have no "device" link
// and are excluded.
func ListPhysicalIfaces() ([]string, error) {
	entries, err := os.ReadDir(sysClassNetDir)
	if err != nil {
		return nil, fmt.Errorf("hotplug: could not read %s: %w", sysClassNetDir, err)
	}

	var ifaces []string
	for _, entry := range entries {
		if _, err := os.Stat(filepath.Join(sysClassNetDir, entry.Name(), "device")); err != nil {
			continue
		}
		ifaces = append(ifaces, entry.Name())
	}
	return ifaces, nil
}

func (sysNetworkHelper) RenameIfi(oldName, newName string) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return fmt.Errorf("hotplug: could not open control socket: %w", err)
	}
	defer unix.Close(fd)

	var req struct {
		Name    ifreqName
		NewName ifreqName
	}
	copy(req.Name[:], oldName)
	copy(req.NewName[:], newName)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.SIOCSIFNAME, uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return fmt.Errorf("hotplug: rename %q to %q failed: %w", oldName, newName, errno)
	}

	return nil
}
