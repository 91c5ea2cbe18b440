// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package hotplug implements the trust core's uevent router and device
// claim registry.
package hotplug

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// USBDeviceType distinguishes a claimed USB device that is a security
// token (gets a TokenAttach call once its node appears) from a generic
// passthrough device.
type USBDeviceType int

const (
	USBDeviceGeneric USBDeviceType = iota
	USBDeviceToken
)

// USBClaim binds a container to a specific physical USB device by
// vendor/product/serial.
type USBClaim struct {
	Container    Container
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Type         USBDeviceType
	// AssignFlag mirrors the claim's assign_flag: whether the device
	// should be exclusively assigned to the container (as opposed to
	// merely allowed) once it is matched, forwarded verbatim as
	// container_device_allow's 5th argument.
	AssignFlag bool

	// Major/Minor are populated once the matching device node appears
	// on the bus; -1 until then.
	Major int
	Minor int
}

// NetdevClaim binds a container to a specific physical network
// interface by MAC address.
type NetdevClaim struct {
	Container Container
	MAC       net.HardwareAddr
	Config    PnetConfig
}

// Registry is the in-memory device claim registry. All access is
// synchronized: uevents are delivered from the router's single event
// loop goroutine, but registrations can arrive concurrently from
// container lifecycle management.
type Registry struct {
	mu      sync.Mutex
	usb     []*USBClaim
	netdevs []*NetdevClaim
}

// NewRegistry creates an empty claim registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterUSBDevice adds a USB claim for c. serial is copied by string
// value, so the caller is free to reuse or discard its buffer.
func (r *Registry) RegisterUSBDevice(c Container, vendorID, productID uint16, serial string, typ USBDeviceType, assign bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usb = append(r.usb, &USBClaim{
		Container:    c,
		VendorID:     vendorID,
		ProductID:    productID,
		SerialNumber: serial,
		Type:         typ,
		AssignFlag:   assign,
		Major:        -1,
		Minor:        -1,
	})
}

// UnregisterUSBDevice removes the claim matching c/vendorID/productID/serial.
// It reports whether a matching claim was found and removed.
func (r *Registry) UnregisterUSBDevice(c Container, vendorID, productID uint16, serial string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, claim := range r.usb {
		if claim.Container == c && claim.VendorID == vendorID &&
			claim.ProductID == productID && claim.SerialNumber == serial {
			r.usb = append(r.usb[:i], r.usb[i+1:]...)
			return true
		}
	}
	return false
}

// RegisterNetdev adds a netdev claim for c.
func (r *Registry) RegisterNetdev(c Container, mac net.HardwareAddr, cfg PnetConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.netdevs = append(r.netdevs, &NetdevClaim{Container: c, MAC: mac, Config: cfg})
}

// UnregisterContainer removes every claim held by c, the cascade run
// when a container is deleted. It returns the number of claims removed.
func (r *Registry) UnregisterContainer(c Container) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0

	usb := r.usb[:0]
	for _, claim := range r.usb {
		if claim.Container == c {
			removed++
			continue
		}
		usb = append(usb, claim)
	}
	r.usb = usb

	netdevs := r.netdevs[:0]
	for _, claim := range r.netdevs {
		if claim.Container == c {
			removed++
			continue
		}
		netdevs = append(netdevs, claim)
	}
	r.netdevs = netdevs

	return removed
}

// UnregisterNetdev removes the claim matching c/mac. It reports whether
// a matching claim was found and removed.
func (r *Registry) UnregisterNetdev(c Container, mac net.HardwareAddr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, claim := range r.netdevs {
		if claim.Container == c && claim.MAC.String() == mac.String() {
			r.netdevs = append(r.netdevs[:i], r.netdevs[i+1:]...)
			return true
		}
	}
	return false
}

// findUSBClaimByIDs finds a claim matching all three identifying
// fields, the match an add event performs.
func (r *Registry) findUSBClaimByIDs(vendorID, productID uint16, serial string) *USBClaim {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, claim := range r.usb {
		if claim.VendorID == vendorID && claim.ProductID == productID && claim.SerialNumber == serial {
			return claim
		}
	}
	return nil
}

// findUSBClaimByNode finds a claim whose recorded major/minor match,
// the match a remove event performs.
func (r *Registry) findUSBClaimByNode(major, minor int) *USBClaim {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, claim := range r.usb {
		if claim.Major == major && claim.Minor == minor {
			return claim
		}
	}
	return nil
}

// findNetdevClaimByMAC finds a claim matching mac.
func (r *Registry) findNetdevClaimByMAC(mac net.HardwareAddr) *NetdevClaim {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, claim := range r.netdevs {
		if claim.MAC.String() == mac.String() {
			return claim
		}
	}
	return nil
}

// sysfsUSBDevicesDir is the sysfs directory PrefillFromSysfs walks; a
// variable so tests can point it at a fixture tree.
var sysfsUSBDevicesDir = "/sys/bus/usb/devices"

// PrefillFromSysfs pre-populates already-registered USB claims' Major
// and Minor fields by scanning the currently present USB devices.
// Devices that were plugged in before the router started would
// otherwise never get an ADD event to match against.
func (r *Registry) PrefillFromSysfs() error {
	entries, err := os.ReadDir(sysfsUSBDevicesDir)
	if err != nil {
		return fmt.Errorf("hotplug: could not read %s: %w", sysfsUSBDevicesDir, err)
	}

	for _, entry := range entries {
		dir := filepath.Join(sysfsUSBDevicesDir, entry.Name())

		vendorID, err := readSysfsHex(filepath.Join(dir, "idVendor"))
		if err != nil {
			continue
		}
		productID, err := readSysfsHex(filepath.Join(dir, "idProduct"))
		if err != nil {
			continue
		}
		serial, err := readSysfsString(filepath.Join(dir, "serial"))
		if err != nil {
			continue
		}
		major, minor, err := readSysfsDevNode(filepath.Join(dir, "dev"))
		if err != nil {
			continue
		}

		if claim := r.findUSBClaimByIDs(vendorID, productID, serial); claim != nil {
			r.mu.Lock()
			claim.Major = major
			claim.Minor = minor
			r.mu.Unlock()
		}
	}

	return nil
}

func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readSysfsHex(path string) (uint16, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func readSysfsDevNode(path string) (major, minor int, err error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, 0, err
	}

	scanner := bufio.NewScanner(strings.NewReader(s))
	scanner.Split(bufio.ScanWords)
	if !scanner.Scan() {
		return 0, 0, fmt.Errorf("hotplug: empty dev file %q", path)
	}

	parts := strings.SplitN(scanner.Text(), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("hotplug: malformed dev file %q", path)
	}

	maj, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	min, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}

	return maj, min, nil
}
