// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"fmt"
	"net"
	"strconv"

	"github.com/gyroidos/trustcore/src/utils"
	"gopkg.in/yaml.v3"
)

// USBClaimSeed is one USB claim entry of the daemon's claim seed file.
type USBClaimSeed struct {
	// VendorID/ProductID are hex strings as sysfs prints them ("1050").
	VendorID  string `yaml:"vendor_id"`
	ProductID string `yaml:"product_id"`
	Serial    string `yaml:"serial"`
	// Type is "generic" (default) or "token".
	Type      string `yaml:"type"`
	Assign    bool   `yaml:"assign"`
	Container string `yaml:"container"`
}

// NetdevClaimSeed is one netdev claim entry of the claim seed file.
type NetdevClaimSeed struct {
	MAC       string `yaml:"mac"`
	IfName    string `yaml:"ifname"`
	MACFilter bool   `yaml:"mac_filter"`
	Container string `yaml:"container"`
}

// ClaimSeed is the claim registry's initial population, loaded from the
// YAML file the management layer maintains.
type ClaimSeed struct {
	USB     []USBClaimSeed    `yaml:"usb"`
	Netdevs []NetdevClaimSeed `yaml:"netdev"`
}

// LoadClaimSeed reads and parses the claim seed file at path.
func LoadClaimSeed(path string) (*ClaimSeed, error) {
	data, err := utils.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hotplug: could not read claim seed: %w", err)
	}

	seed := &ClaimSeed{}
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("hotplug: could not parse claim seed %q: %w", path, err)
	}
	return seed, nil
}

// Apply registers every seed entry with r. resolve maps a container
// name to its handle; entries naming an unknown container are counted
// and skipped rather than failing the whole seed, since containers can
// legitimately be configured before they exist.
func (s *ClaimSeed) Apply(r *Registry, resolve func(name string) Container) (skipped int, err error) {
	for _, entry := range s.USB {
		c := resolve(entry.Container)
		if c == nil {
			skipped++
			continue
		}

		vendorID, err := strconv.ParseUint(entry.VendorID, 16, 16)
		if err != nil {
			return skipped, fmt.Errorf("hotplug: bad vendor id %q: %w", entry.VendorID, err)
		}
		productID, err := strconv.ParseUint(entry.ProductID, 16, 16)
		if err != nil {
			return skipped, fmt.Errorf("hotplug: bad product id %q: %w", entry.ProductID, err)
		}
		if entry.Serial == "" {
			return skipped, fmt.Errorf("hotplug: usb claim %s:%s has no serial; devices without one are unclaimable",
				entry.VendorID, entry.ProductID)
		}

		typ := USBDeviceGeneric
		switch entry.Type {
		case "", "generic":
		case "token":
			typ = USBDeviceToken
		default:
			return skipped, fmt.Errorf("hotplug: unknown usb claim type %q", entry.Type)
		}

		r.RegisterUSBDevice(c, uint16(vendorID), uint16(productID), entry.Serial, typ, entry.Assign)
	}

	for _, entry := range s.Netdevs {
		c := resolve(entry.Container)
		if c == nil {
			skipped++
			continue
		}

		mac, err := net.ParseMAC(entry.MAC)
		if err != nil {
			return skipped, fmt.Errorf("hotplug: bad mac %q: %w", entry.MAC, err)
		}

		r.RegisterNetdev(c, mac, PnetConfig{
			IfName:    entry.IfName,
			MAC:       mac,
			MACFilter: entry.MACFilter,
		})
	}

	return skipped, nil
}
