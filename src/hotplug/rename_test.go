// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"errors"
	"net"
	"testing"
)

var errNoMAC = errors.New("hotplug: no mac address for interface")

type fakeNetworkHelper struct {
	renamed   map[string]string
	renameErr map[string]error
	macs      map[string]net.HardwareAddr
	wifi      map[string]bool
}

func newFakeNetworkHelper() *fakeNetworkHelper {
	return &fakeNetworkHelper{
		renamed:   make(map[string]string),
		renameErr: make(map[string]error),
		macs:      make(map[string]net.HardwareAddr),
		wifi:      make(map[string]bool),
	}
}

func (f *fakeNetworkHelper) RenameIfi(oldName, newName string) error {
	if err, ok := f.renameErr[oldName]; ok {
		return err
	}
	f.renamed[oldName] = newName
	return nil
}

func (f *fakeNetworkHelper) GetMacByIfname(ifname string) (net.HardwareAddr, error) {
	if mac, ok := f.macs[ifname]; ok {
		return mac, nil
	}
	return nil, errNoMAC
}

func (f *fakeNetworkHelper) IsWifi(ifname string) bool {
	return f.wifi[ifname]
}

func TestRenamerAssignsMonotonicPerKindNames(t *testing.T) {
	net := newFakeNetworkHelper()
	net.wifi["wlan0"] = true
	r := NewRenamer(net)

	eth0, err := r.Rename("enp3s0")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if eth0 != "cmleth0" {
		t.Fatalf("first eth rename = %q, want cmleth0", eth0)
	}

	wlan0, err := r.Rename("wlan0")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if wlan0 != "cmlwlan0" {
		t.Fatalf("first wlan rename = %q, want cmlwlan0", wlan0)
	}

	eth1, err := r.Rename("enp4s0")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if eth1 != "cmleth1" {
		t.Fatalf("second eth rename = %q, want cmleth1", eth1)
	}
}

func TestReplaceDevPathComponent(t *testing.T) {
	got := replaceDevPathComponent("/devices/pci0000:00/0000:00:1f.6/enp3s0", "enp3s0", "cmleth1")
	want := "/devices/pci0000:00/0000:00:1f.6/cmleth1"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReplaceDevPathComponentNoMatchLeavesPathUnchanged(t *testing.T) {
	devpath := "/devices/virtual/net/lo"
	got := replaceDevPathComponent(devpath, "enp3s0", "cmleth0")
	if got != devpath {
		t.Fatalf("got %q, want unchanged %q", got, devpath)
	}
}
