// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/gyroidos/trustcore/src/hotplug/uevent"
)

var errRenameFailed = errors.New("hotplug: simulated rename failure")

func newTestRouter(registry *Registry, netHelper NetworkHelper, c0 CompartmentZero) *Router {
	return &Router{
		registry:       registry,
		net:            netHelper,
		c0:             c0,
		renamer:        NewRenamer(netHelper),
		physicalIfaces: make(map[string]bool),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// withFakeSysfsSerial points sysfsRoot at a fresh fixture tree holding
// a serial file at devpath/serial, mirroring what handleUSBDevice reads
// for a real USB add event, and restores sysfsRoot on test cleanup.
func withFakeSysfsSerial(t *testing.T, devpath, serial string) {
	t.Helper()

	root := t.TempDir()
	dir := filepath.Join(root, devpath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir fixture sysfs dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "serial"), []byte(serial+"\n"), 0o644); err != nil {
		t.Fatalf("write fixture serial file: %v", err)
	}

	orig := sysfsRoot
	sysfsRoot = root
	t.Cleanup(func() { sysfsRoot = orig })
}

// A registered token claim with assign=true sees exactly one
// DeviceAllow call carrying that flag once a matching add uevent
// arrives.
func TestUSBAddInvokesDeviceAllowWithAssignFlag(t *testing.T) {
	registry := NewRegistry()
	c1 := newFakeContainer("c1")
	registry.RegisterUSBDevice(c1, 0x1050, 0x0407, "0001A2B3", USBDeviceToken, true)

	rt := newTestRouter(registry, newFakeNetworkHelper(), newFakeContainer("c0"))

	devpath := "/bus/usb/001/003"
	withFakeSysfsSerial(t, devpath, "0001A2B3")

	ev := uevent.Event{
		Action:  uevent.ActionAdd,
		DevPath: devpath,
		Members: map[string]string{
			"SUBSYSTEM": "usb",
			"DEVTYPE":   "usb_device",
			"MAJOR":     "189",
			"MINOR":     "2",
			"PRODUCT":   "1050/407/100",
		},
	}

	rt.handle(ev)

	if len(c1.allowed) != 1 {
		t.Fatalf("DeviceAllow called %d times, want 1", len(c1.allowed))
	}
	got := c1.allowed[0]
	if got.major != 189 || got.minor != 2 || !got.assign {
		t.Fatalf("DeviceAllow call = %+v, want major=189 minor=2 assign=true", got)
	}

	claim := registry.findUSBClaimByIDs(0x1050, 0x0407, "0001A2B3")
	if claim.Major != 189 || claim.Minor != 2 {
		t.Fatalf("claim major/minor not recorded: %+v", claim)
	}
}

// After a non-token claim's recorded (major, minor) is seen on a
// remove event, DeviceDeny fires exactly once.
func TestUSBRemoveInvokesDeviceDenyForGenericClaim(t *testing.T) {
	registry := NewRegistry()
	c1 := newFakeContainer("c1")
	registry.RegisterUSBDevice(c1, 0x0123, 0x4567, "SERIAL1", USBDeviceGeneric, false)

	rt := newTestRouter(registry, newFakeNetworkHelper(), newFakeContainer("c0"))

	devpath := "/bus/usb/001/050"
	withFakeSysfsSerial(t, devpath, "SERIAL1")

	addEv := uevent.Event{
		Action:  uevent.ActionAdd,
		DevPath: devpath,
		Members: map[string]string{
			"SUBSYSTEM": "usb",
			"DEVTYPE":   "usb_device",
			"MAJOR":     "50",
			"MINOR":     "7",
			"PRODUCT":   "123/4567/100",
		},
	}
	rt.handle(addEv)

	removeEv := uevent.Event{
		Action: uevent.ActionRemove,
		Members: map[string]string{
			"SUBSYSTEM": "usb",
			"DEVTYPE":   "usb_device",
			"MAJOR":     "50",
			"MINOR":     "7",
		},
	}
	rt.handle(removeEv)

	if len(c1.denied) != 1 {
		t.Fatalf("DeviceDeny called %d times, want 1", len(c1.denied))
	}
	if c1.denied[0].major != 50 || c1.denied[0].minor != 7 {
		t.Fatalf("DeviceDeny call = %+v, want major=50 minor=7", c1.denied[0])
	}
	if c1.detached != 0 {
		t.Fatal("TokenDetach should not fire for a generic claim")
	}
}

// TestUSBRemoveInvokesTokenDetachForTokenClaim covers the token half of
// the same registry property.
func TestUSBRemoveInvokesTokenDetachForTokenClaim(t *testing.T) {
	registry := NewRegistry()
	c1 := newFakeContainer("c1")
	registry.RegisterUSBDevice(c1, 0x0123, 0x4567, "SERIAL1", USBDeviceToken, true)

	rt := newTestRouter(registry, newFakeNetworkHelper(), newFakeContainer("c0"))

	devpath := "/bus/usb/001/051"
	withFakeSysfsSerial(t, devpath, "SERIAL1")

	addEv := uevent.Event{
		Action:  uevent.ActionAdd,
		DevPath: devpath,
		Members: map[string]string{
			"SUBSYSTEM": "usb",
			"DEVTYPE":   "usb_device",
			"MAJOR":     "50",
			"MINOR":     "7",
			"PRODUCT":   "123/4567/100",
		},
	}
	rt.handle(addEv)

	removeEv := uevent.Event{
		Action: uevent.ActionRemove,
		Members: map[string]string{
			"SUBSYSTEM": "usb",
			"DEVTYPE":   "usb_device",
			"MAJOR":     "50",
			"MINOR":     "7",
		},
	}
	rt.handle(removeEv)

	if c1.detached != 1 {
		t.Fatalf("TokenDetach called %d times, want 1", c1.detached)
	}
	if len(c1.denied) != 0 {
		t.Fatal("DeviceDeny should not fire for a token claim")
	}
}

func TestUSBAddWithoutSerialIsUnclaimable(t *testing.T) {
	registry := NewRegistry()
	c1 := newFakeContainer("c1")
	registry.RegisterUSBDevice(c1, 0x0123, 0x4567, "SERIAL1", USBDeviceGeneric, false)

	rt := newTestRouter(registry, newFakeNetworkHelper(), newFakeContainer("c0"))

	// sysfsRoot points at an empty fixture tree with no serial file for
	// this devpath, matching a USB device sysfs never exposes a serial
	// for.
	origRoot := sysfsRoot
	sysfsRoot = t.TempDir()
	t.Cleanup(func() { sysfsRoot = origRoot })

	ev := uevent.Event{
		Action:  uevent.ActionAdd,
		DevPath: "/bus/usb/001/052",
		Members: map[string]string{
			"SUBSYSTEM": "usb",
			"DEVTYPE":   "usb_device",
			"MAJOR":     "50",
			"MINOR":     "7",
			"PRODUCT":   "123/4567/100",
		},
	}
	rt.handle(ev)

	if len(c1.allowed) != 0 {
		t.Fatal("expected no DeviceAllow call for a device with no serial")
	}
}

// A claimed MAC moves its interface into the claim's container,
// renamed to the next free cml<kind><idx> name.
func TestNetdevMoveWithRegisteredClaim(t *testing.T) {
	registry := NewRegistry()
	c2 := newFakeContainer("c2")
	mac, _ := net.ParseMAC("02:11:22:33:44:55")
	registry.RegisterNetdev(c2, mac, PnetConfig{IfName: "eth0", MAC: mac})

	netHelper := newFakeNetworkHelper()
	netHelper.macs["enp3s0"] = mac

	rt := newTestRouter(registry, netHelper, newFakeContainer("c0"))
	// Startup rename already claimed cmleth0 for some other interface.
	rt.physicalIfaces["cmleth0"] = true
	rt.renamer.ethIdx = 1

	ev := uevent.Event{
		Action:  uevent.ActionAdd,
		DevPath: "/devices/pci0000:00/0000:00:1f.6/enp3s0",
		Members: map[string]string{
			"SUBSYSTEM": "net",
			"INTERFACE": "enp3s0",
		},
	}

	if err := rt.moveNetdev(ev); err != nil {
		t.Fatalf("move netdev: %v", err)
	}

	if len(c2.nets) != 1 {
		t.Fatalf("AddNetIface called %d times, want 1", len(c2.nets))
	}
	if c2.nets[0].cfg.IfName != "cmleth1" {
		t.Fatalf("renamed interface = %q, want cmleth1", c2.nets[0].cfg.IfName)
	}
	if c2.nets[0].persistent {
		t.Fatal("hotplug moves must not be persistent")
	}
}

// A net uevent for a MAC with no claim moves the interface into c0.
func TestNetdevMoveFallsBackToC0(t *testing.T) {
	registry := NewRegistry()
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")

	netHelper := newFakeNetworkHelper()
	netHelper.macs["enp5s0"] = mac

	c0 := newFakeContainer("c0")
	rt := newTestRouter(registry, netHelper, c0)

	ev := uevent.Event{
		Action:  uevent.ActionAdd,
		DevPath: "/devices/pci0000:00/0000:00:1f.7/enp5s0",
		Members: map[string]string{
			"SUBSYSTEM": "net",
			"INTERFACE": "enp5s0",
		},
	}

	if err := rt.moveNetdev(ev); err != nil {
		t.Fatalf("move netdev: %v", err)
	}

	if len(c0.nets) != 1 {
		t.Fatalf("AddNetIface on c0 called %d times, want 1", len(c0.nets))
	}
}

// A rename failure does not abort the move; it falls through using the
// original ifname/event.
func TestNetdevMoveProceedsWithOriginalIfnameOnRenameFailure(t *testing.T) {
	registry := NewRegistry()
	c2 := newFakeContainer("c2")
	mac, _ := net.ParseMAC("02:11:22:33:44:55")
	registry.RegisterNetdev(c2, mac, PnetConfig{MAC: mac})

	netHelper := newFakeNetworkHelper()
	netHelper.macs["enp3s0"] = mac
	netHelper.renameErr["enp3s0"] = errRenameFailed

	rt := newTestRouter(registry, netHelper, newFakeContainer("c0"))

	ev := uevent.Event{
		Action:  uevent.ActionAdd,
		DevPath: "/devices/pci0000:00/0000:00:1f.6/enp3s0",
		Members: map[string]string{
			"SUBSYSTEM": "net",
			"INTERFACE": "enp3s0",
		},
	}

	if err := rt.moveNetdev(ev); err != nil {
		t.Fatalf("move netdev should not error on rename failure: %v", err)
	}

	if len(c2.nets) != 1 {
		t.Fatalf("AddNetIface called %d times, want 1", len(c2.nets))
	}
	if c2.nets[0].cfg.IfName != "enp3s0" {
		t.Fatalf("interface name = %q, want original %q when rename fails", c2.nets[0].cfg.IfName, "enp3s0")
	}
}

// TestNetdevMoveRejectsNonEligibleContainerState covers the "container
// state must be booting/starting/running" abort path.
func TestNetdevMoveRejectsNonEligibleContainerState(t *testing.T) {
	registry := NewRegistry()
	c2 := newFakeContainer("c2")
	c2.state = ContainerStopped
	mac, _ := net.ParseMAC("02:11:22:33:44:55")
	registry.RegisterNetdev(c2, mac, PnetConfig{MAC: mac})

	netHelper := newFakeNetworkHelper()
	netHelper.macs["enp3s0"] = mac

	rt := newTestRouter(registry, netHelper, newFakeContainer("c0"))

	ev := uevent.Event{
		Action:  uevent.ActionAdd,
		DevPath: "/devices/pci0000:00/0000:00:1f.6/enp3s0",
		Members: map[string]string{
			"SUBSYSTEM": "net",
			"INTERFACE": "enp3s0",
		},
	}

	if err := rt.moveNetdev(ev); err != nil {
		t.Fatalf("move netdev should not error, just abort: %v", err)
	}
	if len(c2.nets) != 0 {
		t.Fatal("AddNetIface should not be called for a non-eligible container state")
	}
}

// A devpath containing "virtual" produces no move attempt: the
// handle() dispatcher must never even schedule a settle timer for it.
func TestVirtualDevpathProducesNoMoveAttempt(t *testing.T) {
	registry := NewRegistry()
	netHelper := newFakeNetworkHelper()
	rt := newTestRouter(registry, netHelper, newFakeContainer("c0"))

	ev := uevent.Event{
		Action:  uevent.ActionAdd,
		DevPath: "/devices/virtual/net/veth0",
		Members: map[string]string{
			"SUBSYSTEM": "net",
			"INTERFACE": "veth0",
		},
	}

	rt.handle(ev)

	if rt.physicalIfaces["veth0"] {
		t.Fatal("virtual interface should not be added to the physical-netif tracking list")
	}
}

func TestTokenAttachPollsUntilDevnodeAppears(t *testing.T) {
	origRoot := devRoot
	devRoot = t.TempDir()
	t.Cleanup(func() { devRoot = origRoot })

	devname := "bus/usb/001/003"
	devnode := filepath.Join(devRoot, devname)
	if err := os.MkdirAll(filepath.Dir(devnode), 0o755); err != nil {
		t.Fatalf("mkdir fixture dev dir: %v", err)
	}

	registry := NewRegistry()
	c1 := newFakeContainer("c1")
	registry.RegisterUSBDevice(c1, 0x1050, 0x0407, "0001A2B3", USBDeviceToken, true)
	claim := registry.findUSBClaimByIDs(0x1050, 0x0407, "0001A2B3")
	claim.Major, claim.Minor = 189, 2

	rt := newTestRouter(registry, newFakeNetworkHelper(), newFakeContainer("c0"))

	done := make(chan struct{})
	go func() {
		rt.scheduleTokenAttach(claim, devname)
		close(done)
	}()

	if err := os.WriteFile(devnode, []byte{}, 0o644); err != nil {
		t.Fatalf("create devnode: %v", err)
	}

	<-done

	if len(c1.attached) != 1 || c1.attached[0] != devnode {
		t.Fatalf("TokenAttach calls = %v, want exactly [%q]", c1.attached, devnode)
	}
}
