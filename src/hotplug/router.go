// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gyroidos/trustcore/src/hotplug/uevent"
	"github.com/gyroidos/trustcore/src/logger"
)

// sysfsRoot is the mount point sysfs paths referenced by raw uevent
// DevPaths are resolved under; a variable so tests can point it at a
// fixture tree.
var sysfsRoot = "/sys"

// The 100ms settle tick gives sysfs time to populate attributes for a
// newly attached device; it paces both the net-device "wait for the
// interface to actually come up" timer and the token-attach "wait for
// the devnode to appear" timer.
const (
	netifSettleDelay      = 100 * time.Millisecond
	tokenAttachRetryDelay = 100 * time.Millisecond
	// tokenAttachRetryBudget is the number of ticks a single
	// token-attach attempt gets before giving up. The budget is
	// per-attempt, not shared process-wide state.
	tokenAttachRetryBudget = 10
)

// Router is the trust core's uevent router: it consumes a live
// uevent.Source, classifies each event, and dispatches USB and network
// hotplug handling to the claim registry.
type Router struct {
	src      *uevent.Source
	registry *Registry
	net      NetworkHelper
	injector EventInjector
	c0       CompartmentZero
	renamer  *Renamer
	log      *logger.ModLogger

	// ifMu guards physicalIfaces: the event loop and the settle/attach
	// goroutines it spawns both touch the tracking map.
	ifMu           sync.Mutex
	physicalIfaces map[string]bool

	stop chan struct{}
	done chan struct{}
}

// NewRouter creates a Router. c0 is the privileged host compartment
// unclaimed physical network interfaces fall back to.
func NewRouter(src *uevent.Source, registry *Registry, net NetworkHelper, injector EventInjector, c0 CompartmentZero, log *logger.ModLogger) *Router {
	return &Router{
		src:            src,
		registry:       registry,
		net:            net,
		injector:       injector,
		c0:             c0,
		renamer:        NewRenamer(net),
		log:            log,
		physicalIfaces: make(map[string]bool),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Init performs the startup interface-rename pass over every currently
// present physical interface. A daemon itself running hosted (nested)
// does not own physical hardware and skips this pass.
func (rt *Router) Init(hostedMode bool, physicalIfaces []string) error {
	if hostedMode {
		return nil
	}

	for _, ifname := range physicalIfaces {
		newName, err := rt.renamer.Rename(ifname)
		if err != nil {
			return err
		}
		rt.trackIface(newName)
	}

	return nil
}

// trackIface records a physical interface in the tracking map.
func (rt *Router) trackIface(name string) {
	rt.ifMu.Lock()
	defer rt.ifMu.Unlock()
	rt.physicalIfaces[name] = true
}

// retrackIface replaces a tracked interface's entry after a rename.
func (rt *Router) retrackIface(oldName, newName string) {
	rt.ifMu.Lock()
	defer rt.ifMu.Unlock()
	delete(rt.physicalIfaces, oldName)
	rt.physicalIfaces[newName] = true
}

// Run starts the event loop, consuming uevents from the source until
// Stop is called. It should be run in its own goroutine.
func (rt *Router) Run() {
	defer close(rt.done)

	for {
		select {
		case <-rt.stop:
			return
		default:
		}

		ev, err := rt.src.Next()
		if err != nil {
			rt.log.Error(err, "uevent read failed")
			continue
		}

		rt.handle(ev)
	}
}

// Stop signals the event loop to exit and blocks until it has. The
// uevent source is closed to unblock a pending read.
func (rt *Router) Stop() {
	close(rt.stop)
	if rt.src != nil {
		rt.src.Close()
	}
	<-rt.done
}

// handle dispatches a single decoded uevent: USB devices are handled
// first; otherwise an ADD on a non-virtual net subsystem device
// schedules a settle timer before attempting the netdev move.
func (rt *Router) handle(ev uevent.Event) {
	if major, minor, ok := usbDeviceNode(ev); ok {
		rt.handleUSBDevice(ev, major, minor)
		return
	}

	if ev.Action == uevent.ActionAdd && ev.Subsystem() == "net" && !strings.Contains(ev.DevPath, "virtual") {
		rt.trackIface(ev.Members["INTERFACE"])
		go rt.scheduleNetifSettle(ev)
	}
}

// scheduleNetifSettle waits netifSettleDelay before attempting the
// netdev move, retrying only while the event names a wlan device that
// sysfs doesn't yet report as wireless; any other interface is moved on
// the first tick, with failures logged and dropped rather than
// retried.
func (rt *Router) scheduleNetifSettle(ev uevent.Event) {
	ifname := ev.Members["INTERFACE"]

	for {
		time.Sleep(netifSettleDelay)

		if ev.Members["DEVTYPE"] == "wlan" && !rt.net.IsWifi(ifname) {
			continue
		}

		if err := rt.moveNetdev(ev); err != nil {
			rt.log.Error(err, fmt.Sprintf("netdev move failed for %s", ifname))
		}
		return
	}
}

// handleUSBDevice dispatches USB device add/remove.
func (rt *Router) handleUSBDevice(ev uevent.Event, major, minor int) {
	switch ev.Action {
	case uevent.ActionRemove:
		claim := rt.registry.findUSBClaimByNode(major, minor)
		if claim == nil {
			return
		}
		rt.log.Info(errInfo(fmt.Sprintf("usb device %d:%d removed from %s", major, minor, claim.Container.Name())))
		if claim.Type == USBDeviceToken {
			if err := claim.Container.TokenDetach(); err != nil {
				rt.log.Error(err, "could not detach token on removal")
			}
			return
		}
		if err := claim.Container.DeviceDeny(uint32(major), uint32(minor)); err != nil {
			rt.log.Error(err, "could not deny device on removal")
		}

	case uevent.ActionAdd:
		// SERIAL_SHORT/ID_VENDOR_ID/ID_MODEL_ID are udev database
		// enrichment properties that never appear on this raw
		// NETLINK_KOBJECT_UEVENT payload; the serial has to be read
		// from sysfs directly, and vendor/product come from the
		// kernel's own PRODUCT=vid/pid/bcd uevent field.
		serial, err := readSysfsString(filepath.Join(sysfsRoot, ev.DevPath, "serial"))
		if err != nil || serial == "" {
			return
		}

		vendorID, productID, ok := parseProductField(ev.Members["PRODUCT"])
		if !ok {
			return
		}

		claim := rt.registry.findUSBClaimByIDs(vendorID, productID, serial)
		if claim == nil {
			return
		}

		rt.registry.mu.Lock()
		claim.Major = major
		claim.Minor = minor
		rt.registry.mu.Unlock()

		action := "allow"
		if claim.AssignFlag {
			action = "assign"
		}
		rt.log.Info(errInfo(fmt.Sprintf("usb device %04x:%04x matched claim for %s, %s", vendorID, productID, claim.Container.Name(), action)))

		if err := claim.Container.DeviceAllow(uint32(major), uint32(minor), claim.AssignFlag); err != nil {
			rt.log.Error(err, "could not allow device")
			return
		}

		if claim.Type == USBDeviceToken {
			devname := ev.Members["DEVNAME"]
			if devname == "" {
				rt.log.Warn(errInfo("token add event carries no DEVNAME, cannot attach"))
				return
			}
			go rt.scheduleTokenAttach(claim, devname)
		}
	}
}

// scheduleTokenAttach waits for the device node named by the event's
// DEVNAME member to actually appear on disk before calling TokenAttach,
// retrying up to tokenAttachRetryBudget times at tokenAttachRetryDelay
// intervals.
func (rt *Router) scheduleTokenAttach(claim *USBClaim, devname string) {
	devnode := devNodePath(devname)

	for i := 0; i < tokenAttachRetryBudget; i++ {
		if nodeExists(devnode) {
			if err := claim.Container.TokenAttach(devnode); err != nil {
				rt.log.Error(err, "token attach failed")
			}
			return
		}
		time.Sleep(tokenAttachRetryDelay)
	}

	rt.log.Warn(errInfo(fmt.Sprintf("token device node %s did not appear within retry budget", devnode)))
}

func usbDeviceNode(ev uevent.Event) (major, minor int, ok bool) {
	if ev.Subsystem() != "usb" || ev.Members["DEVTYPE"] != "usb_device" {
		return 0, 0, false
	}
	majStr, majOK := ev.Members["MAJOR"]
	minStr, minOK := ev.Members["MINOR"]
	if !majOK || !minOK {
		return 0, 0, false
	}
	maj, err := strconv.Atoi(majStr)
	if err != nil {
		return 0, 0, false
	}
	min, err := strconv.Atoi(minStr)
	if err != nil {
		return 0, 0, false
	}
	return maj, min, true
}

// parseProductField parses a kernel PRODUCT uevent field for a USB
// device, formatted "vid/pid/bcdDevice" in lowercase hex with no
// leading zeros (e.g. "1d6b/2/414").
func parseProductField(s string) (vendorID, productID uint16, ok bool) {
	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return 0, 0, false
	}

	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, false
	}

	return uint16(vid), uint16(pid), true
}
