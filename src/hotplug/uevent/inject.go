// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package uevent

import (
	"bytes"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sys/unix"
)

// udevMonitorGroup is the netlink multicast group udev listens on, as
// opposed to group 1 where the kernel itself emits.
const udevMonitorGroup = 2

// Encode serializes the event back into the kernel wire format,
// "ACTION@DEVPATH\x00KEY=VALUE\x00...". Members are emitted in sorted
// key order so the output is deterministic.
func (e Event) Encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s@%s", e.Action, e.DevPath)
	buf.WriteByte(0)

	keys := make([]string, 0, len(e.Members))
	for k := range e.Members {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&buf, "%s=%s", k, e.Members[k])
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

// InjectIntoNetns delivers ev to the udev listeners inside the network
// namespace of pid, so a container's own device manager sees the
// (possibly renamed) device arrive. When joinUserns is set, the user
// namespace of pid is entered first so the sending socket's credentials
// map to root inside the container; receivers discard messages from
// unmapped senders otherwise.
//
// The namespace switches happen on a dedicated OS thread that is never
// returned to the scheduler pool.
func InjectIntoNetns(ev Event, pid int, joinUserns bool) error {
	errCh := make(chan error, 1)

	go func() {
		// The thread stays locked through exit, so the runtime discards
		// it instead of reusing it with foreign namespaces attached.
		runtime.LockOSThread()

		if joinUserns {
			if err := joinNamespace(pid, "user", unix.CLONE_NEWUSER); err != nil {
				errCh <- err
				return
			}
		}
		if err := joinNamespace(pid, "net", unix.CLONE_NEWNET); err != nil {
			errCh <- err
			return
		}

		fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_KOBJECT_UEVENT)
		if err != nil {
			errCh <- fmt.Errorf("uevent: could not open netlink socket in netns of %d: %w", pid, err)
			return
		}
		defer unix.Close(fd)

		addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: udevMonitorGroup}
		if err := unix.Bind(fd, addr); err != nil {
			errCh <- fmt.Errorf("uevent: could not bind netlink socket in netns of %d: %w", pid, err)
			return
		}

		errCh <- unix.Sendto(fd, ev.Encode(), 0, addr)
	}()

	return <-errCh
}

func joinNamespace(pid int, name string, nstype int) error {
	path := fmt.Sprintf("/proc/%d/ns/%s", pid, name)
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("uevent: could not open %s: %w", path, err)
	}
	defer unix.Close(fd)

	if err := unix.Setns(fd, nstype); err != nil {
		return fmt.Errorf("uevent: could not join %s namespace of %d: %w", name, pid, err)
	}
	return nil
}
