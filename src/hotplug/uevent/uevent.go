// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package uevent subscribes to and decodes Linux kernel uevents over a
// NETLINK_KOBJECT_UEVENT socket.
package uevent

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Action is the uevent action verb.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionChange Action = "change"
	ActionMove   Action = "move"
)

// Event is a decoded kernel uevent: the action, the sysfs devpath it
// fired for, and its key=value member fields (SUBSYSTEM, DEVNAME,
// MAJOR, MINOR, INTERFACE, ...).
type Event struct {
	Action  Action
	DevPath string
	Members map[string]string
}

// Subsystem returns the SUBSYSTEM member, or "" if absent.
func (e Event) Subsystem() string { return e.Members["SUBSYSTEM"] }

// WithMember returns a copy of e with key set to value, used to
// synthesize a modified event (e.g. after an interface rename) without
// mutating the event a caller might still be holding.
func (e Event) WithMember(key, value string) Event {
	members := make(map[string]string, len(e.Members)+1)
	for k, v := range e.Members {
		members[k] = v
	}
	members[key] = value
	return Event{Action: e.Action, DevPath: e.DevPath, Members: members}
}

// Source is a live subscription to kernel uevents.
type Source struct {
	fd int
}

// Open creates a NETLINK_KOBJECT_UEVENT socket bound to the kernel
// multicast group, receiving every uevent the kernel emits.
func Open() (*Source, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("uevent: could not open netlink socket: %w", err)
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("uevent: could not bind netlink socket: %w", err)
	}

	return &Source{fd: fd}, nil
}

// Close closes the underlying socket.
func (s *Source) Close() error {
	return unix.Close(s.fd)
}

// Next blocks until the next uevent arrives and returns it decoded.
func (s *Source) Next() (Event, error) {
	buf := make([]byte, 8192)
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return Event{}, fmt.Errorf("uevent: recv failed: %w", err)
	}
	return Decode(buf[:n])
}

// Decode parses the raw NETLINK_KOBJECT_UEVENT payload. The kernel
// format is "ACTION@DEVPATH\x00KEY=VALUE\x00KEY=VALUE\x00...".
func Decode(raw []byte) (Event, error) {
	parts := bytes.Split(raw, []byte{0})
	if len(parts) == 0 || len(parts[0]) == 0 {
		return Event{}, fmt.Errorf("uevent: empty payload")
	}

	header := string(parts[0])
	at := strings.IndexByte(header, '@')
	if at < 0 {
		return Event{}, fmt.Errorf("uevent: malformed header %q", header)
	}

	e := Event{
		Action:  Action(header[:at]),
		DevPath: header[at+1:],
		Members: make(map[string]string),
	}

	for _, p := range parts[1:] {
		if len(p) == 0 {
			continue
		}
		kv := strings.SplitN(string(p), "=", 2)
		if len(kv) != 2 {
			continue
		}
		e.Members[kv[0]] = kv[1]
	}

	return e, nil
}
