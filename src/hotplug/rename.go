// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"fmt"
	"strings"
	"sync"
)

// ifKind distinguishes the two interface classes the rename scheme
// assigns separate monotonic counters to.
type ifKind int

const (
	ifKindEth ifKind = iota
	ifKindWLAN
)

func (k ifKind) infix() string {
	if k == ifKindWLAN {
		return "wlan"
	}
	return "eth"
}

// Renamer assigns collision-free interface names of the form
// "cml{eth|wlan}<idx>" to physical network interfaces. Each kind gets
// its own counter starting at 0; the counters live on the Renamer value
// so multiple router instances in the same process never interfere with
// each other.
type Renamer struct {
	mu      sync.Mutex
	ethIdx  int
	wlanIdx int
	net     NetworkHelper
}

// NewRenamer creates a Renamer that performs renames via net.
func NewRenamer(net NetworkHelper) *Renamer {
	return &Renamer{net: net}
}

func (r *Renamer) nextName(kind ifKind) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx int
	switch kind {
	case ifKindWLAN:
		idx = r.wlanIdx
		r.wlanIdx++
	default:
		idx = r.ethIdx
		r.ethIdx++
	}

	return fmt.Sprintf("cml%s%d", kind.infix(), idx)
}

// classify determines the rename scheme's per-kind bucket for ifname by
// asking the network helper whether the kernel reports it as wireless,
// not by guessing from the interface's name.
func (r *Renamer) classify(ifname string) ifKind {
	if r.net.IsWifi(ifname) {
		return ifKindWLAN
	}
	return ifKindEth
}

// Rename renames ifname to its next "cml{eth|wlan}<idx>" name and
// returns the new name.
func (r *Renamer) Rename(ifname string) (string, error) {
	newName := r.nextName(r.classify(ifname))
	if err := r.net.RenameIfi(ifname, newName); err != nil {
		return "", fmt.Errorf("hotplug: could not rename %q to %q: %w", ifname, newName, err)
	}
	return newName, nil
}

// replaceDevPathComponent substitutes the final path component of
// devpath (the physical ifname) with newName.
func replaceDevPathComponent(devpath, oldName, newName string) string {
	idx := strings.LastIndex(devpath, "/"+oldName)
	if idx < 0 {
		return devpath
	}
	return devpath[:idx] + "/" + newName + devpath[idx+1+len(oldName):]
}
