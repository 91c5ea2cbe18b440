// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"os"
	"path/filepath"
)

// devRoot is the device filesystem mount point the kernel's DEVNAME
// uevent member is resolved under; a variable so tests can point it at
// a fixture tree.
var devRoot = "/dev"

// devNodePath builds the device-node path for a uevent's DEVNAME
// member, where a token's node is looked for before attaching it.
func devNodePath(devname string) string {
	return filepath.Join(devRoot, devname)
}

// nodeExists reports whether path exists on disk.
func nodeExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
