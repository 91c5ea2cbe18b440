// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"github.com/gyroidos/trustcore/src/hotplug/uevent"
)

// netnsInjector is the production EventInjector: it re-emits a uevent
// inside the target container's network namespace.
type netnsInjector struct{}

// NewNetnsInjector returns the production EventInjector.
func NewNetnsInjector() EventInjector {
	return netnsInjector{}
}

func (netnsInjector) InjectIntoNetns(c Container, ev uevent.Event) error {
	return uevent.InjectIntoNetns(ev, c.Pid(), c.HasUserns())
}
