// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"fmt"
	"os"
)

// hostCompartment is the minimal CompartmentZero a standalone daemon
// uses when it is not embedded in a fuller container manager: it
// accepts unclaimed physical network interfaces but has no device
// nodes or token attachment surface of its own.
type hostCompartment struct{}

// NewHostCompartment returns the default compartment-zero
// implementation: unclaimed physical interfaces are simply left
// attached to the host namespace.
func NewHostCompartment() CompartmentZero {
	return hostCompartment{}
}

func (hostCompartment) Name() string          { return "c0" }
func (hostCompartment) State() ContainerState { return ContainerRunning }
func (hostCompartment) Pid() int              { return os.Getpid() }
func (hostCompartment) HasUserns() bool       { return false }

func (hostCompartment) TokenAttach(string) error {
	return fmt.Errorf("hotplug: c0 has no token surface")
}

func (hostCompartment) TokenDetach() error {
	return fmt.Errorf("hotplug: c0 has no token surface")
}

func (hostCompartment) DeviceAllow(major, minor uint32, assign bool) error {
	return fmt.Errorf("hotplug: c0 does not manage device nodes")
}

func (hostCompartment) DeviceDeny(major, minor uint32) error {
	return fmt.Errorf("hotplug: c0 does not manage device nodes")
}

func (hostCompartment) AddNetIface(cfg PnetConfig, persistent bool) error {
	// The interface is already in the host network namespace; nothing
	// further to do.
	return nil
}
