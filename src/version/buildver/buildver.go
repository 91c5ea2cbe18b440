// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package buildver exposes the trust core daemon's build-time version
// variables and a helper to format them into one line for `-version`
// and startup log output.
package buildver

import (
	"fmt"
)

var (
	// The following variables keep the placeholder defaults below
	// ("unknown", or "0" for the timestamp) unless overridden at build time with:
	//   go build -ldflags "-X .../buildver.BuildHost=... -X .../buildver.BuildSCMRevision=..."
	// Any variable name change here must be replicated in the build's
	// -ldflags invocation.

	// BuildHost is the hostname the binary was built on.
	BuildHost = "unknown"

	// BuildUser is the user account the binary was built under.
	BuildUser = "unknown"

	// BuildTimestamp is the build time, conventionally a Unix seconds
	// count; "0" means unset.
	BuildTimestamp = "0"

	// BuildSCMRevision is the source tree's release tag or commit hash.
	BuildSCMRevision = "unknown"

	// BuildSCMStatus reports whether the source tree was clean at build
	// time (e.g. "clean" or "modified").
	BuildSCMStatus = "unknown"
)

// FormattedStr returns a formatted string version which can be used to
// reference the target release.
func FormattedStr() string {
	return fmt.Sprintf("Version: %s-%s Host: %q User: %q Timestamp: %s", BuildSCMRevision, BuildSCMStatus, BuildHost, BuildUser, BuildTimestamp)
}
