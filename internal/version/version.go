/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides version information.
package version

// Version is the current version of Skirnir Market.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/skirnir_market/internal/version.Version=X.Y.Z
var Version = "0.3.1"
