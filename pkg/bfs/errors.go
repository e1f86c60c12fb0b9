// SPDX-License-Identifier: GPL-3.0-or-later

package bfs

import "errors"

// ErrNotFound is returned when a bundle identifier has no corresponding file
// on disk.
var ErrNotFound = errors.New("bfs: bundle not found")

// ErrUnsupportedScheme is returned for destinations this store cannot place
// in its directory taxonomy: the "ipn" scheme and the "dtn:none" endpoint.
var ErrUnsupportedScheme = errors.New("bfs: unsupported destination scheme")

// ErrUpgradeNeeded is returned by Open when the on-disk store format is
// older than this program's version; no migration is implemented.
var ErrUpgradeNeeded = errors.New("bfs: store format is older than this program, upgrade needed")

// ErrProgramOutdated is returned by Open when the on-disk store format is
// newer than this program's version.
var ErrProgramOutdated = errors.New("bfs: store format is newer than this program, program outdated")
