// SPDX-License-Identifier: GPL-3.0-or-later

package bindex

import "errors"

// ErrNotFound is returned by Delete, GetBundleEntry, GetConstraints and
// PathForBundle when no bids row matches the given identifier.
var ErrNotFound = errors.New("bindex: no such entry found")
