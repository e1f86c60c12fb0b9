// SPDX-License-Identifier: GPL-3.0-or-later

package store

import "errors"

// ErrUnknownBundleFormat is reported for an import candidate whose contents
// the codec cannot parse. ImportDir logs it and skips the file rather than
// returning it.
var ErrUnknownBundleFormat = errors.New("store: file is not a recognizable bundle")
