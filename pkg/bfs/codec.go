// SPDX-License-Identifier: GPL-3.0-or-later

package bfs

import (
	"fmt"

	"github.com/dtn7/dtn7-go/pkg/bpv7"
)

// category is one of the three directory roots a bundle is filed under.
type category string

const (
	categorySingle category = "single"
	categoryGroup  category = "group"
	categoryAdm    category = "adm"
)

// classify derives a bundle's directory taxonomy entry and destination-node
// subdirectory from its primary block:
//
//  1. an administrative record always files under "adm", regardless of its
//     destination's singleton-ness
//  2. otherwise a non-singleton "dtn" destination files under "group"
//  3. otherwise a singleton "dtn" destination files under "single"
//  4. "dtn:none" and "ipn" destinations are not supported
func classify(b *bpv7.Bundle) (cat category, nodeDir string, err error) {
	dst := b.PrimaryBlock.Destination
	nodeDir = destinationNodeDir(dst)

	if b.IsAdministrativeRecord() {
		return categoryAdm, nodeDir, nil
	}

	dtnEp, isDtn := dst.EndpointType.(bpv7.DtnEndpoint)
	if !isDtn {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, dst.SchemeName())
	}
	if dtnEp.IsNone() {
		return "", "", fmt.Errorf("%w: dtn:none destination", ErrUnsupportedScheme)
	}
	if !dtnEp.IsSingleton() {
		return categoryGroup, nodeDir, nil
	}
	return categorySingle, nodeDir, nil
}

// destinationNodeDir returns the sanitized node name used for a bundle's
// destination subdirectory, defaulting to "none" for endpoints without one.
func destinationNodeDir(eid bpv7.EndpointID) string {
	if dtnEp, ok := eid.EndpointType.(bpv7.DtnEndpoint); ok && !dtnEp.IsNone() {
		return Sanitize(dtnEp.NodeName)
	}
	return "none"
}

// filenameFor returns the ".bundle" filename for a bundle identifier.
func filenameFor(bid string) string {
	return Sanitize(bid) + ".bundle"
}
