// SPDX-License-Identifier: GPL-3.0-or-later

package bindex

import (
	"github.com/dtn7/dtn7-go/pkg/bpv7"
)

// BundleEntry is the indexed metadata projection of a bundle, stored as one
// row of the bundles table and reached from its bid through bids.bundle_idx.
type BundleEntry struct {
	SrcName        string
	SrcService     string
	DstName        string
	DstService     string
	CreationTime   uint64
	Seqno          uint64
	Lifetime       uint64
	TimeAddedToDB  uint64
	Size           uint64
}

// endpointParts splits an EndpointID into its node and service components,
// the way a "dtn" URI's authority and path decompose. Non-dtn and dtn:none
// endpoints yield an empty node/service pair, matching the source's
// Option<String>-typed columns.
func endpointParts(eid bpv7.EndpointID) (node, service string) {
	dtnEp, ok := eid.EndpointType.(bpv7.DtnEndpoint)
	if !ok || dtnEp.IsNone() {
		return "", ""
	}
	return dtnEp.NodeName, dtnEp.Demux
}

// EntryFromBundle derives a BundleEntry from a parsed bundle's primary
// block and the size of its on-disk wire form. TimeAddedToDB is left zero;
// callers set it at insertion time.
func EntryFromBundle(b *bpv7.Bundle, size int64) BundleEntry {
	srcName, srcService := endpointParts(b.PrimaryBlock.SourceNode)
	dstName, dstService := endpointParts(b.PrimaryBlock.Destination)

	return BundleEntry{
		SrcName:      srcName,
		SrcService:   srcService,
		DstName:      dstName,
		DstService:   dstService,
		CreationTime: uint64(b.PrimaryBlock.CreationTimestamp.DtnTime()),
		Seqno:        b.PrimaryBlock.CreationTimestamp.SequenceNumber(),
		Lifetime:     b.PrimaryBlock.Lifetime / 1000,
		Size:         uint64(size),
	}
}
