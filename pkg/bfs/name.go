// SPDX-License-Identifier: GPL-3.0-or-later

package bfs

import "strings"

// isReserved reports whether r is a character the encoder must not place
// in a path segment: the URI/path separators and control characters.
func isReserved(r rune) bool {
	return r == '/' || r == '\\' || r == ':' || r < 0x20
}

// Sanitize turns an arbitrary identifier or endpoint node name into a
// filesystem-safe string. Runs of reserved characters collapse to a single
// underscore, which is what keeps the transformation invertible for "dtn"
// identifiers in DecodeBID below: "dtn://node/svc" has exactly two reserved
// runs ("://"  and "/"), so it sanitizes to "dtn_node_svc" and back.
func Sanitize(s string) string {
	var b strings.Builder
	inRun := false
	for _, r := range s {
		if isReserved(r) {
			if !inRun {
				b.WriteByte('_')
				inRun = true
			}
			continue
		}
		b.WriteRune(r)
		inRun = false
	}
	return b.String()
}

// DecodeBID reverses Sanitize for the "dtn" scheme identifiers this store
// supports, given a sanitized filename stem (the ".bundle" extension
// already stripped). The second return value is false for any other
// prefix, including "ipn" and unrecognized names, which callers should
// skip with a warning rather than treat as an error.
//
// "dtn:none" identifiers are deliberately not decoded beyond the minimal
// case the source format implies — this store never writes them itself,
// since dtn:none destinations are rejected at save time.
func DecodeBID(stem string) (bid string, ok bool) {
	switch {
	case strings.HasPrefix(stem, "dtn_none"):
		bid = strings.Replace(stem, "_", ":", 1)
		bid = strings.Replace(bid, "_", "/", 1)
		return bid, true

	case strings.HasPrefix(stem, "dtn_"):
		bid = strings.Replace(stem, "_", "://", 1)
		bid = strings.Replace(bid, "_", "/", 1)
		return bid, true

	default:
		return "", false
	}
}
