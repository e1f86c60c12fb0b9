// SPDX-License-Identifier: GPL-3.0-or-later

package bfs

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/dtn7/dtn7-go/pkg/bpv7"
)

func buildBundle(t *testing.T, source, dest string) bpv7.Bundle {
	t.Helper()
	b, err := bpv7.Builder().
		Source(source).
		Destination(dest).
		CreationTimestampNow().
		Lifetime("1h").
		PayloadBlock([]byte("hello sneakernet")).
		Build()
	if err != nil {
		t.Fatalf("building bundle: %v", err)
	}
	return b
}

func TestOpenCreatesTaxonomyAndVersionFile(t *testing.T) {
	dir := t.TempDir()

	if _, err := Open(dir); err != nil {
		t.Fatal(err)
	}

	for _, sub := range []string{"single", "group", "adm", "version.txt"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Fatalf("expected %s to exist: %v", sub, err)
		}
	}
}

func TestOpenRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "version.txt"), []byte("999"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(dir); err != ErrProgramOutdated {
		t.Fatalf("expected ErrProgramOutdated, got %v", err)
	}
}

func TestOpenRejectsOlderVersion(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "version.txt"), []byte("0"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(dir); err != ErrUpgradeNeeded {
		t.Fatalf("expected ErrUpgradeNeeded, got %v", err)
	}
}

func TestSaveBundleRoutesByDestinationClass(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	single := buildBundle(t, "dtn://src/", "dtn://nodeB/svc")
	group := buildBundle(t, "dtn://src/", "dtn://all-cars/~news")

	_, singlePath, err := store.SaveBundle(&single)
	if err != nil {
		t.Fatal(err)
	}
	_, groupPath, err := store.SaveBundle(&group)
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Dir(filepath.Dir(singlePath)) != filepath.Join(dir, "single") {
		t.Fatalf("expected singleton bundle under single/, got %s", singlePath)
	}
	if filepath.Dir(filepath.Dir(groupPath)) != filepath.Join(dir, "group") {
		t.Fatalf("expected group bundle under group/, got %s", groupPath)
	}
}

func TestSaveBundleIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	b := buildBundle(t, "dtn://src/", "dtn://nodeB/svc")

	size1, path1, err := store.SaveBundle(&b)
	if err != nil {
		t.Fatal(err)
	}
	size2, path2, err := store.SaveBundle(&b)
	if err != nil {
		t.Fatal(err)
	}
	if size1 != size2 || path1 != path2 {
		t.Fatalf("expected identical (size, path) on repeated save, got (%d,%s) and (%d,%s)", size1, path1, size2, path2)
	}
}

func TestRemoveBundleNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.RemoveBundle("dtn://nowhere/svc-1-1"); err == nil {
		t.Fatal("expected an error removing a nonexistent bundle")
	}
}

func TestSaveFindGetRemoveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	b := buildBundle(t, "dtn://src/", "dtn://nodeB/svc")
	bid := b.ID().String()

	if _, _, err := store.SaveBundle(&b); err != nil {
		t.Fatal(err)
	}

	path, err := store.FindFileByBID(bid)
	if err != nil || path == "" {
		t.Fatalf("expected to find file for %s, err=%v path=%q", bid, err, path)
	}

	loaded, err := store.GetBundle(bid)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ID().String() != bid {
		t.Fatalf("loaded bundle ID mismatch: got %s want %s", loaded.ID().String(), bid)
	}

	bids, err := store.AllBIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(bids) != 1 || bids[0] != bid {
		t.Fatalf("expected AllBIDs to report [%s], got %v", bid, bids)
	}

	if err := store.RemoveBundle(bid); err != nil {
		t.Fatal(err)
	}
	if path, err := store.FindFileByBID(bid); err != nil || path != "" {
		t.Fatalf("expected no file after removal, got path=%q err=%v", path, err)
	}
}

func TestSaveBundleRejectsDtnNoneDestination(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	b := buildBundle(t, "dtn://src/", "dtn:none")
	if _, _, err := store.SaveBundle(&b); err == nil {
		t.Fatal("expected an error saving a bundle addressed to dtn:none")
	}
}

func TestImportHexRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	b := buildBundle(t, "dtn://src/", "dtn://nodeB/svc")
	var buf bytes.Buffer
	if err := b.WriteBundle(&buf); err != nil {
		t.Fatal(err)
	}

	parsed, size, path, err := store.ImportHex(hex.EncodeToString(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if size == 0 || path == "" {
		t.Fatalf("expected nonzero size and non-empty path, got size=%d path=%q", size, path)
	}
	if parsed.ID().String() != b.ID().String() {
		t.Fatalf("imported bundle ID mismatch: got %s want %s", parsed.ID().String(), b.ID().String())
	}
}
