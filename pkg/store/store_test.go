// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dtn7/dtn7-go/pkg/bpv7"

	"github.com/dtn7/d7store/pkg/constraints"
)

func buildBundle(t *testing.T, source, dest, lifetime string) bpv7.Bundle {
	t.Helper()
	b, err := bpv7.Builder().
		Source(source).
		Destination(dest).
		CreationTimestampNow().
		Lifetime(lifetime).
		PayloadBlock([]byte("hello sneakernet")).
		Build()
	if err != nil {
		t.Fatalf("building bundle: %v", err)
	}
	return b
}

// S1 — Empty open.
func TestEmptyOpen(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store-a"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	n, err := s.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected empty store, got %d entries", n)
	}

	ids, err := s.IDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids, got %v", ids)
	}
}

// S2 — Push & query.
func TestPushAndQuery(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	b := buildBundle(t, "dtn://nodeA/svc1", "dtn://nodeB/svc2", "1h")
	bid := b.ID().String()

	if err := s.Push(&b); err != nil {
		t.Fatal(err)
	}

	byNode, err := s.FilterNode("nodeA")
	if err != nil {
		t.Fatal(err)
	}
	if len(byNode) != 1 || byNode[0] != bid {
		t.Fatalf("expected FilterNode(nodeA) == [%s], got %v", bid, byNode)
	}

	byService, err := s.FilterService("svc2")
	if err != nil {
		t.Fatal(err)
	}
	if len(byService) != 1 || byService[0] != bid {
		t.Fatalf("expected FilterService(svc2) == [%s], got %v", bid, byService)
	}

	entry, err := s.GetBundleEntry(bid)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Lifetime != 3600 {
		t.Fatalf("expected lifetime 3600, got %d", entry.Lifetime)
	}
}

// S3 — Constraint toggling.
func TestConstraintToggling(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	b := buildBundle(t, "dtn://nodeA/svc1", "dtn://nodeB/svc2", "1h")
	bid := b.ID().String()
	if err := s.Push(&b); err != nil {
		t.Fatal(err)
	}

	if err := s.AddConstraints(bid, constraints.DispatchPending|constraints.ForwardPending); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetConstraints(bid)
	if err != nil {
		t.Fatal(err)
	}
	if got.Bits() != 0x03 {
		t.Fatalf("expected 0x03, got 0x%x", got.Bits())
	}

	if err := s.RemoveConstraints(bid, constraints.DispatchPending); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetConstraints(bid)
	if err != nil {
		t.Fatal(err)
	}
	if got.Bits() != 0x02 {
		t.Fatalf("expected 0x02, got 0x%x", got.Bits())
	}

	matches, err := s.FilterConstraints(constraints.ForwardPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0] != bid {
		t.Fatalf("expected FilterConstraints(ForwardPending) == [%s], got %v", bid, matches)
	}
}

// S4 — Group vs single routing.
func TestGroupVsSingleRouting(t *testing.T) {
	base := t.TempDir()
	s, err := Open(base)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	group := buildBundle(t, "dtn://nodeA/svc1", "dtn://all-cars/~news", "1h")
	single := buildBundle(t, "dtn://nodeA/svc1", "dtn://nodeB/svc", "1h")

	if err := s.Push(&group); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(&single); err != nil {
		t.Fatal(err)
	}

	groupPath, err := s.PathForBundle(group.ID().String())
	if err != nil {
		t.Fatal(err)
	}
	singlePath, err := s.PathForBundle(single.ID().String())
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Dir(filepath.Dir(groupPath)) != filepath.Join(base, dirFiles, "group") {
		t.Fatalf("expected group bundle under group/, got %s", groupPath)
	}
	if filepath.Dir(filepath.Dir(singlePath)) != filepath.Join(base, dirFiles, "single") {
		t.Fatalf("expected single bundle under single/, got %s", singlePath)
	}
}

// S5 — Reconcile after fs tampering.
func TestReconcileAfterFilesystemTampering(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	b := buildBundle(t, "dtn://nodeA/svc1", "dtn://nodeB/svc2", "1h")
	bid := b.ID().String()
	if err := s.Push(&b); err != nil {
		t.Fatal(err)
	}

	path, err := s.PathForBundle(bid)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if err := s.Sync(); err != nil {
		t.Fatal(err)
	}

	idsAfter, err := s.IDs()
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range idsAfter {
		if id == bid {
			t.Fatalf("expected %s to be gone from the index after sync", bid)
		}
	}
}

// S6 — Reconcile after db loss.
func TestReconcileAfterDatabaseLoss(t *testing.T) {
	base := t.TempDir()
	s, err := Open(base)
	if err != nil {
		t.Fatal(err)
	}

	b := buildBundle(t, "dtn://nodeA/svc1", "dtn://nodeB/svc2", "1h")
	bid := b.ID().String()
	if err := s.Push(&b); err != nil {
		t.Fatal(err)
	}
	wireSize, _, err := s.fs.SaveBundle(&b)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(base, fileDBName)); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(base)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	if err := s2.Sync(); err != nil {
		t.Fatal(err)
	}

	entry, err := s2.GetBundleEntry(bid)
	if err != nil {
		t.Fatalf("expected %s to be restored by sync, err=%v", bid, err)
	}
	if entry.Size != uint64(wireSize) {
		t.Fatalf("expected restored size %d, got %d", wireSize, entry.Size)
	}
}
