// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-go/pkg/bpv7"

	"github.com/dtn7/d7store/pkg/bindex"
)

// SyncToDB walks every ".bundle" file under the store's filesystem and
// inserts an index row for any that is missing one. This is the
// recoverable direction: a file without a row is always reconstructable.
func (s *Store) SyncToDB() error {
	files, err := s.fs.AllBundleFiles()
	if err != nil {
		return fmt.Errorf("store: sync_to_db: %w", err)
	}

	var batch []bindex.PendingEntry
	for bid, path := range files {
		exists, err := s.idx.Exists(bid)
		if err != nil {
			return fmt.Errorf("store: sync_to_db %s: %w", bid, err)
		}
		if exists {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			log.WithFields(log.Fields{"bundle": bid, "file": path, "error": err}).Warn("store: sync_to_db could not stat file, skipping")
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			log.WithFields(log.Fields{"bundle": bid, "file": path, "error": err}).Warn("store: sync_to_db could not open file, skipping")
			continue
		}
		b, err := bpv7.ParseBundle(f)
		f.Close()
		if err != nil {
			log.WithFields(log.Fields{"bundle": bid, "file": path, "error": err}).Warn("store: sync_to_db could not parse file, skipping")
			continue
		}

		batch = append(batch, bindex.PendingEntry{
			BID:   bid,
			Entry: bindex.EntryFromBundle(&b, info.Size()),
			Path:  path,
		})
	}

	if err := s.idx.InsertBulk(batch); err != nil {
		return fmt.Errorf("store: sync_to_db: %w", err)
	}
	log.WithField("restored", len(batch)).Info("store: sync_to_db complete")
	return nil
}

// SyncWithFS walks every identifier in the index and deletes any whose file
// is missing from the filesystem. This is the unrecoverable direction: a
// row without a file cannot be reconstructed, so it is dropped.
func (s *Store) SyncWithFS() error {
	ids, err := s.idx.IDs()
	if err != nil {
		return fmt.Errorf("store: sync_with_fs: %w", err)
	}

	present, err := s.fs.AllBIDs()
	if err != nil {
		return fmt.Errorf("store: sync_with_fs: %w", err)
	}
	onDisk := make(map[string]bool, len(present))
	for _, bid := range present {
		onDisk[bid] = true
	}

	var removed int
	for _, bid := range ids {
		if onDisk[bid] {
			continue
		}
		log.WithField("bundle", bid).Warn("store: bundle missing from filesystem, removing from index")
		if err := s.idx.Delete(bid); err != nil {
			return fmt.Errorf("store: sync_with_fs %s: %w", bid, err)
		}
		removed++
	}
	log.WithField("removed", removed).Info("store: sync_with_fs complete")
	return nil
}

// Sync runs SyncToDB followed by SyncWithFS, so that bundles restored into
// the index by the former are not immediately dropped by the latter.
func (s *Store) Sync() error {
	if err := s.SyncToDB(); err != nil {
		return err
	}
	return s.SyncWithFS()
}
