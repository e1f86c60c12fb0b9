// SPDX-License-Identifier: GPL-3.0-or-later

// Package store implements the Store facade and reconciler: a BundleFS and
// a BundleIndex sharing one base directory.
package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-go/pkg/bpv7"

	"github.com/dtn7/d7store/pkg/bfs"
	"github.com/dtn7/d7store/pkg/bindex"
	"github.com/dtn7/d7store/pkg/constraints"
)

const (
	dirFiles   = "files"
	fileDBName = "db.sqlite3"
)

// Store composes a BundleFS and a BundleIndex under one base directory.
type Store struct {
	fs  *bfs.BundleFS
	idx *bindex.BundleIndex
}

// Open opens (or creates) a Store rooted at base: base/files for the
// bundle filesystem, base/db.sqlite3 for the index.
func Open(base string) (*Store, error) {
	fsStore, err := bfs.Open(filepath.Join(base, dirFiles))
	if err != nil {
		return nil, err
	}

	idxStore, err := bindex.Open(filepath.Join(base, fileDBName))
	if err != nil {
		return nil, err
	}

	return &Store{fs: fsStore, idx: idxStore}, nil
}

// Close releases the Store's database connection.
func (s *Store) Close() error {
	return s.idx.Close()
}

// Push saves bundle to the filesystem, then indexes it. The filesystem
// write happens first: if the index write fails, the file remains on disk
// and will be recovered by the next fs→db sync.
func (s *Store) Push(b *bpv7.Bundle) error {
	size, path, err := s.fs.SaveBundle(b)
	if err != nil {
		return err
	}
	if err := s.idx.Insert(b, size, path); err != nil {
		log.WithFields(log.Fields{"bundle": b.ID().String(), "error": err}).
			Warn("store: index insert failed after filesystem write, will be recovered by sync")
		return err
	}
	return nil
}

// ImportHexAndPush decodes a hex-encoded bundle, saves it to the filesystem
// and indexes it, mirroring Push for bundles arriving as a hex string
// (the "add --hex" CLI path).
func (s *Store) ImportHexAndPush(hexStr string) (*bpv7.Bundle, string, error) {
	b, size, path, err := s.fs.ImportHex(hexStr)
	if err != nil {
		return nil, "", err
	}
	if err := s.idx.Insert(b, size, path); err != nil {
		log.WithFields(log.Fields{"bundle": b.ID().String(), "error": err}).
			Warn("store: index insert failed after filesystem write, will be recovered by sync")
		return nil, "", err
	}
	return b, path, nil
}

// Remove deletes bundle bid from the filesystem, then from the index.
// Both subsystems are attempted even if the first fails, and any errors
// are aggregated, so a dangling index row is not left behind just because
// the file was already missing.
func (s *Store) Remove(bid string) error {
	var result *multierror.Error

	if err := s.fs.RemoveBundle(bid); err != nil {
		result = multierror.Append(result, fmt.Errorf("removing file: %w", err))
	}
	if err := s.idx.Delete(bid); err != nil {
		result = multierror.Append(result, fmt.Errorf("removing index entry: %w", err))
	}
	return result.ErrorOrNil()
}

// ImportDir walks dir (its immediate children only, unless recursive) for
// files ending in ".bundle" and imports each one not already indexed.
func (s *Store) ImportDir(dir string, recursive bool) error {
	log.WithFields(log.Fields{"dir": dir, "recursive": recursive}).Info("store: importing directory")

	candidates, err := listBundleFiles(dir, recursive)
	if err != nil {
		return fmt.Errorf("store: import_dir %s: %w", dir, err)
	}

	var batch []bindex.PendingEntry
	for _, candidate := range candidates {
		entry, ok, err := s.stageImport(candidate)
		if err != nil {
			log.WithFields(log.Fields{"file": candidate, "error": err}).Warn("store: could not parse bundle file, skipping")
			continue
		}
		if ok {
			batch = append(batch, entry)
		}
	}

	if err := s.idx.InsertBulk(batch); err != nil {
		return fmt.Errorf("store: import_dir %s: %w", dir, err)
	}
	log.WithFields(log.Fields{"dir": dir, "imported": len(batch)}).Info("store: import complete")
	return nil
}

// stageImport reads and parses one candidate file, saves it into the
// filesystem, and returns a batch entry for it. ok is false (with a nil
// error) when the bundle is already indexed and nothing further is needed.
func (s *Store) stageImport(path string) (entry bindex.PendingEntry, ok bool, err error) {
	stem := strings.TrimSuffix(filepath.Base(path), ".bundle")
	if bid, decoded := bfs.DecodeBID(stem); decoded {
		exists, err := s.idx.Exists(bid)
		if err != nil {
			return bindex.PendingEntry{}, false, err
		}
		if exists {
			log.WithField("bundle", bid).Debug("store: already in store")
			return bindex.PendingEntry{}, false, nil
		}
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return bindex.PendingEntry{}, false, fmt.Errorf("reading %s: %w", path, err)
	}

	b, err := bpv7.ParseBundle(bytes.NewReader(buf))
	if err != nil {
		return bindex.PendingEntry{}, false, fmt.Errorf("%w: %s", ErrUnknownBundleFormat, path)
	}

	bid := b.ID().String()
	exists, err := s.idx.Exists(bid)
	if err != nil {
		return bindex.PendingEntry{}, false, err
	}
	if exists {
		log.WithField("bundle", bid).Debug("store: already in store")
		return bindex.PendingEntry{}, false, nil
	}

	size, savedPath, err := s.fs.SaveBundle(&b)
	if err != nil {
		return bindex.PendingEntry{}, false, err
	}

	log.WithFields(log.Fields{"bundle": bid, "file": path}).Info("store: imported bundle")
	return bindex.PendingEntry{
		BID:   bid,
		Entry: bindex.EntryFromBundle(&b, size),
		Path:  savedPath,
	}, true, nil
}

// IDs returns every indexed bundle identifier.
func (s *Store) IDs() ([]string, error) { return s.idx.IDs() }

// Len returns the number of indexed bundles.
func (s *Store) Len() (int, error) { return s.idx.Len() }

// GetBundleEntry returns the indexed metadata for bid.
func (s *Store) GetBundleEntry(bid string) (bindex.BundleEntry, error) { return s.idx.GetBundleEntry(bid) }

// GetBundle loads and parses the bundle stored for bid.
func (s *Store) GetBundle(bid string) (*bpv7.Bundle, error) { return s.fs.GetBundle(bid) }

// PathForBundle returns the on-disk path indexed for bid.
func (s *Store) PathForBundle(bid string) (string, error) { return s.idx.PathForBundle(bid) }

// FilterNode returns identifiers whose source or destination node matches q.
func (s *Store) FilterNode(q string) ([]string, error) { return s.idx.FilterNode(q) }

// FilterService returns identifiers whose source or destination service matches q.
func (s *Store) FilterService(q string) ([]string, error) { return s.idx.FilterService(q) }

// FilterNodeAndService is the conjunction of FilterNode and FilterService.
func (s *Store) FilterNodeAndService(node, service string) ([]string, error) {
	return s.idx.FilterNodeAndService(node, service)
}

// FilterGroups returns the distinct destination nodes for a group service.
func (s *Store) FilterGroups(service string) ([]string, error) { return s.idx.FilterGroups(service) }

// GetConstraints returns bid's current constraint mask.
func (s *Store) GetConstraints(bid string) (constraints.Constraints, error) {
	return s.idx.GetConstraints(bid)
}

// SetConstraints overwrites bid's constraint mask.
func (s *Store) SetConstraints(bid string, mask constraints.Constraints) error {
	return s.idx.SetConstraints(bid, mask)
}

// AddConstraints bitwise-ORs mask into bid's constraint mask.
func (s *Store) AddConstraints(bid string, mask constraints.Constraints) error {
	return s.idx.AddConstraints(bid, mask)
}

// RemoveConstraints clears the bits in mask from bid's constraint mask.
func (s *Store) RemoveConstraints(bid string, mask constraints.Constraints) error {
	return s.idx.RemoveConstraints(bid, mask)
}

// AllConstraints returns the current constraint mask for every indexed bundle.
func (s *Store) AllConstraints() ([]bindex.BIDConstraints, error) { return s.idx.AllConstraints() }

// FilterConstraints returns identifiers whose stored mask overlaps mask.
func (s *Store) FilterConstraints(mask constraints.Constraints) ([]string, error) {
	return s.idx.FilterConstraints(mask)
}

// listBundleFiles returns ".bundle" files under dir: immediate children
// only unless recursive.
func listBundleFiles(dir string, recursive bool) ([]string, error) {
	var out []string

	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".bundle" {
				out = append(out, filepath.Join(dir, e.Name()))
			}
		}
		return out, nil
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(d.Name()) == ".bundle" {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
