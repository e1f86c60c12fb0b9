// SPDX-License-Identifier: GPL-3.0-or-later

// Package bfs implements the content-addressed on-disk bundle layout
// (BundleFS): a directory taxonomy keyed by destination class and bundle
// identifier, plus a version gate guarding the layout.
package bfs

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-go/pkg/bpv7"
)

// Version is the current on-disk layout format version, written to
// version.txt.
const Version = 1

const versionFileName = "version.txt"

// BundleFS is a content-addressed store of serialized BPv7 bundles rooted
// at a base directory.
type BundleFS struct {
	base string
}

// Open creates (or verifies) the directory taxonomy under base and enforces
// the layout version gate.
func Open(base string) (*BundleFS, error) {
	if err := os.MkdirAll(base, 0o700); err != nil {
		return nil, fmt.Errorf("bfs: creating base directory: %w", err)
	}
	for _, cat := range []category{categorySingle, categoryGroup, categoryAdm} {
		if err := os.MkdirAll(filepath.Join(base, string(cat)), 0o700); err != nil {
			return nil, fmt.Errorf("bfs: creating %s directory: %w", cat, err)
		}
	}

	if err := checkVersion(base); err != nil {
		return nil, err
	}

	return &BundleFS{base: base}, nil
}

func checkVersion(base string) error {
	versionPath := filepath.Join(base, versionFileName)

	data, err := os.ReadFile(versionPath)
	switch {
	case os.IsNotExist(err):
		return os.WriteFile(versionPath, []byte(strconv.Itoa(Version)), 0o600)
	case err != nil:
		return fmt.Errorf("bfs: reading %s: %w", versionFileName, err)
	}

	onDisk, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("bfs: parsing %s: %w", versionFileName, err)
	}

	switch {
	case onDisk < Version:
		return ErrUpgradeNeeded
	case onDisk > Version:
		return ErrProgramOutdated
	default:
		return nil
	}
}

// pathFor returns the directory a bundle's file belongs in, per the
// taxonomy in classify.
func (s *BundleFS) pathFor(b *bpv7.Bundle) (string, error) {
	cat, nodeDir, err := classify(b)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.base, string(cat), nodeDir), nil
}

// SaveBundle writes a bundle's canonical wire form to its content-addressed
// path, creating parent directories as needed. If the target file already
// exists it is treated as canonical and left untouched. Returns its size on
// disk and the path written (or found).
func (s *BundleFS) SaveBundle(b *bpv7.Bundle) (size int64, path string, err error) {
	dir, err := s.pathFor(b)
	if err != nil {
		return 0, "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return 0, "", fmt.Errorf("bfs: creating %s: %w", dir, err)
	}

	bid := b.ID().String()
	path = filepath.Join(dir, filenameFor(bid))

	if info, statErr := os.Stat(path); statErr == nil {
		log.WithFields(log.Fields{"bundle": bid, "path": path}).Debug("bundle already on disk, skipping write")
		return info.Size(), path, nil
	} else if !os.IsNotExist(statErr) {
		return 0, "", fmt.Errorf("bfs: stat %s: %w", path, statErr)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("bfs: creating %s: %w", path, err)
	}
	defer f.Close()

	if err := b.WriteBundle(f); err != nil {
		return 0, "", fmt.Errorf("bfs: writing %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, "", fmt.Errorf("bfs: stat %s: %w", path, err)
	}

	log.WithFields(log.Fields{"bundle": bid, "path": path}).Debug("saved bundle")
	return info.Size(), path, nil
}

// FindFileByBID walks the base directory for the file matching bid,
// returning its path or "" if none exists.
func (s *BundleFS) FindFileByBID(bid string) (string, error) {
	target := filenameFor(bid)
	var found string

	err := filepath.WalkDir(s.base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == target {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("bfs: walking %s: %w", s.base, err)
	}
	return found, nil
}

// RemoveBundle deletes the file for bid, failing with ErrNotFound if absent.
func (s *BundleFS) RemoveBundle(bid string) error {
	path, err := s.FindFileByBID(bid)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: %s", ErrNotFound, bid)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("bfs: removing %s: %w", path, err)
	}
	return nil
}

// AllBIDs walks the base directory and decodes every ".bundle" filename it
// recognizes into a bundle identifier. Files whose names do not decode
// (e.g. an "ipn" scheme) are skipped with a warning.
func (s *BundleFS) AllBIDs() ([]string, error) {
	var bids []string

	err := filepath.WalkDir(s.base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".bundle" {
			return nil
		}
		stem := strings.TrimSuffix(d.Name(), ".bundle")
		if bid, ok := DecodeBID(stem); ok {
			bids = append(bids, bid)
		} else {
			log.WithField("file", path).Warn("bfs: unsupported bundle filename, skipping")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bfs: walking %s: %w", s.base, err)
	}
	return bids, nil
}

// AllBundleFiles walks the base directory like AllBIDs, but also returns
// each bundle's file path, for callers (the reconciler) that need both.
func (s *BundleFS) AllBundleFiles() (map[string]string, error) {
	files := make(map[string]string)

	err := filepath.WalkDir(s.base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".bundle" {
			return nil
		}
		stem := strings.TrimSuffix(d.Name(), ".bundle")
		if bid, ok := DecodeBID(stem); ok {
			files[bid] = path
		} else {
			log.WithField("file", path).Warn("bfs: unsupported bundle filename, skipping")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bfs: walking %s: %w", s.base, err)
	}
	return files, nil
}

// GetBundle loads and parses the bundle stored for bid.
func (s *BundleFS) GetBundle(bid string) (*bpv7.Bundle, error) {
	path, err := s.FindFileByBID(bid)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, bid)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bfs: opening %s: %w", path, err)
	}
	defer f.Close()

	b, err := bpv7.ParseBundle(f)
	if err != nil {
		return nil, fmt.Errorf("bfs: parsing %s: %w", path, err)
	}
	return &b, nil
}

// ImportBytes parses buf as a bundle and saves it, returning the parsed
// bundle alongside the size and path SaveBundle reports.
func (s *BundleFS) ImportBytes(buf []byte) (*bpv7.Bundle, int64, string, error) {
	b, err := bpv7.ParseBundle(bytes.NewReader(buf))
	if err != nil {
		return nil, 0, "", fmt.Errorf("bfs: parsing bundle: %w", err)
	}

	size, path, err := s.SaveBundle(&b)
	if err != nil {
		return nil, 0, "", err
	}
	return &b, size, path, nil
}

// ImportHex decodes hexStr and imports it like ImportBytes.
func (s *BundleFS) ImportHex(hexStr string) (*bpv7.Bundle, int64, string, error) {
	buf, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, 0, "", fmt.Errorf("bfs: decoding hex: %w", err)
	}
	return s.ImportBytes(buf)
}
