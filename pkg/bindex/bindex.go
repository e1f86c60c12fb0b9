// SPDX-License-Identifier: GPL-3.0-or-later

// Package bindex implements the relational metadata and constraints index
// (BundleIndex): a SQLite-backed store of BundleEntry rows and mutable
// retention constraint bitmasks, keyed by bundle identifier.
package bindex

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dtn7/dtn7-go/pkg/bpv7"

	"github.com/dtn7/d7store/pkg/constraints"
)

const ddlBundles = `
CREATE TABLE IF NOT EXISTS bundles (
	id                INTEGER PRIMARY KEY,
	src_name          TEXT,
	src_service       TEXT,
	dst_name          TEXT,
	dst_service       TEXT,
	creation_time     INTEGER,
	seqno             INTEGER,
	lifetime          INTEGER,
	time_added_to_db  INTEGER,
	size              INTEGER
)`

const ddlConstraints = `
CREATE TABLE IF NOT EXISTS constraints (
	id          INTEGER PRIMARY KEY,
	constraints INTEGER
)`

const ddlBids = `
CREATE TABLE IF NOT EXISTS bids (
	id               INTEGER PRIMARY KEY,
	bid              TEXT NOT NULL UNIQUE,
	bundle_idx       INTEGER,
	constraints_idx  INTEGER,
	path             TEXT
)`

// BundleIndex is a SQLite-backed index over BundleEntry rows and their
// constraint bitmasks.
type BundleIndex struct {
	db *sql.DB
}

// Open creates path's parent directory if needed, opens the database and
// creates all three tables if missing.
func Open(path string) (*BundleIndex, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("bindex: creating %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("bindex: opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("bindex: ping: %w", err)
	}
	// SQLite allows only one writer at a time; avoid SQLITE_BUSY churn
	// across goroutines by funneling writes through a single connection.
	db.SetMaxOpenConns(1)

	idx := &BundleIndex{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *BundleIndex) migrate() error {
	for _, ddl := range []string{ddlBundles, ddlConstraints, ddlBids} {
		if _, err := idx.db.Exec(ddl); err != nil {
			return fmt.Errorf("bindex: migrate: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (idx *BundleIndex) Close() error {
	return idx.db.Close()
}

// indices looks up the (bids.id, bundle_idx, constraints_idx) triple for a
// bundle identifier.
func (idx *BundleIndex) indices(bid string) (bidsID, bundleIdx, constraintsIdx int64, err error) {
	row := idx.db.QueryRow("SELECT id, bundle_idx, constraints_idx FROM bids WHERE bid = ?", bid)
	if err := row.Scan(&bidsID, &bundleIdx, &constraintsIdx); err == sql.ErrNoRows {
		return 0, 0, 0, ErrNotFound
	} else if err != nil {
		return 0, 0, 0, fmt.Errorf("bindex: looking up %s: %w", bid, err)
	}
	return bidsID, bundleIdx, constraintsIdx, nil
}

// Exists reports whether bid has an index row.
func (idx *BundleIndex) Exists(bid string) (bool, error) {
	var count int
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM bids WHERE bid = ?", bid).Scan(&count); err != nil {
		return false, fmt.Errorf("bindex: exists %s: %w", bid, err)
	}
	return count > 0, nil
}

// Insert adds bid if absent; insertion is idempotent.
func (idx *BundleIndex) Insert(b *bpv7.Bundle, size int64, path string) error {
	bid := b.ID().String()
	exists, err := idx.Exists(bid)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	entry := EntryFromBundle(b, size)
	entry.TimeAddedToDB = uint64(time.Now().UnixMilli())

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("bindex: insert %s: %w", bid, err)
	}
	defer tx.Rollback()

	if err := insertTrio(tx, bid, entry, path); err != nil {
		return fmt.Errorf("bindex: insert %s: %w", bid, err)
	}
	return tx.Commit()
}

// insertTrio inserts the bundles/constraints/bids row triple for one entry,
// preparing its three statements fresh against tx. Used by the single-row
// Insert path, where there is no batch to amortize a prepared statement over.
func insertTrio(tx *sql.Tx, bid string, entry BundleEntry, path string) error {
	ins, err := newTrioInserter(tx)
	if err != nil {
		return err
	}
	defer ins.close()
	return ins.insert(bid, entry, path)
}

// trioInserter holds the three prepared statements InsertBulk reuses across
// an entire batch, instead of re-preparing them per row.
type trioInserter struct {
	bundles     *sql.Stmt
	constraints *sql.Stmt
	bids        *sql.Stmt
}

func newTrioInserter(tx *sql.Tx) (*trioInserter, error) {
	bundles, err := tx.Prepare(
		`INSERT INTO bundles (src_name, src_service, dst_name, dst_service, creation_time, seqno, lifetime, time_added_to_db, size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing bundles insert: %w", err)
	}

	constraintsStmt, err := tx.Prepare(`INSERT INTO constraints (constraints) VALUES (0)`)
	if err != nil {
		bundles.Close()
		return nil, fmt.Errorf("preparing constraints insert: %w", err)
	}

	bids, err := tx.Prepare(`INSERT INTO bids (bid, bundle_idx, constraints_idx, path) VALUES (?, ?, ?, ?)`)
	if err != nil {
		bundles.Close()
		constraintsStmt.Close()
		return nil, fmt.Errorf("preparing bids insert: %w", err)
	}

	return &trioInserter{bundles: bundles, constraints: constraintsStmt, bids: bids}, nil
}

func (ins *trioInserter) close() {
	ins.bundles.Close()
	ins.constraints.Close()
	ins.bids.Close()
}

func (ins *trioInserter) insert(bid string, entry BundleEntry, path string) error {
	res, err := ins.bundles.Exec(
		entry.SrcName, entry.SrcService, entry.DstName, entry.DstService,
		entry.CreationTime, entry.Seqno, entry.Lifetime, entry.TimeAddedToDB, entry.Size,
	)
	if err != nil {
		return fmt.Errorf("inserting bundle row: %w", err)
	}
	bundleID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	res, err = ins.constraints.Exec()
	if err != nil {
		return fmt.Errorf("inserting constraints row: %w", err)
	}
	constraintsID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	var pathArg interface{}
	if path != "" {
		pathArg = path
	}
	if _, err := ins.bids.Exec(bid, bundleID, constraintsID, pathArg); err != nil {
		return fmt.Errorf("inserting bids row: %w", err)
	}
	return nil
}

// PendingEntry is one (bid, BundleEntry, path) batch item for InsertBulk.
type PendingEntry struct {
	BID   string
	Entry BundleEntry
	Path  string
}

// InsertBulk inserts a batch of entries in a single transaction, preparing
// its three insert statements once and reusing them across every row.
// Callers must pre-filter duplicates; InsertBulk does not check existence.
func (idx *BundleIndex) InsertBulk(entries []PendingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("bindex: insert_bulk: %w", err)
	}
	defer tx.Rollback()

	ins, err := newTrioInserter(tx)
	if err != nil {
		return fmt.Errorf("bindex: insert_bulk: %w", err)
	}
	defer ins.close()

	now := uint64(time.Now().UnixMilli())
	for _, pe := range entries {
		entry := pe.Entry
		if entry.TimeAddedToDB == 0 {
			entry.TimeAddedToDB = now
		}
		if err := ins.insert(pe.BID, entry, pe.Path); err != nil {
			return fmt.Errorf("bindex: insert_bulk %s: %w", pe.BID, err)
		}
	}
	return tx.Commit()
}

// Delete removes the bundles/constraints/bids row triple for bid.
func (idx *BundleIndex) Delete(bid string) error {
	_, bundleIdx, constraintsIdx, err := idx.indices(bid)
	if err != nil {
		return err
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("bindex: delete %s: %w", bid, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM bids WHERE bid = ?`, bid); err != nil {
		return fmt.Errorf("bindex: delete %s: %w", bid, err)
	}
	if _, err := tx.Exec(`DELETE FROM bundles WHERE id = ?`, bundleIdx); err != nil {
		return fmt.Errorf("bindex: delete %s: %w", bid, err)
	}
	if _, err := tx.Exec(`DELETE FROM constraints WHERE id = ?`, constraintsIdx); err != nil {
		return fmt.Errorf("bindex: delete %s: %w", bid, err)
	}
	return tx.Commit()
}

// GetBundleEntry returns the BundleEntry stored for bid.
func (idx *BundleIndex) GetBundleEntry(bid string) (BundleEntry, error) {
	_, bundleIdx, _, err := idx.indices(bid)
	if err != nil {
		return BundleEntry{}, err
	}

	var e BundleEntry
	row := idx.db.QueryRow(
		`SELECT src_name, src_service, dst_name, dst_service, creation_time, seqno, lifetime, time_added_to_db, size
		 FROM bundles WHERE id = ?`, bundleIdx)
	if err := row.Scan(&e.SrcName, &e.SrcService, &e.DstName, &e.DstService,
		&e.CreationTime, &e.Seqno, &e.Lifetime, &e.TimeAddedToDB, &e.Size); err != nil {
		return BundleEntry{}, fmt.Errorf("bindex: get_bundle_entry %s: %w", bid, err)
	}
	return e, nil
}

// PathForBundle returns the stored path column for bid, which may be empty.
func (idx *BundleIndex) PathForBundle(bid string) (string, error) {
	var path sql.NullString
	err := idx.db.QueryRow(`SELECT path FROM bids WHERE bid = ?`, bid).Scan(&path)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	} else if err != nil {
		return "", fmt.Errorf("bindex: path_for_bundle %s: %w", bid, err)
	}
	return path.String, nil
}

// IDs returns every bundle identifier in the index.
func (idx *BundleIndex) IDs() ([]string, error) {
	return queryStrings(idx.db, `SELECT bid FROM bids`)
}

// Len returns the number of rows in bids.
func (idx *BundleIndex) Len() (int, error) {
	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM bids`).Scan(&n); err != nil {
		return 0, fmt.Errorf("bindex: len: %w", err)
	}
	return n, nil
}

// FilterNode returns identifiers whose source or destination node matches q
// (an SQL LIKE pattern; callers supply "%" wildcards).
func (idx *BundleIndex) FilterNode(q string) ([]string, error) {
	return queryStrings(idx.db,
		`SELECT bids.bid FROM bids INNER JOIN bundles ON bundles.id = bids.bundle_idx
		 WHERE bundles.src_name LIKE ? OR bundles.dst_name LIKE ?`, q, q)
}

// FilterService returns identifiers whose source or destination service
// matches q.
func (idx *BundleIndex) FilterService(q string) ([]string, error) {
	return queryStrings(idx.db,
		`SELECT bids.bid FROM bids INNER JOIN bundles ON bundles.id = bids.bundle_idx
		 WHERE bundles.src_service LIKE ? OR bundles.dst_service LIKE ?`, q, q)
}

// FilterNodeAndService is the conjunction of FilterNode(node) and
// FilterService(service).
func (idx *BundleIndex) FilterNodeAndService(node, service string) ([]string, error) {
	return queryStrings(idx.db,
		`SELECT bids.bid FROM bids INNER JOIN bundles ON bundles.id = bids.bundle_idx
		 WHERE (bundles.src_name LIKE ? OR bundles.dst_name LIKE ?)
		   AND (bundles.src_service LIKE ? OR bundles.dst_service LIKE ?)`,
		node, node, service, service)
}

// FilterGroups returns the distinct destination nodes whose destination
// service matches service, intended for group-endpoint discovery.
func (idx *BundleIndex) FilterGroups(service string) ([]string, error) {
	return queryStrings(idx.db,
		`SELECT DISTINCT bundles.dst_name FROM bids INNER JOIN bundles ON bundles.id = bids.bundle_idx
		 WHERE bundles.dst_service LIKE ?`, service)
}

// SetConstraints overwrites bid's constraint mask.
func (idx *BundleIndex) SetConstraints(bid string, mask constraints.Constraints) error {
	return idx.updateConstraints(bid, `UPDATE constraints SET constraints = ? WHERE id = ?`, mask.Bits())
}

// AddConstraints bitwise-ORs mask into bid's constraint mask.
func (idx *BundleIndex) AddConstraints(bid string, mask constraints.Constraints) error {
	return idx.updateConstraints(bid, `UPDATE constraints SET constraints = constraints | ? WHERE id = ?`, mask.Bits())
}

// RemoveConstraints bitwise-ANDs the complement of mask into bid's
// constraint mask.
func (idx *BundleIndex) RemoveConstraints(bid string, mask constraints.Constraints) error {
	return idx.updateConstraints(bid, `UPDATE constraints SET constraints = constraints & ~? WHERE id = ?`, mask.Bits())
}

func (idx *BundleIndex) updateConstraints(bid, stmt string, bits uint64) error {
	_, _, constraintsIdx, err := idx.indices(bid)
	if err != nil {
		return err
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("bindex: update constraints %s: %w", bid, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt, bits, constraintsIdx); err != nil {
		return fmt.Errorf("bindex: update constraints %s: %w", bid, err)
	}
	return tx.Commit()
}

// GetConstraints returns bid's current constraint mask.
func (idx *BundleIndex) GetConstraints(bid string) (constraints.Constraints, error) {
	_, _, constraintsIdx, err := idx.indices(bid)
	if err != nil {
		return 0, err
	}

	var bits uint64
	if err := idx.db.QueryRow(`SELECT constraints FROM constraints WHERE id = ?`, constraintsIdx).Scan(&bits); err != nil {
		return 0, fmt.Errorf("bindex: get_constraints %s: %w", bid, err)
	}
	return constraints.FromBits(bits)
}

// BIDConstraints pairs an identifier with its current constraint mask.
type BIDConstraints struct {
	BID         string
	Constraints constraints.Constraints
}

// AllConstraints returns the current constraint mask for every indexed
// bundle.
func (idx *BundleIndex) AllConstraints() ([]BIDConstraints, error) {
	rows, err := idx.db.Query(
		`SELECT bids.bid, constraints.constraints FROM bids
		 INNER JOIN constraints ON constraints.id = bids.constraints_idx`)
	if err != nil {
		return nil, fmt.Errorf("bindex: all_constraints: %w", err)
	}
	defer rows.Close()

	var out []BIDConstraints
	for rows.Next() {
		var bid string
		var bits uint64
		if err := rows.Scan(&bid, &bits); err != nil {
			return nil, fmt.Errorf("bindex: all_constraints: %w", err)
		}
		c, err := constraints.FromBits(bits)
		if err != nil {
			return nil, fmt.Errorf("bindex: all_constraints %s: %w", bid, err)
		}
		out = append(out, BIDConstraints{BID: bid, Constraints: c})
	}
	return out, rows.Err()
}

// FilterConstraints returns identifiers whose stored mask shares at least
// one set bit with mask ("any overlap" semantics).
func (idx *BundleIndex) FilterConstraints(mask constraints.Constraints) ([]string, error) {
	return queryStrings(idx.db,
		`SELECT bids.bid FROM bids INNER JOIN constraints ON constraints.id = bids.constraints_idx
		 WHERE constraints.constraints & ? != 0`, mask.Bits())
}

func queryStrings(db *sql.DB, query string, args ...interface{}) ([]string, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("bindex: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("bindex: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
