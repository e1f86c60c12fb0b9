// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"sync"

	"github.com/dtn7/dtn7-go/pkg/bpv7"

	"github.com/dtn7/d7store/pkg/bindex"
	"github.com/dtn7/d7store/pkg/constraints"
)

// SafeStore wraps a Store with a process-wide mutex, serializing every
// operation. It is the thread-safe facade option for callers that share one
// Store across goroutines within a process.
type SafeStore struct {
	mu sync.Mutex
	s  *Store
}

// NewSafeStore wraps an already-open Store.
func NewSafeStore(s *Store) *SafeStore {
	return &SafeStore{s: s}
}

func (ss *SafeStore) Close() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.Close()
}

func (ss *SafeStore) Push(b *bpv7.Bundle) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.Push(b)
}

func (ss *SafeStore) ImportHexAndPush(hexStr string) (*bpv7.Bundle, string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.ImportHexAndPush(hexStr)
}

func (ss *SafeStore) Remove(bid string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.Remove(bid)
}

func (ss *SafeStore) ImportDir(dir string, recursive bool) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.ImportDir(dir, recursive)
}

func (ss *SafeStore) Sync() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.Sync()
}

func (ss *SafeStore) SyncToDB() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.SyncToDB()
}

func (ss *SafeStore) SyncWithFS() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.SyncWithFS()
}

func (ss *SafeStore) IDs() ([]string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.IDs()
}

func (ss *SafeStore) Len() (int, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.Len()
}

func (ss *SafeStore) GetBundleEntry(bid string) (bindex.BundleEntry, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.GetBundleEntry(bid)
}

func (ss *SafeStore) GetBundle(bid string) (*bpv7.Bundle, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.GetBundle(bid)
}

func (ss *SafeStore) PathForBundle(bid string) (string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.PathForBundle(bid)
}

func (ss *SafeStore) FilterNode(q string) ([]string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.FilterNode(q)
}

func (ss *SafeStore) FilterService(q string) ([]string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.FilterService(q)
}

func (ss *SafeStore) FilterNodeAndService(node, service string) ([]string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.FilterNodeAndService(node, service)
}

func (ss *SafeStore) FilterGroups(service string) ([]string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.FilterGroups(service)
}

func (ss *SafeStore) GetConstraints(bid string) (constraints.Constraints, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.GetConstraints(bid)
}

func (ss *SafeStore) SetConstraints(bid string, mask constraints.Constraints) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.SetConstraints(bid, mask)
}

func (ss *SafeStore) AddConstraints(bid string, mask constraints.Constraints) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.AddConstraints(bid, mask)
}

func (ss *SafeStore) RemoveConstraints(bid string, mask constraints.Constraints) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.RemoveConstraints(bid, mask)
}

func (ss *SafeStore) AllConstraints() ([]bindex.BIDConstraints, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.AllConstraints()
}

func (ss *SafeStore) FilterConstraints(mask constraints.Constraints) ([]string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.s.FilterConstraints(mask)
}
