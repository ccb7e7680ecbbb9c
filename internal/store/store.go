// Package store persists the pending change log and offline entity
// snapshots in a local BoltDB file.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/timestitch/timestitch/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketChangeLog = []byte("changelog")
	bucketProjects  = []byte("projects")
	bucketMemories  = []byte("memories")
	bucketMeta      = []byte("meta")
)

const metaKeyLastSync = "last_sync_at"

// JournalStore implements domain.ChangeLog and domain.SnapshotStore using
// BoltDB. Change log entries are keyed by a monotonic sequence number, so
// cursor order is append order.
type JournalStore struct {
	db     *bolt.DB
	logger *slog.Logger

	// Serializes append/remove/clear so a sync drain never races a fresh
	// append on the log.
	mu sync.Mutex
}

// NewJournalStore opens (creating if needed) the store under dir.
func NewJournalStore(dir string, logger *slog.Logger) (*JournalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dbPath := filepath.Join(dir, "timestitch.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketChangeLog, bucketProjects, bucketMemories, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &JournalStore{db: db, logger: logger}, nil
}

func (s *JournalStore) Close() error {
	return s.db.Close()
}

// === Change log ===

// Append adds one change to the end of the log, durably, before returning.
func (s *JournalStore) Append(change domain.PendingChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(change)
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Err: err}
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChangeLog)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return &domain.PersistenceError{Op: "write", Err: err}
	}
	return nil
}

// ReadAll returns the queued changes in append order. Corrupt entries are
// dropped with a diagnostic rather than surfaced; absent storage reads as
// an empty log.
func (s *JournalStore) ReadAll() []domain.PendingChange {
	var changes []domain.PendingChange

	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChangeLog)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var change domain.PendingChange
			if err := json.Unmarshal(v, &change); err != nil {
				s.logger.Warn("dropping unparseable change log entry", "key", fmt.Sprintf("%x", k), "error", err)
				continue
			}
			changes = append(changes, change)
		}
		return nil
	})

	return changes
}

// RemoveApplied deletes entries whose change IDs are in ids. Unknown IDs
// are a no-op; remaining entries keep their relative order.
func (s *JournalStore) RemoveApplied(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChangeLog)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var change domain.PendingChange
			if err := json.Unmarshal(v, &change); err != nil {
				continue
			}
			if applied[change.ID] {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return &domain.PersistenceError{Op: "write", Err: err}
	}
	return nil
}

// Clear empties the change log unconditionally.
func (s *JournalStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketChangeLog); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketChangeLog)
		return err
	})
	if err != nil {
		return &domain.PersistenceError{Op: "write", Err: err}
	}
	return nil
}

// Len returns the number of readable queued changes.
func (s *JournalStore) Len() int {
	return len(s.ReadAll())
}

// === Entity snapshots ===

func (s *JournalStore) SaveProjects(projects []domain.Project) error {
	return s.set(bucketProjects, "list", projects)
}

func (s *JournalStore) LoadProjects() ([]domain.Project, bool) {
	var projects []domain.Project
	ok := s.get(bucketProjects, "list", &projects)
	return projects, ok
}

func (s *JournalStore) SaveMemories(memories []domain.Memory) error {
	return s.set(bucketMemories, "list", memories)
}

func (s *JournalStore) LoadMemories() ([]domain.Memory, bool) {
	var memories []domain.Memory
	ok := s.get(bucketMemories, "list", &memories)
	return memories, ok
}

// === Sync metadata ===

func (s *JournalStore) SetLastSyncAt(t time.Time) error {
	return s.set(bucketMeta, metaKeyLastSync, t.Format(time.RFC3339Nano))
}

func (s *JournalStore) LastSyncAt() (time.Time, bool) {
	var raw string
	if !s.get(bucketMeta, metaKeyLastSync, &raw) {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// === Generic helpers ===

func (s *JournalStore) get(bucket []byte, key string, dest interface{}) bool {
	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		s.logger.Warn("dropping unparseable stored value", "bucket", string(bucket), "key", key, "error", err)
		return false
	}
	return true
}

func (s *JournalStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Err: err}
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return &domain.PersistenceError{Op: "write", Err: err}
	}
	return nil
}

// seqKey encodes a bolt sequence number as a big-endian key so byte order
// matches numeric order.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
