package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrStorageClosed = errors.New("storage closed")
)

// Key prefixes for BadgerDB storage organization.
// Using single-byte prefixes for efficiency.
const (
	prefixSnapshot = byte(0x01) // snapshot:name -> JSON(GraphDocument)
	prefixAudit    = byte(0x02) // audit:name:seq -> JSON(AuditEntry)
	prefixAuditSeq = byte(0x03) // auditseq:name -> uint64 counter
)

// AuditEntry records one replacement performed during an optimization run:
// which rule fired, in which pass, and what the replacement did. Together
// the entries of a run trace every optimized node back to the original
// user-authored nodes it descends from.
type AuditEntry struct {
	Rule       string    `json:"rule"`
	Pass       int       `json:"pass"`
	Removed    []string  `json:"removed,omitempty"`
	Inserted   []string  `json:"inserted,omitempty"`
	MergedTags []string  `json:"mergedTags,omitempty"`
	At         time.Time `json:"at"`
}

// Store persists graph snapshots and audit journals in BadgerDB.
//
// Features:
//   - ACID transactions for all operations
//   - Snapshots keyed by run name, overwritten on re-save
//   - Audit journal per run, append-only, replayed in append order
//
// Example:
//
//	store, err := storage.Open("./data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	store.SaveSnapshot("run-1/optimized", doc)
//	store.AppendAudit("run-1", entry)
type Store struct {
	db     *badger.DB
	mu     sync.Mutex // serializes audit sequence allocation
	closed bool
}

// Options configures the store.
type Options struct {
	// DataDir is the directory for data files. Required unless InMemory.
	DataDir string

	// InMemory keeps everything in RAM; useful for tests.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but more durable.
	SyncWrites bool
}

// Open creates a persistent store under dataDir with default settings.
func Open(dataDir string) (*Store, error) {
	return OpenWithOptions(Options{DataDir: dataDir})
}

// OpenWithOptions creates a store with custom configuration.
func OpenWithOptions(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	// Quiet logger; audit volumes are tiny compared to badger defaults.
	badgerOpts = badgerOpts.
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func snapshotKey(name string) []byte {
	return append([]byte{prefixSnapshot}, name...)
}

func auditSeqKey(name string) []byte {
	return append([]byte{prefixAuditSeq}, name...)
}

func auditKey(name string, seq uint64) []byte {
	key := append([]byte{prefixAudit}, name...)
	key = append(key, 0x00)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

// SaveSnapshot stores a graph document under name, overwriting any previous
// snapshot with that name.
func (s *Store) SaveSnapshot(name string, doc *GraphDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", name, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(name), data)
	})
}

// LoadSnapshot retrieves the graph document stored under name.
func (s *Store) LoadSnapshot(name string) (*GraphDocument, error) {
	var doc GraphDocument
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("snapshot %q: %w", name, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// AppendAudit appends an entry to the named run's journal.
func (s *Store) AppendAudit(name string, entry AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("append audit %q: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		seq := uint64(0)
		item, err := txn.Get(auditSeqKey(name))
		if err == nil {
			if err := item.Value(func(val []byte) error {
				seq = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(auditKey(name, seq), data); err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], seq+1)
		return txn.Set(auditSeqKey(name), buf[:])
	})
}

// Audit returns the named run's journal in append order.
func (s *Store) Audit(name string) ([]AuditEntry, error) {
	prefix := append([]byte{prefixAudit}, name...)
	prefix = append(prefix, 0x00)

	var entries []AuditEntry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         prefix,
			PrefetchValues: true,
			PrefetchSize:   64,
		})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var entry AuditEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
