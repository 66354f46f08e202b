package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

// Key prefixes. Snapshots are keyed by graph name, manifests by graph name
// and a monotonically increasing sequence number.
const (
	prefixSnapshot = byte(0x01)
	prefixManifest = byte(0x02)
)

var seqKey = []byte{0xff, 's', 'e', 'q'}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("snapshot store closed")

// Options configures a BadgerStore.
type Options struct {
	// Dir is the badger data directory. Ignored when InMemory is set.
	Dir        string
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger
}

// BadgerStore persists snapshots and manifest logs in BadgerDB.
type BadgerStore struct {
	mu     sync.RWMutex
	db     *badger.DB
	seq    *badger.Sequence
	closed bool
	logger *slog.Logger
}

// Open opens or creates a store.
func Open(opts Options) (*BadgerStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	badgerOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.
		WithLogger(badgerLogger{logger: logger}).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(8 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, errors.Wrap(err, "opening badger")
	}
	seq, err := db.GetSequence(seqKey, 64)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "opening manifest sequence")
	}
	return &BadgerStore{db: db, seq: seq, logger: logger}, nil
}

// Close releases the manifest sequence and closes the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.seq.Release(); err != nil {
		s.logger.Warn("releasing manifest sequence", "error", err)
	}
	return errors.Wrap(s.db.Close(), "closing badger")
}

func snapshotKey(graph string) []byte {
	return append([]byte{prefixSnapshot}, graph...)
}

// manifestPrefix ends in a separator so "home" does not match "home2".
func manifestPrefix(graph string) []byte {
	key := make([]byte, 0, 2+len(graph))
	key = append(key, prefixManifest)
	key = append(key, graph...)
	return append(key, 0x00)
}

func manifestKey(graph string, n uint64) []byte {
	key := manifestPrefix(graph)
	return binary.BigEndian.AppendUint64(key, n)
}

func checkGraph(graph string) error {
	if strings.TrimSpace(graph) == "" {
		return models.Validationf("graph name is required")
	}
	if strings.IndexByte(graph, 0x00) >= 0 {
		return models.Validationf("graph name %q contains a NUL byte", graph)
	}
	return nil
}

// Save stores snap under snap.Graph, replacing any earlier snapshot.
func (s *BadgerStore) Save(snap *models.Snapshot) error {
	if snap == nil {
		return models.Validationf("snapshot is nil")
	}
	if err := checkGraph(snap.Graph); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(snap.Graph), data)
	})
	if err != nil {
		return errors.Wrapf(err, "saving snapshot %s", snap.Graph)
	}
	s.logger.Debug("snapshot saved", "graph", snap.Graph, "entities", len(snap.Entities),
		"relationships", len(snap.Relationships), "bytes", len(data))
	return nil
}

// Load returns the stored snapshot of graph, or an ErrNotFound error when
// none has been saved.
func (s *BadgerStore) Load(graph string) (*models.Snapshot, error) {
	if err := checkGraph(graph); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var snap *models.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(graph))
		if err == badger.ErrKeyNotFound {
			return models.NotFoundf("snapshot %s", graph)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snap = &models.Snapshot{}
			return json.Unmarshal(val, snap)
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "loading snapshot %s", graph)
	}
	return snap, nil
}

// Graphs lists the names of every graph with a saved snapshot.
func (s *BadgerStore) Graphs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte{prefixSnapshot}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(it.Item().Key()[1:]))
		}
		return nil
	})
	return names, errors.Wrap(err, "listing graphs")
}

// AppendManifest adds m to the end of graph's manifest log.
func (s *BadgerStore) AppendManifest(graph string, m models.Manifest) error {
	if err := checkGraph(graph); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encoding manifest")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	n, err := s.seq.Next()
	if err != nil {
		return errors.Wrap(err, "next manifest sequence")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey(graph, n), data)
	})
	return errors.Wrapf(err, "appending manifest %s", m.ObservationID)
}

// Manifests returns graph's manifest log, oldest first. limit > 0 keeps only
// the newest limit entries.
func (s *BadgerStore) Manifests(graph string, limit int) ([]models.Manifest, error) {
	if err := checkGraph(graph); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []models.Manifest
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := manifestPrefix(graph)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m models.Manifest
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return errors.Wrapf(err, "decoding manifest %x", bytes.TrimPrefix(it.Item().Key(), prefix))
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifests %s", graph)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// badgerLogger routes badger's own logging through slog. Badger is chatty
// at info level, so info and debug both go to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error("badger", "msg", strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn("badger", "msg", strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug("badger", "msg", strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug("badger", "msg", strings.TrimSpace(fmt.Sprintf(format, args...)))
}
