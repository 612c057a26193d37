// Package local is an embedded tracking backend on BadgerDB. Series,
// values, blobs and text attachments of one run live in a single database,
// by default under <logdir>/tracking.
package local

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/runtrack/backend"
	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// Kind is the backend kind of the badger store.
const Kind = "local"

const (
	prefixSeries = "series/"
	prefixValue  = "value/"
	prefixBlob   = "blob/"
	prefixText   = "text/"
	prefixTag    = "tag/"

	keyRunID    = "meta/run_id"
	keySequence = "meta/seq"

	// separates a path from its sequence number; paths never contain NUL
	sep = 0

	sequenceBandwidth = 128
)

func init() {
	backend.Register(Kind, func(_ context.Context, cfg backend.Config) (tracking.Sink, error) {
		return Open(Config{
			Dir:        cfg.Local.Dir,
			InMemory:   cfg.Local.InMemory,
			SyncWrites: cfg.Local.SyncWrites,
		})
	})
}

// Config configures a Store.
type Config struct {
	// Dir is required unless InMemory is set.
	Dir        string
	InMemory   bool
	SyncWrites bool
	Logger     log.Logger
}

// Stored blob and text records.
type (
	BlobRecord struct {
		Data        []byte    `json:"data"`
		ContentType string    `json:"content_type"`
		Source      string    `json:"source,omitempty"`
		Step        int64     `json:"step"`
		Time        time.Time `json:"time"`
	}

	TextRecord struct {
		Text string    `json:"text"`
		Step int64     `json:"step"`
		Time time.Time `json:"time"`
	}
)

// Store is a tracking.Sink on BadgerDB. It is safe for concurrent use.
type Store struct {
	db       *badger.DB
	seq      *badger.Sequence
	runID    string
	inMemory bool
	closed   atomic.Bool
	logger   log.Logger
	now      func() time.Time
}

// badgerLogger adapts log.Logger to badger's Logger interface.
type badgerLogger struct {
	logger log.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens or creates the store. Reopening a directory keeps its run id.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.NewValidationError("local.dir", "directory is required for a persistent store", cfg.Dir)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("backend.local")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, errors.NewBackendError(Kind, "create directory", err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.NewBackendError(Kind, "open", err)
	}

	s := &Store{db: db, inMemory: cfg.InMemory, logger: logger, now: time.Now}
	if err := s.loadRunID(); err != nil {
		db.Close()
		return nil, errors.NewBackendError(Kind, "run id", err)
	}
	if s.seq, err = db.GetSequence([]byte(keySequence), sequenceBandwidth); err != nil {
		db.Close()
		return nil, errors.NewBackendError(Kind, "sequence", err)
	}

	logger.Debug("store opened", log.RunIDKey, s.runID, log.FileKey, cfg.Dir)
	return s, nil
}

func (s *Store) loadRunID() error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyRunID))
		if err == nil {
			return item.Value(func(val []byte) error {
				s.runID = string(val)
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		s.runID = uuid.NewString()
		return txn.Set([]byte(keyRunID), []byte(s.runID))
	})
}

// RunID identifies the run recorded in this store.
func (s *Store) RunID() string {
	return s.runID
}

func seriesKey(prefix, path string, n uint64) []byte {
	key := make([]byte, 0, len(prefix)+len(path)+9)
	key = append(key, prefix...)
	key = append(key, path...)
	key = append(key, sep)
	return binary.BigEndian.AppendUint64(key, n)
}

func scanPrefix(prefix, path string) []byte {
	key := make([]byte, 0, len(prefix)+len(path)+1)
	key = append(key, prefix...)
	key = append(key, path...)
	return append(key, sep)
}

func (s *Store) put(op string, key []byte, v any) error {
	if s.closed.Load() {
		return errors.Wrapf(errors.ErrClosed, "local: %s", op)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "local: %s: encode", op)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return errors.NewBackendError(Kind, op, err)
	}
	return nil
}

func (s *Store) next() (uint64, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, errors.NewBackendError(Kind, "sequence", err)
	}
	return n, nil
}

func (s *Store) AppendValue(_ context.Context, path string, value float64, step int64) error {
	if s.closed.Load() {
		return errors.Wrapf(errors.ErrClosed, "local: append %s", path)
	}
	n, err := s.next()
	if err != nil {
		return err
	}
	return s.put("append value", seriesKey(prefixSeries, path, n), tracking.Point{Step: step, Value: value, Time: s.now()})
}

func (s *Store) SetValue(_ context.Context, path string, value any) error {
	return s.put("set value", []byte(prefixValue+path), value)
}

func (s *Store) blobRecord(blob tracking.Blob, step int64) (BlobRecord, error) {
	data, err := blob.Bytes()
	if err != nil {
		return BlobRecord{}, err
	}
	return BlobRecord{
		Data:        data,
		ContentType: blob.ContentType,
		Source:      blob.FilePath,
		Step:        step,
		Time:        s.now(),
	}, nil
}

func (s *Store) Upload(_ context.Context, path string, blob tracking.Blob) error {
	rec, err := s.blobRecord(blob, 0)
	if err != nil {
		return err
	}
	return s.put("upload", []byte(prefixBlob+path), rec)
}

func (s *Store) AppendBlob(_ context.Context, path string, blob tracking.Blob, step int64) error {
	if s.closed.Load() {
		return errors.Wrapf(errors.ErrClosed, "local: append blob %s", path)
	}
	rec, err := s.blobRecord(blob, step)
	if err != nil {
		return err
	}
	n, err := s.next()
	if err != nil {
		return err
	}
	return s.put("append blob", seriesKey(prefixBlob, path, n), rec)
}

func (s *Store) WriteText(_ context.Context, tag, text string, step int64) error {
	if s.closed.Load() {
		return errors.Wrapf(errors.ErrClosed, "local: write text %s", tag)
	}
	n, err := s.next()
	if err != nil {
		return err
	}
	return s.put("write text", seriesKey(prefixText, tag, n), TextRecord{Text: text, Step: step, Time: s.now()})
}

// TrySetVersionTag stores the tag and reports whether it was written.
func (s *Store) TrySetVersionTag(_ context.Context, key, value string) bool {
	if err := s.put("version tag", []byte(prefixTag+key), value); err != nil {
		s.logger.Debug("version tag not stored", log.PathKey, key, log.ErrAttrKey, err.Error())
		return false
	}
	return true
}

// Flush syncs the value log to disk.
func (s *Store) Flush(context.Context) error {
	if s.closed.Load() || s.inMemory {
		return nil
	}
	if err := s.db.Sync(); err != nil {
		return errors.NewBackendError(Kind, "sync", err)
	}
	return nil
}

// Close releases the sequence lease and closes the database. Calling it
// more than once is a no-op.
func (s *Store) Close(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.seq.Release(); err != nil {
		s.logger.Warn("release sequence", log.ErrAttrKey, err.Error())
	}
	if err := s.db.Close(); err != nil {
		return errors.NewBackendError(Kind, "close", err)
	}
	return nil
}

var (
	_ tracking.Sink          = (*Store)(nil)
	_ tracking.VersionTagger = (*Store)(nil)
)
