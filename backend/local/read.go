package local

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/tracking"
)

func (s *Store) scan(prefix []byte, fn func(key, val []byte) error) error {
	if s.closed.Load() {
		return errors.Wrap(errors.ErrClosed, "local: read")
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) get(key []byte, out any) error {
	if s.closed.Load() {
		return errors.Wrap(errors.ErrClosed, "local: read")
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrapf(errors.ErrNotFound, "local: %s", key)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// Series returns the points appended at path in write order.
func (s *Store) Series(path string) ([]tracking.Point, error) {
	var points []tracking.Point
	err := s.scan(scanPrefix(prefixSeries, path), func(_, val []byte) error {
		var p tracking.Point
		if err := json.Unmarshal(val, &p); err != nil {
			return err
		}
		points = append(points, p)
		return nil
	})
	return points, err
}

// SeriesPaths lists every path with at least one appended point, sorted.
func (s *Store) SeriesPaths() ([]string, error) {
	seen := make(map[string]struct{})
	err := s.scan([]byte(prefixSeries), func(key, _ []byte) error {
		rest := key[len(prefixSeries):]
		if i := bytes.IndexByte(rest, sep); i >= 0 {
			seen[string(rest[:i])] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// Value decodes the value set at path into out.
func (s *Store) Value(path string, out any) error {
	return s.get([]byte(prefixValue+path), out)
}

// Blob returns the blob uploaded at path.
func (s *Store) Blob(path string) (BlobRecord, error) {
	var rec BlobRecord
	err := s.get([]byte(prefixBlob+path), &rec)
	return rec, err
}

// Blobs returns the blobs appended at path in write order.
func (s *Store) Blobs(path string) ([]BlobRecord, error) {
	var recs []BlobRecord
	err := s.scan(scanPrefix(prefixBlob, path), func(_, val []byte) error {
		var rec BlobRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	})
	return recs, err
}

// Texts returns the text attachments written under tag in write order.
func (s *Store) Texts(tag string) ([]TextRecord, error) {
	var recs []TextRecord
	err := s.scan(scanPrefix(prefixText, tag), func(_, val []byte) error {
		var rec TextRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	})
	return recs, err
}

// Tag returns the version tag stored under key.
func (s *Store) Tag(key string) (string, error) {
	var v string
	err := s.get([]byte(prefixTag+key), &v)
	return v, err
}
