// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package badgersource

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/badger/v2/pb"

	"github.com/cubefs/cellbrowser/datasource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/proto"
)

const Scheme = "badger"

var (
	catalogSpace = []byte{'c'}
	cellSpace    = []byte{'d'}
	sequenceKey  = []byte("s/table")

	errStopStream = errors.New("stream aborted by receiver")
)

type (
	Config struct {
		// Dir is the badger directory, empty means an in-memory store.
		Dir        string `json:"dir"`
		SyncWrites bool   `json:"sync_writes"`
	}

	// Source is a Badger backed engine. Tables implement AsyncScanner
	// through the badger Stream framework.
	Source struct {
		cfg     Config
		db      *badger.DB
		seq     *badger.Sequence
		catalog *datasource.Catalog
	}

	table struct {
		s    *Source
		name string
		id   uint64
	}

	scanner struct {
		txn     *badger.Txn
		it      *badger.Iterator
		spec    proto.ScanSpec
		end     []byte
		started bool
	}

	badgerLogger struct{}
)

var (
	_ datasource.Source       = (*Source)(nil)
	_ datasource.Admin        = (*Source)(nil)
	_ datasource.AsyncScanner = (*table)(nil)
	_ datasource.Mutator      = (*table)(nil)
)

func init() {
	datasource.Register(Scheme, func(ctx context.Context, location string) (datasource.Source, error) {
		return NewSource(ctx, &Config{Dir: location})
	})
}

func NewSource(ctx context.Context, cfg *Config) (*Source, error) {
	span := trace.SpanFromContextSafe(ctx)

	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.Dir == "").
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	seq, err := db.GetSequence(sequenceKey, 16)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Source{cfg: *cfg, db: db, seq: seq}
	s.catalog = datasource.NewCatalog(s)
	span.Infof("badger source opened, dir[%s] in-memory[%v]", cfg.Dir, cfg.Dir == "")
	return s, nil
}

func (s *Source) Descriptor() string {
	return Scheme + "://" + s.cfg.Dir
}

func (s *Source) ListNamespace(ctx context.Context, path string) ([]proto.DirEntry, error) {
	return s.catalog.List(ctx, path)
}

func (s *Source) OpenTable(ctx context.Context, namespace, name string) (datasource.Table, error) {
	id, err := s.catalog.ResolveTable(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	return &table{s: s, name: proto.JoinPath(namespace, name), id: id}, nil
}

func (s *Source) CreateNamespace(ctx context.Context, path string) error {
	return s.catalog.CreateNamespace(ctx, path)
}

func (s *Source) CreateTable(ctx context.Context, namespace, name string) error {
	return s.catalog.CreateTable(ctx, namespace, name)
}

func (s *Source) Close() error {
	s.seq.Release()
	return s.db.Close()
}

func (s *Source) GetCatalog(ctx context.Context, key []byte) (value []byte, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(withSpace(catalogSpace, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, apierrors.ErrNotFound
	}
	return
}

func (s *Source) PutCatalog(ctx context.Context, key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(withSpace(catalogSpace, key), value)
	})
}

func (s *Source) ListCatalog(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	prefix = withSpace(catalogSpace, prefix)
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err = fn(item.KeyCopy(nil)[len(catalogSpace):], value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Source) NextTableID(ctx context.Context) (uint64, error) {
	id, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	return id + 1, nil
}

func (t *table) Name() string {
	return t.name
}

func (t *table) Scanner(ctx context.Context, spec proto.ScanSpec) (datasource.Scanner, error) {
	start, end := datasource.ScanRange(t.id, &spec)
	txn := t.s.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = withSpace(cellSpace, datasource.TablePrefix(t.id))
	it := txn.NewIterator(opts)
	it.Seek(withSpace(cellSpace, start))
	return &scanner{
		txn:  txn,
		it:   it,
		spec: spec,
		end:  withSpace(cellSpace, end),
	}, nil
}

// ScanAsync streams the table with a single stream goroutine so batches
// reach fn in key order.
func (t *table) ScanAsync(ctx context.Context, spec proto.ScanSpec, fn func(cells []proto.Cell) bool) error {
	start, end := datasource.ScanRange(t.id, &spec)
	start, end = withSpace(cellSpace, start), withSpace(cellSpace, end)

	stream := t.s.db.NewStream()
	stream.NumGo = 1
	stream.Prefix = withSpace(cellSpace, datasource.TablePrefix(t.id))
	stream.LogPrefix = "cellbrowser.ScanAsync"
	stream.ChooseKey = func(item *badger.Item) bool {
		key := item.Key()
		if item.IsDeletedOrExpired() || bytes.Compare(key, start) < 0 || bytes.Compare(key, end) >= 0 {
			return false
		}
		_, k, err := datasource.DecodeCellKey(key[len(cellSpace):])
		return err == nil && spec.Contains(&k)
	}
	stream.Send = func(list *pb.KVList) error {
		cells := make([]proto.Cell, 0, len(list.Kv))
		for _, kv := range list.Kv {
			_, key, err := datasource.DecodeCellKey(kv.Key[len(cellSpace):])
			if err != nil {
				return err
			}
			cells = append(cells, proto.Cell{Key: key, Value: nullable(kv.Value)})
		}
		if len(cells) > 0 && !fn(cells) {
			return errStopStream
		}
		return nil
	}

	err := stream.Orchestrate(ctx)
	if errors.Is(err, errStopStream) {
		return nil
	}
	return err
}

func (t *table) Lookup(ctx context.Context, key proto.Key) (cell *proto.Cell, err error) {
	err = t.s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(withSpace(cellSpace, datasource.EncodeCellKey(t.id, &key)))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		cell = &proto.Cell{Key: key.Clone(), Value: nullable(value)}
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return nil, apierrors.ErrNotFound
	}
	return
}

func (t *table) Set(ctx context.Context, cells ...proto.Cell) error {
	datasource.AssignTimestamps(cells)
	wb := t.s.db.NewWriteBatch()
	defer wb.Cancel()
	for i := range cells {
		if err := wb.Set(withSpace(cellSpace, datasource.EncodeCellKey(t.id, &cells[i].Key)), cells[i].Value); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (t *table) DeleteRow(ctx context.Context, row []byte) error {
	prefix := withSpace(cellSpace, datasource.RowPrefix(t.id, row))
	var keys [][]byte
	err := t.s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := t.s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err = wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (sc *scanner) Next() (proto.Cell, error) {
	for {
		if sc.started {
			sc.it.Next()
		}
		sc.started = true

		if !sc.it.Valid() {
			return proto.Cell{}, io.EOF
		}
		item := sc.it.Item()
		if bytes.Compare(item.Key(), sc.end) >= 0 {
			return proto.Cell{}, io.EOF
		}
		_, key, err := datasource.DecodeCellKey(item.Key()[len(cellSpace):])
		if err != nil {
			return proto.Cell{}, err
		}
		if !sc.spec.Contains(&key) {
			continue
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return proto.Cell{}, err
		}
		return proto.Cell{Key: key, Value: nullable(value)}, nil
	}
}

func (sc *scanner) Close() error {
	sc.it.Close()
	sc.txn.Discard()
	return nil
}

func (badgerLogger) Errorf(format string, v ...interface{})   { log.Errorf(format, v...) }
func (badgerLogger) Warningf(format string, v ...interface{}) { log.Warnf(format, v...) }
func (badgerLogger) Infof(format string, v ...interface{})    { log.Debugf(format, v...) }
func (badgerLogger) Debugf(format string, v ...interface{})   { log.Debugf(format, v...) }

func withSpace(space, key []byte) []byte {
	b := make([]byte, 0, len(space)+len(key))
	return append(append(b, space...), key...)
}

func nullable(v []byte) []byte {
	if len(v) == 0 {
		return nil
	}
	return v
}
