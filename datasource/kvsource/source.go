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

package kvsource

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"

	"github.com/cubefs/cellbrowser/common/kvstore"
	"github.com/cubefs/cellbrowser/datasource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/proto"
)

const (
	Scheme = "rocksdb"

	catalogCF = kvstore.CF("catalog")
	cellsCF   = kvstore.CF("cells")
)

var sequenceKey = []byte("seq/table")

type (
	Config struct {
		Path     string         `json:"path"`
		KVOption kvstore.Option `json:"kv_option"`
	}

	// Source keeps the catalog and the cells of every table in two column
	// families of one RocksDB instance. Tables only support pull scans,
	// each reading from its own snapshot. Catalog writes are synced.
	Source struct {
		path    string
		store   kvstore.Store
		syncOpt kvstore.WriteOption
		catalog *datasource.Catalog
		seqLock sync.Mutex
	}

	table struct {
		s    *Source
		name string
		id   uint64
	}

	scanner struct {
		lr   kvstore.ListReader
		ro   kvstore.ReadOption
		snap kvstore.Snapshot
		spec proto.ScanSpec
	}
)

var (
	_ datasource.Source  = (*Source)(nil)
	_ datasource.Admin   = (*Source)(nil)
	_ datasource.Mutator = (*table)(nil)
)

func init() {
	datasource.Register(Scheme, func(ctx context.Context, location string) (datasource.Source, error) {
		return NewSource(ctx, &Config{Path: location})
	})
}

func NewSource(ctx context.Context, cfg *Config) (*Source, error) {
	span := trace.SpanFromContextSafe(ctx)

	opt := cfg.KVOption
	opt.CreateIfMissing = true
	opt.ColumnFamily = append(opt.ColumnFamily, catalogCF, cellsCF)
	store, err := kvstore.NewKVStore(ctx, cfg.Path, kvstore.RocksdbLsmKVType, &opt)
	if err != nil {
		return nil, errors.Info(err, "open rocksdb failed")
	}

	syncOpt := store.NewWriteOption()
	syncOpt.SetSync(true)
	s := &Source{path: cfg.Path, store: store, syncOpt: syncOpt}
	s.catalog = datasource.NewCatalog(s)
	span.Infof("rocksdb source opened at %s", cfg.Path)
	return s, nil
}

func (s *Source) Descriptor() string {
	return Scheme + "://" + s.path
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

func (s *Source) Stats(ctx context.Context) (kvstore.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Source) Close() error {
	s.syncOpt.Close()
	s.store.Close()
	return nil
}

func (s *Source) GetCatalog(ctx context.Context, key []byte) ([]byte, error) {
	value, err := s.store.GetRaw(ctx, catalogCF, key, nil)
	if err == kvstore.ErrNotFound {
		return nil, apierrors.ErrNotFound
	}
	return value, err
}

func (s *Source) PutCatalog(ctx context.Context, key, value []byte) error {
	return s.store.SetRaw(ctx, catalogCF, key, value, s.syncOpt)
}

func (s *Source) ListCatalog(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	lr := s.store.List(ctx, catalogCF, prefix, nil, nil)
	defer lr.Close()
	for {
		key, value, err := lr.ReadNextCopy()
		if err != nil {
			return err
		}
		if key == nil {
			return nil
		}
		if err = fn(key, value); err != nil {
			return err
		}
	}
}

func (s *Source) NextTableID(ctx context.Context) (uint64, error) {
	s.seqLock.Lock()
	defer s.seqLock.Unlock()

	var id uint64
	raw, err := s.store.GetRaw(ctx, catalogCF, sequenceKey, nil)
	switch err {
	case nil:
		id = binary.BigEndian.Uint64(raw)
	case kvstore.ErrNotFound:
	default:
		return 0, err
	}
	id++
	raw = make([]byte, 8)
	binary.BigEndian.PutUint64(raw, id)
	if err = s.store.SetRaw(ctx, catalogCF, sequenceKey, raw, s.syncOpt); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *table) Name() string {
	return t.name
}

func (t *table) Scanner(ctx context.Context, spec proto.ScanSpec) (datasource.Scanner, error) {
	start, end := datasource.ScanRange(t.id, &spec)
	snap := t.s.store.NewSnapshot()
	ro := t.s.store.NewReadOption()
	ro.SetSnapShot(snap)
	return &scanner{
		lr:   t.s.store.ListRange(ctx, cellsCF, start, end, ro),
		ro:   ro,
		snap: snap,
		spec: spec,
	}, nil
}

func (t *table) Lookup(ctx context.Context, key proto.Key) (*proto.Cell, error) {
	value, err := t.s.store.GetRaw(ctx, cellsCF, datasource.EncodeCellKey(t.id, &key), nil)
	if err != nil {
		if err == kvstore.ErrNotFound {
			return nil, apierrors.ErrNotFound
		}
		return nil, err
	}
	return &proto.Cell{Key: key.Clone(), Value: nullable(value)}, nil
}

func (t *table) Set(ctx context.Context, cells ...proto.Cell) error {
	datasource.AssignTimestamps(cells)
	batch := t.s.store.NewWriteBatch()
	defer batch.Close()
	for i := range cells {
		batch.Put(cellsCF, datasource.EncodeCellKey(t.id, &cells[i].Key), cells[i].Value)
	}
	return t.s.store.Write(ctx, batch, nil)
}

func (t *table) DeleteRow(ctx context.Context, row []byte) error {
	start, end := datasource.ScanRange(t.id, &proto.ScanSpec{Row: row})
	batch := t.s.store.NewWriteBatch()
	defer batch.Close()
	batch.DeleteRange(cellsCF, start, end)
	return t.s.store.Write(ctx, batch, nil)
}

func (sc *scanner) Next() (proto.Cell, error) {
	for {
		raw, value, err := sc.lr.ReadNextCopy()
		if err != nil {
			return proto.Cell{}, err
		}
		if raw == nil {
			return proto.Cell{}, io.EOF
		}
		_, key, err := datasource.DecodeCellKey(raw)
		if err != nil {
			return proto.Cell{}, err
		}
		if sc.spec.Contains(&key) {
			return proto.Cell{Key: key, Value: nullable(value)}, nil
		}
	}
}

func (sc *scanner) Close() error {
	sc.lr.Close()
	sc.ro.Close()
	sc.snap.Close()
	return nil
}

func nullable(v []byte) []byte {
	if len(v) == 0 {
		return nil
	}
	return v
}
