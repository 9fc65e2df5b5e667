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

package scan

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/cubefs/cellbrowser/datasource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/proto"
)

type (
	fakeSource struct {
		tables map[string]datasource.Table
	}

	// fakeTable serves cells from memory. When gate is set, Next blocks
	// on it before returning the cell at index blockAt and closes blocked
	// once it is parked there.
	fakeTable struct {
		name    string
		cells   []proto.Cell
		failAt  int
		failErr error
		blockAt int
		gate    chan struct{}

		blocked     chan struct{}
		blockedOnce sync.Once
	}

	fakeAsyncTable struct {
		*fakeTable
		batch int

		lock    sync.Mutex
		aborted bool
	}

	fakeScanner struct {
		t   *fakeTable
		pos int
	}
)

func genCells(n int) []proto.Cell {
	cells := make([]proto.Cell, n)
	for i := range cells {
		cells[i] = proto.Cell{
			Key:   proto.Key{Row: []byte(fmt.Sprintf("row%06d", i)), ColumnFamily: "cf", Timestamp: 1},
			Value: []byte(fmt.Sprintf("value%d", i)),
		}
	}
	return cells
}

func newFakeTable(name string, n int) *fakeTable {
	return &fakeTable{name: name, cells: genCells(n), failAt: -1, blockAt: -1}
}

func newFakeSource(tables ...datasource.Table) *fakeSource {
	s := &fakeSource{tables: make(map[string]datasource.Table)}
	for _, t := range tables {
		s.tables[t.Name()] = t
	}
	return s
}

func (s *fakeSource) Descriptor() string { return "fake://" }

func (s *fakeSource) ListNamespace(ctx context.Context, path string) ([]proto.DirEntry, error) {
	return nil, nil
}

func (s *fakeSource) OpenTable(ctx context.Context, namespace, table string) (datasource.Table, error) {
	t, ok := s.tables[proto.JoinPath(namespace, table)]
	if !ok {
		return nil, apierrors.ErrTableNotFound
	}
	return t, nil
}

func (s *fakeSource) Close() error { return nil }

func (t *fakeTable) Name() string { return t.name }

func (t *fakeTable) Scanner(ctx context.Context, spec proto.ScanSpec) (datasource.Scanner, error) {
	return &fakeScanner{t: t}, nil
}

func (t *fakeTable) Lookup(ctx context.Context, key proto.Key) (*proto.Cell, error) {
	for i := range t.cells {
		if t.cells[i].Key.Equal(&key) {
			c := t.cells[i]
			return &c, nil
		}
	}
	return nil, apierrors.ErrNotFound
}

func (sc *fakeScanner) Next() (proto.Cell, error) {
	if sc.pos == sc.t.blockAt && sc.t.gate != nil {
		if sc.t.blocked != nil {
			sc.t.blockedOnce.Do(func() { close(sc.t.blocked) })
		}
		<-sc.t.gate
	}
	if sc.pos == sc.t.failAt {
		return proto.Cell{}, sc.t.failErr
	}
	if sc.pos >= len(sc.t.cells) {
		return proto.Cell{}, io.EOF
	}
	sc.pos++
	return sc.t.cells[sc.pos-1], nil
}

func (sc *fakeScanner) Close() error { return nil }

func (t *fakeAsyncTable) ScanAsync(ctx context.Context, spec proto.ScanSpec, fn func(cells []proto.Cell) bool) error {
	for i := 0; i < len(t.cells); i += t.batch {
		if i >= t.blockAt && t.blockAt >= 0 && t.gate != nil {
			<-t.gate
			t.gate = nil
		}
		if t.failAt >= 0 && i >= t.failAt {
			return t.failErr
		}
		end := i + t.batch
		if end > len(t.cells) {
			end = len(t.cells)
		}
		if !fn(t.cells[i:end]) {
			t.lock.Lock()
			t.aborted = true
			t.lock.Unlock()
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (t *fakeAsyncTable) wasAborted() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.aborted
}
