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

package directory

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/cellbrowser/affinity"
	"github.com/cubefs/cellbrowser/collection"
	"github.com/cubefs/cellbrowser/datasource"
	"github.com/cubefs/cellbrowser/datasource/badgersource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/proto"
	"github.com/cubefs/cellbrowser/scan"
	"github.com/cubefs/cellbrowser/util/limiter"
)

type countingLookuper struct {
	calls atomic.Int32
	cells map[string]proto.Cell
}

func (l *countingLookuper) Lookup(ctx context.Context, key proto.Key) (*proto.Cell, error) {
	l.calls.Add(1)
	c, ok := l.cells[string(key.Row)]
	if !ok {
		return nil, apierrors.ErrNotFound
	}
	return &c, nil
}

func newTestSource(t *testing.T) *badgersource.Source {
	src, err := badgersource.NewSource(context.Background(), &badgersource.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func newTestModel(t *testing.T, cfg Config, src datasource.Source) *Model {
	d := affinity.NewDispatcher(0)
	d.Start(context.Background())
	t.Cleanup(d.Close)
	o := scan.NewOrchestrator(scan.Config{ChunkCapacity: 7}, d, nil)
	m, err := NewModel(cfg, src, o, d)
	require.NoError(t, err)
	return m
}

func TestCellInfoTruncation(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)
	require.NoError(t, src.CreateNamespace(ctx, "/ns"))
	require.NoError(t, src.CreateTable(ctx, "/ns", "t"))
	tbl, err := src.OpenTable(ctx, "/ns", "t")
	require.NoError(t, err)

	original := bytes.Repeat([]byte{0x41}, 100)
	cell := proto.Cell{Key: proto.Key{Row: []byte("r"), ColumnFamily: "cf", Timestamp: 7}, Value: original}
	require.NoError(t, tbl.(datasource.Mutator).Set(ctx, cell))

	ci := NewCellInfo(tbl, &cell, 64)
	require.Nil(t, cell.Value)
	require.True(t, ci.Truncated())
	require.Equal(t, 100, ci.CellValueSize())
	require.Len(t, ci.ValueInfo(), 64)
	require.Equal(t, original[:64], ci.ValueInfo())
	require.Equal(t, []byte("r"), ci.Key().Row)

	v, err := ci.Value(ctx)
	require.NoError(t, err)
	require.Equal(t, original, v)

	require.NoError(t, tbl.(datasource.Mutator).DeleteRow(ctx, []byte("r")))
	v, err = ci.Value(ctx)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestCellInfoLookups(t *testing.T) {
	ctx := context.Background()
	full := bytes.Repeat([]byte("x"), 65)
	l := &countingLookuper{cells: map[string]proto.Cell{"big": {Value: full}}}

	small := proto.Cell{Key: proto.Key{Row: []byte("small")}, Value: []byte("0123456789")}
	ci := NewCellInfo(l, &small, 64)
	require.False(t, ci.Truncated())
	v, err := ci.Value(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("0123456789"), v)
	require.Equal(t, int32(0), l.calls.Load())

	exact := proto.Cell{Key: proto.Key{Row: []byte("exact")}, Value: bytes.Repeat([]byte("y"), 64)}
	require.False(t, NewCellInfo(l, &exact, 64).Truncated())

	null := proto.Cell{Key: proto.Key{Row: []byte("null")}}
	ci = NewCellInfo(l, &null, 64)
	require.Zero(t, ci.CellValueSize())
	v, err = ci.Value(ctx)
	require.NoError(t, err)
	require.Nil(t, v)
	require.Equal(t, int32(0), l.calls.Load())

	big := proto.Cell{Key: proto.Key{Row: []byte("big")}, Value: full}
	ci = NewCellInfo(l, &big, 0)
	require.Len(t, ci.ValueInfo(), proto.DefaultInlineValueLimit)
	for i := 1; i <= 2; i++ {
		v, err = ci.Value(ctx)
		require.NoError(t, err)
		require.Equal(t, full, v)
		require.Equal(t, int32(i), l.calls.Load())
	}
}

func TestLookupCache(t *testing.T) {
	ctx := context.Background()
	full := bytes.Repeat([]byte("z"), 200)
	l := &countingLookuper{cells: map[string]proto.Cell{"big": {Value: full}}}
	cache, err := NewLookupCache(8)
	require.NoError(t, err)

	big := proto.Cell{Key: proto.Key{Row: []byte("big")}, Value: full}
	ci := NewCellInfo(cache.Wrap("/ns/t", l), &big, 64)
	for i := 0; i < 3; i++ {
		v, err := ci.Value(ctx)
		require.NoError(t, err)
		require.Equal(t, full, v)
	}
	require.Equal(t, int32(1), l.calls.Load())
	require.Equal(t, 1, cache.Len())

	gone := proto.Cell{Key: proto.Key{Row: []byte("gone")}, Value: full}
	ci = NewCellInfo(cache.Wrap("/ns/t", l), &gone, 64)
	for i := 0; i < 2; i++ {
		v, err := ci.Value(ctx)
		require.NoError(t, err)
		require.Nil(t, v)
	}
	require.Equal(t, int32(3), l.calls.Load())

	cache.Purge()
	require.Zero(t, cache.Len())
	_, err = NewLookupCache(0)
	require.Error(t, err)
}

func TestLimitedLookup(t *testing.T) {
	ctx := context.Background()
	lim := limiter.NewLimiter(limiter.LimitConfig{LookupConcurrency: 1})
	l := &limitedLookup{next: &countingLookuper{cells: map[string]proto.Cell{"r": {}}}, limiter: lim}

	require.NoError(t, lim.AcquireLookup())
	_, err := l.Lookup(ctx, proto.Key{Row: []byte("r")})
	require.ErrorIs(t, err, apierrors.ErrLimitExceeded)
	lim.ReleaseLookup()

	_, err = l.Lookup(ctx, proto.Key{Row: []byte("r")})
	require.NoError(t, err)
	require.Zero(t, lim.Status().LookupRunning)
}

func TestModelDirectories(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)
	for _, ns := range []string{"/a", "/a/b", "/a/b/c"} {
		require.NoError(t, src.CreateNamespace(ctx, ns))
	}
	require.NoError(t, src.CreateTable(ctx, "/", "t0"))
	require.NoError(t, src.CreateTable(ctx, "/a", "t1"))

	m := newTestModel(t, Config{}, src)
	root := m.Root()
	require.Equal(t, "/", root.Path())
	require.Nil(t, root.Parent())

	var (
		lock     sync.Mutex
		offOwner int
	)
	dirs := root.Directories(ctx)
	dirs.Subscribe(func(ctx context.Context, ev collection.Event[Node]) {
		lock.Lock()
		if !m.d.IsOwner(ctx) {
			offOwner++
		}
		lock.Unlock()
	})
	require.Same(t, dirs, root.Directories(ctx))
	<-root.Loaded()
	require.NoError(t, root.Err())

	items := dirs.Items()
	require.Len(t, items, 2)
	a := items[0].(*NamespaceNode)
	require.Equal(t, "a", a.Name())
	require.Equal(t, proto.EntryNamespace, a.Type())
	require.Equal(t, proto.EntryTable, items[1].Type())
	require.Equal(t, "/t0", items[1].Path())

	// nested namespaces were resolved without being asked for
	select {
	case <-a.Loaded():
	default:
		t.Fatal("child namespace not loaded")
	}
	children := a.Directories(ctx).Items()
	require.Len(t, children, 2)
	b := children[0].(*NamespaceNode)
	require.Equal(t, "/a/t1", children[1].Path())
	require.Same(t, a, children[1].Parent())
	c := b.Directories(ctx).Items()[0]
	require.Equal(t, "/a/b/c", c.Path())
	require.Zero(t, c.(*NamespaceNode).Directories(ctx).Count())

	require.NoError(t, m.Invalidate(ctx))
	require.Zero(t, dirs.Count())
	require.NotSame(t, root, m.Root())
	lock.Lock()
	require.Zero(t, offOwner)
	lock.Unlock()
}

func TestModelListingError(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t, Config{}, newTestSource(t))

	failed := make(chan Node, 1)
	m.OnError(func(node Node, err error) { failed <- node })

	require.Same(t, m.Root(), m.NamespaceAt("/"))
	require.Equal(t, "/a/b", m.NamespaceAt("a/b/").Path())
	ns := m.TableAt("/missing/t").Parent()
	require.Equal(t, "/missing", ns.Path())
	ns.Directories(ctx)
	<-ns.Loaded()
	require.Error(t, ns.Err())
	require.Same(t, ns, (<-failed).(*NamespaceNode))
}

func TestTableNodeCells(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)
	require.NoError(t, src.CreateNamespace(ctx, "/ns"))
	require.NoError(t, src.CreateTable(ctx, "/ns", "t"))
	tbl, err := src.OpenTable(ctx, "/ns", "t")
	require.NoError(t, err)

	var cells []proto.Cell
	for i := 0; i < 100; i++ {
		value := []byte(fmt.Sprintf("v%d", i))
		if i%10 == 0 {
			value = bytes.Repeat([]byte{byte('a' + i/10)}, 100)
		}
		cells = append(cells, proto.Cell{
			Key:   proto.Key{Row: []byte(fmt.Sprintf("r%03d", i)), ColumnFamily: "cf", Timestamp: 1},
			Value: value,
		})
	}
	require.NoError(t, tbl.(datasource.Mutator).Set(ctx, cells...))

	m := newTestModel(t, Config{LookupCacheSize: 16}, src)
	node := m.TableAt("/ns/t")
	require.Equal(t, "/ns/t", node.Path())

	listing := node.Cells(ctx)
	require.Same(t, listing, node.Cells(ctx))
	s := node.Scan()
	require.NotNil(t, s)
	require.NoError(t, s.Wait(ctx))
	require.Equal(t, 100, listing.Count())

	truncated := 0
	listing.Range(func(i int, ci *CellInfo) bool {
		require.Equal(t, cells[i].Key.Row, ci.Key().Row)
		if ci.Truncated() {
			truncated++
			v, err := ci.Value(ctx)
			require.NoError(t, err)
			require.Equal(t, cells[i].Value, v)
		}
		return true
	})
	require.Equal(t, 10, truncated)

	opened, err := node.Table(ctx)
	require.NoError(t, err)
	require.Equal(t, "/ns/t", opened.Name())

	require.NoError(t, node.Collapse(ctx))
	require.Zero(t, listing.Count())
	require.Nil(t, node.Scan())

	node.SetSpec(proto.ScanSpec{StartRow: []byte("r010"), EndRow: []byte("r020")})
	node.Cells(ctx)
	require.NoError(t, node.Scan().Wait(ctx))
	require.Equal(t, 10, listing.Count())

	s, err = node.Refresh(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Wait(ctx))
	require.Equal(t, 10, listing.Count())

	missing := m.TableAt("/ns/missing")
	missing.Cells(ctx)
	require.ErrorIs(t, missing.Scan().Wait(ctx), apierrors.ErrTableNotFound)
	_, err = missing.Lookup(ctx, proto.Key{})
	require.ErrorIs(t, err, apierrors.ErrTableNotFound)
}
