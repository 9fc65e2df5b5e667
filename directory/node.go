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
	"context"
	"sync"
	"sync/atomic"

	"github.com/cubefs/cubefs/blobstore/util/errors"

	"github.com/cubefs/cellbrowser/collection"
	"github.com/cubefs/cellbrowser/datasource"
	"github.com/cubefs/cellbrowser/proto"
	"github.com/cubefs/cellbrowser/scan"
)

type (
	// Node is either a *NamespaceNode or a *TableNode.
	Node interface {
		Name() string
		Path() string
		Type() proto.EntryType
		// Parent is a back link for path display, nil for the root.
		Parent() *NamespaceNode
	}

	NamespaceNode struct {
		m      *Model
		name   string
		parent *NamespaceNode
		dirs   *collection.Collection[Node]

		loading atomic.Bool
		loaded  chan struct{}
		err     error
	}

	TableNode struct {
		m      *Model
		name   string
		parent *NamespaceNode
		cells  *collection.Collection[*CellInfo]

		lock    sync.Mutex
		table   datasource.Table
		spec    proto.ScanSpec
		scan    *scan.Scan
		started bool
	}
)

func newNamespaceNode(m *Model, name string, parent *NamespaceNode) *NamespaceNode {
	return &NamespaceNode{
		m:      m,
		name:   name,
		parent: parent,
		dirs:   collection.New[Node](m.d),
		loaded: make(chan struct{}),
	}
}

func newTableNode(m *Model, name string, parent *NamespaceNode) *TableNode {
	return &TableNode{
		m:      m,
		name:   name,
		parent: parent,
		cells:  collection.New[*CellInfo](m.d),
	}
}

func (n *NamespaceNode) Name() string           { return n.name }
func (n *NamespaceNode) Type() proto.EntryType  { return proto.EntryNamespace }
func (n *NamespaceNode) Parent() *NamespaceNode { return n.parent }

func (n *NamespaceNode) Path() string {
	if n.parent == nil {
		return proto.JoinPath(n.name)
	}
	return proto.JoinPath(n.parent.Path(), n.name)
}

// Directories returns the children of n. The collection is empty at first
// and filled in the background: namespaces are resolved recursively, tables
// stay unopened.
func (n *NamespaceNode) Directories(ctx context.Context) *collection.Collection[Node] {
	if n.loading.CompareAndSwap(false, true) {
		_, lctx := n.m.background(ctx, "directories")
		go n.load(lctx)
	}
	return n.dirs
}

// Loaded is closed once n and its namespaces below have been listed.
func (n *NamespaceNode) Loaded() <-chan struct{} {
	return n.loaded
}

// Err returns the listing error once Loaded is closed.
func (n *NamespaceNode) Err() error {
	select {
	case <-n.loaded:
		return n.err
	default:
		return nil
	}
}

func (n *NamespaceNode) load(ctx context.Context) {
	defer close(n.loaded)

	entries, err := n.m.source.ListNamespace(ctx, n.Path())
	if err != nil {
		n.fail(ctx, errors.Info(err, "list namespace failed"))
		return
	}

	nodes := make([]Node, 0, len(entries))
	var children []*NamespaceNode
	for _, e := range entries {
		switch e.Type {
		case proto.EntryNamespace:
			child := newNamespaceNode(n.m, e.Name, n)
			children = append(children, child)
			nodes = append(nodes, child)
		case proto.EntryTable:
			nodes = append(nodes, newTableNode(n.m, e.Name, n))
		}
	}
	if err = n.dirs.AddRange(ctx, nodes); err != nil {
		n.fail(ctx, err)
		return
	}

	for _, child := range children {
		if child.loading.CompareAndSwap(false, true) {
			child.load(ctx)
			continue
		}
		select {
		case <-child.loaded:
		case <-ctx.Done():
			n.err = ctx.Err()
			return
		}
	}
}

func (n *NamespaceNode) fail(ctx context.Context, err error) {
	n.err = err
	if ctx.Err() == nil {
		n.m.reportError(n, err)
	}
}

func (t *TableNode) Name() string           { return t.name }
func (t *TableNode) Type() proto.EntryType  { return proto.EntryTable }
func (t *TableNode) Parent() *NamespaceNode { return t.parent }

func (t *TableNode) Path() string {
	return proto.JoinPath(t.parent.Path(), t.name)
}

// Table opens the engine table on first use. Concurrent callers share
// one open.
func (t *TableNode) Table(ctx context.Context) (datasource.Table, error) {
	t.lock.Lock()
	tbl := t.table
	t.lock.Unlock()
	if tbl != nil {
		return tbl, nil
	}

	v, err, _ := t.m.group.Do(t.Path(), func() (interface{}, error) {
		return t.m.source.OpenTable(ctx, t.parent.Path(), t.name)
	})
	if err != nil {
		return nil, err
	}
	tbl = v.(datasource.Table)
	t.lock.Lock()
	t.table = tbl
	t.lock.Unlock()
	return tbl, nil
}

func (t *TableNode) Lookup(ctx context.Context, key proto.Key) (*proto.Cell, error) {
	tbl, err := t.Table(ctx)
	if err != nil {
		return nil, err
	}
	return tbl.Lookup(ctx, key)
}

// SetSpec restricts the scans started afterwards.
func (t *TableNode) SetSpec(spec proto.ScanSpec) {
	t.lock.Lock()
	t.spec = spec
	t.lock.Unlock()
}

// Cells returns the cell listing of t. The first call starts a scan whose
// chunks are appended as they arrive.
func (t *TableNode) Cells(ctx context.Context) *collection.Collection[*CellInfo] {
	t.lock.Lock()
	start := !t.started
	t.started = true
	t.lock.Unlock()
	if start {
		t.begin(ctx)
	}
	return t.cells
}

// Scan returns the handle of the last scan started for t.
func (t *TableNode) Scan() *scan.Scan {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.scan
}

// Refresh clears the listing and scans the table again.
func (t *TableNode) Refresh(ctx context.Context) (*scan.Scan, error) {
	if err := t.cells.Clear(ctx); err != nil {
		return nil, err
	}
	t.lock.Lock()
	t.started = true
	t.lock.Unlock()
	return t.begin(ctx), nil
}

// Collapse cancels the scan of t if it is still the live one and discards
// the listing.
func (t *TableNode) Collapse(ctx context.Context) error {
	t.lock.Lock()
	s := t.scan
	t.scan = nil
	t.started = false
	t.lock.Unlock()

	if s != nil && t.m.o.Current() == s {
		if err := t.m.o.Cancel(ctx); err != nil {
			return err
		}
	}
	return t.cells.Clear(ctx)
}

func (t *TableNode) begin(ctx context.Context) *scan.Scan {
	t.lock.Lock()
	spec := t.spec
	t.lock.Unlock()

	lookup := t.m.lookuper(t)
	limit := t.m.cfg.InlineValueLimit
	s := t.m.o.BeginScan(ctx, t.m.source, t.parent.Path(), t.name, func(ctx context.Context, cells []proto.Cell) {
		infos := make([]*CellInfo, len(cells))
		for i := range cells {
			infos[i] = NewCellInfo(lookup, &cells[i], limit)
		}
		if err := t.cells.AddRange(ctx, infos); err != nil {
			t.m.reportError(t, err)
		}
	}, scan.WithSpec(spec))

	t.lock.Lock()
	t.scan = s
	t.lock.Unlock()
	return s
}
