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

	lru "github.com/hashicorp/golang-lru"

	"github.com/cubefs/cellbrowser/datasource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/metrics"
	"github.com/cubefs/cellbrowser/proto"
	"github.com/cubefs/cellbrowser/util/limiter"
)

type (
	// Lookuper performs point lookups against a table.
	Lookuper interface {
		Lookup(ctx context.Context, key proto.Key) (*proto.Cell, error)
	}

	// ValueCache holds at most limit bytes of a cell value inline. A
	// truncated value is fetched again from the table on every access.
	ValueCache struct {
		inline    []byte
		size      int
		truncated bool
		key       proto.Key
		lookup    Lookuper
	}

	// CellInfo pairs a cell key with its ValueCache.
	CellInfo struct {
		key proto.Key
		ValueCache
	}

	// LookupCache remembers full values fetched for truncated cells. It is
	// opt-in: cached values may be stale when cells change after the scan.
	LookupCache struct {
		cache *lru.Cache
	}

	cachedLookup struct {
		table string
		next  Lookuper
		cache *LookupCache
	}

	limitedLookup struct {
		next    Lookuper
		limiter limiter.Limiter
	}
)

// NewCellInfo wraps cell. Values longer than limit keep only their first
// limit bytes and the value reference of cell is cleared.
func NewCellInfo(lookup Lookuper, cell *proto.Cell, limit int) *CellInfo {
	if limit <= 0 {
		limit = proto.DefaultInlineValueLimit
	}
	ci := &CellInfo{key: cell.Key}
	ci.ValueCache = ValueCache{key: cell.Key, lookup: lookup, size: len(cell.Value), inline: cell.Value}
	if len(cell.Value) > limit {
		ci.inline = append([]byte(nil), cell.Value[:limit]...)
		ci.truncated = true
		cell.Value = nil
	}
	return ci
}

func (ci *CellInfo) Key() proto.Key {
	return ci.key
}

// CellValueSize returns the size of the full value, 0 for a null value.
func (vc *ValueCache) CellValueSize() int {
	return vc.size
}

// ValueInfo returns the inline part of the value.
func (vc *ValueCache) ValueInfo() []byte {
	return vc.inline
}

func (vc *ValueCache) Truncated() bool {
	return vc.truncated
}

// Value returns the full value. A truncated value is looked up again by
// key; nil is returned when the cell no longer exists.
func (vc *ValueCache) Value(ctx context.Context) ([]byte, error) {
	if !vc.truncated {
		metrics.ValueLookups.WithLabelValues("inline").Inc()
		return vc.inline, nil
	}
	cell, err := vc.lookup.Lookup(ctx, vc.key)
	if err != nil {
		if apierrors.IsNotFound(err) {
			metrics.ValueLookups.WithLabelValues("miss").Inc()
			return nil, nil
		}
		metrics.ValueLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ValueLookups.WithLabelValues("hit").Inc()
	return cell.Value, nil
}

func NewLookupCache(size int) (*LookupCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LookupCache{cache: cache}, nil
}

// Wrap returns a Lookuper answering from the cache before asking next.
// Misses are never cached.
func (c *LookupCache) Wrap(table string, next Lookuper) Lookuper {
	return &cachedLookup{table: table, next: next, cache: c}
}

func (c *LookupCache) Len() int {
	return c.cache.Len()
}

func (c *LookupCache) Purge() {
	c.cache.Purge()
}

func (l *cachedLookup) Lookup(ctx context.Context, key proto.Key) (*proto.Cell, error) {
	id := l.table + "\x00" + string(datasource.EncodeCellKey(0, &key))
	if v, ok := l.cache.cache.Get(id); ok {
		metrics.ValueLookups.WithLabelValues("cached").Inc()
		cell := v.(proto.Cell)
		return &cell, nil
	}
	cell, err := l.next.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	l.cache.cache.Add(id, *cell)
	return cell, nil
}

func (l *limitedLookup) Lookup(ctx context.Context, key proto.Key) (*proto.Cell, error) {
	if err := l.limiter.AcquireLookup(); err != nil {
		return nil, err
	}
	defer l.limiter.ReleaseLookup()
	return l.next.Lookup(ctx, key)
}
