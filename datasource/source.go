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

package datasource

import (
	"context"
	"strings"
	"sync"
	"time"

	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/proto"
)

type (
	// Source is a live connection to a storage engine.
	Source interface {
		Descriptor() string
		// ListNamespace returns the direct children of the namespace at path.
		ListNamespace(ctx context.Context, path string) ([]proto.DirEntry, error)
		OpenTable(ctx context.Context, namespace, table string) (Table, error)
		Close() error
	}

	Table interface {
		// Name returns the absolute path of the table.
		Name() string
		// Scanner opens a blocking iterator over the cells matching spec.
		Scanner(ctx context.Context, spec proto.ScanSpec) (Scanner, error)
		// Lookup returns the cell stored at key, or ErrNotFound.
		Lookup(ctx context.Context, key proto.Key) (*proto.Cell, error)
	}

	// Scanner pulls cells one at a time. Next returns io.EOF once exhausted.
	Scanner interface {
		Next() (proto.Cell, error)
		Close() error
	}

	// AsyncScanner is implemented by tables whose engine streams cells natively.
	// fn is called with consecutive batches in key order and returns false
	// to abort the delivery, in which case ScanAsync returns nil.
	AsyncScanner interface {
		ScanAsync(ctx context.Context, spec proto.ScanSpec, fn func(cells []proto.Cell) bool) error
	}

	Admin interface {
		CreateNamespace(ctx context.Context, path string) error
		CreateTable(ctx context.Context, namespace, table string) error
	}

	// Mutator writes cells. Cells with a zero timestamp are stamped with the
	// current time.
	Mutator interface {
		Set(ctx context.Context, cells ...proto.Cell) error
		DeleteRow(ctx context.Context, row []byte) error
	}

	// OpenFunc connects to the engine found at location, the part of a
	// descriptor that follows "scheme://".
	OpenFunc func(ctx context.Context, location string) (Source, error)
)

const schemeSeparator = "://"

var (
	registryMu sync.RWMutex
	registry   = make(map[string]OpenFunc)
)

// Register makes an engine available under scheme. It panics on duplicates.
func Register(scheme string, fn OpenFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[scheme]; ok {
		panic("datasource: engine registered twice: " + scheme)
	}
	registry[scheme] = fn
}

func Schemes() (ret []string) {
	registryMu.RLock()
	for scheme := range registry {
		ret = append(ret, scheme)
	}
	registryMu.RUnlock()
	return
}

func ParseDescriptor(descriptor string) (scheme, location string, err error) {
	idx := strings.Index(descriptor, schemeSeparator)
	if idx <= 0 {
		return "", "", apierrors.ErrInvalidDescriptor
	}
	return descriptor[:idx], descriptor[idx+len(schemeSeparator):], nil
}

// Open connects to the engine named by descriptor, e.g. "badger:///var/lib/cells".
func Open(ctx context.Context, descriptor string) (Source, error) {
	scheme, location, err := ParseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	registryMu.RLock()
	fn, ok := registry[scheme]
	registryMu.RUnlock()
	if !ok {
		return nil, apierrors.ErrUnknownEngine
	}
	return fn(ctx, location)
}

// ValidName reports whether name can be used for a namespace or table.
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, proto.PathSeparator+"\x00")
}

// AssignTimestamps stamps every cell without a timestamp with now.
func AssignTimestamps(cells []proto.Cell) {
	now := time.Now().UnixNano()
	for i := range cells {
		if cells[i].Key.Timestamp == 0 {
			cells[i].Key.Timestamp = now
		}
	}
}
