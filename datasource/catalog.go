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
	"encoding/json"
	"sync"

	"github.com/cubefs/cubefs/blobstore/util/errors"

	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/proto"
)

type (
	// CatalogStore is the ordered key space an engine keeps its catalog in.
	CatalogStore interface {
		// GetCatalog returns ErrNotFound for a missing key.
		GetCatalog(ctx context.Context, key []byte) ([]byte, error)
		PutCatalog(ctx context.Context, key, value []byte) error
		// ListCatalog calls fn for every key with prefix in ascending order.
		ListCatalog(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
		NextTableID(ctx context.Context) (uint64, error)
	}

	// Catalog maps the namespace tree onto a CatalogStore. Every entry is
	// stored under parent path, a zero byte and its name.
	Catalog struct {
		store CatalogStore
		lock  sync.Mutex
	}

	catalogEntry struct {
		Type    proto.EntryType `json:"type"`
		TableID uint64          `json:"table_id,omitempty"`
	}
)

func NewCatalog(store CatalogStore) *Catalog {
	return &Catalog{store: store}
}

func (c *Catalog) List(ctx context.Context, path string) ([]proto.DirEntry, error) {
	path = proto.JoinPath(path)
	if err := c.checkNamespace(ctx, path); err != nil {
		return nil, err
	}

	prefix := catalogPrefix(path)
	var ret []proto.DirEntry
	err := c.store.ListCatalog(ctx, prefix, func(key, value []byte) error {
		entry := catalogEntry{}
		if err := json.Unmarshal(value, &entry); err != nil {
			return errors.Info(err, "json unmarshal catalog entry failed")
		}
		ret = append(ret, proto.DirEntry{Name: string(key[len(prefix):]), Type: entry.Type})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Catalog) CreateNamespace(ctx context.Context, path string) error {
	parent, name := proto.SplitPath(path)
	if !ValidName(name) {
		return apierrors.ErrInvalidName
	}
	return c.create(ctx, parent, name, catalogEntry{Type: proto.EntryNamespace})
}

func (c *Catalog) CreateTable(ctx context.Context, namespace, table string) error {
	if !ValidName(table) {
		return apierrors.ErrInvalidName
	}
	return c.create(ctx, proto.JoinPath(namespace), table, catalogEntry{Type: proto.EntryTable})
}

// ResolveTable returns the id the cells of a table are keyed under.
func (c *Catalog) ResolveTable(ctx context.Context, namespace, table string) (uint64, error) {
	namespace = proto.JoinPath(namespace)
	if err := c.checkNamespace(ctx, namespace); err != nil {
		return 0, err
	}
	entry, err := c.get(ctx, namespace, table)
	if err != nil {
		if err == apierrors.ErrNotFound {
			return 0, apierrors.ErrTableNotFound
		}
		return 0, err
	}
	if entry.Type != proto.EntryTable {
		return 0, apierrors.ErrTableNotFound
	}
	return entry.TableID, nil
}

func (c *Catalog) create(ctx context.Context, parent, name string, entry catalogEntry) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.checkNamespace(ctx, parent); err != nil {
		return err
	}
	if _, err := c.get(ctx, parent, name); err == nil {
		return apierrors.ErrAlreadyExists
	} else if err != apierrors.ErrNotFound {
		return err
	}

	if entry.Type == proto.EntryTable {
		id, err := c.store.NextTableID(ctx)
		if err != nil {
			return err
		}
		entry.TableID = id
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.store.PutCatalog(ctx, catalogKey(parent, name), value)
}

func (c *Catalog) checkNamespace(ctx context.Context, path string) error {
	if path == proto.PathSeparator {
		return nil
	}
	parent, name := proto.SplitPath(path)
	entry, err := c.get(ctx, parent, name)
	if err != nil {
		if err == apierrors.ErrNotFound {
			return apierrors.ErrNamespaceNotFound
		}
		return err
	}
	if entry.Type != proto.EntryNamespace {
		return apierrors.ErrNamespaceNotFound
	}
	return nil
}

func (c *Catalog) get(ctx context.Context, parent, name string) (entry catalogEntry, err error) {
	value, err := c.store.GetCatalog(ctx, catalogKey(parent, name))
	if err != nil {
		return
	}
	if err = json.Unmarshal(value, &entry); err != nil {
		err = errors.Info(err, "json unmarshal catalog entry failed")
	}
	return
}

func catalogPrefix(parent string) []byte {
	return append([]byte(parent), 0)
}

func catalogKey(parent, name string) []byte {
	return append(catalogPrefix(parent), name...)
}
