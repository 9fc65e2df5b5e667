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
	"strings"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"golang.org/x/sync/singleflight"

	"github.com/cubefs/cellbrowser/affinity"
	"github.com/cubefs/cellbrowser/datasource"
	"github.com/cubefs/cellbrowser/proto"
	"github.com/cubefs/cellbrowser/scan"
	"github.com/cubefs/cellbrowser/util/limiter"
)

type Config struct {
	InlineValueLimit int `json:"inline_value_limit"`
	// LookupCacheSize enables caching of truncated value lookups, 0 disables it.
	LookupCacheSize   int `json:"lookup_cache_size"`
	LookupConcurrency int `json:"lookup_concurrency"`
}

func (cfg *Config) fixConfig() {
	if cfg.InlineValueLimit <= 0 {
		cfg.InlineValueLimit = proto.DefaultInlineValueLimit
	}
}

// Model is the lazily populated namespace tree of one connection.
type Model struct {
	cfg     Config
	source  datasource.Source
	o       *scan.Orchestrator
	d       *affinity.Dispatcher
	limiter limiter.Limiter
	cache   *LookupCache
	group   singleflight.Group

	lock    sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	root    *NamespaceNode
	onError func(node Node, err error)
}

func NewModel(cfg Config, source datasource.Source, o *scan.Orchestrator, d *affinity.Dispatcher) (*Model, error) {
	cfg.fixConfig()
	m := &Model{
		cfg:    cfg,
		source: source,
		o:      o,
		d:      d,
	}
	if cfg.LookupCacheSize > 0 {
		cache, err := NewLookupCache(cfg.LookupCacheSize)
		if err != nil {
			return nil, errors.Info(err, "new lookup cache failed")
		}
		m.cache = cache
	}
	if cfg.LookupConcurrency > 0 {
		m.limiter = limiter.NewLimiter(limiter.LimitConfig{LookupConcurrency: cfg.LookupConcurrency})
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m, nil
}

func (m *Model) Source() datasource.Source {
	return m.source
}

func (m *Model) Config() Config {
	return m.cfg
}

// Root returns the root namespace, creating a fresh tree after Invalidate.
func (m *Model) Root() *NamespaceNode {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.root == nil {
		m.root = newNamespaceNode(m, "", nil)
	}
	return m.root
}

// NamespaceAt returns a detached node for the namespace at path, the root
// for "/". Nodes between the root and path are not loaded.
func (m *Model) NamespaceAt(path string) *NamespaceNode {
	ns := m.Root()
	for _, elem := range strings.Split(proto.JoinPath(path), proto.PathSeparator) {
		if elem != "" {
			ns = newNamespaceNode(m, elem, ns)
		}
	}
	return ns
}

// TableAt returns a detached node for the table at path.
func (m *Model) TableAt(path string) *TableNode {
	parent, name := proto.SplitPath(path)
	return newTableNode(m, name, m.NamespaceAt(parent))
}

// OnError sets the hook receiving failures of background loads.
func (m *Model) OnError(fn func(node Node, err error)) {
	m.lock.Lock()
	m.onError = fn
	m.lock.Unlock()
}

// Invalidate discards the tree and stops its background loads. Views
// holding the old root observe it being cleared.
func (m *Model) Invalidate(ctx context.Context) error {
	m.lock.Lock()
	root := m.root
	m.root = nil
	m.cancel()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.lock.Unlock()

	if m.cache != nil {
		m.cache.Purge()
	}
	if root != nil {
		return root.dirs.Clear(ctx)
	}
	return nil
}

// background returns a context bound to the lifetime of the current tree
// carrying the trace id of ctx.
func (m *Model) background(ctx context.Context, operation string) (trace.Span, context.Context) {
	m.lock.Lock()
	base := m.ctx
	m.lock.Unlock()
	return trace.StartSpanFromContextWithTraceID(base, operation, trace.SpanFromContextSafe(ctx).TraceID())
}

func (m *Model) reportError(node Node, err error) {
	m.lock.Lock()
	fn := m.onError
	m.lock.Unlock()
	if fn != nil {
		fn(node, err)
	}
}

func (m *Model) lookuper(t *TableNode) Lookuper {
	var l Lookuper = t
	if m.limiter != nil {
		l = &limitedLookup{next: l, limiter: m.limiter}
	}
	if m.cache != nil {
		l = m.cache.Wrap(t.Path(), l)
	}
	return l
}
