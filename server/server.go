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

package server

import (
	"context"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/rpc/auditlog"
	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"

	"github.com/cubefs/cellbrowser/datasource"
	// engines a cell server can expose
	_ "github.com/cubefs/cellbrowser/datasource/badgersource"
	_ "github.com/cubefs/cellbrowser/datasource/kvsource"
	"github.com/cubefs/cellbrowser/proto"
	"github.com/cubefs/cellbrowser/util/limiter"
)

const (
	defaultScanBatchSize = 1024
	maxScanBatchSize     = 16 * 1024
)

type Config struct {
	// Engine is the descriptor of the local engine to expose, e.g.
	// "rocksdb:///var/lib/cells".
	Engine        string              `json:"engine"`
	ScanBatchSize int                 `json:"scan_batch_size"`
	Limit         limiter.LimitConfig `json:"limit"`
	AuditLog      auditlog.Config     `json:"audit_log"`
}

// Server holds the engine shared by the grpc and http front ends.
type Server struct {
	cfg     Config
	source  datasource.Source
	limiter limiter.Limiter

	lock   sync.RWMutex
	tables map[string]datasource.Table
}

func NewServer(ctx context.Context, cfg *Config) (*Server, error) {
	span := trace.SpanFromContextSafe(ctx)
	source, err := datasource.Open(ctx, cfg.Engine)
	if err != nil {
		return nil, errors.Info(err, "open engine", cfg.Engine)
	}
	span.Infof("serving engine %s", source.Descriptor())
	return NewServerWithSource(cfg, source), nil
}

// NewServerWithSource exposes an already opened source. The server takes
// ownership of it.
func NewServerWithSource(cfg *Config, source datasource.Source) *Server {
	c := *cfg
	if c.ScanBatchSize <= 0 {
		c.ScanBatchSize = defaultScanBatchSize
	}
	return &Server{
		cfg:     c,
		source:  source,
		limiter: limiter.NewLimiter(c.Limit),
		tables:  make(map[string]datasource.Table),
	}
}

func (s *Server) Source() datasource.Source {
	return s.source
}

// Close releases the engine.
func (s *Server) Close() error {
	return s.source.Close()
}

// table returns the opened table at namespace/name. Only successful opens
// are remembered.
func (s *Server) table(ctx context.Context, namespace, name string) (datasource.Table, error) {
	path := proto.JoinPath(namespace, name)
	s.lock.RLock()
	tbl, ok := s.tables[path]
	s.lock.RUnlock()
	if ok {
		return tbl, nil
	}

	tbl, err := s.source.OpenTable(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	s.lock.Lock()
	if exist, ok := s.tables[path]; ok {
		tbl = exist
	} else {
		s.tables[path] = tbl
	}
	s.lock.Unlock()
	return tbl, nil
}

func (s *Server) batchSize(requested int) int {
	if requested <= 0 {
		return s.cfg.ScanBatchSize
	}
	if requested > maxScanBatchSize {
		return maxScanBatchSize
	}
	return requested
}
