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

package remote

import (
	"context"
	"io"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"google.golang.org/grpc"

	"github.com/cubefs/cellbrowser/datasource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/proto"
)

const (
	Scheme = "grpc"

	defaultBatchSize = 1024
)

type (
	Config struct {
		Addr            string          `json:"addr"`
		BatchSize       int             `json:"batch_size"`
		TransportConfig TransportConfig `json:"transport"`
	}

	// Source browses the engine exposed by a cellserver. Scans are server
	// streams, so tables scan natively in push mode as well.
	Source struct {
		cfg    Config
		conn   *grpc.ClientConn
		client proto.BrowserClient
	}

	table struct {
		s         *Source
		namespace string
		name      string
	}

	scanner struct {
		stream proto.Browser_ScanClient
		cancel context.CancelFunc
		batch  []proto.Cell
		idx    int
		err    error
	}
)

var (
	_ datasource.Source       = (*Source)(nil)
	_ datasource.Admin        = (*Source)(nil)
	_ datasource.AsyncScanner = (*table)(nil)
	_ datasource.Mutator      = (*table)(nil)
)

func init() {
	datasource.Register(Scheme, func(ctx context.Context, location string) (datasource.Source, error) {
		return NewSource(ctx, &Config{Addr: location})
	})
}

// NewSource dials cfg.Addr, one address or a comma separated list, and
// blocks until the connection is ready or the connect timeout expires. opts
// are appended to the default dial options.
func NewSource(ctx context.Context, cfg *Config, opts ...grpc.DialOption) (*Source, error) {
	span := trace.SpanFromContextSafe(ctx)
	c := *cfg
	c.TransportConfig.fixConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}

	dctx, cancel := context.WithTimeout(ctx, time.Millisecond*time.Duration(c.TransportConfig.MaxTimeoutMs))
	defer cancel()
	conn, err := grpc.DialContext(dctx, dialTarget(c.Addr), append(generateDialOpts(&c.TransportConfig), opts...)...)
	if err != nil {
		return nil, errors.Info(err, "dial cell server", c.Addr)
	}
	span.Infof("connected to cell server %s", c.Addr)
	return &Source{cfg: c, conn: conn, client: proto.NewBrowserClient(conn)}, nil
}

func (s *Source) Descriptor() string {
	return Scheme + "://" + s.cfg.Addr
}

func (s *Source) ListNamespace(ctx context.Context, path string) ([]proto.DirEntry, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	resp, err := s.client.ListNamespace(ctx, &proto.ListNamespaceRequest{Path: path})
	if err != nil {
		return nil, apierrors.FromStatus(err)
	}
	return resp.Entries, nil
}

func (s *Source) OpenTable(ctx context.Context, namespace, name string) (datasource.Table, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	if _, err := s.client.OpenTable(ctx, &proto.OpenTableRequest{Namespace: namespace, Table: name}); err != nil {
		return nil, apierrors.FromStatus(err)
	}
	return &table{s: s, namespace: proto.JoinPath(namespace), name: name}, nil
}

func (s *Source) CreateNamespace(ctx context.Context, path string) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	_, err := s.client.CreateNamespace(ctx, &proto.CreateNamespaceRequest{Path: path})
	return apierrors.FromStatus(err)
}

func (s *Source) CreateTable(ctx context.Context, namespace, name string) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	_, err := s.client.CreateTable(ctx, &proto.CreateTableRequest{Namespace: namespace, Table: name})
	return apierrors.FromStatus(err)
}

func (s *Source) Close() error {
	return s.conn.Close()
}

func (s *Source) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Millisecond*time.Duration(s.cfg.TransportConfig.MaxTimeoutMs))
}

func (t *table) Name() string {
	return proto.JoinPath(t.namespace, t.name)
}

func (t *table) Scanner(ctx context.Context, spec proto.ScanSpec) (datasource.Scanner, error) {
	sctx, cancel := context.WithCancel(ctx)
	stream, err := t.scan(sctx, spec)
	if err != nil {
		cancel()
		return nil, err
	}
	return &scanner{stream: stream, cancel: cancel}, nil
}

// ScanAsync forwards every batch the server sends. Returning false from fn
// cancels the stream.
func (t *table) ScanAsync(ctx context.Context, spec proto.ScanSpec, fn func(cells []proto.Cell) bool) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := t.scan(sctx, spec)
	if err != nil {
		return err
	}
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return apierrors.FromStatus(err)
		}
		if len(resp.Cells) > 0 && !fn(resp.Cells) {
			return nil
		}
	}
}

func (t *table) scan(ctx context.Context, spec proto.ScanSpec) (proto.Browser_ScanClient, error) {
	stream, err := t.s.client.Scan(ctx, &proto.ScanRequest{
		Namespace: t.namespace,
		Table:     t.name,
		Spec:      spec,
		BatchSize: t.s.cfg.BatchSize,
	})
	if err != nil {
		return nil, apierrors.FromStatus(err)
	}
	return stream, nil
}

func (t *table) Lookup(ctx context.Context, key proto.Key) (*proto.Cell, error) {
	ctx, cancel := t.s.callContext(ctx)
	defer cancel()
	resp, err := t.s.client.Lookup(ctx, &proto.LookupRequest{Namespace: t.namespace, Table: t.name, Key: key})
	if err != nil {
		return nil, apierrors.FromStatus(err)
	}
	if resp.Cell == nil {
		return nil, apierrors.ErrNotFound
	}
	return resp.Cell, nil
}

func (t *table) Set(ctx context.Context, cells ...proto.Cell) error {
	ctx, cancel := t.s.callContext(ctx)
	defer cancel()
	_, err := t.s.client.Mutate(ctx, &proto.MutateRequest{Namespace: t.namespace, Table: t.name, Cells: cells})
	return apierrors.FromStatus(err)
}

func (t *table) DeleteRow(ctx context.Context, row []byte) error {
	ctx, cancel := t.s.callContext(ctx)
	defer cancel()
	_, err := t.s.client.DeleteRow(ctx, &proto.DeleteRowRequest{Namespace: t.namespace, Table: t.name, Row: row})
	return apierrors.FromStatus(err)
}

func (sc *scanner) Next() (proto.Cell, error) {
	for sc.idx >= len(sc.batch) {
		if sc.err != nil {
			return proto.Cell{}, sc.err
		}
		resp, err := sc.stream.Recv()
		if err != nil {
			if err != io.EOF {
				err = apierrors.FromStatus(err)
			}
			sc.err = err
			return proto.Cell{}, err
		}
		sc.batch, sc.idx = resp.Cells, 0
	}
	cell := sc.batch[sc.idx]
	sc.idx++
	return cell, nil
}

func (sc *scanner) Close() error {
	sc.cancel()
	return nil
}
