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
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cubefs/cellbrowser/affinity"
	"github.com/cubefs/cellbrowser/datasource"
	"github.com/cubefs/cellbrowser/datasource/badgersource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/proto"
	"github.com/cubefs/cellbrowser/scan"
	"github.com/cubefs/cellbrowser/server"
)

func newTestSource(t *testing.T) *Source {
	ctx := context.Background()
	local, err := badgersource.NewSource(ctx, &badgersource.Config{})
	require.NoError(t, err)
	rs := server.NewRPCServer(server.NewServerWithSource(&server.Config{}, local))
	lis := bufconn.Listen(1 << 20)
	go rs.ServeListener(lis)

	src, err := NewSource(ctx, &Config{Addr: "bufnet", BatchSize: 5},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() {
		src.Close()
		rs.Stop()
		rs.Close()
	})
	return src
}

func seedTable(t *testing.T, src *Source, n int) (datasource.Table, []proto.Cell) {
	ctx := context.Background()
	require.NoError(t, src.CreateNamespace(ctx, "/ns"))
	require.NoError(t, src.CreateTable(ctx, "/ns", "t"))
	tbl, err := src.OpenTable(ctx, "/ns", "t")
	require.NoError(t, err)

	cells := make([]proto.Cell, n)
	for i := range cells {
		cells[i] = proto.Cell{
			Key:   proto.Key{Row: []byte(fmt.Sprintf("r%04d", i)), ColumnFamily: "cf", Timestamp: 1},
			Value: []byte(fmt.Sprintf("v%d", i)),
		}
	}
	require.NoError(t, tbl.(datasource.Mutator).Set(ctx, cells...))
	return tbl, cells
}

func TestRemoteCatalog(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)
	require.Equal(t, "grpc://bufnet", src.Descriptor())

	seedTable(t, src, 0)
	entries, err := src.ListNamespace(ctx, "/ns")
	require.NoError(t, err)
	require.Equal(t, []proto.DirEntry{{Name: "t", Type: proto.EntryTable}}, entries)

	require.ErrorIs(t, src.CreateNamespace(ctx, "/ns"), apierrors.ErrAlreadyExists)
	_, err = src.ListNamespace(ctx, "/missing")
	require.ErrorIs(t, err, apierrors.ErrNamespaceNotFound)
	_, err = src.OpenTable(ctx, "/ns", "missing")
	require.ErrorIs(t, err, apierrors.ErrTableNotFound)
}

func TestRemoteScanner(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)
	tbl, cells := seedTable(t, src, 23)
	require.Equal(t, "/ns/t", tbl.Name())

	sc, err := tbl.Scanner(ctx, proto.ScanSpec{})
	require.NoError(t, err)
	var got []proto.Cell
	for {
		c, err := sc.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, c)
	}
	require.NoError(t, sc.Close())
	require.Equal(t, cells, got)
	_, err = sc.Next()
	require.Equal(t, io.EOF, err)

	var batches []int
	err = tbl.(datasource.AsyncScanner).ScanAsync(ctx, proto.ScanSpec{}, func(cells []proto.Cell) bool {
		batches = append(batches, len(cells))
		return len(batches) < 2
	})
	require.NoError(t, err)
	require.Equal(t, []int{5, 5}, batches)
}

func TestRemoteLookup(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)
	tbl, cells := seedTable(t, src, 3)

	cell, err := tbl.Lookup(ctx, cells[1].Key)
	require.NoError(t, err)
	require.Equal(t, cells[1], *cell)

	require.NoError(t, tbl.(datasource.Mutator).DeleteRow(ctx, cells[1].Key.Row))
	_, err = tbl.Lookup(ctx, cells[1].Key)
	require.ErrorIs(t, err, apierrors.ErrNotFound)
}

func TestRemoteOrchestratedScan(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)
	_, cells := seedTable(t, src, 40)

	d := affinity.NewDispatcher(0)
	d.Start(ctx)
	defer d.Close()

	for _, mode := range []scan.Mode{scan.ModePull, scan.ModePush} {
		o := scan.NewOrchestrator(scan.Config{ChunkCapacity: 7}, d, nil)
		var got []proto.Cell
		s := o.BeginScan(ctx, src, "/ns", "t", func(ctx context.Context, chunk []proto.Cell) {
			got = append(got, chunk...)
		}, scan.WithMode(mode))
		require.NoError(t, s.Wait(ctx))
		require.Equal(t, cells, got)
	}
}

func TestRemoteStaticResolver(t *testing.T) {
	ctx := context.Background()
	local, err := badgersource.NewSource(ctx, &badgersource.Config{})
	require.NoError(t, err)
	shared := server.NewServerWithSource(&server.Config{}, local)
	defer shared.Close()

	listeners := make(map[string]*bufconn.Listener)
	for _, name := range []string{"srv-a", "srv-b"} {
		rs := server.NewRPCServer(shared)
		lis := bufconn.Listen(1 << 20)
		go rs.ServeListener(lis)
		defer rs.Stop()
		listeners[name] = lis
	}

	var lock sync.Mutex
	dialed := make(map[string]int)
	src, err := NewSource(ctx, &Config{Addr: "srv-a,srv-b"},
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			lock.Lock()
			dialed[addr]++
			lock.Unlock()
			return listeners[addr].DialContext(ctx)
		}))
	require.NoError(t, err)
	defer src.Close()
	require.Equal(t, "grpc://srv-a,srv-b", src.Descriptor())

	require.NoError(t, src.CreateNamespace(ctx, "/ns"))
	for i := 0; i < 10; i++ {
		entries, err := src.ListNamespace(ctx, "/")
		require.NoError(t, err)
		require.Len(t, entries, 1)
	}
	lock.Lock()
	require.Len(t, dialed, 2)
	lock.Unlock()
}
