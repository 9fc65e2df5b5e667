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
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cubefs/cellbrowser/datasource/badgersource"
	"github.com/cubefs/cellbrowser/proto"
)

func newTestServer(t *testing.T, cfg *Config) (*RPCServer, proto.BrowserClient) {
	src, err := badgersource.NewSource(context.Background(), &badgersource.Config{})
	require.NoError(t, err)
	rs := NewRPCServer(NewServerWithSource(cfg, src))

	lis := bufconn.Listen(1 << 20)
	go rs.ServeListener(lis)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(proto.Codec())),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		rs.Stop()
		rs.Close()
	})
	return rs, proto.NewBrowserClient(conn)
}

func seed(t *testing.T, client proto.BrowserClient, n int) {
	ctx := context.Background()
	_, err := client.CreateNamespace(ctx, &proto.CreateNamespaceRequest{Path: "/ns"})
	require.NoError(t, err)
	_, err = client.CreateTable(ctx, &proto.CreateTableRequest{Namespace: "/ns", Table: "t"})
	require.NoError(t, err)

	cells := make([]proto.Cell, n)
	for i := range cells {
		cells[i] = proto.Cell{
			Key:   proto.Key{Row: []byte(fmt.Sprintf("row%03d", i)), ColumnFamily: "cf"},
			Value: []byte(fmt.Sprintf("value%d", i)),
		}
	}
	_, err = client.Mutate(ctx, &proto.MutateRequest{Namespace: "/ns", Table: "t", Cells: cells})
	require.NoError(t, err)
}

func TestRPCServerCatalog(t *testing.T) {
	ctx := context.Background()
	_, client := newTestServer(t, &Config{})
	seed(t, client, 0)

	resp, err := client.ListNamespace(ctx, &proto.ListNamespaceRequest{Path: "/"})
	require.NoError(t, err)
	require.Equal(t, []proto.DirEntry{{Name: "ns", Type: proto.EntryNamespace}}, resp.Entries)

	_, err = client.CreateNamespace(ctx, &proto.CreateNamespaceRequest{Path: "/ns"})
	require.Equal(t, codes.AlreadyExists, status.Code(err))
	_, err = client.ListNamespace(ctx, &proto.ListNamespaceRequest{Path: "/nope"})
	require.Equal(t, codes.NotFound, status.Code(err))
	_, err = client.OpenTable(ctx, &proto.OpenTableRequest{Namespace: "/ns", Table: "nope"})
	require.Equal(t, codes.NotFound, status.Code(err))

	open, err := client.OpenTable(ctx, &proto.OpenTableRequest{Namespace: "/ns", Table: "t"})
	require.NoError(t, err)
	require.Equal(t, "/ns/t", open.Name)
}

func TestRPCServerScan(t *testing.T) {
	ctx := context.Background()
	_, client := newTestServer(t, &Config{ScanBatchSize: 4})
	seed(t, client, 10)

	for _, cs := range []struct {
		batchSize int
		batches   []int
	}{
		{0, []int{4, 4, 2}},
		{3, []int{3, 3, 3, 1}},
		{100, []int{10}},
	} {
		stream, err := client.Scan(ctx, &proto.ScanRequest{Namespace: "/ns", Table: "t", BatchSize: cs.batchSize})
		require.NoError(t, err)
		var batches []int
		var rows []string
		for {
			resp, err := stream.Recv()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			batches = append(batches, len(resp.Cells))
			for _, c := range resp.Cells {
				require.NotZero(t, c.Key.Timestamp)
				rows = append(rows, string(c.Key.Row))
			}
		}
		require.Equal(t, cs.batches, batches)
		require.Equal(t, "row000", rows[0])
		require.Equal(t, "row009", rows[9])
	}

	stream, err := client.Scan(ctx, &proto.ScanRequest{
		Namespace: "/ns", Table: "t",
		Spec: proto.ScanSpec{StartRow: []byte("row002"), EndRow: []byte("row005")},
	})
	require.NoError(t, err)
	resp, err := stream.Recv()
	require.NoError(t, err)
	require.Len(t, resp.Cells, 3)
	_, err = stream.Recv()
	require.Equal(t, io.EOF, err)

	stream, err = client.Scan(ctx, &proto.ScanRequest{Namespace: "/ns", Table: "missing"})
	require.NoError(t, err)
	_, err = stream.Recv()
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestRPCServerLookupAndDelete(t *testing.T) {
	ctx := context.Background()
	_, client := newTestServer(t, &Config{})
	seed(t, client, 3)

	stream, err := client.Scan(ctx, &proto.ScanRequest{Namespace: "/ns", Table: "t", Spec: proto.ScanSpec{Row: []byte("row001")}})
	require.NoError(t, err)
	resp, err := stream.Recv()
	require.NoError(t, err)
	require.Len(t, resp.Cells, 1)
	key := resp.Cells[0].Key

	got, err := client.Lookup(ctx, &proto.LookupRequest{Namespace: "/ns", Table: "t", Key: key})
	require.NoError(t, err)
	require.Equal(t, []byte("value1"), got.Cell.Value)

	_, err = client.DeleteRow(ctx, &proto.DeleteRowRequest{Namespace: "/ns", Table: "t", Row: []byte("row001")})
	require.NoError(t, err)
	_, err = client.Lookup(ctx, &proto.LookupRequest{Namespace: "/ns", Table: "t", Key: key})
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestHttpServerStats(t *testing.T) {
	rs, client := newTestServer(t, &Config{})
	seed(t, client, 1)

	h := NewHttpServer(rs.Server)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := &StatsResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(stats))
	require.Equal(t, "badger://", stats.Engine)
	require.Equal(t, 1, stats.OpenTables)

	mresp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	body, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "CellBrowser_grpc_server_handled_total")
}
