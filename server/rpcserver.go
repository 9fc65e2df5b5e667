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
	"io"
	"net"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/cubefs/cellbrowser/datasource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/metrics"
	"github.com/cubefs/cellbrowser/proto"
)

type RPCServer struct {
	*Server
	grpcServer *grpc.Server
}

func NewRPCServer(server *Server) *RPCServer {
	rs := &RPCServer{Server: server}

	s := grpc.NewServer(
		grpc.ForceServerCodec(proto.Codec()),
		grpc.ChainUnaryInterceptor(rs.unaryInterceptorWithTracer, metrics.GRPCMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(rs.streamInterceptorWithTracer, metrics.GRPCMetrics.StreamServerInterceptor()),
	)
	proto.RegisterBrowserServer(s, rs)
	metrics.GRPCMetrics.InitializeMetrics(s)
	rs.grpcServer = s
	return rs
}

func (r *RPCServer) Serve(addr string) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("listen on %s failed: %s", addr, err)
	}
	go func() {
		if err := r.ServeListener(lis); err != nil {
			log.Fatal("grpc server exits:", err)
		}
	}()
	log.Info("grpc server is running at:", addr)
}

// ServeListener blocks serving lis until Stop.
func (r *RPCServer) ServeListener(lis net.Listener) error {
	return r.grpcServer.Serve(lis)
}

func (r *RPCServer) Stop() {
	r.grpcServer.GracefulStop()
}

func (r *RPCServer) ListNamespace(ctx context.Context, req *proto.ListNamespaceRequest) (*proto.ListNamespaceResponse, error) {
	entries, err := r.source.ListNamespace(ctx, req.Path)
	if err != nil {
		return nil, apierrors.ToStatus(err)
	}
	return &proto.ListNamespaceResponse{Entries: entries}, nil
}

func (r *RPCServer) OpenTable(ctx context.Context, req *proto.OpenTableRequest) (*proto.OpenTableResponse, error) {
	tbl, err := r.table(ctx, req.Namespace, req.Table)
	if err != nil {
		return nil, apierrors.ToStatus(err)
	}
	return &proto.OpenTableResponse{Name: tbl.Name()}, nil
}

func (r *RPCServer) Lookup(ctx context.Context, req *proto.LookupRequest) (*proto.LookupResponse, error) {
	if err := r.limiter.AcquireLookup(); err != nil {
		return nil, apierrors.ToStatus(err)
	}
	defer r.limiter.ReleaseLookup()

	tbl, err := r.table(ctx, req.Namespace, req.Table)
	if err != nil {
		return nil, apierrors.ToStatus(err)
	}
	cell, err := tbl.Lookup(ctx, req.Key)
	if err != nil {
		return nil, apierrors.ToStatus(err)
	}
	return &proto.LookupResponse{Cell: cell}, nil
}

func (r *RPCServer) CreateNamespace(ctx context.Context, req *proto.CreateNamespaceRequest) (*proto.CreateNamespaceResponse, error) {
	span := trace.SpanFromContextSafe(ctx)
	admin, ok := r.source.(datasource.Admin)
	if !ok {
		return nil, apierrors.ToStatus(apierrors.ErrNotSupported)
	}
	if err := admin.CreateNamespace(ctx, req.Path); err != nil {
		span.Warnf("create namespace[%s] failed: %s", req.Path, errors.Detail(err))
		return nil, apierrors.ToStatus(err)
	}
	return &proto.CreateNamespaceResponse{}, nil
}

func (r *RPCServer) CreateTable(ctx context.Context, req *proto.CreateTableRequest) (*proto.CreateTableResponse, error) {
	span := trace.SpanFromContextSafe(ctx)
	admin, ok := r.source.(datasource.Admin)
	if !ok {
		return nil, apierrors.ToStatus(apierrors.ErrNotSupported)
	}
	if err := admin.CreateTable(ctx, req.Namespace, req.Table); err != nil {
		span.Warnf("create table[%s/%s] failed: %s", req.Namespace, req.Table, errors.Detail(err))
		return nil, apierrors.ToStatus(err)
	}
	return &proto.CreateTableResponse{}, nil
}

func (r *RPCServer) Mutate(ctx context.Context, req *proto.MutateRequest) (*proto.MutateResponse, error) {
	mutator, err := r.mutator(ctx, req.Namespace, req.Table)
	if err != nil {
		return nil, apierrors.ToStatus(err)
	}
	datasource.AssignTimestamps(req.Cells)
	if err = mutator.Set(ctx, req.Cells...); err != nil {
		trace.SpanFromContextSafe(ctx).Errorf("set %d cells failed: %s", len(req.Cells), errors.Detail(err))
		return nil, apierrors.ToStatus(err)
	}
	return &proto.MutateResponse{}, nil
}

func (r *RPCServer) DeleteRow(ctx context.Context, req *proto.DeleteRowRequest) (*proto.DeleteRowResponse, error) {
	mutator, err := r.mutator(ctx, req.Namespace, req.Table)
	if err != nil {
		return nil, apierrors.ToStatus(err)
	}
	if err = mutator.DeleteRow(ctx, req.Row); err != nil {
		trace.SpanFromContextSafe(ctx).Errorf("delete row failed: %s", errors.Detail(err))
		return nil, apierrors.ToStatus(err)
	}
	return &proto.DeleteRowResponse{}, nil
}

// Scan streams the table in batches of the requested size. A failing send
// ends the scan, which is how client cancellation reaches the engine.
func (r *RPCServer) Scan(req *proto.ScanRequest, stream proto.Browser_ScanServer) error {
	ctx := stream.Context()
	span := trace.SpanFromContextSafe(ctx)

	tbl, err := r.table(ctx, req.Namespace, req.Table)
	if err != nil {
		return apierrors.ToStatus(err)
	}
	scanner, err := tbl.Scanner(ctx, req.Spec)
	if err != nil {
		return apierrors.ToStatus(err)
	}
	defer scanner.Close()

	size := r.batchSize(req.BatchSize)
	batch := make([]proto.Cell, 0, size)
	bytes, total := 0, 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.limiter.WaitScan(ctx, bytes); err != nil {
			return err
		}
		if err := stream.Send(&proto.ScanResponse{Cells: batch}); err != nil {
			return err
		}
		total += len(batch)
		batch, bytes = make([]proto.Cell, 0, size), 0
		return nil
	}

	for {
		cell, err := scanner.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			span.Warnf("scan %s failed: %s", tbl.Name(), errors.Detail(err))
			return apierrors.ToStatus(err)
		}
		batch = append(batch, cell)
		bytes += cell.Size()
		if len(batch) == size {
			if err = flush(); err != nil {
				return apierrors.ToStatus(err)
			}
		}
	}
	if err = flush(); err != nil {
		return apierrors.ToStatus(err)
	}
	span.Debugf("scan %s %s sent %d cells", tbl.Name(), req.Spec, total)
	return nil
}

func (r *RPCServer) mutator(ctx context.Context, namespace, name string) (datasource.Mutator, error) {
	tbl, err := r.table(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	mutator, ok := tbl.(datasource.Mutator)
	if !ok {
		return nil, apierrors.ErrNotSupported
	}
	return mutator, nil
}

func (r *RPCServer) unaryInterceptorWithTracer(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	return handler(r.tracerContext(ctx, info.FullMethod), req)
}

func (r *RPCServer) streamInterceptorWithTracer(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	return handler(srv, &tracedStream{ServerStream: ss, ctx: r.tracerContext(ss.Context(), info.FullMethod)})
}

func (r *RPCServer) tracerContext(ctx context.Context, method string) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if reqID := md.Get(proto.ReqIdKey); len(reqID) > 0 {
			_, ctx = trace.StartSpanFromContextWithTraceID(ctx, method, reqID[0])
			return ctx
		}
	}
	_, ctx = trace.StartSpanFromContext(ctx, method)
	return ctx
}

type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context {
	return s.ctx
}
