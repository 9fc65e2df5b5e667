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

package proto

import (
	"context"

	"google.golang.org/grpc"
)

const BrowserServiceName = "cellbrowser.Browser"

const (
	Browser_ListNamespace_FullMethodName   = "/cellbrowser.Browser/ListNamespace"
	Browser_OpenTable_FullMethodName       = "/cellbrowser.Browser/OpenTable"
	Browser_Lookup_FullMethodName          = "/cellbrowser.Browser/Lookup"
	Browser_CreateNamespace_FullMethodName = "/cellbrowser.Browser/CreateNamespace"
	Browser_CreateTable_FullMethodName     = "/cellbrowser.Browser/CreateTable"
	Browser_Mutate_FullMethodName          = "/cellbrowser.Browser/Mutate"
	Browser_DeleteRow_FullMethodName       = "/cellbrowser.Browser/DeleteRow"
	Browser_Scan_FullMethodName            = "/cellbrowser.Browser/Scan"
)

// BrowserClient is the client API for the Browser service.
type BrowserClient interface {
	ListNamespace(ctx context.Context, in *ListNamespaceRequest, opts ...grpc.CallOption) (*ListNamespaceResponse, error)
	OpenTable(ctx context.Context, in *OpenTableRequest, opts ...grpc.CallOption) (*OpenTableResponse, error)
	Lookup(ctx context.Context, in *LookupRequest, opts ...grpc.CallOption) (*LookupResponse, error)
	CreateNamespace(ctx context.Context, in *CreateNamespaceRequest, opts ...grpc.CallOption) (*CreateNamespaceResponse, error)
	CreateTable(ctx context.Context, in *CreateTableRequest, opts ...grpc.CallOption) (*CreateTableResponse, error)
	Mutate(ctx context.Context, in *MutateRequest, opts ...grpc.CallOption) (*MutateResponse, error)
	DeleteRow(ctx context.Context, in *DeleteRowRequest, opts ...grpc.CallOption) (*DeleteRowResponse, error)
	Scan(ctx context.Context, in *ScanRequest, opts ...grpc.CallOption) (Browser_ScanClient, error)
}

type browserClient struct {
	cc grpc.ClientConnInterface
}

func NewBrowserClient(cc grpc.ClientConnInterface) BrowserClient {
	return &browserClient{cc: cc}
}

func (c *browserClient) ListNamespace(ctx context.Context, in *ListNamespaceRequest, opts ...grpc.CallOption) (*ListNamespaceResponse, error) {
	out := new(ListNamespaceResponse)
	if err := c.cc.Invoke(ctx, Browser_ListNamespace_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *browserClient) OpenTable(ctx context.Context, in *OpenTableRequest, opts ...grpc.CallOption) (*OpenTableResponse, error) {
	out := new(OpenTableResponse)
	if err := c.cc.Invoke(ctx, Browser_OpenTable_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *browserClient) Lookup(ctx context.Context, in *LookupRequest, opts ...grpc.CallOption) (*LookupResponse, error) {
	out := new(LookupResponse)
	if err := c.cc.Invoke(ctx, Browser_Lookup_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *browserClient) CreateNamespace(ctx context.Context, in *CreateNamespaceRequest, opts ...grpc.CallOption) (*CreateNamespaceResponse, error) {
	out := new(CreateNamespaceResponse)
	if err := c.cc.Invoke(ctx, Browser_CreateNamespace_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *browserClient) CreateTable(ctx context.Context, in *CreateTableRequest, opts ...grpc.CallOption) (*CreateTableResponse, error) {
	out := new(CreateTableResponse)
	if err := c.cc.Invoke(ctx, Browser_CreateTable_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *browserClient) Mutate(ctx context.Context, in *MutateRequest, opts ...grpc.CallOption) (*MutateResponse, error) {
	out := new(MutateResponse)
	if err := c.cc.Invoke(ctx, Browser_Mutate_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *browserClient) DeleteRow(ctx context.Context, in *DeleteRowRequest, opts ...grpc.CallOption) (*DeleteRowResponse, error) {
	out := new(DeleteRowResponse)
	if err := c.cc.Invoke(ctx, Browser_DeleteRow_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *browserClient) Scan(ctx context.Context, in *ScanRequest, opts ...grpc.CallOption) (Browser_ScanClient, error) {
	stream, err := c.cc.NewStream(ctx, &Browser_ServiceDesc.Streams[0], Browser_Scan_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &browserScanClient{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type Browser_ScanClient interface {
	Recv() (*ScanResponse, error)
	grpc.ClientStream
}

type browserScanClient struct {
	grpc.ClientStream
}

func (x *browserScanClient) Recv() (*ScanResponse, error) {
	m := new(ScanResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// BrowserServer is the server API for the Browser service.
type BrowserServer interface {
	ListNamespace(context.Context, *ListNamespaceRequest) (*ListNamespaceResponse, error)
	OpenTable(context.Context, *OpenTableRequest) (*OpenTableResponse, error)
	Lookup(context.Context, *LookupRequest) (*LookupResponse, error)
	CreateNamespace(context.Context, *CreateNamespaceRequest) (*CreateNamespaceResponse, error)
	CreateTable(context.Context, *CreateTableRequest) (*CreateTableResponse, error)
	Mutate(context.Context, *MutateRequest) (*MutateResponse, error)
	DeleteRow(context.Context, *DeleteRowRequest) (*DeleteRowResponse, error)
	Scan(*ScanRequest, Browser_ScanServer) error
}

func RegisterBrowserServer(s grpc.ServiceRegistrar, srv BrowserServer) {
	s.RegisterService(&Browser_ServiceDesc, srv)
}

type Browser_ScanServer interface {
	Send(*ScanResponse) error
	grpc.ServerStream
}

type browserScanServer struct {
	grpc.ServerStream
}

func (x *browserScanServer) Send(m *ScanResponse) error {
	return x.ServerStream.SendMsg(m)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(BrowserServer, context.Context, *Req) (*Resp, error)) func(
	srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BrowserServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(BrowserServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _Browser_Scan_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(ScanRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(BrowserServer).Scan(m, &browserScanServer{ServerStream: stream})
}

// Browser_ServiceDesc is the grpc.ServiceDesc for the Browser service.
var Browser_ServiceDesc = grpc.ServiceDesc{
	ServiceName: BrowserServiceName,
	HandlerType: (*BrowserServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListNamespace",
			Handler:    unaryHandler(Browser_ListNamespace_FullMethodName, BrowserServer.ListNamespace),
		},
		{
			MethodName: "OpenTable",
			Handler:    unaryHandler(Browser_OpenTable_FullMethodName, BrowserServer.OpenTable),
		},
		{
			MethodName: "Lookup",
			Handler:    unaryHandler(Browser_Lookup_FullMethodName, BrowserServer.Lookup),
		},
		{
			MethodName: "CreateNamespace",
			Handler:    unaryHandler(Browser_CreateNamespace_FullMethodName, BrowserServer.CreateNamespace),
		},
		{
			MethodName: "CreateTable",
			Handler:    unaryHandler(Browser_CreateTable_FullMethodName, BrowserServer.CreateTable),
		},
		{
			MethodName: "Mutate",
			Handler:    unaryHandler(Browser_Mutate_FullMethodName, BrowserServer.Mutate),
		},
		{
			MethodName: "DeleteRow",
			Handler:    unaryHandler(Browser_DeleteRow_FullMethodName, BrowserServer.DeleteRow),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Scan",
			Handler:       _Browser_Scan_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "cellbrowser/browser.proto",
}
