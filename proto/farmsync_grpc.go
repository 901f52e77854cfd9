/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const _ = grpc.SupportPackageIsVersion9

const (
	FarmSync_GetState_FullMethodName = "/farmradar.FarmSync/GetState"
	FarmSync_Sync_FullMethodName     = "/farmradar.FarmSync/Sync"
)

// FarmSyncClient is the client API for the FarmSync service.
type FarmSyncClient interface {
	// GetState returns the latest state the core holds for a machine.
	GetState(ctx context.Context, in *StateRequest, opts ...grpc.CallOption) (*StateResponse, error)
	// Sync streams change batches; the core acknowledges each applied batch.
	Sync(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[ChangeBatch, BatchAck], error)
}

type farmSyncClient struct {
	cc grpc.ClientConnInterface
}

func NewFarmSyncClient(cc grpc.ClientConnInterface) FarmSyncClient {
	return &farmSyncClient{cc}
}

func (c *farmSyncClient) GetState(ctx context.Context, in *StateRequest, opts ...grpc.CallOption) (*StateResponse, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod(), grpc.CallContentSubtype(CodecName)}, opts...)
	out := new(StateResponse)

	err := c.cc.Invoke(ctx, FarmSync_GetState_FullMethodName, in, out, cOpts...)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *farmSyncClient) Sync(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[ChangeBatch, BatchAck], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod(), grpc.CallContentSubtype(CodecName)}, opts...)

	stream, err := c.cc.NewStream(ctx, &FarmSync_ServiceDesc.Streams[0], FarmSync_Sync_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[ChangeBatch, BatchAck]{ClientStream: stream}

	return x, nil
}

type FarmSync_SyncClient = grpc.BidiStreamingClient[ChangeBatch, BatchAck]

// FarmSyncServer is the server API for the FarmSync service.
type FarmSyncServer interface {
	GetState(context.Context, *StateRequest) (*StateResponse, error)
	Sync(grpc.BidiStreamingServer[ChangeBatch, BatchAck]) error
	mustEmbedUnimplementedFarmSyncServer()
}

// UnimplementedFarmSyncServer must be embedded by value for forward
// compatibility.
type UnimplementedFarmSyncServer struct{}

func (UnimplementedFarmSyncServer) GetState(context.Context, *StateRequest) (*StateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetState not implemented")
}

func (UnimplementedFarmSyncServer) Sync(grpc.BidiStreamingServer[ChangeBatch, BatchAck]) error {
	return status.Error(codes.Unimplemented, "method Sync not implemented")
}

func (UnimplementedFarmSyncServer) mustEmbedUnimplementedFarmSyncServer() {}
func (UnimplementedFarmSyncServer) testEmbeddedByValue()                  {}

func RegisterFarmSyncServer(s grpc.ServiceRegistrar, srv FarmSyncServer) {
	if t, ok := srv.(interface{ testEmbeddedByValue() }); ok {
		t.testEmbeddedByValue()
	}

	s.RegisterService(&FarmSync_ServiceDesc, srv)
}

func _FarmSync_GetState_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(FarmSyncServer).GetState(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FarmSync_GetState_FullMethodName,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FarmSyncServer).GetState(ctx, req.(*StateRequest))
	}

	return interceptor(ctx, in, info, handler)
}

func _FarmSync_Sync_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(FarmSyncServer).Sync(&grpc.GenericServerStream[ChangeBatch, BatchAck]{ServerStream: stream})
}

type FarmSync_SyncServer = grpc.BidiStreamingServer[ChangeBatch, BatchAck]

// FarmSync_ServiceDesc is the grpc.ServiceDesc for the FarmSync service.
var FarmSync_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "farmradar.FarmSync",
	HandlerType: (*FarmSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetState",
			Handler:    _FarmSync_GetState_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Sync",
			Handler:       _FarmSync_Sync_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "farmsync.proto",
}
