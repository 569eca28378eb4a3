package grpcslot

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "xdao.w3slot.v1.SlotProgram"

// SlotProgramServer is the server API for the SlotProgram gRPC service.
//
// Messages are protobuf well-known wrapper types, so no protoc/codegen
// toolchain is needed. Operation payloads travel as CBOR envelopes inside
// BytesValue.
type SlotProgramServer interface {
	// Submit applies one encoded envelope and returns its confirmation id.
	Submit(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	MinimumBalance(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.UInt64Value, error)
	// Balance takes a base58 payer address.
	Balance(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	// Airdrop takes a CBOR wire.AirdropRequest and returns the new balance.
	Airdrop(context.Context, *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error)
}

// UnimplementedSlotProgramServer can be embedded to have forward compatible implementations.
type UnimplementedSlotProgramServer struct{}

func (UnimplementedSlotProgramServer) Submit(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Submit not implemented")
}
func (UnimplementedSlotProgramServer) MinimumBalance(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.UInt64Value, error) {
	return nil, status.Error(codes.Unimplemented, "method MinimumBalance not implemented")
}
func (UnimplementedSlotProgramServer) Balance(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	return nil, status.Error(codes.Unimplemented, "method Balance not implemented")
}
func (UnimplementedSlotProgramServer) Airdrop(context.Context, *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error) {
	return nil, status.Error(codes.Unimplemented, "method Airdrop not implemented")
}

func RegisterSlotProgramServer(s grpc.ServiceRegistrar, srv SlotProgramServer) {
	s.RegisterService(&SlotProgram_ServiceDesc, srv)
}

// SlotProgramClient is the client API for the SlotProgram gRPC service.
type SlotProgramClient interface {
	Submit(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	MinimumBalance(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error)
	Balance(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error)
	Airdrop(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error)
}

type slotProgramClient struct{ cc grpc.ClientConnInterface }

func NewSlotProgramClient(cc grpc.ClientConnInterface) SlotProgramClient {
	return &slotProgramClient{cc: cc}
}

func (c *slotProgramClient) Submit(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Submit", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *slotProgramClient) MinimumBalance(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/MinimumBalance", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *slotProgramClient) Balance(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Balance", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *slotProgramClient) Airdrop(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Airdrop", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _SlotProgram_Submit_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SlotProgramServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Submit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SlotProgramServer).Submit(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _SlotProgram_MinimumBalance_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SlotProgramServer).MinimumBalance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/MinimumBalance"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SlotProgramServer).MinimumBalance(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func _SlotProgram_Balance_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SlotProgramServer).Balance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Balance"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SlotProgramServer).Balance(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _SlotProgram_Airdrop_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SlotProgramServer).Airdrop(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Airdrop"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SlotProgramServer).Airdrop(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// SlotProgram_ServiceDesc is the grpc.ServiceDesc for the SlotProgram service.
var SlotProgram_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SlotProgramServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: _SlotProgram_Submit_Handler},
		{MethodName: "MinimumBalance", Handler: _SlotProgram_MinimumBalance_Handler},
		{MethodName: "Balance", Handler: _SlotProgram_Balance_Handler},
		{MethodName: "Airdrop", Handler: _SlotProgram_Airdrop_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "slot.proto",
}
