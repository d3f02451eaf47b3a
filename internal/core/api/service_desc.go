package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * Service descriptor for hl7keeper.rules.v1.RulesAPI.
 *
 * Requests and responses are protobuf well-known types: GetRulesSchema takes
 * google.protobuf.Empty, every other method exchanges google.protobuf.Struct.
 * Rule set documents and messages travel either as a nested Struct or as a
 * JSON string; the string form keeps member order, which Struct cannot.
 *
 * The descriptor below is registered by hand in the shape protoc-gen-go-grpc
 * would generate, so the wire is identical to a .proto-defined service.
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "hl7keeper.rules.v1.RulesAPI"

// Full method names, as seen by interceptors.
const (
	FullMethodGetRulesSchema  = "/" + ServiceName + "/GetRulesSchema"
	FullMethodCheckRules      = "/" + ServiceName + "/CheckRules"
	FullMethodPutRules        = "/" + ServiceName + "/PutRules"
	FullMethodGetRules        = "/" + ServiceName + "/GetRules"
	FullMethodListRules       = "/" + ServiceName + "/ListRules"
	FullMethodValidateMessage = "/" + ServiceName + "/ValidateMessage"
)

// WriteMethods lists the methods that modify stored rule sets.
var WriteMethods = []string{FullMethodPutRules}

// RulesAPIServer is the server API for the rules service.
type RulesAPIServer interface {
	GetRulesSchema(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CheckRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PutRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRulesAPIServer registers srv on s.
func RegisterRulesAPIServer(s grpc.ServiceRegistrar, srv RulesAPIServer) {
	s.RegisterService(&RulesAPIServiceDesc, srv)
}

// RulesAPIServiceDesc is the grpc.ServiceDesc for the rules service.
var RulesAPIServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RulesAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRulesSchema", Handler: getRulesSchemaHandler},
		{MethodName: "CheckRules", Handler: structHandler(FullMethodCheckRules, RulesAPIServer.CheckRules)},
		{MethodName: "PutRules", Handler: structHandler(FullMethodPutRules, RulesAPIServer.PutRules)},
		{MethodName: "GetRules", Handler: structHandler(FullMethodGetRules, RulesAPIServer.GetRules)},
		{MethodName: "ListRules", Handler: structHandler(FullMethodListRules, RulesAPIServer.ListRules)},
		{MethodName: "ValidateMessage", Handler: structHandler(FullMethodValidateMessage, RulesAPIServer.ValidateMessage)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hl7keeper/rules/v1/rules_api.proto",
}

func getRulesSchemaHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RulesAPIServer).GetRulesSchema(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodGetRulesSchema}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RulesAPIServer).GetRulesSchema(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// structHandler adapts a Struct-in, Struct-out method to grpc.MethodHandler.
func structHandler(fullMethod string, call func(RulesAPIServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RulesAPIServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RulesAPIServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RulesAPIClient is the client API for the rules service.
type RulesAPIClient struct {
	cc grpc.ClientConnInterface
}

// NewRulesAPIClient creates a client over cc.
func NewRulesAPIClient(cc grpc.ClientConnInterface) *RulesAPIClient {
	return &RulesAPIClient{cc: cc}
}

func (c *RulesAPIClient) GetRulesSchema(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethodGetRulesSchema, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RulesAPIClient) CheckRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, FullMethodCheckRules, in, opts)
}

func (c *RulesAPIClient) PutRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, FullMethodPutRules, in, opts)
}

func (c *RulesAPIClient) GetRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, FullMethodGetRules, in, opts)
}

func (c *RulesAPIClient) ListRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, FullMethodListRules, in, opts)
}

func (c *RulesAPIClient) ValidateMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, FullMethodValidateMessage, in, opts)
}

func (c *RulesAPIClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
