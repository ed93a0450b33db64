// Package grpccas exposes and consumes a storage.CAS over gRPC, using protobuf
// well-known wrapper types so no generated code is needed.
//
// Service trailproof.storage.grpccas.v1.CAS:
//
//	Put(BytesValue) returns (StringValue)   stores a block, returns its CID
//	Get(StringValue) returns (BytesValue)   fetches a block by CID string
//	Has(StringValue) returns (BoolValue)
package grpccas

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "trailproof.storage.grpccas.v1.CAS"

func fullMethod(name string) string { return "/" + serviceName + "/" + name }

// CASServer is the server API for the CAS gRPC service.
type CASServer interface {
	Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

// RegisterCASServer registers the CAS service on a gRPC server.
func RegisterCASServer(s grpc.ServiceRegistrar, srv CASServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CASServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Put", CASServer.Put),
		unary("Get", CASServer.Get),
		unary("Has", CASServer.Has),
	},
	Metadata: "cas.proto",
}

// unary adapts one CASServer method to a grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(CASServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CASServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(CASServer), ctx, req.(*Req))
			})
		},
	}
}

// invoke issues one unary call and decodes the reply into a fresh Resp.
func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, fullMethod(name), in, out); err != nil {
		return nil, err
	}
	return out, nil
}
