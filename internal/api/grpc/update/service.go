package update

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "updates.v1.UpdateService"

// Full method names.
const (
	MethodGetAppVersion   = "/" + ServiceName + "/GetAppVersion"
	MethodGetStatus       = "/" + ServiceName + "/GetStatus"
	MethodCheckForUpdates = "/" + ServiceName + "/CheckForUpdates"
	MethodStartUpdate     = "/" + ServiceName + "/StartUpdate"
	MethodQuitAndInstall  = "/" + ServiceName + "/QuitAndInstall"
	MethodWatchStatus     = "/" + ServiceName + "/WatchStatus"
)

// UpdateServiceServer is the server API of the update bridge.
type UpdateServiceServer interface {
	GetAppVersion(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error)
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	CheckForUpdates(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	StartUpdate(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	QuitAndInstall(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
	WatchStatus(req *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterUpdateServiceServer registers srv on s.
func RegisterUpdateServiceServer(s grpc.ServiceRegistrar, srv UpdateServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the update bridge for grpc.Server.
//
//nolint:gochecknoglobals // Service descriptors are package level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UpdateServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetAppVersion", UpdateServiceServer.GetAppVersion),
		unaryMethod("GetStatus", UpdateServiceServer.GetStatus),
		unaryMethod("CheckForUpdates", UpdateServiceServer.CheckForUpdates),
		unaryMethod("StartUpdate", UpdateServiceServer.StartUpdate),
		unaryMethod("QuitAndInstall", UpdateServiceServer.QuitAndInstall),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchStatus",
			Handler:       watchStatusHandler,
			ServerStreams: true,
		},
	},
	Metadata: "updates/v1/update_service.proto",
}

// unaryMethod builds the descriptor of a unary method backed by call.
func unaryMethod[Req, Resp any](
	name string,
	call func(UpdateServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			handler := func(ctx context.Context, req any) (any, error) {
				resp, err := call(srv.(UpdateServiceServer), ctx, req.(*Req)) //nolint:forcetypeassert // Guaranteed by the descriptor.
				if err != nil {
					return nil, err
				}

				return resp, nil
			}

			if interceptor == nil {
				return handler(ctx, in)
			}

			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}

			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchStatusHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	//nolint:forcetypeassert // Guaranteed by the descriptor.
	return srv.(UpdateServiceServer).WatchStatus(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{
		ServerStream: stream,
	})
}
