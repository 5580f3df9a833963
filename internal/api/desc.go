// Package api exposes the repositories over gRPC on the profile's unix
// socket. Requests and responses are google.protobuf.Struct values, so the
// service is described by hand instead of by generated code.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "jobboard.v1.JobBoard"

// FullMethod returns the gRPC path of a method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// handler is the type the service desc requires its implementation to have.
type handler interface {
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(*Service, context.Context, *structpb.Struct) (*structpb.Struct, error)

type streamFunc func(*Service, *structpb.Struct, grpc.ServerStream) error

func unary(name string, fn unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Service)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

func serverStream(name string, fn streamFunc) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    name,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(structpb.Struct)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return fn(srv.(*Service), in, stream)
		},
	}
}

// ServiceDesc describes the JobBoard service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*handler)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", (*Service).GetStatus),

		unary("RegisterUser", (*Service).RegisterUser),
		unary("Login", (*Service).Login),
		unary("LoginGuest", (*Service).LoginGuest),
		unary("Logout", (*Service).Logout),
		unary("GetUser", (*Service).GetUser),
		unary("FindUser", (*Service).FindUser),
		unary("ListUsers", (*Service).ListUsers),
		unary("SearchUsers", (*Service).SearchUsers),
		unary("SetProfilePhoto", (*Service).SetProfilePhoto),

		unary("CreateJob", (*Service).CreateJob),
		unary("UpdateJob", (*Service).UpdateJob),
		unary("DeleteJob", (*Service).DeleteJob),
		unary("GetJob", (*Service).GetJob),
		unary("SearchJobs", (*Service).SearchJobs),

		unary("SendMessage", (*Service).SendMessage),
		unary("Conversation", (*Service).Conversation),
		unary("MessagesForUser", (*Service).MessagesForUser),
		unary("GetMessage", (*Service).GetMessage),
		unary("SyncMessages", (*Service).SyncMessages),
	},
	Streams: []grpc.StreamDesc{
		serverStream("WatchJobs", (*Service).WatchJobs),
		serverStream("WatchConversation", (*Service).WatchConversation),
		serverStream("WatchEvents", (*Service).WatchEvents),
	},
}

// Register attaches svc to a gRPC server.
func Register(srv *grpc.Server, svc *Service) {
	srv.RegisterService(&ServiceDesc, svc)
}

// streamDesc returns the desc of a server stream by name.
func streamDesc(name string) *grpc.StreamDesc {
	for i := range ServiceDesc.Streams {
		if ServiceDesc.Streams[i].StreamName == name {
			return &ServiceDesc.Streams[i]
		}
	}
	return nil
}
