package api

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "gigchat.v1.ConversationService"

// ConversationServer is the server side of the control API.
type ConversationServer interface {
	GetStatus(context.Context, *StatusRequest) (*StatusResponse, error)
	OpenConversation(context.Context, *OpenRequest) (*OpenResponse, error)
	GetTimeline(context.Context, *TimelineRequest) (*TimelineResponse, error)
	SendText(context.Context, *SendRequest) (*SendResponse, error)
	DeleteMessage(context.Context, *MessageRequest) (*MessageResponse, error)
	RetryMessage(context.Context, *MessageRequest) (*MessageResponse, error)
	DiscardMessage(context.Context, *MessageRequest) (*MessageResponse, error)
	ListConversations(context.Context, *ConversationsRequest) (*ConversationsResponse, error)
	WatchEvents(*WatchRequest, grpc.ServerStream) error
}

// RegisterConversationServer registers srv on s.
func RegisterConversationServer(s grpc.ServiceRegistrar, srv ConversationServer) {
	s.RegisterService(&conversationServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

// unary adapts one typed handler to a grpc.MethodHandler.
func unary[Req, Resp any](name string, call func(ConversationServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ConversationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ConversationServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ConversationServer).WatchEvents(in, stream)
}

var conversationServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ConversationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", ConversationServer.GetStatus),
		unary("OpenConversation", ConversationServer.OpenConversation),
		unary("GetTimeline", ConversationServer.GetTimeline),
		unary("SendText", ConversationServer.SendText),
		unary("DeleteMessage", ConversationServer.DeleteMessage),
		unary("RetryMessage", ConversationServer.RetryMessage),
		unary("DiscardMessage", ConversationServer.DiscardMessage),
		unary("ListConversations", ConversationServer.ListConversations),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "gigchat/v1/conversation",
}
