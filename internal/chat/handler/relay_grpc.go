package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ChatRelay has one bidirectional method carrying google.protobuf.Struct frames.
const (
	ChatRelayServiceName         = "collegovibe.chat.v1.ChatRelay"
	ChatRelay_Connect_FullMethod = "/" + ChatRelayServiceName + "/Connect"
)

// ChatRelayServer is the server API for the relay service.
type ChatRelayServer interface {
	Connect(ChatRelay_ConnectServer) error
}

type ChatRelay_ConnectServer interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ServerStream
}

type chatRelayConnectServer struct {
	grpc.ServerStream
}

func (x *chatRelayConnectServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *chatRelayConnectServer) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func connectHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ChatRelayServer).Connect(&chatRelayConnectServer{stream})
}

var ChatRelay_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatRelayServiceName,
	HandlerType: (*ChatRelayServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       connectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "collegovibe/chat/v1/relay.proto",
}

func RegisterChatRelayServer(s grpc.ServiceRegistrar, srv ChatRelayServer) {
	s.RegisterService(&ChatRelay_ServiceDesc, srv)
}

// ChatRelayClient is the client API for the relay service.
type ChatRelayClient interface {
	Connect(ctx context.Context, opts ...grpc.CallOption) (ChatRelay_ConnectClient, error)
}

type ChatRelay_ConnectClient interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type chatRelayClient struct {
	cc grpc.ClientConnInterface
}

func NewChatRelayClient(cc grpc.ClientConnInterface) ChatRelayClient {
	return &chatRelayClient{cc}
}

func (c *chatRelayClient) Connect(ctx context.Context, opts ...grpc.CallOption) (ChatRelay_ConnectClient, error) {
	stream, err := c.cc.NewStream(ctx, &ChatRelay_ServiceDesc.Streams[0], ChatRelay_Connect_FullMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &chatRelayConnectClient{stream}, nil
}

type chatRelayConnectClient struct {
	grpc.ClientStream
}

func (x *chatRelayConnectClient) Send(m *structpb.Struct) error {
	return x.ClientStream.SendMsg(m)
}

func (x *chatRelayConnectClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
