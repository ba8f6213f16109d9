package server

import (
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	chathandler "collegovibe/internal/chat/handler"
	"collegovibe/internal/common"
	"collegovibe/internal/logger"
)

// NewGRPCServer serves the chat relay. Every stream is logged, then authenticated.
func NewGRPCServer(chat *chathandler.ChatHandler, issuer *common.TokenIssuer, log zerolog.Logger) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainStreamInterceptor(
			logger.StreamServerInterceptor(log),
			common.StreamAuthInterceptor(issuer),
		),
	)
	chathandler.RegisterChatRelayServer(s, chat)
	return s
}
