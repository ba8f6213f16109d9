//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	chathandler "collegovibe/internal/chat/handler"
	"collegovibe/internal/common"
	"collegovibe/internal/config"
	"collegovibe/internal/feed"
	"collegovibe/internal/metrics"
	"collegovibe/internal/server"
	"collegovibe/internal/story"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideClock,
	ProvideRegistry,
	metrics.NewCollector,
	ProvideStores,
	ProvideWorkerPool,
	common.NewTokenIssuer,
)

var domainSet = wire.NewSet(
	ProvideStoryManager,
	story.NewHandler,
	ProvideUserService,
	ProvideUserHandler,
	ProvideFeedService,
	feed.NewFeedHandlers,
	ProvidePresence,
	chathandler.NewStreamHub,
	ProvideRelay,
	ProvideChatHandler,
	ProvideMessageHandlers,
	ProvideMediaServer,
)

var transportSet = wire.NewSet(
	wire.Struct(new(server.Handlers), "*"),
	server.NewRouter,
	server.NewGRPCServer,
)

func InitializeApplication(cfg *config.Config) (*Application, func(), error) {
	wire.Build(
		infraSet,
		domainSet,
		transportSet,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil, nil
}
