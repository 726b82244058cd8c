//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"FlapBoard/internal/biz"
	"FlapBoard/internal/conf"
	"FlapBoard/internal/data"
	"FlapBoard/internal/server"
	"FlapBoard/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.AI, *conf.Circuit, *conf.Board, *conf.Prompt, *conf.Cron, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		server.ProviderSet,
		newBoardLayout,
		newApp,
	))
}
