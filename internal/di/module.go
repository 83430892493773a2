package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/userdir/internal/adapter/billing"
	"github.com/polkiloo/userdir/internal/app"
	"github.com/polkiloo/userdir/internal/config"
	"github.com/polkiloo/userdir/internal/directory"
	"github.com/polkiloo/userdir/internal/kvstore/postgres"
	"github.com/polkiloo/userdir/internal/logger"
	"github.com/polkiloo/userdir/internal/pkg/auth"
	"github.com/polkiloo/userdir/internal/server/http/handlers"
	"github.com/polkiloo/userdir/internal/server/http/router"
	"github.com/polkiloo/userdir/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		auth.Module,
		postgres.Module,
		directory.Module,
		billing.Module,
		usecase.Module,
		fx.Provide(func(client billing.Client) app.SubscriptionProvider { return client }),
		fx.Provide(func(facade *app.DirectoryFacade) handlers.DirectoryFacade { return facade }),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
