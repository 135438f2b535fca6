package fx

import (
	"giftcode-relay/internal/api"
	"giftcode-relay/internal/config"
	"giftcode-relay/internal/database"
	"giftcode-relay/internal/logger"
	"giftcode-relay/internal/repository"
	"giftcode-relay/internal/server"
	"giftcode-relay/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func provideGameClient(c *api.Client) service.GameClient {
	return c
}

func provideRedeemer(
	client service.GameClient,
	accounts *repository.AccountRepository,
	ledger *repository.RedemptionRepository,
	cfg *config.Config,
	log zerolog.Logger,
) *service.Redeemer {
	return service.NewRedeemer(client, accounts, ledger, cfg.RedeemWorkers, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewAccountRepository),
	fx.Provide(repository.NewRedemptionRepository),
	// api client
	fx.Provide(api.NewClient),
	fx.Provide(provideGameClient),
	// svc
	fx.Provide(provideRedeemer),
	fx.Provide(service.NewRoster),
	// server
	fx.Provide(server.NewServer),
)
