package crowdfund

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/core"
	"github.com/crowdfund-network/crowdfund-engine/internal/config"
	"github.com/crowdfund-network/crowdfund-engine/internal/postgres"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/api/httphandler"
	crowdfundconfig "github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/config"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/datagateway"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/fundsplit"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/repository/inmemory"
	repository "github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/repository/postgres"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger"
	"github.com/crowdfund-network/crowdfund-engine/pkg/reportingclient"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do/v2"
	"github.com/shopspring/decimal"
)

const Version = "v0.1.0"

func New(injector do.Injector) (core.Worker, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)
	moduleConf := conf.Modules.Crowdfund

	var (
		dg           datagateway.CrowdfundDataGateway
		cleanupFuncs []func(context.Context) error
	)
	if moduleConf.InMemory {
		dg = inmemory.NewRepository()
		logger.InfoContext(ctx, "Using in-memory repository, state will not survive a restart")
	} else {
		pg, err := postgres.NewPool(ctx, moduleConf.Postgres)
		if err != nil {
			return nil, fmt.Errorf("Can't create postgres connection : %w", err)
		}
		cleanupFuncs = append(cleanupFuncs, func(ctx context.Context) error {
			pg.Close()
			return nil
		})
		dg = repository.NewRepository(pg)
	}

	if err := bootstrapConfig(ctx, dg, moduleConf); err != nil {
		return nil, errors.Wrap(err, "can't bootstrap crowdfund config")
	}

	taxRate := decimal.Zero
	if moduleConf.TaxRate != "" {
		parsed, err := decimal.NewFromString(moduleConf.TaxRate)
		if err != nil {
			return nil, errors.Wrap(err, "invalid tax_rate config")
		}
		taxRate = parsed
	}
	splitter, err := fundsplit.NewRateSplitter(taxRate, moduleConf.TaxCollector)
	if err != nil {
		return nil, errors.Wrap(err, "invalid tax configuration")
	}

	eng := engine.New(dg, splitter, engine.Options{
		Owner:         moduleConf.Owner,
		EscrowAddress: moduleConf.EscrowAddress,
	})

	httpServer := do.MustInvoke[*fiber.App](injector)
	crowdfundHandler := httphandler.New(eng)
	if err := crowdfundHandler.Mount(httpServer); err != nil {
		return nil, fmt.Errorf("Can't mount crowdfund API : %w", err)
	}
	logger.InfoContext(ctx, "Mounted crowdfund HTTP handler")

	var reporting *reportingclient.ReportingClient
	if !conf.Reporting.Disabled {
		reporting = do.MustInvoke[*reportingclient.ReportingClient](injector)
	}

	worker := NewSettlementWorker(eng, SettlementWorkerOptions{
		Poker:        moduleConf.EscrowAddress,
		Interval:     moduleConf.SettleInterval,
		Reporting:    reporting,
		CleanupFuncs: cleanupFuncs,
	})
	logger.InfoContext(ctx, "Crowdfund module started.")
	return worker, nil
}

// bootstrapConfig writes the engine config singleton from the service
// configuration on first start. An existing item source is never
// overwritten here; that goes through UpdateItemSource.
func bootstrapConfig(ctx context.Context, dg datagateway.CrowdfundDataGateway, moduleConf crowdfundconfig.Config) error {
	_, err := dg.GetConfig(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errs.NotFound) {
		return errors.Wrap(err, "can't load config")
	}
	if moduleConf.ItemSource == "" {
		return errors.Wrap(errs.InvalidArgument, "item_source config is required on first start")
	}
	if err := dg.SetConfig(ctx, entity.Config{
		ItemSource:         moduleConf.ItemSource,
		AllowMintAfterSale: moduleConf.AllowMintAfterSale,
	}); err != nil {
		return errors.Wrap(err, "can't save config")
	}
	return nil
}
