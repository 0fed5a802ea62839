package crowdfund

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger/slogx"
	"github.com/crowdfund-network/crowdfund-engine/pkg/reportingclient"
)

const defaultSettleInterval = 15 * time.Second

// SettlementWorker periodically pokes the sale so that end conditions are
// acted on and settlement drains without anyone calling EndSale by hand.
// It pokes as the escrow identity, never the owner, so it cannot end a
// sale early by itself.
type SettlementWorker struct {
	engine    *engine.Engine
	poker     string
	interval  time.Duration
	reporting *reportingclient.ReportingClient

	cleanupFuncs []func(context.Context) error
}

type SettlementWorkerOptions struct {
	Poker        string
	Interval     time.Duration
	Reporting    *reportingclient.ReportingClient
	CleanupFuncs []func(context.Context) error
}

func NewSettlementWorker(eng *engine.Engine, opts SettlementWorkerOptions) *SettlementWorker {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultSettleInterval
	}
	return &SettlementWorker{
		engine:       eng,
		poker:        opts.Poker,
		interval:     interval,
		reporting:    opts.Reporting,
		cleanupFuncs: opts.CleanupFuncs,
	}
}

func (w *SettlementWorker) Run(ctx context.Context) error {
	defer func() {
		for _, cleanup := range w.cleanupFuncs {
			if err := cleanup(context.Background()); err != nil {
				logger.ErrorContext(ctx, "Failed to cleanup", slogx.Error(err))
			}
		}
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.poke(ctx); err != nil {
				logger.ErrorContext(ctx, "Settlement poke failed", slogx.Error(err))
			}
		}
	}
}

func (w *SettlementWorker) poke(ctx context.Context) error {
	result, err := w.engine.EndSale(ctx, engine.EndSaleParams{Caller: w.poker})
	if err != nil {
		// No sale is the steady state between sales.
		if errors.Is(err, errs.LifecycleConflict) {
			return nil
		}
		return errors.WithStack(err)
	}
	if !result.Ended {
		return nil
	}

	if w.reporting != nil {
		if err := w.reporting.SubmitSettlementReport(ctx, reportingclient.SubmitSettlementReportPayload{
			Type:          "settlement_step",
			ClientVersion: Version,
			RefundPath:    result.RefundPath,
			Cleared:       result.Cleared,
			Commands:      len(result.Commands),
			ReportedAt:    time.Now().UTC(),
		}); err != nil {
			logger.WarnContext(ctx, "Failed to submit settlement report", slogx.Error(err))
		}
	}
	if result.Cleared {
		logger.InfoContext(ctx, "Sale fully settled and cleared",
			slogx.Bool("refundPath", result.RefundPath),
		)
	}
	return nil
}
