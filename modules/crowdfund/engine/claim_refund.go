package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger/slogx"
)

type ClaimRefundParams struct {
	Buyer string
}

type ClaimRefundResult struct {
	Result
	// Refunded is the combined payment returned to the caller.
	Refunded common.Coin
}

// ClaimRefund lets a buyer pull their own refund without waiting for the
// settlement drain to reach them. Valid only after the sale has ended on
// the refund path. While the caller's entry is at hand, a batch of other
// buyers is refunded opportunistically.
func (e *Engine) ClaimRefund(ctx context.Context, params ClaimRefundParams) (*ClaimRefundResult, error) {
	if err := validateAddress(params.Buyer); err != nil {
		return nil, errors.Wrap(err, "invalid buyer")
	}

	qtx, err := e.dg.BeginCrowdfundTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = qtx.Rollback(ctx)
	}()

	state, err := qtx.GetSaleState(ctx)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil, errors.Wrap(errs.LifecycleConflict, "no ongoing sale")
		}
		return nil, errors.Wrap(err, "cannot load sale state")
	}
	if state.EndedAt == nil && !state.Ended(e.now()) && !state.OwnerEnded {
		return nil, errors.Wrap(errs.LifecycleConflict, "sale has not ended")
	}
	if state.MinimumMet() {
		return nil, errors.Wrap(errs.LifecycleConflict, "sale minimum was met, refunds are not available")
	}

	purchases, err := qtx.GetPurchasesByBuyer(ctx, params.Buyer)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load buyer purchases")
	}
	if len(purchases) == 0 {
		return nil, errors.Wrapf(errs.NotFound, "no purchases recorded for %q", params.Buyer)
	}

	result := &ClaimRefundResult{Refunded: common.NewCoin64(state.Price.Denom, 0)}
	commands, err := e.refundBuyer(ctx, qtx, state, params.Buyer)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(commands) > 0 {
		result.Refunded = commands[0].Amount
	}
	result.Commands = append(result.Commands, commands...)

	// Opportunistically drain a batch of other buyers in the same call.
	others, err := qtx.ListLedgerBuyers(ctx, DefaultSettleLimit)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list ledger buyers")
	}
	for _, other := range others {
		commands, err := e.refundBuyer(ctx, qtx, state, other)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		result.Commands = append(result.Commands, commands...)
	}

	if len(result.Commands) > 0 {
		if err := qtx.AddOutboundCommands(ctx, result.Commands); err != nil {
			return nil, errors.Wrap(err, "cannot enqueue refund commands")
		}
	}

	// The registry may still hold unsold items waiting for burn batches, so
	// the sale state is cleared here only if everything is already drained.
	remainingBuyers, err := qtx.CountLedgerBuyers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot count ledger buyers")
	}
	remainingItems, err := qtx.CountAvailableItems(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot count available items")
	}
	if remainingBuyers == 0 && remainingItems.IsZero() {
		if err := qtx.ClearSaleState(ctx); err != nil {
			return nil, errors.Wrap(err, "cannot clear sale state")
		}
	}

	if err := qtx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	logger.InfoContext(ctx, "Refund claimed",
		slogx.String("buyer", params.Buyer),
		slogx.Stringer("refunded", result.Refunded),
		slogx.Int("othersRefunded", len(others)),
	)
	return result, nil
}
