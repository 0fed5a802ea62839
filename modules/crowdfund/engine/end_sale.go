package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/datagateway"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger/slogx"
	"github.com/gaze-network/uint128"
)

type EndSaleParams struct {
	Caller string
	// Limit bounds the settlement work done by this call. Defaults to
	// DefaultSettleLimit, hard-capped at MaxSettleLimit.
	Limit *int32
}

type EndSaleResult struct {
	Result
	// Ended reports whether the sale had ended; false means the call was a
	// harmless poke and nothing changed.
	Ended bool
	// RefundPath is valid when Ended; true means the minimum was not met.
	RefundPath bool
	// Cleared reports that all settlement work is finished and the engine
	// is back to accepting a new sale.
	Cleared bool
}

// endConditionMet evaluates the sale end rules as a disjunction: time
// expiry, minimum sold, target percentage of total items sold, maximum
// elapsed duration, and the explicit owner-ended flag. Optional criteria
// default to "not satisfied" when unset.
func endConditionMet(state *entity.SaleState, now time.Time) bool {
	if state.EndedAt != nil || state.Ended(now) || state.OwnerEnded || state.MinimumMet() {
		return true
	}
	if state.TargetPercentageSold != nil && !state.TotalItems.IsZero() {
		sold, overflow := state.ItemsSold.MulOverflow(uint128.From64(100))
		if !overflow {
			soldPercentage := sold.Div(state.TotalItems)
			if soldPercentage.Cmp64(uint64(*state.TargetPercentageSold)) >= 0 {
				return true
			}
		}
	}
	if state.MaxDuration != nil && now.Sub(state.StartTime) >= *state.MaxDuration {
		return true
	}
	return false
}

// EndSale ends the sale if any end condition holds (or the owner calls
// it, or no items remain available) and performs one bounded settlement
// step. When no condition holds it is a safe no-op, so repeated poke
// calls are harmless. Callers drain by invoking it until Cleared.
func (e *Engine) EndSale(ctx context.Context, params EndSaleParams) (*EndSaleResult, error) {
	limit := DefaultSettleLimit
	if params.Limit != nil {
		limit = *params.Limit
		if limit == 0 {
			return nil, errors.Wrap(errs.LimitExceeded, "limit must not be zero")
		}
		if limit < 0 {
			return nil, errors.Wrap(errs.InvalidArgument, "limit must not be negative")
		}
	}
	limit = min(limit, MaxSettleLimit)

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

	available, err := qtx.CountAvailableItems(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot count available items")
	}

	now := e.now()
	if !endConditionMet(state, now) && !e.isOwner(params.Caller) && !available.IsZero() {
		// Not ended yet; nothing to do.
		return &EndSaleResult{}, nil
	}

	// The owner ending early must also stop further purchases.
	if !state.OwnerEnded && !state.Ended(now) && e.isOwner(params.Caller) {
		state.OwnerEnded = true
	}

	// Freeze the end decision. A sale can end before its end time (owner,
	// minimum, target, max duration), and without the marker a purchase
	// between drain steps could reopen it or flip the settlement path.
	if state.EndedAt == nil {
		state.EndedAt = &now
	}

	result, err := e.settleStep(ctx, qtx, state, limit)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := qtx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	logger.InfoContext(ctx, "Settlement step completed",
		slogx.Bool("refundPath", result.RefundPath),
		slogx.Bool("cleared", result.Cleared),
		slogx.Int("commands", len(result.Commands)),
	)
	return result, nil
}

// settleStep performs one bounded unit of settlement work on the chosen
// path. The path is a pure function of the frozen ItemsSold counter, so
// it cannot change between calls.
func (e *Engine) settleStep(ctx context.Context, qtx datagateway.CrowdfundDataGatewayWithTx, state *entity.SaleState, limit int32) (*EndSaleResult, error) {
	result := &EndSaleResult{Ended: true, RefundPath: !state.MinimumMet()}

	if result.RefundPath {
		if err := e.refundStep(ctx, qtx, state, limit, result); err != nil {
			return nil, errors.WithStack(err)
		}
	} else {
		if err := e.deliverStep(ctx, qtx, state, limit, result); err != nil {
			return nil, errors.WithStack(err)
		}
	}

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
		result.Cleared = true
		return result, nil
	}

	if err := qtx.SetSaleState(ctx, *state); err != nil {
		return nil, errors.Wrap(err, "cannot save sale state")
	}
	return result, nil
}

// refundStep refunds up to limit buyers in ledger insertion order, then
// burns up to limit unsold items.
func (e *Engine) refundStep(ctx context.Context, qtx datagateway.CrowdfundDataGatewayWithTx, state *entity.SaleState, limit int32, result *EndSaleResult) error {
	buyers, err := qtx.ListLedgerBuyers(ctx, limit)
	if err != nil {
		return errors.Wrap(err, "cannot list ledger buyers")
	}
	for _, buyer := range buyers {
		commands, err := e.refundBuyer(ctx, qtx, state, buyer)
		if err != nil {
			return errors.WithStack(err)
		}
		result.Commands = append(result.Commands, commands...)
	}

	commands, err := e.burnBatch(ctx, qtx, limit)
	if err != nil {
		return errors.WithStack(err)
	}
	result.Commands = append(result.Commands, commands...)

	if len(result.Commands) > 0 {
		if err := qtx.AddOutboundCommands(ctx, result.Commands); err != nil {
			return errors.Wrap(err, "cannot enqueue settlement commands")
		}
	}
	return nil
}

// refundBuyer merges the buyer's whole ledger entry into one combined
// payment of unit price plus tax per purchase, then deletes the entry.
// The tax on each item is not guaranteed equal since the split strategy
// is mutable during the sale. A zero computed refund still clears the
// entry, just without a payment.
func (e *Engine) refundBuyer(ctx context.Context, qtx datagateway.CrowdfundDataGatewayWithTx, state *entity.SaleState, buyer string) ([]entity.OutboundCommand, error) {
	purchases, err := qtx.GetPurchasesByBuyer(ctx, buyer)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load purchases of %q", buyer)
	}

	amount := uint128.Zero
	for _, purchase := range purchases {
		amount, err = checkedAdd(amount, state.Price.Amount)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		amount, err = checkedAdd(amount, purchase.TaxAmount)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if err := qtx.DeletePurchasesByBuyer(ctx, buyer); err != nil {
		return nil, errors.Wrapf(err, "cannot delete ledger entry of %q", buyer)
	}

	if amount.IsZero() {
		return nil, nil
	}
	return []entity.OutboundCommand{{
		Kind:      entity.CommandSendPayment,
		Recipient: buyer,
		Amount:    common.NewCoin(state.Price.Denom, amount),
	}}, nil
}

// deliverStep runs the settlement path: forward proceeds exactly once,
// then transfer purchased items buyer by buyer, and only after the ledger
// is drained begin burning unsold items.
func (e *Engine) deliverStep(ctx context.Context, qtx datagateway.CrowdfundDataGatewayWithTx, state *entity.SaleState, limit int32, result *EndSaleResult) error {
	config, err := qtx.GetConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "cannot load config")
	}

	// Guarded by the zero-check so repeated calls forward at most once.
	if !state.ProceedsToForward.IsZero() {
		result.Commands = append(result.Commands, entity.OutboundCommand{
			Kind:      entity.CommandSendPayment,
			Recipient: state.Recipient,
			Amount:    common.NewCoin(state.Price.Denom, state.ProceedsToForward),
		})
		state.ProceedsForwarded, err = checkedAdd(state.ProceedsForwarded, state.ProceedsToForward)
		if err != nil {
			return errors.WithStack(err)
		}
		state.ProceedsToForward = uint128.Zero
	}

	buyers, err := qtx.ListLedgerBuyers(ctx, limit)
	if err != nil {
		return errors.Wrap(err, "cannot list ledger buyers")
	}
	for _, buyer := range buyers {
		purchases, err := qtx.GetPurchasesByBuyer(ctx, buyer)
		if err != nil {
			return errors.Wrapf(err, "cannot load purchases of %q", buyer)
		}
		for _, purchase := range purchases {
			result.Commands = append(result.Commands, entity.OutboundCommand{
				Kind:      entity.CommandTransferItem,
				Target:    config.ItemSource,
				ItemID:    purchase.ItemID,
				Recipient: buyer,
			})
			// Replay the tax disbursement captured at purchase time.
			result.Commands = append(result.Commands, purchase.Instructions...)
			state.ItemsTransferred, err = checkedAdd(state.ItemsTransferred, uint128.From64(1))
			if err != nil {
				return errors.WithStack(err)
			}
		}
		if err := qtx.DeletePurchasesByBuyer(ctx, buyer); err != nil {
			return errors.Wrapf(err, "cannot delete ledger entry of %q", buyer)
		}
	}

	// Unsold items are destroyed only once every sold item has been
	// transferred.
	if len(buyers) == 0 {
		commands, err := e.burnBatch(ctx, qtx, limit)
		if err != nil {
			return errors.WithStack(err)
		}
		result.Commands = append(result.Commands, commands...)
	}

	if len(result.Commands) > 0 {
		if err := qtx.AddOutboundCommands(ctx, result.Commands); err != nil {
			return errors.Wrap(err, "cannot enqueue settlement commands")
		}
	}
	return nil
}

// burnBatch removes up to limit items from the registry and issues a
// destroy command for each.
func (e *Engine) burnBatch(ctx context.Context, qtx datagateway.CrowdfundDataGatewayWithTx, limit int32) ([]entity.OutboundCommand, error) {
	config, err := qtx.GetConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load config")
	}
	records, err := qtx.ListAvailableItems(ctx, datagateway.ListAvailableItemsParams{Limit: limit})
	if err != nil {
		return nil, errors.Wrap(err, "cannot list available items")
	}

	commands := make([]entity.OutboundCommand, 0, len(records))
	for _, record := range records {
		if err := qtx.RemoveAvailableItem(ctx, record.ID); err != nil {
			return nil, errors.Wrapf(err, "cannot remove item %q from registry", record.ID)
		}
		commands = append(commands, entity.OutboundCommand{
			Kind:   entity.CommandBurnItem,
			Target: config.ItemSource,
			ItemID: record.ID,
		})
	}
	return commands, nil
}
