package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/datagateway"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger/slogx"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
)

type PurchaseParams struct {
	Buyer     string
	SentFunds common.Coin
	// Count is the requested number of items. When nil, the buyer asks for
	// as many as their wallet cap allows.
	Count *uint32
}

type PurchaseByIDParams struct {
	Buyer     string
	SentFunds common.Coin
	ItemID    string
}

type PurchaseResult struct {
	Result
	ItemsWanted    uint32
	ItemsPurchased uint32
	// Refund is the overpayment returned to the buyer, nil when the sent
	// funds matched the required payment exactly.
	Refund *common.Coin
}

// Purchase buys up to Count items for the buyer. The requested count is
// clamped to the wallet cap headroom and to the items actually remaining;
// it fails only if that yields zero.
func (e *Engine) Purchase(ctx context.Context, params PurchaseParams) (*PurchaseResult, error) {
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

	state, purchased, err := e.loadOpenSale(ctx, qtx, params.Buyer)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	maxPossible := state.MaxPerWallet - purchased
	wanted := maxPossible
	if params.Count != nil && *params.Count < maxPossible {
		wanted = *params.Count
	}
	if wanted == 0 {
		return nil, errors.Wrap(errs.InvalidArgument, "requested count is zero")
	}

	records, err := qtx.ListAvailableItems(ctx, datagateway.ListAvailableItemsParams{Limit: int32(wanted)})
	if err != nil {
		return nil, errors.Wrap(err, "cannot list available items")
	}
	itemIDs := lo.Map(records, func(record entity.TokenRecord, _ int) string { return record.ID })

	result, err := e.purchaseItems(ctx, qtx, state, params.Buyer, params.SentFunds, itemIDs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result.ItemsWanted = wanted

	if err := qtx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	logger.InfoContext(ctx, "Purchase completed",
		slogx.String("buyer", params.Buyer),
		slogx.Uint64("itemsWanted", uint64(wanted)),
		slogx.Uint64("itemsPurchased", uint64(result.ItemsPurchased)),
	)
	return result, nil
}

// PurchaseByID buys one specific item.
func (e *Engine) PurchaseByID(ctx context.Context, params PurchaseByIDParams) (*PurchaseResult, error) {
	if err := validateAddress(params.Buyer); err != nil {
		return nil, errors.Wrap(err, "invalid buyer")
	}
	if params.ItemID == "" {
		return nil, errors.Wrap(errs.InvalidArgument, "item id is empty")
	}

	qtx, err := e.dg.BeginCrowdfundTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = qtx.Rollback(ctx)
	}()

	state, _, err := e.loadOpenSale(ctx, qtx, params.Buyer)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	available, err := qtx.HasAvailableItem(ctx, params.ItemID)
	if err != nil {
		return nil, errors.Wrap(err, "cannot check item availability")
	}
	if !available {
		return nil, errors.Wrapf(errs.NotFound, "item %q is not available", params.ItemID)
	}

	result, err := e.purchaseItems(ctx, qtx, state, params.Buyer, params.SentFunds, []string{params.ItemID})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result.ItemsWanted = 1

	if err := qtx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	logger.InfoContext(ctx, "Purchase completed",
		slogx.String("buyer", params.Buyer),
		slogx.String("itemId", params.ItemID),
	)
	return result, nil
}

// loadOpenSale loads the sale state, verifies the sale is open for
// purchases and that the buyer has wallet cap headroom, and returns the
// buyer's current purchase count.
func (e *Engine) loadOpenSale(ctx context.Context, qtx datagateway.CrowdfundDataGatewayWithTx, buyer string) (*entity.SaleState, uint32, error) {
	state, err := qtx.GetSaleState(ctx)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil, 0, errors.Wrap(errs.LifecycleConflict, "no ongoing sale")
		}
		return nil, 0, errors.Wrap(err, "cannot load sale state")
	}

	now := e.now()
	if now.Before(state.StartTime) {
		return nil, 0, errors.Wrapf(errs.LifecycleConflict, "sale has not started, starts at %s", state.StartTime)
	}
	if state.EndedAt != nil || state.Ended(now) || state.OwnerEnded {
		return nil, 0, errors.Wrap(errs.LifecycleConflict, "sale has ended")
	}

	purchases, err := qtx.GetPurchasesByBuyer(ctx, buyer)
	if err != nil {
		return nil, 0, errors.Wrap(err, "cannot load buyer purchases")
	}
	if uint32(len(purchases)) >= state.MaxPerWallet {
		return nil, 0, errors.Wrapf(errs.LimitExceeded, "wallet purchase limit %d reached", state.MaxPerWallet)
	}
	return state, uint32(len(purchases)), nil
}

// purchaseItems records the purchase of itemIDs for buyer: the funds
// checks, the per-item split, the registry and ledger updates, and the
// overpayment refund. It mutates and saves state but does not commit.
func (e *Engine) purchaseItems(ctx context.Context, qtx datagateway.CrowdfundDataGatewayWithTx, state *entity.SaleState, buyer string, sentFunds common.Coin, itemIDs []string) (*PurchaseResult, error) {
	if len(itemIDs) == 0 {
		return nil, errors.Wrap(errs.NotFound, "all items have been purchased")
	}

	// First check: the sent funds must cover the base cost before taxes.
	baseCost, err := state.Price.MulUint64(uint64(len(itemIDs)))
	if err != nil {
		return nil, errors.Wrap(err, "cannot compute base cost")
	}
	if !sentFunds.Covers(baseCost) {
		return nil, errors.Wrapf(errs.InsufficientFunds, "sent %s, base cost is %s", sentFunds, baseCost)
	}

	totalTax := uint128.Zero
	purchases := make([]entity.Purchase, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		split, err := e.splitter.Split(ctx, buyer, state.Price)
		if err != nil {
			return nil, errors.Wrap(err, "funds split failed")
		}
		tax, err := state.Price.Sub(split.Remainder)
		if err != nil {
			return nil, errors.Wrap(err, "split remainder exceeds price")
		}

		totalTax, err = checkedAdd(totalTax, tax.Amount)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		state.ProceedsToForward, err = checkedAdd(state.ProceedsToForward, split.Remainder.Amount)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		state.ItemsSold, err = checkedAdd(state.ItemsSold, uint128.From64(1))
		if err != nil {
			return nil, errors.WithStack(err)
		}

		purchases = append(purchases, entity.Purchase{
			Buyer:        buyer,
			ItemID:       itemID,
			TaxAmount:    tax.Amount,
			Instructions: split.Commands,
		})
		if err := qtx.RemoveAvailableItem(ctx, itemID); err != nil {
			return nil, errors.Wrapf(err, "cannot remove item %q from registry", itemID)
		}
	}

	// Second check: the sent funds must also cover the taxes.
	requiredPayment, err := baseCost.Add(common.NewCoin(state.Price.Denom, totalTax))
	if err != nil {
		return nil, errors.Wrap(err, "cannot compute required payment")
	}
	if !sentFunds.Covers(requiredPayment) {
		return nil, errors.Wrapf(errs.InsufficientFunds, "sent %s, required payment is %s", sentFunds, requiredPayment)
	}

	if err := qtx.AddPurchases(ctx, purchases); err != nil {
		return nil, errors.Wrap(err, "cannot record purchases")
	}
	if err := qtx.SetSaleState(ctx, *state); err != nil {
		return nil, errors.Wrap(err, "cannot save sale state")
	}

	result := &PurchaseResult{ItemsPurchased: uint32(len(itemIDs))}

	// Refund any surplus in the same response. This can happen near the
	// end of the sale when fewer items were available than requested.
	surplus, err := sentFunds.Sub(requiredPayment)
	if err != nil {
		return nil, errors.Wrap(err, "cannot compute surplus")
	}
	if !surplus.IsZero() {
		result.Refund = &surplus
		result.Commands = append(result.Commands, entity.OutboundCommand{
			Kind:      entity.CommandSendPayment,
			Recipient: buyer,
			Amount:    surplus,
		})
	}
	if len(result.Commands) > 0 {
		if err := qtx.AddOutboundCommands(ctx, result.Commands); err != nil {
			return nil, errors.Wrap(err, "cannot enqueue refund command")
		}
	}
	return result, nil
}

func checkedAdd(a, b uint128.Uint128) (uint128.Uint128, error) {
	sum, overflow := a.AddOverflow(b)
	if overflow {
		return uint128.Zero, errors.WithStack(errs.OverflowUint128)
	}
	return sum, nil
}
