package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/fundsplit"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEndSale(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects when no sale is in progress", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		_, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone"})
		require.ErrorIs(t, err, errs.LifecycleConflict)
	})

	t.Run("rejects a zero limit", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 1)
		env.openSale(t, saleOptions{price: 10, minSold: 1})
		_, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone", Limit: lo.ToPtr(int32(0))})
		require.ErrorIs(t, err, errs.LimitExceeded)
	})

	t.Run("rejects a negative limit", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 1)
		env.openSale(t, saleOptions{price: 10, minSold: 1})
		_, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone", Limit: lo.ToPtr(int32(-1))})
		require.ErrorIs(t, err, errs.InvalidArgument)
	})

	t.Run("poke before any end condition is a no-op", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 3)
		env.openSale(t, saleOptions{price: 10, minSold: 2})

		result, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone"})
		require.NoError(t, err)
		require.False(t, result.Ended)
		require.Empty(t, result.Commands)

		// The sale must still accept purchases.
		_, err = env.engine.Purchase(ctx, engine.PurchaseParams{
			Buyer:     "buyer-a",
			SentFunds: coin(10),
		})
		require.NoError(t, err)
	})

	t.Run("owner ends early and stops purchases", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 3)
		env.openSale(t, saleOptions{price: 10, minSold: 2})

		result, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: testOwner})
		require.NoError(t, err)
		require.True(t, result.Ended)
		require.True(t, result.RefundPath)

		_, err = env.engine.Purchase(ctx, engine.PurchaseParams{
			Buyer:     "buyer-a",
			SentFunds: coin(10),
		})
		require.ErrorIs(t, err, errs.LifecycleConflict)
	})

	t.Run("reaching the minimum ends the sale", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 3)
		env.openSale(t, saleOptions{price: 10, minSold: 1})

		_, err := env.engine.Purchase(ctx, engine.PurchaseParams{
			Buyer:     "buyer-a",
			SentFunds: coin(10),
		})
		require.NoError(t, err)

		result, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone"})
		require.NoError(t, err)
		require.True(t, result.Ended)
		require.False(t, result.RefundPath)
	})

	t.Run("reaching the target percentage ends the sale", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 2)
		_, err := env.engine.OpenSale(ctx, engine.OpenSaleParams{
			Caller:               testOwner,
			EndTime:              env.now.Add(time.Hour),
			Price:                coin(10),
			MinItemsSold:         uint128.From64(2),
			MaxPerWallet:         lo.ToPtr(uint32(2)),
			Recipient:            testRecipient,
			TargetPercentageSold: lo.ToPtr(uint32(50)),
		})
		require.NoError(t, err)

		_, err = env.engine.Purchase(ctx, engine.PurchaseParams{
			Buyer:     "buyer-a",
			SentFunds: coin(10),
			Count:     lo.ToPtr(uint32(1)),
		})
		require.NoError(t, err)

		result, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone"})
		require.NoError(t, err)
		require.True(t, result.Ended)
	})

	t.Run("exceeding the maximum duration ends the sale", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 2)
		_, err := env.engine.OpenSale(ctx, engine.OpenSaleParams{
			Caller:       testOwner,
			EndTime:      env.now.Add(24 * time.Hour),
			Price:        coin(10),
			MinItemsSold: uint128.From64(2),
			Recipient:    testRecipient,
			MaxDuration:  lo.ToPtr(time.Hour),
		})
		require.NoError(t, err)

		env.advance(30 * time.Minute)
		result, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone"})
		require.NoError(t, err)
		require.False(t, result.Ended)

		env.advance(31 * time.Minute)
		result, err = env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone"})
		require.NoError(t, err)
		require.True(t, result.Ended)
	})
}

func TestEndSaleRefundPath(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t, fundsplit.Nop{})
	env.mintItems(t, 3)
	env.openSale(t, saleOptions{price: 10, minSold: 2})

	_, err := env.engine.Purchase(ctx, engine.PurchaseParams{
		Buyer:     "buyer-a",
		SentFunds: coin(10),
	})
	require.NoError(t, err)

	env.advance(2 * time.Hour)

	result, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone"})
	require.NoError(t, err)
	require.True(t, result.Ended)
	require.True(t, result.RefundPath)
	require.True(t, result.Cleared)

	// Exactly the buyer's money back, and the two unsold items burned. No
	// proceeds may reach the recipient on this path.
	commands := env.repo.Outbox()
	require.Equal(t, uint128.From64(10), paymentsTo(commands, "buyer-a"))
	require.True(t, paymentsTo(commands, testRecipient).IsZero())
	require.Len(t, commandsOfKind(commands, entity.CommandBurnItem), 2)
	require.Empty(t, commandsOfKind(commands, entity.CommandTransferItem))

	// Cleared means a new sale can open.
	_, err = env.engine.GetSaleState(ctx)
	require.ErrorIs(t, err, errs.NotFound)
	env.openSale(t, saleOptions{price: 20, minSold: 1})
}

func TestEndSaleRefundPathBounded(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t, fundsplit.Nop{})
	env.mintItems(t, 3)
	env.openSale(t, saleOptions{price: 10, minSold: 2})

	_, err := env.engine.Purchase(ctx, engine.PurchaseParams{
		Buyer:     "buyer-a",
		SentFunds: coin(10),
	})
	require.NoError(t, err)

	env.advance(2 * time.Hour)

	// First step refunds the buyer and burns one of the two unsold items.
	result, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone", Limit: lo.ToPtr(int32(1))})
	require.NoError(t, err)
	require.True(t, result.Ended)
	require.False(t, result.Cleared)

	// Second step burns the last item and clears.
	result, err = env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone", Limit: lo.ToPtr(int32(1))})
	require.NoError(t, err)
	require.True(t, result.Cleared)

	commands := env.repo.Outbox()
	require.Equal(t, uint128.From64(10), paymentsTo(commands, "buyer-a"))
	require.Len(t, commandsOfKind(commands, entity.CommandBurnItem), 2)
}

func TestEndSaleSettlementPath(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t, fundsplit.Nop{})
	env.mintItems(t, 2)
	env.openSale(t, saleOptions{price: 10, minSold: 1})

	_, err := env.engine.Purchase(ctx, engine.PurchaseParams{
		Buyer:     "buyer-a",
		SentFunds: coin(10),
	})
	require.NoError(t, err)

	env.advance(2 * time.Hour)

	// First step forwards the proceeds and transfers the sold item; the
	// unsold item is burned only after the ledger is drained.
	result, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone"})
	require.NoError(t, err)
	require.True(t, result.Ended)
	require.False(t, result.RefundPath)
	require.False(t, result.Cleared)

	transfers := commandsOfKind(result.Commands, entity.CommandTransferItem)
	require.Len(t, transfers, 1)
	require.Equal(t, testItemSource, transfers[0].Target)
	require.Equal(t, "buyer-a", transfers[0].Recipient)
	require.Empty(t, commandsOfKind(result.Commands, entity.CommandBurnItem))

	// Second step burns the unsold item and clears; the proceeds must not
	// be forwarded again.
	result, err = env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone"})
	require.NoError(t, err)
	require.True(t, result.Cleared)
	require.Len(t, commandsOfKind(result.Commands, entity.CommandBurnItem), 1)

	commands := env.repo.Outbox()
	require.Equal(t, uint128.From64(10), paymentsTo(commands, testRecipient))
	require.True(t, paymentsTo(commands, "buyer-a").IsZero())

	_, err = env.engine.GetSaleState(ctx)
	require.ErrorIs(t, err, errs.NotFound)
}

// Every unit sent by buyers must come out the other side as exactly one
// of: proceeds to the recipient, tax to the collector, or a refund.
func TestEndSaleFundConservation(t *testing.T) {
	ctx := context.Background()

	splitter, err := fundsplit.NewRateSplitter(decimal.RequireFromString("0.25"), "collector-address")
	require.NoError(t, err)

	env := newTestEnv(t, splitter)
	env.mintItems(t, 2)
	env.openSale(t, saleOptions{price: 100, minSold: 1, maxPerWallet: lo.ToPtr(uint32(2))})

	// Base cost 200 plus 25 tax per item.
	_, err = env.engine.Purchase(ctx, engine.PurchaseParams{
		Buyer:     "buyer-a",
		SentFunds: coin(250),
	})
	require.NoError(t, err)

	env.advance(2 * time.Hour)
	for {
		result, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone"})
		require.NoError(t, err)
		require.True(t, result.Ended)
		if result.Cleared {
			break
		}
	}

	commands := env.repo.Outbox()
	require.Equal(t, uint128.From64(150), paymentsTo(commands, testRecipient))
	require.Equal(t, uint128.From64(50), paymentsTo(commands, "collector-address"))
	require.True(t, paymentsTo(commands, "buyer-a").IsZero())
}

func TestEndSaleFreezesEndDecision(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t, fundsplit.Nop{})
	env.mintItems(t, 3)
	_, err := env.engine.OpenSale(ctx, engine.OpenSaleParams{
		Caller:       testOwner,
		EndTime:      env.now.Add(24 * time.Hour),
		Price:        coin(10),
		MinItemsSold: uint128.From64(2),
		Recipient:    testRecipient,
		MaxDuration:  lo.ToPtr(time.Hour),
	})
	require.NoError(t, err)

	_, err = env.engine.Purchase(ctx, engine.PurchaseParams{
		Buyer:     "buyer-a",
		SentFunds: coin(10),
	})
	require.NoError(t, err)

	// The sale ends via max duration long before its end time. The first
	// bounded step refunds buyer-a and burns one of the two unsold items.
	env.advance(2 * time.Hour)
	result, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone", Limit: lo.ToPtr(int32(1))})
	require.NoError(t, err)
	require.True(t, result.Ended)
	require.True(t, result.RefundPath)
	require.False(t, result.Cleared)

	// Settlement has started, so a purchase that would reach the minimum
	// and flip the sale onto the delivery path is rejected even though the
	// end time has not passed.
	_, err = env.engine.Purchase(ctx, engine.PurchaseParams{
		Buyer:     "buyer-b",
		SentFunds: coin(10),
	})
	require.ErrorIs(t, err, errs.LifecycleConflict)

	result, err = env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone"})
	require.NoError(t, err)
	require.True(t, result.RefundPath)
	require.True(t, result.Cleared)

	commands := env.repo.Outbox()
	require.Equal(t, uint128.From64(10), paymentsTo(commands, "buyer-a"))
	require.True(t, paymentsTo(commands, "buyer-b").IsZero())
	require.True(t, paymentsTo(commands, testRecipient).IsZero())
	require.Len(t, commandsOfKind(commands, entity.CommandBurnItem), 2)
}
