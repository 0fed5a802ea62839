package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/fundsplit"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestClaimRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects before the sale has ended", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 3)
		env.openSale(t, saleOptions{price: 10, minSold: 2})
		_, err := env.engine.Purchase(ctx, engine.PurchaseParams{
			Buyer:     "buyer-a",
			SentFunds: coin(10),
		})
		require.NoError(t, err)

		_, err = env.engine.ClaimRefund(ctx, engine.ClaimRefundParams{Buyer: "buyer-a"})
		require.ErrorIs(t, err, errs.LifecycleConflict)
	})

	t.Run("allows claims once settlement has started early", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 5)
		_, err := env.engine.OpenSale(ctx, engine.OpenSaleParams{
			Caller:       testOwner,
			EndTime:      env.now.Add(24 * time.Hour),
			Price:        coin(10),
			MinItemsSold: uint128.From64(3),
			Recipient:    testRecipient,
			MaxDuration:  lo.ToPtr(time.Hour),
		})
		require.NoError(t, err)
		for _, buyer := range []string{"buyer-a", "buyer-b"} {
			_, err := env.engine.Purchase(ctx, engine.PurchaseParams{
				Buyer:     buyer,
				SentFunds: coin(10),
			})
			require.NoError(t, err)
		}

		// The sale ended via max duration, far ahead of its end time.
		env.advance(2 * time.Hour)
		result, err := env.engine.EndSale(ctx, engine.EndSaleParams{Caller: "anyone", Limit: lo.ToPtr(int32(1))})
		require.NoError(t, err)
		require.True(t, result.RefundPath)
		require.False(t, result.Cleared)

		claim, err := env.engine.ClaimRefund(ctx, engine.ClaimRefundParams{Buyer: "buyer-b"})
		require.NoError(t, err)
		require.Equal(t, coin(10), claim.Refunded)
	})

	t.Run("rejects when the minimum was met", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 3)
		env.openSale(t, saleOptions{price: 10, minSold: 1})
		_, err := env.engine.Purchase(ctx, engine.PurchaseParams{
			Buyer:     "buyer-a",
			SentFunds: coin(10),
		})
		require.NoError(t, err)

		env.advance(2 * time.Hour)
		_, err = env.engine.ClaimRefund(ctx, engine.ClaimRefundParams{Buyer: "buyer-a"})
		require.ErrorIs(t, err, errs.LifecycleConflict)
	})

	t.Run("rejects a buyer with no purchases", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 3)
		env.openSale(t, saleOptions{price: 10, minSold: 2})
		env.advance(2 * time.Hour)

		_, err := env.engine.ClaimRefund(ctx, engine.ClaimRefundParams{Buyer: "buyer-a"})
		require.ErrorIs(t, err, errs.NotFound)
	})

	t.Run("refunds price plus tax exactly once", func(t *testing.T) {
		splitter, err := fundsplit.NewRateSplitter(decimal.RequireFromString("0.1"), "collector-address")
		require.NoError(t, err)

		env := newTestEnv(t, splitter)
		env.mintItems(t, 3)
		env.openSale(t, saleOptions{price: 100, minSold: 2})
		_, err = env.engine.Purchase(ctx, engine.PurchaseParams{
			Buyer:     "buyer-a",
			SentFunds: coin(110),
		})
		require.NoError(t, err)

		env.advance(2 * time.Hour)

		result, err := env.engine.ClaimRefund(ctx, engine.ClaimRefundParams{Buyer: "buyer-a"})
		require.NoError(t, err)
		require.Equal(t, coin(110), result.Refunded)

		// The ledger entry is gone; a second claim has nothing to refund.
		_, err = env.engine.ClaimRefund(ctx, engine.ClaimRefundParams{Buyer: "buyer-a"})
		require.ErrorIs(t, err, errs.NotFound)

		// No tax reaches the collector on the refund path.
		require.True(t, paymentsTo(env.repo.Outbox(), "collector-address").IsZero())
		require.Equal(t, uint128.From64(110), paymentsTo(env.repo.Outbox(), "buyer-a"))

		// Unsold items still await burn batches, so the sale is not cleared
		// yet.
		_, err = env.engine.GetSaleState(ctx)
		require.NoError(t, err)
	})

	t.Run("drains other buyers opportunistically", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 3)
		env.openSale(t, saleOptions{price: 10, minSold: 3})
		for _, buyer := range []string{"buyer-a", "buyer-b"} {
			_, err := env.engine.Purchase(ctx, engine.PurchaseParams{
				Buyer:     buyer,
				SentFunds: coin(10),
			})
			require.NoError(t, err)
		}

		env.advance(2 * time.Hour)

		result, err := env.engine.ClaimRefund(ctx, engine.ClaimRefundParams{Buyer: "buyer-a"})
		require.NoError(t, err)
		require.Equal(t, coin(10), result.Refunded)
		require.Len(t, result.Commands, 2)

		remaining, err := env.repo.CountLedgerBuyers(ctx)
		require.NoError(t, err)
		require.Zero(t, remaining)
		require.Equal(t, uint128.From64(10), paymentsTo(env.repo.Outbox(), "buyer-b"))
	})

	t.Run("clears the sale when nothing else remains", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 1)
		env.openSale(t, saleOptions{price: 10, minSold: 2})
		_, err := env.engine.Purchase(ctx, engine.PurchaseParams{
			Buyer:     "buyer-a",
			SentFunds: coin(10),
		})
		require.NoError(t, err)

		env.advance(2 * time.Hour)

		_, err = env.engine.ClaimRefund(ctx, engine.ClaimRefundParams{Buyer: "buyer-a"})
		require.NoError(t, err)

		_, err = env.engine.GetSaleState(ctx)
		require.ErrorIs(t, err, errs.NotFound)
	})
}
