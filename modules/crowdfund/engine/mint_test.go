package engine_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/fundsplit"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/stretchr/testify/require"
)

func TestMint(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-owner", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		_, err := env.engine.Mint(ctx, engine.MintParams{
			Caller: "someone-else",
			Items:  []entity.MintItem{{ID: "item-1"}},
		})
		require.ErrorIs(t, err, errs.Unauthorized)
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		_, err := env.engine.Mint(ctx, engine.MintParams{Caller: testOwner})
		require.ErrorIs(t, err, errs.InvalidArgument)
	})

	t.Run("rejects oversized batch", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		items := make([]entity.MintItem, engine.MaxMintBatch+1)
		for i := range items {
			items[i] = entity.MintItem{ID: fmt.Sprintf("item-%d", i)}
		}
		_, err := env.engine.Mint(ctx, engine.MintParams{Caller: testOwner, Items: items})
		require.ErrorIs(t, err, errs.LimitExceeded)
	})

	t.Run("rejects duplicate item id", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 1)
		_, err := env.engine.Mint(ctx, engine.MintParams{
			Caller: testOwner,
			Items:  []entity.MintItem{{ID: "item-1"}},
		})
		require.ErrorIs(t, err, errs.Duplicate)
	})

	t.Run("registers escrow-owned items only", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		result, err := env.engine.Mint(ctx, engine.MintParams{
			Caller: testOwner,
			Items: []entity.MintItem{
				{ID: "for-sale"},
				{ID: "team-allocation", Owner: "team-address"},
			},
		})
		require.NoError(t, err)

		mints := commandsOfKind(result.Commands, entity.CommandMintItem)
		require.Len(t, mints, 2)
		require.Equal(t, testItemSource, mints[0].Target)
		require.Equal(t, testEscrow, mints[0].Recipient)
		require.Equal(t, "team-address", mints[1].Recipient)

		forSale, err := env.engine.IsItemAvailable(ctx, "for-sale")
		require.NoError(t, err)
		require.True(t, forSale)
		teamOwned, err := env.engine.IsItemAvailable(ctx, "team-allocation")
		require.NoError(t, err)
		require.False(t, teamOwned)

		// The mint commands must have been written to the outbox too.
		require.Equal(t, result.Commands, env.repo.Outbox())
	})

	t.Run("rejects while a sale is in progress", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 1)
		env.openSale(t, saleOptions{price: 10, minSold: 1})
		_, err := env.engine.Mint(ctx, engine.MintParams{
			Caller: testOwner,
			Items:  []entity.MintItem{{ID: "item-2"}},
		})
		require.ErrorIs(t, err, errs.LifecycleConflict)
	})

	t.Run("rejects after a sale has been conducted", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		require.NoError(t, env.repo.SetSaleConducted(ctx, true))
		_, err := env.engine.Mint(ctx, engine.MintParams{
			Caller: testOwner,
			Items:  []entity.MintItem{{ID: "item-1"}},
		})
		require.ErrorIs(t, err, errs.LifecycleConflict)
	})

	t.Run("allows minting after a sale when configured", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		require.NoError(t, env.repo.SetConfig(ctx, entity.Config{
			ItemSource:         testItemSource,
			AllowMintAfterSale: true,
		}))
		require.NoError(t, env.repo.SetSaleConducted(ctx, true))
		_, err := env.engine.Mint(ctx, engine.MintParams{
			Caller: testOwner,
			Items:  []entity.MintItem{{ID: "item-1"}},
		})
		require.NoError(t, err)
	})
}
