package engine_test

import (
	"context"
	"testing"

	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/fundsplit"
	"github.com/stretchr/testify/require"
)

func TestUpdateItemSource(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-owner", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		err := env.engine.UpdateItemSource(ctx, engine.UpdateItemSourceParams{
			Caller:     "someone-else",
			ItemSource: "new-item-source",
		})
		require.ErrorIs(t, err, errs.Unauthorized)
	})

	t.Run("rejects while a sale is in progress", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 1)
		env.openSale(t, saleOptions{price: 10, minSold: 1})
		err := env.engine.UpdateItemSource(ctx, engine.UpdateItemSourceParams{
			Caller:     testOwner,
			ItemSource: "new-item-source",
		})
		require.ErrorIs(t, err, errs.LifecycleConflict)
	})

	t.Run("rejects while items are registered", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		env.mintItems(t, 1)
		err := env.engine.UpdateItemSource(ctx, engine.UpdateItemSourceParams{
			Caller:     testOwner,
			ItemSource: "new-item-source",
		})
		require.ErrorIs(t, err, errs.LifecycleConflict)
	})

	t.Run("updates the configured source", func(t *testing.T) {
		env := newTestEnv(t, fundsplit.Nop{})
		err := env.engine.UpdateItemSource(ctx, engine.UpdateItemSourceParams{
			Caller:     testOwner,
			ItemSource: "new-item-source",
		})
		require.NoError(t, err)

		config, err := env.engine.GetConfig(ctx)
		require.NoError(t, err)
		require.Equal(t, "new-item-source", config.ItemSource)
	})
}
