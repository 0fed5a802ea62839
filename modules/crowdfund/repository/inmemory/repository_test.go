package inmemory

import (
	"context"
	"testing"

	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/datagateway"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxCommitAppliesChanges(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	tx, err := repo.BeginCrowdfundTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddAvailableItem(ctx, "item-1"))
	require.NoError(t, tx.Commit(ctx))

	available, err := repo.HasAvailableItem(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestTxRollbackDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	tx, err := repo.BeginCrowdfundTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddAvailableItem(ctx, "item-1"))
	require.NoError(t, tx.SetSaleConducted(ctx, true))
	require.NoError(t, tx.Rollback(ctx))

	available, err := repo.HasAvailableItem(ctx, "item-1")
	require.NoError(t, err)
	assert.False(t, available)
	conducted, err := repo.GetSaleConducted(ctx)
	require.NoError(t, err)
	assert.False(t, conducted)
}

func TestListAvailableItemsPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, repo.AddAvailableItem(ctx, id))
	}

	page, err := repo.ListAvailableItems(ctx, datagateway.ListAvailableItemsParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, recordIDs(page))

	page, err = repo.ListAvailableItems(ctx, datagateway.ListAvailableItemsParams{Cursor: "b", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, recordIDs(page))

	page, err = repo.ListAvailableItems(ctx, datagateway.ListAvailableItemsParams{Cursor: "d", Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestLedgerBuyersInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	require.NoError(t, repo.AddPurchases(ctx, []entity.Purchase{
		{Buyer: "buyer-b", ItemID: "item-1"},
		{Buyer: "buyer-a", ItemID: "item-2"},
		{Buyer: "buyer-b", ItemID: "item-3"},
	}))

	buyers, err := repo.ListLedgerBuyers(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"buyer-b", "buyer-a"}, buyers)

	count, err := repo.CountLedgerBuyers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func recordIDs(records []entity.TokenRecord) []string {
	return lo.Map(records, func(record entity.TokenRecord, _ int) string { return record.ID })
}
