package crowdfund

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/fundsplit"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/repository/inmemory"
	"github.com/gaze-network/uint128"
	"github.com/stretchr/testify/require"
)

func TestSettlementWorkerDrainsEndedSale(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepository()
	require.NoError(t, repo.SetConfig(ctx, entity.Config{ItemSource: "item-source"}))

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	eng := engine.New(repo, fundsplit.Nop{}, engine.Options{
		Owner:         "owner",
		EscrowAddress: "escrow",
		Now:           func() time.Time { return now },
	})

	_, err := eng.Mint(ctx, engine.MintParams{
		Caller: "owner",
		Items:  []entity.MintItem{{ID: "item-1"}, {ID: "item-2"}},
	})
	require.NoError(t, err)
	_, err = eng.OpenSale(ctx, engine.OpenSaleParams{
		Caller:       "owner",
		EndTime:      now.Add(time.Hour),
		Price:        common.NewCoin64("coin", 10),
		MinItemsSold: uint128.From64(1),
		Recipient:    "recipient",
	})
	require.NoError(t, err)
	_, err = eng.Purchase(ctx, engine.PurchaseParams{
		Buyer:     "buyer-a",
		SentFunds: common.NewCoin64("coin", 10),
	})
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)

	worker := NewSettlementWorker(eng, SettlementWorkerOptions{
		Poker:    "escrow",
		Interval: time.Millisecond,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- worker.Run(runCtx) }()

	require.Eventually(t, func() bool {
		_, err := eng.GetSaleState(ctx)
		return errors.Is(err, errs.NotFound)
	}, 5*time.Second, 5*time.Millisecond, "worker did not drain the sale")

	cancel()
	require.NoError(t, <-done)
}
