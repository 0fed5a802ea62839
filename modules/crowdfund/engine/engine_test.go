package engine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/crowdfund-network/crowdfund-engine/common"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/fundsplit"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/repository/inmemory"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const (
	testOwner      = "owner-address"
	testEscrow     = "escrow-address"
	testItemSource = "item-source-address"
	testRecipient  = "recipient-address"
	testDenom      = "coin"
)

type testEnv struct {
	repo   *inmemory.Repository
	engine *engine.Engine
	now    time.Time
}

func newTestEnv(t *testing.T, splitter fundsplit.Splitter) *testEnv {
	t.Helper()
	env := &testEnv{
		repo: inmemory.NewRepository(),
		now:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.engine = engine.New(env.repo, splitter, engine.Options{
		Owner:         testOwner,
		EscrowAddress: testEscrow,
		Now:           func() time.Time { return env.now },
	})
	require.NoError(t, env.repo.SetConfig(context.Background(), entity.Config{
		ItemSource: testItemSource,
	}))
	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

// mintItems mints n escrow-owned items named item-1..item-n.
func (env *testEnv) mintItems(t *testing.T, n int) {
	t.Helper()
	items := make([]entity.MintItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, entity.MintItem{ID: fmt.Sprintf("item-%d", i)})
	}
	_, err := env.engine.Mint(context.Background(), engine.MintParams{
		Caller: testOwner,
		Items:  items,
	})
	require.NoError(t, err)
}

type saleOptions struct {
	duration     time.Duration
	price        uint64
	minSold      uint64
	maxPerWallet *uint32
}

func (env *testEnv) openSale(t *testing.T, opts saleOptions) {
	t.Helper()
	if opts.duration == 0 {
		opts.duration = time.Hour
	}
	endTime := env.now.Add(opts.duration)
	_, err := env.engine.OpenSale(context.Background(), engine.OpenSaleParams{
		Caller:       testOwner,
		EndTime:      endTime,
		Price:        common.NewCoin64(testDenom, opts.price),
		MinItemsSold: uint128.From64(opts.minSold),
		MaxPerWallet: opts.maxPerWallet,
		Recipient:    testRecipient,
	})
	require.NoError(t, err)
}

func coin(amount uint64) common.Coin {
	return common.NewCoin64(testDenom, amount)
}

// paymentsTo sums all send_payment commands to recipient in the outbox.
func paymentsTo(commands []entity.OutboundCommand, recipient string) uint128.Uint128 {
	sum := uint128.Zero
	for _, command := range commands {
		if command.Kind == entity.CommandSendPayment && command.Recipient == recipient {
			sum = sum.Add(command.Amount.Amount)
		}
	}
	return sum
}

func commandsOfKind(commands []entity.OutboundCommand, kind entity.CommandKind) []entity.OutboundCommand {
	return lo.Filter(commands, func(command entity.OutboundCommand, _ int) bool {
		return command.Kind == kind
	})
}
