package datagateway

import (
	"context"

	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/gaze-network/uint128"
)

// CrowdfundDataGateway is the persistence boundary of the sale engine.
// Singletons (config, sale state, the sale-conducted flag, the available
// counter), the item registry, the purchase ledger and the command outbox
// all live behind it.
type CrowdfundDataGateway interface {
	BeginCrowdfundTx(ctx context.Context) (CrowdfundDataGatewayWithTx, error)

	// Config singleton. GetConfig returns errs.NotFound before SetConfig.
	GetConfig(ctx context.Context) (*entity.Config, error)
	SetConfig(ctx context.Context, config entity.Config) error

	// SaleState singleton. GetSaleState returns errs.NotFound when no sale
	// exists; ClearSaleState is a no-op when absent.
	GetSaleState(ctx context.Context) (*entity.SaleState, error)
	SetSaleState(ctx context.Context, state entity.SaleState) error
	ClearSaleState(ctx context.Context) error

	GetSaleConducted(ctx context.Context) (bool, error)
	SetSaleConducted(ctx context.Context, conducted bool) error

	// Item registry. The available counter is kept equal to the registry
	// cardinality by Add/Remove.
	AddAvailableItem(ctx context.Context, id string) error
	RemoveAvailableItem(ctx context.Context, id string) error
	HasAvailableItem(ctx context.Context, id string) (bool, error)
	// ListAvailableItems returns up to limit items in insertion order,
	// starting after the cursor item id (exclusive) when non-empty.
	ListAvailableItems(ctx context.Context, arg ListAvailableItemsParams) ([]entity.TokenRecord, error)
	CountAvailableItems(ctx context.Context) (uint128.Uint128, error)

	// Purchase ledger, ordered by insertion within and across buyers.
	AddPurchases(ctx context.Context, purchases []entity.Purchase) error
	GetPurchasesByBuyer(ctx context.Context, buyer string) ([]entity.Purchase, error)
	// ListLedgerBuyers returns up to limit distinct buyers in the order
	// their first purchase was recorded.
	ListLedgerBuyers(ctx context.Context, limit int32) ([]string, error)
	DeletePurchasesByBuyer(ctx context.Context, buyer string) error
	CountLedgerBuyers(ctx context.Context) (int64, error)

	// Transactional outbox for outbound commands.
	AddOutboundCommands(ctx context.Context, commands []entity.OutboundCommand) error
}

type CrowdfundDataGatewayWithTx interface {
	CrowdfundDataGateway
	Tx
}

type ListAvailableItemsParams struct {
	Cursor string
	Limit  int32
}
