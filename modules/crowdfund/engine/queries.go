package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/datagateway"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
)

// GetSaleState returns the current sale state, or errs.NotFound when no
// sale is in progress.
func (e *Engine) GetSaleState(ctx context.Context) (*entity.SaleState, error) {
	state, err := e.dg.GetSaleState(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return state, nil
}

// GetConfig returns the engine configuration.
func (e *Engine) GetConfig(ctx context.Context) (*entity.Config, error) {
	config, err := e.dg.GetConfig(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return config, nil
}

type GetAvailableItemsParams struct {
	// Cursor is the item id to resume after, exclusive. Empty starts from
	// the beginning.
	Cursor string
	Limit  *int32
}

// GetAvailableItems pages through the registry of items still available
// for sale, in insertion order.
func (e *Engine) GetAvailableItems(ctx context.Context, params GetAvailableItemsParams) ([]entity.TokenRecord, error) {
	limit := DefaultSettleLimit
	if params.Limit != nil {
		limit = *params.Limit
		if limit <= 0 {
			return nil, errors.Wrap(errs.InvalidArgument, "limit must be positive")
		}
	}
	limit = min(limit, MaxSettleLimit)

	records, err := e.dg.ListAvailableItems(ctx, datagateway.ListAvailableItemsParams{
		Cursor: params.Cursor,
		Limit:  limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot list available items")
	}
	return records, nil
}

// IsItemAvailable reports whether the item is registered and unsold.
func (e *Engine) IsItemAvailable(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.Wrap(errs.InvalidArgument, "item id is empty")
	}
	available, err := e.dg.HasAvailableItem(ctx, id)
	if err != nil {
		return false, errors.Wrap(err, "cannot check item availability")
	}
	return available, nil
}
