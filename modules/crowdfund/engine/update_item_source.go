package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger/slogx"
)

type UpdateItemSourceParams struct {
	Caller     string
	ItemSource string
}

// UpdateItemSource repoints the engine at a different item contract.
// Rejected while a sale is in progress or while any item is registered:
// registered items reference the current source, and swapping it out from
// under them would strand them.
func (e *Engine) UpdateItemSource(ctx context.Context, params UpdateItemSourceParams) error {
	if !e.isOwner(params.Caller) {
		return errors.Wrap(errs.Unauthorized, "only the owner can update the item source")
	}
	if err := validateAddress(params.ItemSource); err != nil {
		return errors.Wrap(err, "invalid item source")
	}

	qtx, err := e.dg.BeginCrowdfundTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = qtx.Rollback(ctx)
	}()

	if _, err := qtx.GetSaleState(ctx); err == nil {
		return errors.Wrap(errs.LifecycleConflict, "cannot update item source while a sale is in progress")
	} else if !errors.Is(err, errs.NotFound) {
		return errors.Wrap(err, "cannot load sale state")
	}

	registered, err := qtx.CountAvailableItems(ctx)
	if err != nil {
		return errors.Wrap(err, "cannot count available items")
	}
	if !registered.IsZero() {
		return errors.Wrap(errs.LifecycleConflict, "cannot update item source while items are registered")
	}

	config, err := qtx.GetConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "cannot load config")
	}
	config.ItemSource = params.ItemSource
	if err := qtx.SetConfig(ctx, *config); err != nil {
		return errors.Wrap(err, "cannot save config")
	}

	if err := qtx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	logger.InfoContext(ctx, "Item source updated", slogx.String("itemSource", params.ItemSource))
	return nil
}
