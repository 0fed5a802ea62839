package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger/slogx"
)

type MintParams struct {
	Caller string
	Items  []entity.MintItem
}

// Mint forwards mint commands to the item source for each record. Items
// whose designated owner is the engine itself are additionally registered
// as available for the next sale; escrow is opt-in per item so the
// creator can set aside records for airdrops or team allocations.
func (e *Engine) Mint(ctx context.Context, params MintParams) (*Result, error) {
	if !e.isOwner(params.Caller) {
		return nil, errors.Wrap(errs.Unauthorized, "only the owner can mint")
	}
	if len(params.Items) == 0 {
		return nil, errors.Wrap(errs.InvalidArgument, "mint batch is empty")
	}
	if len(params.Items) > MaxMintBatch {
		return nil, errors.Wrapf(errs.LimitExceeded, "mint batch size %d exceeds limit %d", len(params.Items), MaxMintBatch)
	}
	for _, item := range params.Items {
		if item.ID == "" {
			return nil, errors.Wrap(errs.InvalidArgument, "item id is empty")
		}
	}

	qtx, err := e.dg.BeginCrowdfundTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = qtx.Rollback(ctx)
	}()

	if _, err := qtx.GetSaleState(ctx); err == nil {
		return nil, errors.Wrap(errs.LifecycleConflict, "cannot mint while a sale is in progress")
	} else if !errors.Is(err, errs.NotFound) {
		return nil, errors.Wrap(err, "cannot load sale state")
	}

	config, err := qtx.GetConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load config")
	}
	conducted, err := qtx.GetSaleConducted(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load sale conducted flag")
	}
	if conducted && !config.AllowMintAfterSale {
		return nil, errors.Wrap(errs.LifecycleConflict, "minting is not allowed after a sale has been conducted")
	}

	commands := make([]entity.OutboundCommand, 0, len(params.Items))
	registered := 0
	for _, item := range params.Items {
		owner := item.Owner
		if owner == "" {
			owner = e.escrowAddress
		}
		if owner == e.escrowAddress {
			if err := qtx.AddAvailableItem(ctx, item.ID); err != nil {
				return nil, errors.Wrapf(err, "cannot register item %q", item.ID)
			}
			registered++
		}
		commands = append(commands, entity.OutboundCommand{
			Kind:      entity.CommandMintItem,
			Target:    config.ItemSource,
			ItemID:    item.ID,
			Recipient: owner,
			URI:       item.URI,
		})
	}
	if err := qtx.AddOutboundCommands(ctx, commands); err != nil {
		return nil, errors.Wrap(err, "cannot enqueue mint commands")
	}

	if err := qtx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	logger.InfoContext(ctx, "Minted items",
		slogx.Int("minted", len(params.Items)),
		slogx.Int("registered", registered),
	)
	return &Result{Commands: commands}, nil
}
