package engine

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger/slogx"
	"github.com/gaze-network/uint128"
)

type OpenSaleParams struct {
	Caller       string
	StartTime    *time.Time
	EndTime      time.Time
	Price        common.Coin
	MinItemsSold uint128.Uint128
	MaxPerWallet *uint32
	Recipient    string

	// Optional end-condition policy extension.
	TargetPercentageSold *uint32
	MaxDuration          *time.Duration
}

// OpenSale creates the SaleState singleton and permanently marks that a
// sale has been conducted, which gates future minting per configuration.
func (e *Engine) OpenSale(ctx context.Context, params OpenSaleParams) (*Result, error) {
	if !e.isOwner(params.Caller) {
		return nil, errors.Wrap(errs.Unauthorized, "only the owner can open a sale")
	}
	if err := validateAddress(params.Recipient); err != nil {
		return nil, errors.Wrap(err, "invalid recipient")
	}
	if params.Price.Denom == "" || params.Price.Amount.IsZero() {
		return nil, errors.Wrap(errs.InvalidArgument, "price must be a positive coin")
	}
	if params.TargetPercentageSold != nil && *params.TargetPercentageSold > 100 {
		return nil, errors.Wrap(errs.InvalidArgument, "target percentage sold must be at most 100")
	}
	if params.MaxDuration != nil && *params.MaxDuration <= 0 {
		return nil, errors.Wrap(errs.InvalidArgument, "max duration must be positive")
	}

	now := e.now()
	startTime := now
	if params.StartTime != nil {
		if params.StartTime.Before(now) {
			return nil, errors.Wrapf(errs.InvalidArgument, "start time %s is in the past", params.StartTime)
		}
		startTime = *params.StartTime
	}
	if !params.EndTime.After(startTime) {
		return nil, errors.Wrapf(errs.InvalidArgument, "end time %s is not after start time %s", params.EndTime, startTime)
	}

	maxPerWallet := DefaultMaxPerWallet
	if params.MaxPerWallet != nil {
		maxPerWallet = *params.MaxPerWallet
	}
	if maxPerWallet < 1 {
		return nil, errors.Wrap(errs.InvalidArgument, "max per wallet must be at least 1")
	}
	// The cap flows into registry query limits and the max_per_wallet
	// column, both int32.
	if maxPerWallet > MaxWalletCap {
		return nil, errors.Wrapf(errs.InvalidArgument, "max per wallet must be at most %d", MaxWalletCap)
	}

	qtx, err := e.dg.BeginCrowdfundTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = qtx.Rollback(ctx)
	}()

	if _, err := qtx.GetSaleState(ctx); err == nil {
		return nil, errors.Wrap(errs.LifecycleConflict, "a sale is already in progress")
	} else if !errors.Is(err, errs.NotFound) {
		return nil, errors.Wrap(err, "cannot load sale state")
	}

	totalItems, err := qtx.CountAvailableItems(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot count available items")
	}

	state := entity.SaleState{
		StartTime:            startTime,
		EndTime:              params.EndTime,
		Price:                params.Price,
		MinItemsSold:         params.MinItemsSold,
		MaxPerWallet:         maxPerWallet,
		Recipient:            params.Recipient,
		TotalItems:           totalItems,
		TargetPercentageSold: params.TargetPercentageSold,
		MaxDuration:          params.MaxDuration,
	}
	if err := qtx.SetSaleState(ctx, state); err != nil {
		return nil, errors.Wrap(err, "cannot save sale state")
	}
	if err := qtx.SetSaleConducted(ctx, true); err != nil {
		return nil, errors.Wrap(err, "cannot set sale conducted flag")
	}

	if err := qtx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	logger.InfoContext(ctx, "Sale opened",
		slogx.Time("startTime", startTime),
		slogx.Time("endTime", params.EndTime),
		slogx.Stringer("price", params.Price),
		slogx.Stringer("minItemsSold", params.MinItemsSold),
		slogx.Uint64("maxPerWallet", uint64(maxPerWallet)),
	)
	return &Result{}, nil
}

func validateAddress(address string) error {
	if address == "" {
		return errors.Wrap(errs.InvalidArgument, "address is empty")
	}
	if strings.ContainsAny(address, " \t\r\n") {
		return errors.Wrapf(errs.InvalidArgument, "address %q contains whitespace", address)
	}
	return nil
}
