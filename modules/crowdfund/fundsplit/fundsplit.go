package fundsplit

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/crowdfund-network/crowdfund-engine/pkg/decimals"
	"github.com/gaze-network/uint128"
	"github.com/shopspring/decimal"
)

// Split is the result of applying a split strategy to a gross payment:
// the net remainder to forward to the sale recipient and the disbursement
// commands for the tax portion. Tax equals gross minus remainder.
type Split struct {
	Remainder common.Coin
	Commands  []entity.OutboundCommand
}

// Splitter computes the tax/net split for a single gross payment. The
// strategy is injected and may change between calls, so callers must not
// assume it is stable mid-settlement; the engine captures the returned
// commands at purchase time instead of re-splitting later.
type Splitter interface {
	Split(ctx context.Context, payer string, gross common.Coin) (Split, error)
}

// Nop forwards the whole gross amount, collecting no tax.
type Nop struct{}

func (Nop) Split(_ context.Context, _ string, gross common.Coin) (Split, error) {
	return Split{Remainder: gross}, nil
}

// RateSplitter charges a flat fractional rate of the gross amount and
// disburses it to a collector address.
type RateSplitter struct {
	rate      decimal.Decimal
	collector string
}

func NewRateSplitter(rate decimal.Decimal, collector string) (*RateSplitter, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, errors.Wrapf(errs.InvalidArgument, "tax rate %s out of range [0, 1]", rate)
	}
	if !rate.IsZero() && collector == "" {
		return nil, errors.Wrap(errs.InvalidArgument, "tax collector is required for a non-zero rate")
	}
	return &RateSplitter{rate: rate, collector: collector}, nil
}

func (s *RateSplitter) Split(_ context.Context, _ string, gross common.Coin) (Split, error) {
	if s.rate.IsZero() {
		return Split{Remainder: gross}, nil
	}

	taxDec := decimals.ToDecimal(gross.Amount, 0).Mul(s.rate).Floor()
	taxAmount, err := uint128.FromString(taxDec.String())
	if err != nil {
		return Split{}, errors.Join(err, errs.OverflowUint128)
	}
	tax := common.NewCoin(gross.Denom, taxAmount)

	remainder, err := gross.Sub(tax)
	if err != nil {
		return Split{}, errors.Wrap(err, "tax exceeds gross amount")
	}

	split := Split{Remainder: remainder}
	if !tax.IsZero() {
		split.Commands = []entity.OutboundCommand{{
			Kind:      entity.CommandSendPayment,
			Recipient: s.collector,
			Amount:    tax,
		}}
	}
	return split, nil
}
