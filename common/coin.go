package common

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/gaze-network/uint128"
)

// Coin is an amount of a single currency denomination.
type Coin struct {
	Denom  string          `json:"denom" mapstructure:"denom"`
	Amount uint128.Uint128 `json:"amount" mapstructure:"amount"`
}

func NewCoin(denom string, amount uint128.Uint128) Coin {
	return Coin{Denom: denom, Amount: amount}
}

func NewCoin64(denom string, amount uint64) Coin {
	return Coin{Denom: denom, Amount: uint128.From64(amount)}
}

func (c Coin) IsZero() bool {
	return c.Amount.IsZero()
}

// Covers reports whether c is the same denomination as other and at least
// as large.
func (c Coin) Covers(other Coin) bool {
	return c.Denom == other.Denom && c.Amount.Cmp(other.Amount) >= 0
}

// Add returns c + other. Mismatched denominations and uint128 overflow are
// errors, never silently saturated.
func (c Coin) Add(other Coin) (Coin, error) {
	if c.Denom != other.Denom {
		return Coin{}, errors.Wrapf(errs.InvalidArgument, "denom mismatch: %q != %q", c.Denom, other.Denom)
	}
	sum, overflow := c.Amount.AddOverflow(other.Amount)
	if overflow {
		return Coin{}, errors.WithStack(errs.OverflowUint128)
	}
	return Coin{Denom: c.Denom, Amount: sum}, nil
}

// Sub returns c - other, failing on denom mismatch or underflow.
func (c Coin) Sub(other Coin) (Coin, error) {
	if c.Denom != other.Denom {
		return Coin{}, errors.Wrapf(errs.InvalidArgument, "denom mismatch: %q != %q", c.Denom, other.Denom)
	}
	if c.Amount.Cmp(other.Amount) < 0 {
		return Coin{}, errors.Wrapf(errs.InsufficientFunds, "cannot subtract %s from %s", other, c)
	}
	return Coin{Denom: c.Denom, Amount: c.Amount.Sub(other.Amount)}, nil
}

// MulUint64 returns c with its amount multiplied by n.
func (c Coin) MulUint64(n uint64) (Coin, error) {
	product, overflow := c.Amount.MulOverflow(uint128.From64(n))
	if overflow {
		return Coin{}, errors.WithStack(errs.OverflowUint128)
	}
	return Coin{Denom: c.Denom, Amount: product}, nil
}

func (c Coin) String() string {
	return fmt.Sprintf("%s%s", c.Amount, c.Denom)
}
