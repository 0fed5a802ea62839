package common

import (
	"testing"

	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/gaze-network/uint128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinCovers(t *testing.T) {
	assert.True(t, NewCoin64("coin", 10).Covers(NewCoin64("coin", 10)))
	assert.True(t, NewCoin64("coin", 11).Covers(NewCoin64("coin", 10)))
	assert.False(t, NewCoin64("coin", 9).Covers(NewCoin64("coin", 10)))
	assert.False(t, NewCoin64("other", 10).Covers(NewCoin64("coin", 10)))
}

func TestCoinAdd(t *testing.T) {
	sum, err := NewCoin64("coin", 10).Add(NewCoin64("coin", 5))
	require.NoError(t, err)
	assert.Equal(t, NewCoin64("coin", 15), sum)

	_, err = NewCoin64("coin", 10).Add(NewCoin64("other", 5))
	assert.ErrorIs(t, err, errs.InvalidArgument)

	_, err = NewCoin("coin", uint128.Max).Add(NewCoin64("coin", 1))
	assert.ErrorIs(t, err, errs.OverflowUint128)
}

func TestCoinSub(t *testing.T) {
	diff, err := NewCoin64("coin", 10).Sub(NewCoin64("coin", 4))
	require.NoError(t, err)
	assert.Equal(t, NewCoin64("coin", 6), diff)

	_, err = NewCoin64("coin", 4).Sub(NewCoin64("coin", 10))
	assert.ErrorIs(t, err, errs.InsufficientFunds)

	_, err = NewCoin64("coin", 10).Sub(NewCoin64("other", 4))
	assert.ErrorIs(t, err, errs.InvalidArgument)
}

func TestCoinMulUint64(t *testing.T) {
	product, err := NewCoin64("coin", 10).MulUint64(3)
	require.NoError(t, err)
	assert.Equal(t, NewCoin64("coin", 30), product)

	_, err = NewCoin("coin", uint128.Max).MulUint64(2)
	assert.ErrorIs(t, err, errs.OverflowUint128)
}

func TestCoinString(t *testing.T) {
	assert.Equal(t, "10coin", NewCoin64("coin", 10).String())
}
