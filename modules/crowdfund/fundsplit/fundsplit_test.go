package fundsplit

import (
	"context"
	"testing"

	"github.com/crowdfund-network/crowdfund-engine/common"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopSplit(t *testing.T) {
	gross := common.NewCoin64("coin", 100)
	split, err := Nop{}.Split(context.Background(), "payer", gross)
	require.NoError(t, err)
	assert.Equal(t, gross, split.Remainder)
	assert.Empty(t, split.Commands)
}

func TestNewRateSplitter(t *testing.T) {
	t.Run("rejects negative rate", func(t *testing.T) {
		_, err := NewRateSplitter(decimal.RequireFromString("-0.1"), "collector")
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})
	t.Run("rejects rate above one", func(t *testing.T) {
		_, err := NewRateSplitter(decimal.RequireFromString("1.5"), "collector")
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})
	t.Run("rejects missing collector for non-zero rate", func(t *testing.T) {
		_, err := NewRateSplitter(decimal.RequireFromString("0.1"), "")
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})
	t.Run("allows zero rate without collector", func(t *testing.T) {
		_, err := NewRateSplitter(decimal.Zero, "")
		assert.NoError(t, err)
	})
}

func TestRateSplitterSplit(t *testing.T) {
	testcases := []struct {
		name          string
		rate          string
		gross         uint64
		wantTax       uint64
		wantRemainder uint64
	}{
		{name: "ten percent", rate: "0.1", gross: 100, wantTax: 10, wantRemainder: 90},
		{name: "rounds the tax down", rate: "0.1", gross: 15, wantTax: 1, wantRemainder: 14},
		{name: "tax rounds to zero", rate: "0.1", gross: 9, wantTax: 0, wantRemainder: 9},
		{name: "full rate", rate: "1", gross: 100, wantTax: 100, wantRemainder: 0},
		{name: "zero rate", rate: "0", gross: 100, wantTax: 0, wantRemainder: 100},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			splitter, err := NewRateSplitter(decimal.RequireFromString(tc.rate), "collector")
			require.NoError(t, err)

			split, err := splitter.Split(context.Background(), "payer", common.NewCoin64("coin", tc.gross))
			require.NoError(t, err)
			assert.Equal(t, common.NewCoin64("coin", tc.wantRemainder), split.Remainder)

			if tc.wantTax == 0 {
				assert.Empty(t, split.Commands)
				return
			}
			require.Len(t, split.Commands, 1)
			assert.Equal(t, entity.CommandSendPayment, split.Commands[0].Kind)
			assert.Equal(t, "collector", split.Commands[0].Recipient)
			assert.Equal(t, common.NewCoin64("coin", tc.wantTax), split.Commands[0].Amount)
		})
	}
}
