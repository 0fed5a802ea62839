package httphandler

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/gofiber/fiber/v2"
)

type saleStateResult struct {
	StartTime            time.Time    `json:"startTime"`
	EndTime              time.Time    `json:"endTime"`
	Price                coinResponse `json:"price"`
	MinItemsSold         string       `json:"minItemsSold"`
	MaxPerWallet         uint32       `json:"maxPerWallet"`
	ItemsSold            string       `json:"itemsSold"`
	ItemsTransferred     string       `json:"itemsTransferred"`
	ProceedsToForward    string       `json:"proceedsToForward"`
	ProceedsForwarded    string       `json:"proceedsForwarded"`
	Recipient            string       `json:"recipient"`
	TotalItems           string       `json:"totalItems"`
	TargetPercentageSold *uint32      `json:"targetPercentageSold,omitempty"`
	MaxDurationSeconds   *int64       `json:"maxDurationSeconds,omitempty"`
	OwnerEnded           bool         `json:"ownerEnded"`
	EndedAt              *time.Time   `json:"endedAt,omitempty"`
}

type getSaleStateResponse = HttpResponse[saleStateResult]

func (h *HttpHandler) GetSaleState(ctx *fiber.Ctx) (err error) {
	state, err := h.engine.GetSaleState(ctx.UserContext())
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("no ongoing sale")
		}
		return errors.Wrap(err, "error during GetSaleState")
	}

	result := &saleStateResult{
		StartTime:            state.StartTime,
		EndTime:              state.EndTime,
		Price:                coinToResponse(state.Price),
		MinItemsSold:         state.MinItemsSold.String(),
		MaxPerWallet:         state.MaxPerWallet,
		ItemsSold:            state.ItemsSold.String(),
		ItemsTransferred:     state.ItemsTransferred.String(),
		ProceedsToForward:    state.ProceedsToForward.String(),
		ProceedsForwarded:    state.ProceedsForwarded.String(),
		Recipient:            state.Recipient,
		TotalItems:           state.TotalItems.String(),
		TargetPercentageSold: state.TargetPercentageSold,
		OwnerEnded:           state.OwnerEnded,
		EndedAt:              state.EndedAt,
	}
	if state.MaxDuration != nil {
		seconds := int64(state.MaxDuration.Seconds())
		result.MaxDurationSeconds = &seconds
	}

	resp := getSaleStateResponse{Result: result}
	return errors.WithStack(ctx.JSON(resp))
}
