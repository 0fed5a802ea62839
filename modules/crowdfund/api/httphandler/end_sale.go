package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/gofiber/fiber/v2"
)

type endSaleRequest struct {
	Caller string `json:"caller"`
	Limit  *int32 `json:"limit"`
}

type endSaleResult struct {
	Ended      bool              `json:"ended"`
	RefundPath bool              `json:"refundPath"`
	Cleared    bool              `json:"cleared"`
	Commands   []commandResponse `json:"commands"`
}

type endSaleResponse = HttpResponse[endSaleResult]

func (h *HttpHandler) EndSale(ctx *fiber.Ctx) (err error) {
	var req endSaleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if req.Caller == "" {
		return errs.NewPublicError("'caller' is required")
	}

	result, err := h.engine.EndSale(ctx.UserContext(), engine.EndSaleParams{
		Caller: req.Caller,
		Limit:  req.Limit,
	})
	if err != nil {
		return errors.Wrap(err, "error during EndSale")
	}

	resp := endSaleResponse{
		Result: &endSaleResult{
			Ended:      result.Ended,
			RefundPath: result.RefundPath,
			Cleared:    result.Cleared,
			Commands:   commandsToResponse(result.Commands),
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
