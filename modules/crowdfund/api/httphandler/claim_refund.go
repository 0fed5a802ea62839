package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/gofiber/fiber/v2"
)

type claimRefundRequest struct {
	Buyer string `json:"buyer"`
}

type claimRefundResult struct {
	Refunded coinResponse      `json:"refunded"`
	Commands []commandResponse `json:"commands"`
}

type claimRefundResponse = HttpResponse[claimRefundResult]

func (h *HttpHandler) ClaimRefund(ctx *fiber.Ctx) (err error) {
	var req claimRefundRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if req.Buyer == "" {
		return errs.NewPublicError("'buyer' is required")
	}

	result, err := h.engine.ClaimRefund(ctx.UserContext(), engine.ClaimRefundParams{
		Buyer: req.Buyer,
	})
	if err != nil {
		return errors.Wrap(err, "error during ClaimRefund")
	}

	resp := claimRefundResponse{
		Result: &claimRefundResult{
			Refunded: coinToResponse(result.Refunded),
			Commands: commandsToResponse(result.Commands),
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
