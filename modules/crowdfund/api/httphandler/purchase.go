package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/gofiber/fiber/v2"
)

type purchaseRequest struct {
	Buyer     string      `json:"buyer"`
	SentFunds coinRequest `json:"sentFunds"`
	Count     *uint32     `json:"count"`
}

func (r purchaseRequest) Validate() error {
	var errList []error
	if r.Buyer == "" {
		errList = append(errList, errors.New("'buyer' is required"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type purchaseResult struct {
	ItemsWanted    uint32            `json:"itemsWanted"`
	ItemsPurchased uint32            `json:"itemsPurchased"`
	Refund         *coinResponse     `json:"refund,omitempty"`
	Commands       []commandResponse `json:"commands"`
}

type purchaseResponse = HttpResponse[purchaseResult]

func purchaseToResult(result *engine.PurchaseResult) *purchaseResult {
	resp := &purchaseResult{
		ItemsWanted:    result.ItemsWanted,
		ItemsPurchased: result.ItemsPurchased,
		Commands:       commandsToResponse(result.Commands),
	}
	if result.Refund != nil {
		refund := coinToResponse(*result.Refund)
		resp.Refund = &refund
	}
	return resp
}

func (h *HttpHandler) Purchase(ctx *fiber.Ctx) (err error) {
	var req purchaseRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	sentFunds, err := req.SentFunds.Parse()
	if err != nil {
		return errors.WithStack(err)
	}

	result, err := h.engine.Purchase(ctx.UserContext(), engine.PurchaseParams{
		Buyer:     req.Buyer,
		SentFunds: sentFunds,
		Count:     req.Count,
	})
	if err != nil {
		return errors.Wrap(err, "error during Purchase")
	}

	resp := purchaseResponse{
		Result: purchaseToResult(result),
	}
	return errors.WithStack(ctx.JSON(resp))
}

type purchaseByIdRequest struct {
	Buyer     string      `json:"buyer"`
	SentFunds coinRequest `json:"sentFunds"`
	ItemId    string      `params:"itemId"`
}

func (h *HttpHandler) PurchaseById(ctx *fiber.Ctx) (err error) {
	var req purchaseByIdRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := ctx.BodyParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if req.Buyer == "" {
		return errs.NewPublicError("'buyer' is required")
	}
	sentFunds, err := req.SentFunds.Parse()
	if err != nil {
		return errors.WithStack(err)
	}

	result, err := h.engine.PurchaseByID(ctx.UserContext(), engine.PurchaseByIDParams{
		Buyer:     req.Buyer,
		SentFunds: sentFunds,
		ItemID:    req.ItemId,
	})
	if err != nil {
		return errors.Wrap(err, "error during PurchaseById")
	}

	resp := purchaseResponse{
		Result: purchaseToResult(result),
	}
	return errors.WithStack(ctx.JSON(resp))
}
