package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type getAvailableItemsRequest struct {
	Cursor string `query:"cursor"`
	Limit  *int32 `query:"limit"`
}

type getAvailableItemsResult struct {
	Items []string `json:"items"`
	// Cursor resumes the next page; empty when this page was not full.
	Cursor string `json:"cursor,omitempty"`
}

type getAvailableItemsResponse = HttpResponse[getAvailableItemsResult]

func (h *HttpHandler) GetAvailableItems(ctx *fiber.Ctx) (err error) {
	var req getAvailableItemsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}

	records, err := h.engine.GetAvailableItems(ctx.UserContext(), engine.GetAvailableItemsParams{
		Cursor: req.Cursor,
		Limit:  req.Limit,
	})
	if err != nil {
		return errors.Wrap(err, "error during GetAvailableItems")
	}

	result := &getAvailableItemsResult{
		Items: lo.Map(records, func(record entity.TokenRecord, _ int) string { return record.ID }),
	}
	if len(records) > 0 {
		result.Cursor = records[len(records)-1].ID
	}

	resp := getAvailableItemsResponse{Result: result}
	return errors.WithStack(ctx.JSON(resp))
}

type isItemAvailableRequest struct {
	ItemId string `params:"itemId"`
}

type isItemAvailableResult struct {
	Available bool `json:"available"`
}

type isItemAvailableResponse = HttpResponse[isItemAvailableResult]

func (h *HttpHandler) IsItemAvailable(ctx *fiber.Ctx) (err error) {
	var req isItemAvailableRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if req.ItemId == "" {
		return errs.NewPublicError("'itemId' is required")
	}

	available, err := h.engine.IsItemAvailable(ctx.UserContext(), req.ItemId)
	if err != nil {
		return errors.Wrap(err, "error during IsItemAvailable")
	}

	resp := isItemAvailableResponse{
		Result: &isItemAvailableResult{Available: available},
	}
	return errors.WithStack(ctx.JSON(resp))
}
