package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type mintItemRequest struct {
	Id    string `json:"id"`
	Owner string `json:"owner"`
	Uri   string `json:"uri"`
}

type mintRequest struct {
	Caller string            `json:"caller"`
	Items  []mintItemRequest `json:"items"`
}

func (r mintRequest) Validate() error {
	var errList []error
	if r.Caller == "" {
		errList = append(errList, errors.New("'caller' is required"))
	}
	if len(r.Items) == 0 {
		errList = append(errList, errors.New("'items' must not be empty"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type mintResult struct {
	Commands []commandResponse `json:"commands"`
}

type mintResponse = HttpResponse[mintResult]

func (h *HttpHandler) Mint(ctx *fiber.Ctx) (err error) {
	var req mintRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	result, err := h.engine.Mint(ctx.UserContext(), engine.MintParams{
		Caller: req.Caller,
		Items: lo.Map(req.Items, func(item mintItemRequest, _ int) entity.MintItem {
			return entity.MintItem{ID: item.Id, Owner: item.Owner, URI: item.Uri}
		}),
	})
	if err != nil {
		return errors.Wrap(err, "error during Mint")
	}

	resp := mintResponse{
		Result: &mintResult{Commands: commandsToResponse(result.Commands)},
	}
	return errors.WithStack(ctx.JSON(resp))
}
