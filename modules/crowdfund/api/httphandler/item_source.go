package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/gofiber/fiber/v2"
)

type updateItemSourceRequest struct {
	Caller     string `json:"caller"`
	ItemSource string `json:"itemSource"`
}

func (r updateItemSourceRequest) Validate() error {
	var errList []error
	if r.Caller == "" {
		errList = append(errList, errors.New("'caller' is required"))
	}
	if r.ItemSource == "" {
		errList = append(errList, errors.New("'itemSource' is required"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type updateItemSourceResult struct {
	Updated bool `json:"updated"`
}

type updateItemSourceResponse = HttpResponse[updateItemSourceResult]

func (h *HttpHandler) UpdateItemSource(ctx *fiber.Ctx) (err error) {
	var req updateItemSourceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	if err := h.engine.UpdateItemSource(ctx.UserContext(), engine.UpdateItemSourceParams{
		Caller:     req.Caller,
		ItemSource: req.ItemSource,
	}); err != nil {
		return errors.Wrap(err, "error during UpdateItemSource")
	}

	resp := updateItemSourceResponse{
		Result: &updateItemSourceResult{Updated: true},
	}
	return errors.WithStack(ctx.JSON(resp))
}
