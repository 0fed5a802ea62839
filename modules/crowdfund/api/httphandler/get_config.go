package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/gofiber/fiber/v2"
)

type configResult struct {
	ItemSource         string `json:"itemSource"`
	AllowMintAfterSale bool   `json:"allowMintAfterSale"`
}

type getConfigResponse = HttpResponse[configResult]

func (h *HttpHandler) GetConfig(ctx *fiber.Ctx) (err error) {
	config, err := h.engine.GetConfig(ctx.UserContext())
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("config is not set")
		}
		return errors.Wrap(err, "error during GetConfig")
	}

	resp := getConfigResponse{
		Result: &configResult{
			ItemSource:         config.ItemSource,
			AllowMintAfterSale: config.AllowMintAfterSale,
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
