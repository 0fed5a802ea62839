package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
)

type HttpHandler struct {
	engine *engine.Engine
}

func New(engine *engine.Engine) *HttpHandler {
	return &HttpHandler{
		engine: engine,
	}
}

type HttpResponse[T any] struct {
	Error  *string `json:"error"`
	Result *T      `json:"result,omitempty"`
}

// coinRequest carries a coin amount as a decimal string, since uint128
// values do not round-trip through JSON numbers.
type coinRequest struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

func (c coinRequest) Parse() (common.Coin, error) {
	if c.Denom == "" {
		return common.Coin{}, errs.NewPublicError("'denom' is required")
	}
	amount, err := uint128.FromString(c.Amount)
	if err != nil {
		return common.Coin{}, errs.WithPublicMessage(errors.WithStack(err), "unable to parse 'amount'")
	}
	return common.NewCoin(c.Denom, amount), nil
}

type coinResponse struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

func coinToResponse(coin common.Coin) coinResponse {
	return coinResponse{Denom: coin.Denom, Amount: coin.Amount.String()}
}

type commandResponse struct {
	Kind      string        `json:"kind"`
	Target    string        `json:"target,omitempty"`
	ItemId    string        `json:"itemId,omitempty"`
	Recipient string        `json:"recipient,omitempty"`
	Amount    *coinResponse `json:"amount,omitempty"`
	Uri       string        `json:"uri,omitempty"`
}

func commandsToResponse(commands []entity.OutboundCommand) []commandResponse {
	return lo.Map(commands, func(command entity.OutboundCommand, _ int) commandResponse {
		resp := commandResponse{
			Kind:      string(command.Kind),
			Target:    command.Target,
			ItemId:    command.ItemID,
			Recipient: command.Recipient,
			Uri:       command.URI,
		}
		if !command.Amount.IsZero() {
			amount := coinToResponse(command.Amount)
			resp.Amount = &amount
		}
		return resp
	})
}
