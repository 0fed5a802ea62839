package httphandler

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/engine"
	"github.com/gaze-network/uint128"
	"github.com/gofiber/fiber/v2"
)

type openSaleRequest struct {
	Caller               string      `json:"caller"`
	StartTime            *time.Time  `json:"startTime"`
	EndTime              time.Time   `json:"endTime"`
	Price                coinRequest `json:"price"`
	MinItemsSold         string      `json:"minItemsSold"`
	MaxPerWallet         *uint32     `json:"maxPerWallet"`
	Recipient            string      `json:"recipient"`
	TargetPercentageSold *uint32     `json:"targetPercentageSold"`
	MaxDurationSeconds   *int64      `json:"maxDurationSeconds"`
}

func (r openSaleRequest) Validate() error {
	var errList []error
	if r.Caller == "" {
		errList = append(errList, errors.New("'caller' is required"))
	}
	if r.EndTime.IsZero() {
		errList = append(errList, errors.New("'endTime' is required"))
	}
	if r.Recipient == "" {
		errList = append(errList, errors.New("'recipient' is required"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type openSaleResult struct {
	Opened bool `json:"opened"`
}

type openSaleResponse = HttpResponse[openSaleResult]

func (h *HttpHandler) OpenSale(ctx *fiber.Ctx) (err error) {
	var req openSaleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	price, err := req.Price.Parse()
	if err != nil {
		return errors.WithStack(err)
	}
	minItemsSold := uint128.Zero
	if req.MinItemsSold != "" {
		minItemsSold, err = uint128.FromString(req.MinItemsSold)
		if err != nil {
			return errs.WithPublicMessage(errors.WithStack(err), "unable to parse 'minItemsSold'")
		}
	}
	var maxDuration *time.Duration
	if req.MaxDurationSeconds != nil {
		duration := time.Duration(*req.MaxDurationSeconds) * time.Second
		maxDuration = &duration
	}

	_, err = h.engine.OpenSale(ctx.UserContext(), engine.OpenSaleParams{
		Caller:               req.Caller,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		Price:                price,
		MinItemsSold:         minItemsSold,
		MaxPerWallet:         req.MaxPerWallet,
		Recipient:            req.Recipient,
		TargetPercentageSold: req.TargetPercentageSold,
		MaxDuration:          maxDuration,
	})
	if err != nil {
		return errors.Wrap(err, "error during OpenSale")
	}

	resp := openSaleResponse{
		Result: &openSaleResult{Opened: true},
	}
	return errors.WithStack(ctx.JSON(resp))
}
