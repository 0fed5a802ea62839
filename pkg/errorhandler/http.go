package errorhandler

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger/slogx"
	"github.com/gofiber/fiber/v2"
)

var statusByKind = map[errs.ErrorKind]int{
	errs.NotFound:          http.StatusNotFound,
	errs.Unauthorized:      http.StatusForbidden,
	errs.LifecycleConflict: http.StatusConflict,
	errs.LimitExceeded:     http.StatusUnprocessableEntity,
	errs.InsufficientFunds: http.StatusPaymentRequired,
	errs.InvalidArgument:   http.StatusBadRequest,
	errs.Duplicate:         http.StatusConflict,
}

func NewHTTPErrorHandler() func(ctx *fiber.Ctx, err error) error {
	return func(ctx *fiber.Ctx, err error) error {
		if e := new(errs.PublicError); errors.As(err, &e) {
			return errors.WithStack(ctx.Status(http.StatusBadRequest).JSON(map[string]any{
				"error": e.Message(),
			}))
		}
		var kind errs.ErrorKind
		if errors.As(err, &kind) {
			if status, ok := statusByKind[kind]; ok {
				return errors.WithStack(ctx.Status(status).JSON(map[string]any{
					"error": err.Error(),
				}))
			}
		}
		if e := new(fiber.Error); errors.As(err, &e) {
			return errors.WithStack(ctx.Status(e.Code).SendString(e.Error()))
		}

		logger.ErrorContext(ctx.UserContext(), "Something went wrong, unhandled api error",
			slogx.String("event", "api_unhandled_error"),
			slogx.Error(err),
		)

		return errors.WithStack(ctx.Status(http.StatusInternalServerError).JSON(map[string]any{
			"error": "Internal Server Error",
		}))
	}
}
