package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) Mount(router fiber.Router) error {
	r := router.Group("/crowdfund/v1")

	r.Post("/sale/open", h.OpenSale)
	r.Post("/sale/end", h.EndSale)
	r.Post("/mint", h.Mint)
	r.Post("/purchase", h.Purchase)
	r.Post("/purchase/:itemId", h.PurchaseById)
	r.Post("/refund", h.ClaimRefund)
	r.Put("/item-source", h.UpdateItemSource)

	r.Get("/sale", h.GetSaleState)
	r.Get("/config", h.GetConfig)
	r.Get("/items", h.GetAvailableItems)
	r.Get("/items/:itemId/available", h.IsItemAvailable)

	return nil
}
