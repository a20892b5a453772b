// handlers/shop_routes.go
package handlers

import (
	"phrase-game/middleware"

	"github.com/gofiber/fiber/v2"
)

type purchaseRequest struct {
	Item string `json:"item"`
}

type resolveDuelRequest struct {
	Target1 string `json:"target1"`
	Target2 string `json:"target2"`
}

func SetupShopRoutes(app *fiber.App, h *Handler) {
	shop := app.Group("/shop", h.requireAccount())
	shop.Get("/", h.shopFront)
	shop.Post("/purchases", h.purchase)
	shop.Post("/duels", h.initiateDuel)
	shop.Post("/duels/:token/resolve", h.resolveDuel)
}

func (h *Handler) shopFront(c *fiber.Ctx) error {
	ctx := c.UserContext()
	acc := middleware.CurrentAccount(c)
	round, err := h.svc.Rounds.CurrentOpenRound(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	bought, err := h.svc.Shop.PurchaseInRound(ctx, round.ID, acc.Identity)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"items":    h.svc.Shop.Catalog(),
		"coins":    acc.Coins,
		"purchase": bought,
	})
}

func (h *Handler) purchase(c *fiber.Ctx) error {
	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	p, err := h.svc.Shop.Purchase(c.UserContext(), middleware.CurrentAccount(c).Identity, req.Item)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *Handler) initiateDuel(c *fiber.Ctx) error {
	pending, err := h.svc.Shop.InitiateDuel(c.UserContext(), middleware.CurrentAccount(c).Identity)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pending)
}

func (h *Handler) resolveDuel(c *fiber.Ctx) error {
	var req resolveDuelRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	out, err := h.svc.Shop.ResolveDuel(c.UserContext(), middleware.CurrentAccount(c).Identity, c.Params("token"), req.Target1, req.Target2)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(out)
}
