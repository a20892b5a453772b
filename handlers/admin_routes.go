// handlers/admin_routes.go
package handlers

import (
	"phrase-game/middleware"
	"phrase-game/services"

	"github.com/gofiber/fiber/v2"
)

type createAccountRequest struct {
	Identity   string `json:"identity"`
	Credential string `json:"credential"`
	Role       string `json:"role"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

// 🔐 Every admin route requires an active admin account.
func SetupAdminRoutes(app *fiber.App, h *Handler) {
	admin := app.Group("/admin", h.requireAccount(), middleware.AdminOnly())

	admin.Get("/accounts", h.listAccounts)
	admin.Post("/accounts", h.createAccount)
	admin.Post("/accounts/:identity/deactivate", h.deactivate)
	admin.Post("/accounts/:identity/rehabilitate", h.rehabilitate)
	admin.Post("/accounts/:identity/adjust", h.adjustPlayer)

	admin.Get("/rewards", h.getRewards)
	admin.Put("/rewards", h.updateRewards)
	admin.Put("/title", h.setTitle)

	admin.Get("/duels", h.duelsThisRound)
	admin.Post("/rounds/close", h.forceClose)
	admin.Post("/reset", h.reset)
}

func (h *Handler) listAccounts(c *fiber.Ctx) error {
	accounts, err := h.svc.Ledger.ListAccounts(c.UserContext(), c.QueryBool("active"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"accounts": accounts})
}

func (h *Handler) createAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	acc, err := h.svc.Controller.AddAccount(c.UserContext(), req.Identity, req.Credential, req.Role)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(acc)
}

func (h *Handler) deactivate(c *fiber.Ctx) error {
	if err := h.svc.Controller.Deactivate(c.UserContext(), c.Params("identity")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) rehabilitate(c *fiber.Ctx) error {
	if err := h.svc.Controller.Rehabilitate(c.UserContext(), c.Params("identity")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) adjustPlayer(c *fiber.Ctx) error {
	var req services.PlayerAdjustment
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if err := h.svc.Controller.AdjustPlayer(c.UserContext(), c.Params("identity"), req); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) getRewards(c *fiber.Ctx) error {
	r, err := h.svc.Settings.Rewards(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(r)
}

func (h *Handler) updateRewards(c *fiber.Ctx) error {
	var req services.RewardSchedule
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if err := h.svc.Settings.UpdateRewards(c.UserContext(), req); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(req)
}

func (h *Handler) setTitle(c *fiber.Ctx) error {
	var req titleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	ctx := c.UserContext()
	if err := h.svc.Settings.SetTitle(ctx, req.Title); err != nil {
		return h.fail(c, err)
	}
	title, err := h.svc.Settings.Title(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"title": title})
}

func (h *Handler) duelsThisRound(c *fiber.Ctx) error {
	ctx := c.UserContext()
	round, err := h.svc.Rounds.CurrentOpenRound(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	duels, err := h.svc.Shop.DuelsInRound(ctx, round.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"round": round.Number, "duels": duels})
}

func (h *Handler) forceClose(c *fiber.Ctx) error {
	report, err := h.svc.Controller.ForceClose(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

func (h *Handler) reset(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if err := h.svc.Controller.Reset(c.UserContext(), req.Confirm); err != nil {
		return h.fail(c, err)
	}
	h.logger.Warn("reset requested over HTTP", "by", middleware.CurrentAccount(c).Identity)
	return c.SendStatus(fiber.StatusNoContent)
}
