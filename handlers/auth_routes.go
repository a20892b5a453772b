// handlers/auth_routes.go
package handlers

import (
	"errors"
	"time"

	"phrase-game/middleware"
	"phrase-game/models"
	"phrase-game/services"

	"github.com/gofiber/fiber/v2"
)

type loginRequest struct {
	Identity   string `json:"identity"`
	Credential string `json:"credential"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *models.Account `json:"account"`
}

type meResponse struct {
	Account  *models.Account          `json:"account"`
	Round    *models.Round            `json:"round,omitempty"`
	State    *models.PlayerRoundState `json:"state,omitempty"`
	Purchase *models.Purchase         `json:"purchase,omitempty"`
}

func SetupAuthRoutes(app *fiber.App, h *Handler) {
	app.Post("/auth/login", h.login)
	app.Get("/me", h.requireAccount(), h.me)
}

func (h *Handler) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	acc, err := h.svc.Ledger.Authenticate(c.UserContext(), req.Identity, req.Credential)
	if err != nil {
		return h.fail(c, err)
	}
	token, exp, err := h.tokens.Issue(acc.Identity)
	if err != nil {
		return h.fail(c, err)
	}
	h.logger.Info("login", "identity", acc.Identity)
	return c.JSON(loginResponse{Token: token, ExpiresAt: exp, Account: acc})
}

func (h *Handler) me(c *fiber.Ctx) error {
	ctx := c.UserContext()
	acc := middleware.CurrentAccount(c)
	resp := meResponse{Account: acc}

	round, err := h.svc.Rounds.CurrentOpenRound(ctx)
	if errors.Is(err, services.ErrNoOpenRound) {
		return c.JSON(resp)
	}
	if err != nil {
		return h.fail(c, err)
	}
	resp.Round = round

	state, err := h.svc.Rounds.GetPlayerState(ctx, round.ID, acc.Identity)
	switch {
	case err == nil:
		resp.State = state
	case !errors.Is(err, services.ErrNotEnrolled):
		return h.fail(c, err)
	}

	if resp.Purchase, err = h.svc.Shop.PurchaseInRound(ctx, round.ID, acc.Identity); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(resp)
}
