// Package handlers maps the game services onto fiber routes.
package handlers

import (
	"log/slog"

	"phrase-game/middleware"
	"phrase-game/services"

	"github.com/gofiber/fiber/v2"
)

// Services groups everything the routes call into.
type Services struct {
	Ledger      *services.LedgerService
	Rounds      *services.RoundService
	Submissions *services.SubmissionService
	Ballots     *services.BallotService
	Shop        *services.ShopService
	Settings    *services.SettingsService
	History     *services.HistoryService
	Controller  *services.RoundController
}

type Handler struct {
	svc    Services
	tokens *middleware.TokenIssuer
	logger *slog.Logger
}

func New(svc Services, tokens *middleware.TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

func (h *Handler) requireAccount() fiber.Handler {
	return middleware.RequireAccount(h.tokens, h.svc.Ledger, h.logger)
}

// Setup registers every route group on app.
func Setup(app *fiber.App, h *Handler) {
	SetupAuthRoutes(app, h)
	SetupRoundRoutes(app, h)
	SetupShopRoutes(app, h)
	SetupAdminRoutes(app, h)
}
