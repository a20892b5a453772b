package handlers

import (
	"errors"

	"phrase-game/services"

	"github.com/gofiber/fiber/v2"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{services.ErrInvalidInput, fiber.StatusBadRequest},
	{services.ErrEmptyText, fiber.StatusBadRequest},
	{services.ErrIncompleteRanking, fiber.StatusBadRequest},
	{services.ErrUnknownSubmission, fiber.StatusBadRequest},
	{services.ErrUnknownItem, fiber.StatusBadRequest},
	{services.ErrDuelRequiresTargets, fiber.StatusBadRequest},
	{services.ErrInvalidDuelTargets, fiber.StatusBadRequest},
	{services.ErrNotConfirmed, fiber.StatusBadRequest},
	{services.ErrInvalidCredential, fiber.StatusUnauthorized},
	{services.ErrInactive, fiber.StatusForbidden},
	{services.ErrNotPlayer, fiber.StatusForbidden},
	{services.ErrNotJudge, fiber.StatusForbidden},
	{services.ErrNotFound, fiber.StatusNotFound},
	{services.ErrNoOpenRound, fiber.StatusNotFound},
	{services.ErrDuelNotFound, fiber.StatusNotFound},
	{services.ErrDuelExpired, fiber.StatusGone},
	{services.ErrAlreadyExists, fiber.StatusConflict},
	{services.ErrRoundClosed, fiber.StatusConflict},
	{services.ErrNotEnrolled, fiber.StatusConflict},
	{services.ErrNoResponsesLeft, fiber.StatusConflict},
	{services.ErrNoSubmissions, fiber.StatusConflict},
	{services.ErrAlreadyPurchasedThisRound, fiber.StatusConflict},
	{services.ErrInsufficientCoins, fiber.StatusConflict},
}

// statusFor maps a service error to an HTTP status; unknown errors are 500.
func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
