package middleware

import (
	"context"
	"log/slog"
	"strings"

	"phrase-game/models"

	"github.com/gofiber/fiber/v2"
)

const accountLocal = "account"

// AccountLoader is the slice of the ledger the middleware needs.
type AccountLoader interface {
	GetAccount(ctx context.Context, identity string) (*models.Account, error)
}

// RequireAccount resolves the bearer token to an active account and stores
// it in the request locals.
func RequireAccount(tokens *TokenIssuer, accounts AccountLoader, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || token == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "bearer token missing",
			})
		}

		identity, err := tokens.Parse(token)
		if err != nil {
			logger.Debug("rejected token", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		acc, err := accounts.GetAccount(c.UserContext(), identity)
		if err != nil {
			logger.Warn("token for unknown account", "identity", identity, "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}
		if !acc.Active {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "account inactive",
			})
		}

		c.Locals(accountLocal, acc)
		return c.Next()
	}
}

// AdminOnly must run after RequireAccount.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		acc := CurrentAccount(c)
		if acc == nil || !acc.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin only",
			})
		}
		return c.Next()
	}
}

// CurrentAccount returns the account RequireAccount stored, or nil.
func CurrentAccount(c *fiber.Ctx) *models.Account {
	acc, _ := c.Locals(accountLocal).(*models.Account)
	return acc
}
