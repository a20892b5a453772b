// handlers/round_routes.go
package handlers

import (
	"strconv"

	"phrase-game/middleware"

	"github.com/gofiber/fiber/v2"
)

type submitRequest struct {
	Text string `json:"text"`
}

type ballotRequest struct {
	Ranking []uint `json:"ranking"`
}

// phraseView hides authors from everyone but admins while a round is open.
type phraseView struct {
	ID     uint   `json:"id"`
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

func SetupRoundRoutes(app *fiber.App, h *Handler) {
	rounds := app.Group("/rounds", h.requireAccount())
	rounds.Get("/current", h.roundStatus)
	rounds.Get("/current/submissions", h.listSubmissions)
	rounds.Post("/current/submissions", h.submit)
	rounds.Get("/current/pending", h.pendingPlayers)
	rounds.Get("/current/ballot", h.myBallot)
	rounds.Post("/current/ballot", h.castBallot)
	rounds.Get("/:number/results", h.roundResults)

	app.Get("/history", h.requireAccount(), h.playerStats)
}

func (h *Handler) roundStatus(c *fiber.Ctx) error {
	st, err := h.svc.Controller.Status(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(st)
}

func (h *Handler) listSubmissions(c *fiber.Ctx) error {
	ctx := c.UserContext()
	round, err := h.svc.Rounds.CurrentOpenRound(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	subs, err := h.svc.Submissions.ListByRound(ctx, round.ID)
	if err != nil {
		return h.fail(c, err)
	}
	showAuthor := middleware.CurrentAccount(c).IsAdmin
	views := make([]phraseView, 0, len(subs))
	for _, s := range subs {
		v := phraseView{ID: s.ID, Text: s.Text}
		if showAuthor {
			v.Author = s.Author
		}
		views = append(views, v)
	}
	return c.JSON(fiber.Map{"round": round.Number, "submissions": views})
}

func (h *Handler) submit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	sub, err := h.svc.Submissions.Submit(c.UserContext(), middleware.CurrentAccount(c).Identity, req.Text)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (h *Handler) pendingPlayers(c *fiber.Ctx) error {
	ctx := c.UserContext()
	round, err := h.svc.Rounds.CurrentOpenRound(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	pending, err := h.svc.Submissions.PendingPlayers(ctx, round.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"pending": pending})
}

func (h *Handler) myBallot(c *fiber.Ctx) error {
	ctx := c.UserContext()
	round, err := h.svc.Rounds.CurrentOpenRound(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	ranking, err := h.svc.Ballots.Ballot(ctx, middleware.CurrentAccount(c).Identity, round.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"round": round.Number, "ranking": ranking})
}

// castBallot stores the ranking and then runs the close check, since a
// ballot is what usually completes a round.
func (h *Handler) castBallot(c *fiber.Ctx) error {
	var req ballotRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	ctx := c.UserContext()
	round, err := h.svc.Rounds.CurrentOpenRound(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.svc.Ballots.CastVote(ctx, middleware.CurrentAccount(c).Identity, round.ID, req.Ranking); err != nil {
		return h.fail(c, err)
	}
	report, err := h.svc.Controller.CheckAndAutoClose(ctx, round.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"round": round.Number, "closed": report})
}

func (h *Handler) roundResults(c *fiber.Ctx) error {
	number, err := strconv.Atoi(c.Params("number"))
	if err != nil || number < 1 {
		return badRequest(c, "round number must be a positive integer")
	}
	result, err := h.svc.History.Results(c.UserContext(), number)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) playerStats(c *fiber.Ctx) error {
	stats, err := h.svc.History.PlayerStats(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"players": stats})
}
