package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"phrase-game/metrics"
	"phrase-game/models"

	"gorm.io/gorm"
)

// CloseReport summarizes a round close and the round it opened.
type CloseReport struct {
	RoundID      uint              `json:"round_id"`
	RoundNumber  int               `json:"round_number"`
	NextRound    int               `json:"next_round"`
	Trigger      string            `json:"trigger"`
	Eliminated   string            `json:"eliminated"`
	Standings    []models.Standing `json:"standings"`
	CoinsAwarded int64             `json:"coins_awarded"`
}

// RoundStatus is the pull-based view of the open round.
type RoundStatus struct {
	Title       string       `json:"title"`
	Round       models.Round `json:"round"`
	Submissions int64        `json:"submissions"`
	Voting      VotingStatus `json:"voting"`
	JustClosed  *CloseReport `json:"just_closed,omitempty"`
}

// PlayerAdjustment carries admin deltas; zero fields are left alone.
type PlayerAdjustment struct {
	Coins     int64 `json:"coins"`
	Penalty   int   `json:"penalty"`
	Responses int   `json:"responses"`
}

// RoundController drives round transitions and the admin operations that
// touch more than one component.
type RoundController struct {
	DB        *gorm.DB
	Ledger    *LedgerService
	Policy    AggregationPolicy
	RootAdmin string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewRoundController(db *gorm.DB, ledger *LedgerService, rootAdmin string, policy AggregationPolicy, logger *slog.Logger, m *metrics.Metrics) *RoundController {
	return &RoundController{
		DB:        db,
		Ledger:    ledger,
		Policy:    policy,
		RootAdmin: rootAdmin,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// CheckAndAutoClose closes the round when it is open, has submissions and
// every active judge has voted. It returns nil, nil when the round is not
// ready or another caller closed it first.
func (c *RoundController) CheckAndAutoClose(ctx context.Context, roundID uint) (*CloseReport, error) {
	var report *CloseReport
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var round models.Round
		if err := tx.First(&round, "id = ?", roundID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("round %d: %w", roundID, ErrNotFound)
			}
			return err
		}
		if !round.IsOpen() {
			return nil
		}
		n, err := countSubmissions(tx, round.ID)
		if err != nil || n == 0 {
			return err
		}
		voting, err := votingStatus(tx, round.ID)
		if err != nil || !voting.Complete() {
			return err
		}
		report, err = c.closeAndAdvance(tx, &round, models.CloseTriggerAuto)
		return err
	})
	if errors.Is(err, ErrRoundClosed) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.logClose(report)
	return report, nil
}

// ForceClose scores and closes the open round without waiting for judges.
func (c *RoundController) ForceClose(ctx context.Context) (*CloseReport, error) {
	var report *CloseReport
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		round, err := currentOpenRound(tx)
		if err != nil {
			return err
		}
		n, err := countSubmissions(tx, round.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNoSubmissions
		}
		report, err = c.closeAndAdvance(tx, round, models.CloseTriggerAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logClose(report)
	return report, nil
}

// closeAndAdvance wins the close CAS first so a losing racer writes nothing,
// then pays rewards, eliminates, records the result and opens the next round.
func (c *RoundController) closeAndAdvance(tx *gorm.DB, round *models.Round, trigger string) (*CloseReport, error) {
	now := c.now()
	if err := closeRound(tx, round.ID, now); err != nil {
		return nil, err
	}

	subs, err := listSubmissions(tx, round.ID)
	if err != nil {
		return nil, err
	}
	votes, err := listVotes(tx, round.ID)
	if err != nil {
		return nil, err
	}
	states, err := listPlayerStates(tx, round.ID)
	if err != nil {
		return nil, err
	}
	rewards, err := loadRewards(tx)
	if err != nil {
		return nil, err
	}

	outcome := Score(ScoreInput{
		Submissions: subs,
		Votes:       votes,
		States:      states,
		Policy:      c.Policy,
		Rewards:     rewards,
	})
	if outcome.Eliminated == "" {
		return nil, ErrNoSubmissions
	}

	var paid int64
	for _, st := range outcome.Standings {
		if st.Reward == 0 {
			continue
		}
		if err := adjustCoins(tx, st.Author, st.Reward); err != nil {
			return nil, fmt.Errorf("reward %s: %w", st.Author, err)
		}
		paid += st.Reward
	}
	if err := setActive(tx, outcome.Eliminated, false); err != nil {
		return nil, fmt.Errorf("eliminate %s: %w", outcome.Eliminated, err)
	}

	result := &models.RoundResult{
		RoundID:     round.ID,
		RoundNumber: round.Number,
		Eliminated:  outcome.Eliminated,
		Trigger:     trigger,
		Standings:   outcome.Standings,
		ClosedAt:    now,
	}
	if err := tx.Create(result).Error; err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}

	next := round.Number + 1
	if err := setSetting(tx, models.SettingCurrentRound, strconv.Itoa(next)); err != nil {
		return nil, err
	}
	if _, err := openRound(tx, next, now); err != nil {
		return nil, fmt.Errorf("open round %d: %w", next, err)
	}

	return &CloseReport{
		RoundID:      round.ID,
		RoundNumber:  round.Number,
		NextRound:    next,
		Trigger:      trigger,
		Eliminated:   outcome.Eliminated,
		Standings:    outcome.Standings,
		CoinsAwarded: paid,
	}, nil
}

func (c *RoundController) logClose(r *CloseReport) {
	if r == nil {
		return
	}
	c.metrics.RoundClosed(r.Trigger, r.CoinsAwarded)
	c.logger.Info("round closed",
		"round", r.RoundNumber,
		"trigger", r.Trigger,
		"eliminated", r.Eliminated,
		"coins_awarded", r.CoinsAwarded,
		"next_round", r.NextRound,
	)
}

// Status runs the auto-close check, then reports on whichever round is open.
func (c *RoundController) Status(ctx context.Context) (*RoundStatus, error) {
	db := c.DB.WithContext(ctx)
	round, err := currentOpenRound(db)
	if err != nil {
		return nil, err
	}
	closed, err := c.CheckAndAutoClose(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	if closed != nil {
		if round, err = currentOpenRound(db); err != nil {
			return nil, err
		}
	}

	n, err := countSubmissions(db, round.ID)
	if err != nil {
		return nil, err
	}
	voting, err := votingStatus(db, round.ID)
	if err != nil {
		return nil, err
	}
	title, err := getSetting(db, models.SettingTitle)
	if err != nil {
		return nil, err
	}
	return &RoundStatus{
		Title:       title,
		Round:       *round,
		Submissions: n,
		Voting:      voting,
		JustClosed:  closed,
	}, nil
}

// Reset wipes every round, phrase, vote, purchase and account except the
// root admin, then opens round 1 with only the root admin enrolled.
func (c *RoundController) Reset(ctx context.Context, confirm bool) error {
	if !confirm {
		return ErrNotConfirmed
	}
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wipe := []interface{}{
			&models.Vote{},
			&models.Submission{},
			&models.Purchase{},
			&models.PendingDuel{},
			&models.PlayerRoundState{},
			&models.RoundResult{},
			&models.Round{},
		}
		for _, m := range wipe {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("identity <> ?", c.RootAdmin).Delete(&models.Account{}).Error; err != nil {
			return err
		}
		if err := setSetting(tx, models.SettingCurrentRound, "1"); err != nil {
			return err
		}

		round := &models.Round{Number: 1, Status: models.RoundStatusOpen, CreatedAt: c.now()}
		if err := tx.Create(round).Error; err != nil {
			return err
		}
		if _, err := getAccount(tx, c.RootAdmin); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		return enroll(tx, round.ID, c.RootAdmin)
	})
	if err != nil {
		return err
	}
	c.logger.Warn("game reset", "root_admin", c.RootAdmin)
	return nil
}

// Bootstrap prepares an empty or existing database: default settings, the
// root admin when there are no accounts, and an open round.
func (c *RoundController) Bootstrap(ctx context.Context, rootCredential string) error {
	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureDefaultSettings(tx); err != nil {
			return fmt.Errorf("default settings: %w", err)
		}

		var accounts int64
		if err := tx.Model(&models.Account{}).Count(&accounts).Error; err != nil {
			return err
		}
		if accounts == 0 {
			if _, err := c.Ledger.createAccount(tx, c.RootAdmin, rootCredential, models.RoleJudge, true); err != nil {
				return fmt.Errorf("seed root admin: %w", err)
			}
		}

		if _, err := currentOpenRound(tx); !errors.Is(err, ErrNoOpenRound) {
			return err
		}
		number, err := nextRoundNumber(tx)
		if err != nil {
			return err
		}
		round, err := openRound(tx, number, c.now())
		if err != nil {
			return err
		}
		c.logger.Info("round opened on boot", "round", round.Number)
		return nil
	})
}

// nextRoundNumber prefers the recorded current_round and falls back to one
// past the highest round when that number is already taken.
func nextRoundNumber(tx *gorm.DB) (int, error) {
	v, err := getSetting(tx, models.SettingCurrentRound)
	if err != nil {
		return 0, err
	}
	number, err := strconv.Atoi(v)
	if err != nil || number < 1 {
		number = 1
	}
	var maxNumber int
	if err := tx.Model(&models.Round{}).Select("COALESCE(MAX(number), 0)").Scan(&maxNumber).Error; err != nil {
		return 0, err
	}
	if number <= maxNumber {
		number = maxNumber + 1
	}
	return number, nil
}

// AddAccount creates an account and enrolls it in the open round.
func (c *RoundController) AddAccount(ctx context.Context, identity, credential, role string) (*models.Account, error) {
	var acc *models.Account
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		acc, err = c.Ledger.createAccount(tx, identity, credential, role, false)
		if err != nil {
			return err
		}
		round, err := currentOpenRound(tx)
		if errors.Is(err, ErrNoOpenRound) {
			return nil
		}
		if err != nil {
			return err
		}
		return enroll(tx, round.ID, acc.Identity)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Deactivate takes an account out of play. The root admin cannot be
// deactivated.
func (c *RoundController) Deactivate(ctx context.Context, identity string) error {
	if identity == c.RootAdmin {
		return fmt.Errorf("root admin stays active: %w", ErrInvalidInput)
	}
	if err := setActive(c.DB.WithContext(ctx), identity, false); err != nil {
		return err
	}
	c.logger.Info("account deactivated", "identity", identity)
	return nil
}

// Rehabilitate reactivates an account and enrolls it in the open round
// unless it already has a state there.
func (c *RoundController) Rehabilitate(ctx context.Context, identity string) error {
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := setActive(tx, identity, true); err != nil {
			return err
		}
		round, err := currentOpenRound(tx)
		if errors.Is(err, ErrNoOpenRound) {
			return nil
		}
		if err != nil {
			return err
		}
		return enroll(tx, round.ID, identity)
	})
	if err != nil {
		return err
	}
	c.logger.Info("account rehabilitated", "identity", identity)
	return nil
}

// AdjustPlayer applies coin, penalty and response deltas together.
// Penalty and response deltas target the open round.
func (c *RoundController) AdjustPlayer(ctx context.Context, identity string, adj PlayerAdjustment) error {
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAccount(tx, identity); err != nil {
			return err
		}
		if adj.Coins != 0 {
			if err := adjustCoins(tx, identity, adj.Coins); err != nil {
				return err
			}
		}
		if adj.Penalty == 0 && adj.Responses == 0 {
			return nil
		}
		round, err := lockCurrentRound(tx)
		if err != nil {
			return err
		}
		if adj.Penalty != 0 {
			if err := updatePlayerState(tx, round.ID, identity, "point_penalty", gorm.Expr("point_penalty + ?", adj.Penalty)); err != nil {
				return err
			}
		}
		if adj.Responses != 0 {
			if err := updatePlayerState(tx, round.ID, identity, "responses_left", gorm.Expr("responses_left + ?", adj.Responses)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.logger.Info("player adjusted", "identity", identity, "coins", adj.Coins, "penalty", adj.Penalty, "responses", adj.Responses)
	return nil
}
