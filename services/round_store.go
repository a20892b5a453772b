package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"phrase-game/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxCoinMultiplier caps the Coin Duplicator effect; buying it twice does
// not stack.
const MaxCoinMultiplier = 2

// RoundService owns rounds and the per-round player state.
type RoundService struct {
	DB     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewRoundService(db *gorm.DB, logger *slog.Logger) *RoundService {
	return &RoundService{DB: db, logger: logger, now: time.Now}
}

// OpenRound creates round number as open and enrolls every active account.
func (s *RoundService) OpenRound(ctx context.Context, number int) (*models.Round, error) {
	var round *models.Round
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		round, err = openRound(tx, number, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("round opened", "round", round.Number, "round_id", round.ID)
	return round, nil
}

// CurrentOpenRound is always a query; nothing caches the current round.
func (s *RoundService) CurrentOpenRound(ctx context.Context) (*models.Round, error) {
	return currentOpenRound(s.DB.WithContext(ctx))
}

func (s *RoundService) GetRound(ctx context.Context, roundID uint) (*models.Round, error) {
	var round models.Round
	if err := s.DB.WithContext(ctx).First(&round, "id = ?", roundID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("round %d: %w", roundID, ErrNotFound)
		}
		return nil, err
	}
	return &round, nil
}

// CloseRound flips open to closed exactly once.
func (s *RoundService) CloseRound(ctx context.Context, roundID uint) error {
	return closeRound(s.DB.WithContext(ctx), roundID, s.now())
}

// Enroll inserts a fresh state for identity unless one already exists.
func (s *RoundService) Enroll(ctx context.Context, roundID uint, identity string) error {
	return enroll(s.DB.WithContext(ctx), roundID, identity)
}

func (s *RoundService) GetOrCreatePlayerState(ctx context.Context, roundID uint, identity string) (*models.PlayerRoundState, error) {
	db := s.DB.WithContext(ctx)
	if err := enroll(db, roundID, identity); err != nil {
		return nil, err
	}
	return getPlayerState(db, roundID, identity)
}

func (s *RoundService) GetPlayerState(ctx context.Context, roundID uint, identity string) (*models.PlayerRoundState, error) {
	return getPlayerState(s.DB.WithContext(ctx), roundID, identity)
}

// ListPlayerStates returns every state of a round keyed by identity.
func (s *RoundService) ListPlayerStates(ctx context.Context, roundID uint) (map[string]models.PlayerRoundState, error) {
	return listPlayerStates(s.DB.WithContext(ctx), roundID)
}

func (s *RoundService) AdjustResponsesLeft(ctx context.Context, roundID uint, identity string, delta int) error {
	return updatePlayerState(s.DB.WithContext(ctx), roundID, identity, "responses_left", gorm.Expr("responses_left + ?", delta))
}

func (s *RoundService) SetTieBreakFavor(ctx context.Context, roundID uint, identity string) error {
	return updatePlayerState(s.DB.WithContext(ctx), roundID, identity, "tie_break_favor", true)
}

// SetCoinMultiplier stores m clamped to MaxCoinMultiplier.
func (s *RoundService) SetCoinMultiplier(ctx context.Context, roundID uint, identity string, m int) error {
	return updatePlayerState(s.DB.WithContext(ctx), roundID, identity, "coin_multiplier", clampMultiplier(m))
}

func (s *RoundService) AdjustPenalty(ctx context.Context, roundID uint, identity string, delta int) error {
	return updatePlayerState(s.DB.WithContext(ctx), roundID, identity, "point_penalty", gorm.Expr("point_penalty + ?", delta))
}

func clampMultiplier(m int) int {
	if m < 1 {
		return 1
	}
	if m > MaxCoinMultiplier {
		return MaxCoinMultiplier
	}
	return m
}

func openRound(tx *gorm.DB, number int, now time.Time) (*models.Round, error) {
	if number < 1 {
		return nil, fmt.Errorf("round number %d: %w", number, ErrInvalidInput)
	}
	var open int64
	if err := tx.Model(&models.Round{}).Where("status = ?", models.RoundStatusOpen).Count(&open).Error; err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, fmt.Errorf("another round is open: %w", ErrAlreadyExists)
	}

	round := &models.Round{Number: number, Status: models.RoundStatusOpen, CreatedAt: now}
	if err := tx.Create(round).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("round %d: %w", number, ErrAlreadyExists)
		}
		return nil, err
	}

	var active []string
	if err := tx.Model(&models.Account{}).Where("active = ?", true).Order("identity ASC").Pluck("identity", &active).Error; err != nil {
		return nil, err
	}
	if len(active) > 0 {
		states := make([]models.PlayerRoundState, 0, len(active))
		for _, identity := range active {
			states = append(states, models.NewPlayerRoundState(round.ID, identity))
		}
		if err := tx.Create(&states).Error; err != nil {
			return nil, fmt.Errorf("enroll active accounts: %w", err)
		}
	}
	return round, nil
}

func currentOpenRound(db *gorm.DB) (*models.Round, error) {
	var round models.Round
	err := db.Where("status = ?", models.RoundStatusOpen).Order("number DESC").First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoOpenRound
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// lockOpenRound takes a shared lock on the round row so a concurrent close
// waits for the caller's transaction, then checks it is still open.
func lockOpenRound(tx *gorm.DB, roundID uint) (*models.Round, error) {
	var round models.Round
	err := tx.Clauses(clause.Locking{Strength: "SHARE"}).First(&round, "id = ?", roundID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("round %d: %w", roundID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !round.IsOpen() {
		return nil, fmt.Errorf("round %d: %w", round.Number, ErrRoundClosed)
	}
	return &round, nil
}

// lockCurrentRound resolves the open round inside tx and share-locks it.
func lockCurrentRound(tx *gorm.DB) (*models.Round, error) {
	round, err := currentOpenRound(tx)
	if err != nil {
		return nil, err
	}
	return lockOpenRound(tx, round.ID)
}

// closeRound is the compare-and-swap both close paths go through. Losing the
// swap returns ErrRoundClosed and the caller must abandon its transaction.
func closeRound(tx *gorm.DB, roundID uint, now time.Time) error {
	res := tx.Model(&models.Round{}).
		Where("id = ? AND status = ?", roundID, models.RoundStatusOpen).
		Updates(map[string]interface{}{
			"status":    models.RoundStatusClosed,
			"closed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("round %d: %w", roundID, ErrRoundClosed)
	}
	return nil
}

func enroll(db *gorm.DB, roundID uint, identity string) error {
	state := models.NewPlayerRoundState(roundID, identity)
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&state).Error
}

func getPlayerState(db *gorm.DB, roundID uint, identity string) (*models.PlayerRoundState, error) {
	var state models.PlayerRoundState
	err := db.Where("round_id = ? AND identity = ?", roundID, identity).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s in round %d: %w", identity, roundID, ErrNotEnrolled)
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func lockPlayerState(tx *gorm.DB, roundID uint, identity string) (*models.PlayerRoundState, error) {
	return getPlayerState(tx.Clauses(clause.Locking{Strength: "UPDATE"}), roundID, identity)
}

func listPlayerStates(db *gorm.DB, roundID uint) (map[string]models.PlayerRoundState, error) {
	var rows []models.PlayerRoundState
	if err := db.Where("round_id = ?", roundID).Find(&rows).Error; err != nil {
		return nil, err
	}
	states := make(map[string]models.PlayerRoundState, len(rows))
	for _, st := range rows {
		states[st.Identity] = st
	}
	return states, nil
}

func updatePlayerState(db *gorm.DB, roundID uint, identity, column string, value interface{}) error {
	res := db.Model(&models.PlayerRoundState{}).
		Where("round_id = ? AND identity = ?", roundID, identity).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s in round %d: %w", identity, roundID, ErrNotEnrolled)
	}
	return nil
}
