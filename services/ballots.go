package services

import (
	"context"
	"fmt"
	"log/slog"

	"phrase-game/metrics"
	"phrase-game/models"

	"gorm.io/gorm"
)

// BallotService stores judge rankings.
type BallotService struct {
	DB      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewBallotService(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics) *BallotService {
	return &BallotService{DB: db, logger: logger, metrics: m}
}

// VotingStatus counts active judges and how many of them have a ballot.
type VotingStatus struct {
	JudgesNeeded int `json:"judges_needed"`
	JudgesVoted  int `json:"judges_voted"`
}

// Complete reports whether every active judge has voted. With no active
// judges there is nobody to wait for, so voting is complete.
func (v VotingStatus) Complete() bool {
	return v.JudgesVoted >= v.JudgesNeeded
}

// CastVote replaces the judge's ballot for the round with ranking, where
// ranking[i] is the submission placed at position i+1. The ranking must
// cover every submission of the round exactly once.
func (s *BallotService) CastVote(ctx context.Context, judge string, roundID uint, ranking []uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := getAccount(tx, judge)
		if err != nil {
			return err
		}
		if !acc.IsJudge() {
			return ErrNotJudge
		}
		if !acc.Active {
			return ErrInactive
		}
		if _, err := lockOpenRound(tx, roundID); err != nil {
			return err
		}

		subs, err := listSubmissions(tx, roundID)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			return ErrNoSubmissions
		}
		if err := validateRanking(subs, ranking); err != nil {
			return err
		}

		if err := tx.Where("round_id = ? AND judge = ?", roundID, judge).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		votes := make([]models.Vote, 0, len(ranking))
		for i, id := range ranking {
			votes = append(votes, models.Vote{RoundID: roundID, Judge: judge, SubmissionID: id, Position: i + 1})
		}
		return tx.Create(&votes).Error
	})
	if err != nil {
		return err
	}

	s.metrics.BallotCast()
	s.logger.Info("ballot cast", "judge", judge, "round_id", roundID, "entries", len(ranking))
	return nil
}

func validateRanking(subs []models.Submission, ranking []uint) error {
	if len(ranking) != len(subs) {
		return fmt.Errorf("%d of %d submissions ranked: %w", len(ranking), len(subs), ErrIncompleteRanking)
	}
	known := make(map[uint]bool, len(subs))
	for _, sub := range subs {
		known[sub.ID] = true
	}
	seen := make(map[uint]bool, len(ranking))
	for _, id := range ranking {
		if !known[id] {
			return fmt.Errorf("submission %d: %w", id, ErrUnknownSubmission)
		}
		if seen[id] {
			return fmt.Errorf("submission %d ranked twice: %w", id, ErrIncompleteRanking)
		}
		seen[id] = true
	}
	return nil
}

// Ballot returns the judge's ranking for the round in position order, or an
// empty slice when they have not voted.
func (s *BallotService) Ballot(ctx context.Context, judge string, roundID uint) ([]uint, error) {
	var ids []uint
	err := s.DB.WithContext(ctx).Model(&models.Vote{}).
		Where("round_id = ? AND judge = ?", roundID, judge).
		Order("position ASC").
		Pluck("submission_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *BallotService) VotingStatus(ctx context.Context, roundID uint) (VotingStatus, error) {
	return votingStatus(s.DB.WithContext(ctx), roundID)
}

func (s *BallotService) VotingComplete(ctx context.Context, roundID uint) (bool, error) {
	st, err := s.VotingStatus(ctx, roundID)
	if err != nil {
		return false, err
	}
	return st.Complete(), nil
}

func votingStatus(db *gorm.DB, roundID uint) (VotingStatus, error) {
	var needed int64
	err := db.Model(&models.Account{}).
		Where("role = ? AND active = ?", models.RoleJudge, true).
		Count(&needed).Error
	if err != nil {
		return VotingStatus{}, err
	}

	var voted int64
	err = db.Model(&models.Vote{}).
		Joins("JOIN accounts ON accounts.identity = votes.judge").
		Where("votes.round_id = ? AND accounts.role = ? AND accounts.active = ?", roundID, models.RoleJudge, true).
		Distinct("votes.judge").
		Count(&voted).Error
	if err != nil {
		return VotingStatus{}, err
	}
	return VotingStatus{JudgesNeeded: int(needed), JudgesVoted: int(voted)}, nil
}

func listVotes(db *gorm.DB, roundID uint) ([]models.Vote, error) {
	var votes []models.Vote
	if err := db.Where("round_id = ?", roundID).Order("id ASC").Find(&votes).Error; err != nil {
		return nil, err
	}
	return votes, nil
}
