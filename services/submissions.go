package services

import (
	"context"
	"log/slog"
	"strings"

	"phrase-game/metrics"
	"phrase-game/models"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// SubmissionService accepts phrases for the current round.
type SubmissionService struct {
	DB      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewSubmissionService(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics) *SubmissionService {
	return &SubmissionService{DB: db, logger: logger, metrics: m}
}

// NormalizePhrase trims surrounding space and applies NFC so visually equal
// phrases are stored identically.
func NormalizePhrase(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Submit stores a phrase in the open round and spends one response. The
// insert and the decrement commit together.
func (s *SubmissionService) Submit(ctx context.Context, author, text string) (*models.Submission, error) {
	text = NormalizePhrase(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	var sub *models.Submission
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := getAccount(tx, author)
		if err != nil {
			return err
		}
		if !acc.IsPlayer() {
			return ErrNotPlayer
		}
		if !acc.Active {
			return ErrInactive
		}

		round, err := lockCurrentRound(tx)
		if err != nil {
			return err
		}
		state, err := lockPlayerState(tx, round.ID, author)
		if err != nil {
			return err
		}
		if state.ResponsesLeft <= 0 {
			return ErrNoResponsesLeft
		}

		res := tx.Model(&models.PlayerRoundState{}).
			Where("round_id = ? AND identity = ? AND responses_left > 0", round.ID, author).
			Update("responses_left", gorm.Expr("responses_left - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoResponsesLeft
		}

		sub = &models.Submission{RoundID: round.ID, Author: author, Text: text}
		return tx.Create(sub).Error
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SubmissionAccepted()
	s.logger.Info("phrase submitted", "author", author, "round_id", sub.RoundID, "submission_id", sub.ID)
	return sub, nil
}

// ListByRound returns submissions in submission order.
func (s *SubmissionService) ListByRound(ctx context.Context, roundID uint) ([]models.Submission, error) {
	return listSubmissions(s.DB.WithContext(ctx), roundID)
}

// DistinctAuthors returns the authors of a round ordered by identity.
func (s *SubmissionService) DistinctAuthors(ctx context.Context, roundID uint) ([]string, error) {
	var authors []string
	err := s.DB.WithContext(ctx).Model(&models.Submission{}).
		Where("round_id = ?", roundID).
		Distinct("author").
		Order("author ASC").
		Pluck("author", &authors).Error
	if err != nil {
		return nil, err
	}
	return authors, nil
}

// PendingPlayers lists active players with no submission in the round. It is
// empty until at least two authors have submitted.
func (s *SubmissionService) PendingPlayers(ctx context.Context, roundID uint) ([]string, error) {
	authors, err := s.DistinctAuthors(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if len(authors) < 2 {
		return []string{}, nil
	}

	db := s.DB.WithContext(ctx)
	var pending []string
	err = db.Model(&models.Account{}).
		Where("active = ? AND role = ?", true, models.RolePlayer).
		Where("identity NOT IN (?)", db.Model(&models.Submission{}).Select("author").Where("round_id = ?", roundID)).
		Order("identity ASC").
		Pluck("identity", &pending).Error
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []string{}
	}
	return pending, nil
}

func listSubmissions(db *gorm.DB, roundID uint) ([]models.Submission, error) {
	var subs []models.Submission
	if err := db.Where("round_id = ?", roundID).Order("id ASC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func countSubmissions(db *gorm.DB, roundID uint) (int64, error) {
	var n int64
	err := db.Model(&models.Submission{}).Where("round_id = ?", roundID).Count(&n).Error
	return n, err
}
