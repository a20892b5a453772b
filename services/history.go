package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"phrase-game/models"

	"gorm.io/gorm"
)

// PlayerStats aggregates one author's finishes over closed rounds.
type PlayerStats struct {
	Identity    string  `json:"identity"`
	Rounds      int     `json:"rounds"`
	Wins        int     `json:"wins"`
	AverageRank float64 `json:"average_rank"`
	BestRank    int     `json:"best_rank"`
	Eliminated  bool    `json:"eliminated"`
}

// HistoryService reads stored round results.
type HistoryService struct {
	DB     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewHistoryService(db *gorm.DB, logger *slog.Logger) *HistoryService {
	return &HistoryService{DB: db, logger: logger, now: time.Now}
}

// Results returns the stored outcome of a closed round.
func (s *HistoryService) Results(ctx context.Context, roundNumber int) (*models.RoundResult, error) {
	var result models.RoundResult
	err := s.DB.WithContext(ctx).Where("round_number = ?", roundNumber).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("results for round %d: %w", roundNumber, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResults returns every stored result, oldest round first.
func (s *HistoryService) ListResults(ctx context.Context) ([]models.RoundResult, error) {
	var results []models.RoundResult
	if err := s.DB.WithContext(ctx).Order("round_number ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// PlayerStats folds every stored result into per-author statistics,
// ordered by wins then average rank.
func (s *HistoryService) PlayerStats(ctx context.Context) ([]PlayerStats, error) {
	results, err := s.ListResults(ctx)
	if err != nil {
		return nil, err
	}
	return foldStats(results), nil
}

func foldStats(results []models.RoundResult) []PlayerStats {
	byAuthor := make(map[string]*PlayerStats)
	rankSum := make(map[string]int)
	for _, r := range results {
		for _, st := range r.Standings {
			ps, ok := byAuthor[st.Author]
			if !ok {
				ps = &PlayerStats{Identity: st.Author, BestRank: st.Rank}
				byAuthor[st.Author] = ps
			}
			ps.Rounds++
			rankSum[st.Author] += st.Rank
			if st.Rank == 1 {
				ps.Wins++
			}
			if st.Rank < ps.BestRank {
				ps.BestRank = st.Rank
			}
		}
		if ps, ok := byAuthor[r.Eliminated]; ok {
			ps.Eliminated = true
		}
	}

	stats := make([]PlayerStats, 0, len(byAuthor))
	for author, ps := range byAuthor {
		ps.AverageRank = float64(rankSum[author]) / float64(ps.Rounds)
		stats = append(stats, *ps)
	}
	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.AverageRank != b.AverageRank {
			return a.AverageRank < b.AverageRank
		}
		return a.Identity < b.Identity
	})
	return stats
}

// PendingArchive returns results not yet uploaded, oldest first.
func (s *HistoryService) PendingArchive(ctx context.Context, limit int) ([]models.RoundResult, error) {
	var results []models.RoundResult
	err := s.DB.WithContext(ctx).
		Where("archived_at IS NULL").
		Order("round_number ASC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// MarkArchived stamps a result as uploaded.
func (s *HistoryService) MarkArchived(ctx context.Context, roundID uint) error {
	res := s.DB.WithContext(ctx).Model(&models.RoundResult{}).
		Where("round_id = ?", roundID).
		Update("archived_at", s.now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("result for round id %d: %w", roundID, ErrNotFound)
	}
	s.logger.Debug("result archived", "round_id", roundID)
	return nil
}
