package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"phrase-game/models"
)

// AggregationPolicy decides how several submissions by one author are
// turned into ranked entries.
type AggregationPolicy string

const (
	// SumPerAuthor adds up the points of every submission of an author into
	// a single entry.
	SumPerAuthor AggregationPolicy = "sum"
	// PerSubmission ranks every submission on its own; an author's standing
	// is their best entry.
	PerSubmission AggregationPolicy = "best"
)

// ParseAggregationPolicy maps a config value to a policy. Empty means the
// default.
func ParseAggregationPolicy(v string) (AggregationPolicy, error) {
	switch AggregationPolicy(strings.ToLower(strings.TrimSpace(v))) {
	case "", SumPerAuthor:
		return SumPerAuthor, nil
	case PerSubmission:
		return PerSubmission, nil
	}
	return "", fmt.Errorf("aggregation policy %q: %w", v, ErrInvalidInput)
}

// RewardSchedule holds the coins paid per final rank before the multiplier.
type RewardSchedule struct {
	First       int64 `json:"first"`
	Second      int64 `json:"second"`
	Third       int64 `json:"third"`
	FourthFifth int64 `json:"fourth_fifth"`
	Participate int64 `json:"participate"`
}

// DefaultRewards mirrors the default settings.
var DefaultRewards = RewardSchedule{First: 10, Second: 7, Third: 5, FourthFifth: 3, Participate: 1}

// For returns the base reward of a 1-based rank.
func (r RewardSchedule) For(rank int) int64 {
	switch {
	case rank == 1:
		return r.First
	case rank == 2:
		return r.Second
	case rank == 3:
		return r.Third
	case rank == 4 || rank == 5:
		return r.FourthFifth
	case rank >= 6:
		return r.Participate
	}
	return 0
}

func (r RewardSchedule) settings() map[string]int64 {
	return map[string]int64{
		models.SettingRewardFirst:       r.First,
		models.SettingRewardSecond:      r.Second,
		models.SettingRewardThird:       r.Third,
		models.SettingRewardFourthFifth: r.FourthFifth,
		models.SettingRewardParticipate: r.Participate,
	}
}

// ScoreInput is everything scoring needs. Submissions must be in
// submission order.
type ScoreInput struct {
	Submissions []models.Submission
	Votes       []models.Vote
	States      map[string]models.PlayerRoundState
	Policy      AggregationPolicy
	Rewards     RewardSchedule
}

// Entry is one ranked line before it is folded into per-author standings.
type Entry struct {
	SubmissionID  uint    `json:"submission_id"`
	Author        string  `json:"author"`
	Text          string  `json:"text"`
	Total         int     `json:"total"`
	TieBreakFavor bool    `json:"tie_break_favor"`
	Std           float64 `json:"std"`
}

// Outcome is the result of scoring one round.
type Outcome struct {
	Entries    []Entry
	Standings  []models.Standing
	Eliminated string
}

// Score ranks a round. It has no side effects. With no submissions it
// returns an empty outcome and no elimination.
func Score(in ScoreInput) Outcome {
	if len(in.Submissions) == 0 {
		return Outcome{}
	}
	n := len(in.Submissions)

	points := make(map[uint]int, n)
	positions := make(map[uint][]int, n)
	for _, v := range in.Votes {
		points[v.SubmissionID] += n + 1 - v.Position
		positions[v.SubmissionID] = append(positions[v.SubmissionID], v.Position)
	}

	var entries []Entry
	if in.Policy == PerSubmission {
		entries = perSubmissionEntries(in, points, positions)
	} else {
		entries = perAuthorEntries(in, points, positions)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.TieBreakFavor != b.TieBreakFavor {
			return a.TieBreakFavor
		}
		return a.Std > b.Std
	})

	bestIndex := make(map[string]int)
	var authors []string
	for i, e := range entries {
		if _, seen := bestIndex[e.Author]; !seen {
			bestIndex[e.Author] = i
			authors = append(authors, e.Author)
		}
	}

	standings := make([]models.Standing, 0, len(authors))
	for i, author := range authors {
		e := entries[bestIndex[author]]
		mult := 1
		if st, ok := in.States[author]; ok && st.CoinMultiplier > 0 {
			mult = st.CoinMultiplier
		}
		standings = append(standings, models.Standing{
			Rank:          i + 1,
			Author:        author,
			Total:         e.Total,
			TieBreakFavor: e.TieBreakFavor,
			Std:           e.Std,
			Text:          e.Text,
			BestIndex:     bestIndex[author],
			Multiplier:    mult,
			Reward:        in.Rewards.For(i+1) * int64(mult),
		})
	}

	// authors is ordered by best index, so the last one appears latest.
	return Outcome{
		Entries:    entries,
		Standings:  standings,
		Eliminated: authors[len(authors)-1],
	}
}

func perSubmissionEntries(in ScoreInput, points map[uint]int, positions map[uint][]int) []Entry {
	entries := make([]Entry, 0, len(in.Submissions))
	for _, s := range in.Submissions {
		st := in.States[s.Author]
		entries = append(entries, Entry{
			SubmissionID:  s.ID,
			Author:        s.Author,
			Text:          s.Text,
			Total:         points[s.ID] + st.PointPenalty,
			TieBreakFavor: st.TieBreakFavor,
			Std:           populationStd(positions[s.ID]),
		})
	}
	return entries
}

// perAuthorEntries folds submissions into one entry per author, placed at
// the author's first submission. The representative text is the author's
// highest scoring submission, earliest on ties.
func perAuthorEntries(in ScoreInput, points map[uint]int, positions map[uint][]int) []Entry {
	idx := make(map[string]int)
	best := make(map[string]int)
	var entries []Entry
	var pos [][]int
	for _, s := range in.Submissions {
		i, ok := idx[s.Author]
		if !ok {
			st := in.States[s.Author]
			i = len(entries)
			idx[s.Author] = i
			best[s.Author] = points[s.ID]
			entries = append(entries, Entry{
				SubmissionID:  s.ID,
				Author:        s.Author,
				Text:          s.Text,
				Total:         st.PointPenalty,
				TieBreakFavor: st.TieBreakFavor,
			})
			pos = append(pos, nil)
		} else if points[s.ID] > best[s.Author] {
			best[s.Author] = points[s.ID]
			entries[i].SubmissionID = s.ID
			entries[i].Text = s.Text
		}
		entries[i].Total += points[s.ID]
		pos[i] = append(pos[i], positions[s.ID]...)
	}
	for i := range entries {
		entries[i].Std = populationStd(pos[i])
	}
	return entries
}

func populationStd(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := float64(x) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}
