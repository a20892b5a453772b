package models

import "time"

// Round status constants
const (
	RoundStatusOpen   = "open"
	RoundStatusClosed = "closed"
)

// Round is one elimination cycle. Only one round is open at a time and a
// closed round never reopens.
type Round struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Number    int        `gorm:"uniqueIndex;not null" json:"number"`
	Status    string     `gorm:"type:varchar(16);not null;index;index:idx_rounds_single_open,unique,where:status = 'open'" json:"status"` // open | closed
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

func (r *Round) IsOpen() bool { return r.Status == RoundStatusOpen }

// PlayerRoundState is the round-scoped state of one account. Shop items and
// admin adjustments mutate it; a new round always starts from a fresh row.
type PlayerRoundState struct {
	RoundID        uint   `gorm:"primaryKey;autoIncrement:false" json:"round_id"`
	Identity       string `gorm:"primaryKey;type:varchar(64)" json:"identity"`
	ResponsesLeft  int    `gorm:"not null" json:"responses_left"`
	TieBreakFavor  bool   `gorm:"not null" json:"tie_break_favor"`
	CoinMultiplier int    `gorm:"not null" json:"coin_multiplier"`
	PointPenalty   int    `gorm:"not null" json:"point_penalty"`
}

// NewPlayerRoundState returns the state every account starts a round with.
func NewPlayerRoundState(roundID uint, identity string) PlayerRoundState {
	return PlayerRoundState{
		RoundID:        roundID,
		Identity:       identity,
		ResponsesLeft:  1,
		CoinMultiplier: 1,
	}
}
