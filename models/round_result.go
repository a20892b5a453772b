package models

import "time"

// Close triggers
const (
	CloseTriggerAuto  = "auto"
	CloseTriggerAdmin = "admin"
)

// Standing is one author's line in a scored round, in final rank order.
type Standing struct {
	Rank          int     `json:"rank"`
	Author        string  `json:"author"`
	Total         int     `json:"total"`
	TieBreakFavor bool    `json:"tie_break_favor"`
	Std           float64 `json:"std"`
	Text          string  `json:"text"`
	BestIndex     int     `json:"best_index"`
	Multiplier    int     `json:"multiplier"`
	Reward        int64   `json:"reward"` // already multiplied
}

// RoundResult is the persisted outcome of a closed round.
type RoundResult struct {
	RoundID     uint       `gorm:"primaryKey;autoIncrement:false" json:"round_id"`
	RoundNumber int        `gorm:"uniqueIndex;not null" json:"round_number"`
	Eliminated  string     `gorm:"type:varchar(64);not null" json:"eliminated"`
	Trigger     string     `gorm:"type:varchar(16);not null" json:"trigger"`
	Standings   []Standing `gorm:"serializer:json;type:text" json:"standings"`
	ClosedAt    time.Time  `gorm:"not null" json:"closed_at"`
	ArchivedAt  *time.Time `gorm:"index" json:"archived_at,omitempty"`
}
