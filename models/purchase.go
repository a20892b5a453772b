package models

import "time"

// Purchase records the single shop item a player bought in a round.
type Purchase struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoundID   uint      `gorm:"not null;uniqueIndex:idx_purchase_round_buyer" json:"round_id"`
	Buyer     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_purchase_round_buyer" json:"buyer"`
	Item      string    `gorm:"type:varchar(32);not null;index" json:"item"`
	Meta      string    `gorm:"type:text" json:"meta,omitempty"` // duel: "target1|target2|loser"
	CreatedAt time.Time `json:"created_at"`
}

// PendingDuel is the first half of a duel purchase: the buyer holds the
// token until they pick two targets or it expires.
type PendingDuel struct {
	Token     string    `gorm:"primaryKey;type:varchar(36)" json:"token"`
	RoundID   uint      `gorm:"not null;index" json:"round_id"`
	Buyer     string    `gorm:"type:varchar(64);not null;index" json:"buyer"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
