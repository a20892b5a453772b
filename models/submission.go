package models

import "time"

// Submission is a phrase entered in a round. Submissions are never edited;
// their ID order is the submission order used by scoring.
type Submission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoundID   uint      `gorm:"not null;index" json:"round_id"`
	Author    string    `gorm:"type:varchar(64);not null;index" json:"author"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Vote places one submission at a position in a judge's ranking (1 = best).
// A judge's ballot for a round is the full set of their vote rows.
type Vote struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	RoundID      uint   `gorm:"not null;uniqueIndex:idx_vote_judge_submission;uniqueIndex:idx_vote_judge_position" json:"round_id"`
	Judge        string `gorm:"type:varchar(64);not null;uniqueIndex:idx_vote_judge_submission;uniqueIndex:idx_vote_judge_position" json:"judge"`
	SubmissionID uint   `gorm:"not null;index;uniqueIndex:idx_vote_judge_submission" json:"submission_id"`
	Position     int    `gorm:"not null;uniqueIndex:idx_vote_judge_position" json:"position"`
}
