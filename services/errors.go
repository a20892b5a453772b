package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Rejections surfaced to callers. Every one of them leaves state unchanged.
var (
	ErrAlreadyExists             = errors.New("already exists")
	ErrNotFound                  = errors.New("not found")
	ErrInvalidInput              = errors.New("invalid input")
	ErrInvalidCredential         = errors.New("invalid credential")
	ErrInactive                  = errors.New("account inactive")
	ErrNoOpenRound               = errors.New("no open round")
	ErrRoundClosed               = errors.New("round closed")
	ErrNotEnrolled               = errors.New("not enrolled in round")
	ErrNotPlayer                 = errors.New("only players can submit")
	ErrNotJudge                  = errors.New("only judges can vote")
	ErrEmptyText                 = errors.New("empty phrase")
	ErrNoResponsesLeft           = errors.New("no responses left")
	ErrNoSubmissions             = errors.New("no submissions in round")
	ErrIncompleteRanking         = errors.New("incomplete ranking")
	ErrUnknownSubmission         = errors.New("unknown submission")
	ErrUnknownItem               = errors.New("unknown shop item")
	ErrAlreadyPurchasedThisRound = errors.New("already purchased this round")
	ErrInsufficientCoins         = errors.New("insufficient coins")
	ErrDuelRequiresTargets       = errors.New("duel requires two targets")
	ErrInvalidDuelTargets        = errors.New("invalid duel targets")
	ErrDuelNotFound              = errors.New("duel not found")
	ErrDuelExpired               = errors.New("duel expired")
	ErrNotConfirmed              = errors.New("reset not confirmed")
)

// isDuplicateKey reports unique-constraint violations from either driver.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
