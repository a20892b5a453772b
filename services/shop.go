package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"phrase-game/metrics"
	"phrase-game/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shop item codes
const (
	ItemDoubleResponse    = "double_response"
	ItemTripleResponse    = "triple_response"
	ItemFavorableTiebreak = "favorable_tiebreak"
	ItemCoinDuplicator    = "coin_duplicator"
	ItemTigerRoulette     = "tiger_roulette"
)

// DuelPenalty is what the duel loser pays, whatever the item price.
const DuelPenalty int64 = 3

// DefaultDuelTTL is how long a pending duel token stays valid.
const DefaultDuelTTL = 10 * time.Minute

type ShopItem struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

var catalog = []ShopItem{
	{Code: ItemDoubleResponse, Name: "Double Response", Price: 10, Description: "One extra phrase this round."},
	{Code: ItemTripleResponse, Name: "Triple Response", Price: 25, Description: "Two extra phrases this round."},
	{Code: ItemFavorableTiebreak, Name: "Favorable Tiebreak", Price: 8, Description: "Win ties on points this round."},
	{Code: ItemCoinDuplicator, Name: "Coin Duplicator", Price: 12, Description: "Double this round's reward."},
	{Code: ItemTigerRoulette, Name: "Tiger Roulette", Price: 9, Description: "Pick two players; one of the three of you loses 3 coins."},
}

// Catalog returns a copy of the items for sale.
func Catalog() []ShopItem {
	out := make([]ShopItem, len(catalog))
	copy(out, catalog)
	return out
}

func findItem(code string) (ShopItem, bool) {
	for _, it := range catalog {
		if it.Code == code {
			return it, true
		}
	}
	return ShopItem{}, false
}

// DuelOutcome describes a resolved Tiger Roulette.
type DuelOutcome struct {
	RoundID uint      `json:"round_id"`
	Buyer   string    `json:"buyer"`
	Targets [2]string `json:"targets"`
	Loser   string    `json:"loser"`
	Penalty int64     `json:"penalty"`
	Price   int64     `json:"price"`
	At      time.Time `json:"at"`
}

// ShopService sells round-scoped items and runs duels.
type ShopService struct {
	DB      *gorm.DB
	DuelTTL time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	pick    func(n int) int
}

func NewShopService(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics) *ShopService {
	return &ShopService{
		DB:      db,
		DuelTTL: DefaultDuelTTL,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		pick:    rand.IntN,
	}
}

func (s *ShopService) Catalog() []ShopItem { return Catalog() }

// Purchase buys a non-duel item for the open round. The effect, the debit
// and the purchase record commit together.
func (s *ShopService) Purchase(ctx context.Context, buyer, code string) (*models.Purchase, error) {
	item, ok := findItem(code)
	if !ok {
		return nil, fmt.Errorf("item %q: %w", code, ErrUnknownItem)
	}
	if item.Code == ItemTigerRoulette {
		return nil, ErrDuelRequiresTargets
	}

	var p *models.Purchase
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		round, err := s.checkout(tx, buyer, item)
		if err != nil {
			return err
		}
		if err := applyEffect(tx, round.ID, buyer, item.Code); err != nil {
			return err
		}
		if err := adjustCoins(tx, buyer, -item.Price); err != nil {
			return err
		}
		p, err = recordPurchase(tx, round.ID, buyer, item.Code, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Purchased(item.Code)
	s.logger.Info("item purchased", "buyer", buyer, "item", item.Code, "price", item.Price, "round_id", p.RoundID)
	return p, nil
}

// InitiateDuel checks the buyer could pay for Tiger Roulette and hands out a
// token to resolve it with. Nothing is charged yet; an earlier pending token
// of the same buyer is replaced.
func (s *ShopService) InitiateDuel(ctx context.Context, buyer string) (*models.PendingDuel, error) {
	item, _ := findItem(ItemTigerRoulette)
	var pending *models.PendingDuel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		round, err := s.checkout(tx, buyer, item)
		if err != nil {
			return err
		}
		if err := tx.Where("round_id = ? AND buyer = ?", round.ID, buyer).Delete(&models.PendingDuel{}).Error; err != nil {
			return err
		}
		now := s.now()
		pending = &models.PendingDuel{
			Token:     uuid.NewString(),
			RoundID:   round.ID,
			Buyer:     buyer,
			ExpiresAt: now.Add(s.DuelTTL),
			CreatedAt: now,
		}
		return tx.Create(pending).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("duel initiated", "buyer", buyer, "round_id", pending.RoundID, "expires_at", pending.ExpiresAt)
	return pending, nil
}

// ResolveDuel completes a pending duel against two targets. The loser is
// drawn uniformly from the buyer and both targets.
func (s *ShopService) ResolveDuel(ctx context.Context, buyer, token, target1, target2 string) (*DuelOutcome, error) {
	item, _ := findItem(ItemTigerRoulette)
	var out *DuelOutcome
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending models.PendingDuel
		err := tx.First(&pending, "token = ?", token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDuelNotFound
		}
		if err != nil {
			return err
		}
		if pending.Buyer != buyer {
			return ErrDuelNotFound
		}
		now := s.now()
		if !now.Before(pending.ExpiresAt) {
			return ErrDuelExpired
		}

		round, err := s.checkout(tx, buyer, item)
		if err != nil {
			return err
		}
		if round.ID != pending.RoundID {
			return fmt.Errorf("duel belongs to round %d: %w", pending.RoundID, ErrRoundClosed)
		}
		if err := validateDuelTargets(tx, buyer, target1, target2); err != nil {
			return err
		}

		contenders := []string{buyer, target1, target2}
		loser := contenders[s.pick(len(contenders))]
		if err := adjustCoins(tx, loser, -DuelPenalty); err != nil {
			return err
		}
		if err := adjustCoins(tx, buyer, -item.Price); err != nil {
			return err
		}
		meta := strings.Join([]string{target1, target2, loser}, "|")
		if _, err := recordPurchase(tx, round.ID, buyer, item.Code, meta); err != nil {
			return err
		}
		if err := tx.Delete(&pending).Error; err != nil {
			return err
		}
		out = &DuelOutcome{
			RoundID: round.ID,
			Buyer:   buyer,
			Targets: [2]string{target1, target2},
			Loser:   loser,
			Penalty: DuelPenalty,
			Price:   item.Price,
			At:      now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Purchased(item.Code)
	s.metrics.DuelResolved()
	s.logger.Info("duel resolved", "buyer", buyer, "targets", out.Targets, "loser", out.Loser, "round_id", out.RoundID)
	return out, nil
}

// DuelsInRound lists the resolved duels of a round in purchase order.
func (s *ShopService) DuelsInRound(ctx context.Context, roundID uint) ([]DuelOutcome, error) {
	var rows []models.Purchase
	err := s.DB.WithContext(ctx).
		Where("round_id = ? AND item = ?", roundID, ItemTigerRoulette).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	item, _ := findItem(ItemTigerRoulette)
	duels := make([]DuelOutcome, 0, len(rows))
	for _, p := range rows {
		parts := strings.Split(p.Meta, "|")
		if len(parts) != 3 {
			s.logger.Warn("malformed duel record", "purchase_id", p.ID, "meta", p.Meta)
			continue
		}
		duels = append(duels, DuelOutcome{
			RoundID: p.RoundID,
			Buyer:   p.Buyer,
			Targets: [2]string{parts[0], parts[1]},
			Loser:   parts[2],
			Penalty: DuelPenalty,
			Price:   item.Price,
			At:      p.CreatedAt,
		})
	}
	return duels, nil
}

// PurchaseInRound returns the buyer's purchase for the round, or nil.
func (s *ShopService) PurchaseInRound(ctx context.Context, roundID uint, buyer string) (*models.Purchase, error) {
	var p models.Purchase
	err := s.DB.WithContext(ctx).Where("round_id = ? AND buyer = ?", roundID, buyer).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SweepExpiredDuels drops pending duels past their expiry and returns how
// many were removed.
func (s *ShopService) SweepExpiredDuels(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&models.PendingDuel{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.logger.Info("expired duels swept", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// checkout runs the checks shared by every purchase path: an active player
// enrolled in the open round, no purchase yet this round, and enough coins.
// It locks the buyer's state row so one buyer's purchases serialize.
func (s *ShopService) checkout(tx *gorm.DB, buyer string, item ShopItem) (*models.Round, error) {
	acc, err := getAccount(tx, buyer)
	if err != nil {
		return nil, err
	}
	if !acc.IsPlayer() {
		return nil, ErrNotPlayer
	}
	if !acc.Active {
		return nil, ErrInactive
	}
	round, err := lockCurrentRound(tx)
	if err != nil {
		return nil, err
	}
	if _, err := lockPlayerState(tx, round.ID, buyer); err != nil {
		return nil, err
	}

	var bought int64
	if err := tx.Model(&models.Purchase{}).Where("round_id = ? AND buyer = ?", round.ID, buyer).Count(&bought).Error; err != nil {
		return nil, err
	}
	if bought > 0 {
		return nil, ErrAlreadyPurchasedThisRound
	}

	// Re-read the balance after the state lock.
	acc, err = getAccount(tx, buyer)
	if err != nil {
		return nil, err
	}
	if acc.Coins < item.Price {
		return nil, fmt.Errorf("%d coins, %s costs %d: %w", acc.Coins, item.Code, item.Price, ErrInsufficientCoins)
	}
	return round, nil
}

func applyEffect(tx *gorm.DB, roundID uint, buyer, code string) error {
	switch code {
	case ItemDoubleResponse:
		return updatePlayerState(tx, roundID, buyer, "responses_left", gorm.Expr("responses_left + ?", 1))
	case ItemTripleResponse:
		return updatePlayerState(tx, roundID, buyer, "responses_left", gorm.Expr("responses_left + ?", 2))
	case ItemFavorableTiebreak:
		return updatePlayerState(tx, roundID, buyer, "tie_break_favor", true)
	case ItemCoinDuplicator:
		return updatePlayerState(tx, roundID, buyer, "coin_multiplier", MaxCoinMultiplier)
	}
	return fmt.Errorf("item %q has no direct effect: %w", code, ErrUnknownItem)
}

func validateDuelTargets(tx *gorm.DB, buyer, t1, t2 string) error {
	if t1 == "" || t2 == "" || t1 == t2 || t1 == buyer || t2 == buyer {
		return ErrInvalidDuelTargets
	}
	var n int64
	err := tx.Model(&models.Account{}).
		Where("identity IN ? AND active = ? AND role = ?", []string{t1, t2}, true, models.RolePlayer).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n != 2 {
		return ErrInvalidDuelTargets
	}
	return nil
}

func recordPurchase(tx *gorm.DB, roundID uint, buyer, item, meta string) (*models.Purchase, error) {
	p := &models.Purchase{RoundID: roundID, Buyer: buyer, Item: item, Meta: meta}
	if err := tx.Create(p).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrAlreadyPurchasedThisRound
		}
		return nil, err
	}
	return p, nil
}
