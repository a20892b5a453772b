package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"phrase-game/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LedgerService owns accounts and their coin balances.
type LedgerService struct {
	DB       *gorm.DB
	HashCost int
	logger   *slog.Logger
}

func NewLedgerService(db *gorm.DB, logger *slog.Logger) *LedgerService {
	return &LedgerService{DB: db, HashCost: bcrypt.DefaultCost, logger: logger}
}

// CreateAccount registers an active account with zero coins.
func (s *LedgerService) CreateAccount(ctx context.Context, identity, credential, role string, isAdmin bool) (*models.Account, error) {
	var acc *models.Account
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		acc, err = s.createAccount(tx, identity, credential, role, isAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *LedgerService) createAccount(tx *gorm.DB, identity, credential, role string, isAdmin bool) (*models.Account, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || credential == "" {
		return nil, fmt.Errorf("identity and credential are required: %w", ErrInvalidInput)
	}
	if role != models.RolePlayer && role != models.RoleJudge {
		return nil, fmt.Errorf("role %q: %w", role, ErrInvalidInput)
	}

	var count int64
	if err := tx.Model(&models.Account{}).Where("identity = ?", identity).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("account %s: %w", identity, ErrAlreadyExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), s.HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	acc := &models.Account{
		Identity:       identity,
		CredentialHash: string(hash),
		Role:           role,
		IsAdmin:        isAdmin,
		Coins:          0,
		Active:         true,
	}
	if err := tx.Create(acc).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("account %s: %w", identity, ErrAlreadyExists)
		}
		return nil, err
	}
	s.logger.Info("account created", "identity", identity, "role", role, "is_admin", isAdmin)
	return acc, nil
}

// Authenticate checks the credential and returns the active account.
func (s *LedgerService) Authenticate(ctx context.Context, identity, credential string) (*models.Account, error) {
	acc, err := s.GetAccount(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.CredentialHash), []byte(credential)) != nil {
		return nil, ErrInvalidCredential
	}
	if !acc.Active {
		return nil, ErrInactive
	}
	return acc, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, identity string) (*models.Account, error) {
	return getAccount(s.DB.WithContext(ctx), identity)
}

// ListAccounts returns accounts ordered by identity.
func (s *LedgerService) ListAccounts(ctx context.Context, activeOnly bool) ([]models.Account, error) {
	q := s.DB.WithContext(ctx).Order("identity ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var accounts []models.Account
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// AdjustCoins applies delta with no overdraft check.
func (s *LedgerService) AdjustCoins(ctx context.Context, identity string, delta int64) error {
	return adjustCoins(s.DB.WithContext(ctx), identity, delta)
}

func (s *LedgerService) SetActive(ctx context.Context, identity string, active bool) error {
	return setActive(s.DB.WithContext(ctx), identity, active)
}

func getAccount(db *gorm.DB, identity string) (*models.Account, error) {
	var acc models.Account
	if err := db.Where("identity = ?", identity).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %s: %w", identity, ErrNotFound)
		}
		return nil, err
	}
	return &acc, nil
}

func adjustCoins(db *gorm.DB, identity string, delta int64) error {
	res := db.Model(&models.Account{}).
		Where("identity = ?", identity).
		Update("coins", gorm.Expr("coins + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account %s: %w", identity, ErrNotFound)
	}
	return nil
}

func setActive(db *gorm.DB, identity string, active bool) error {
	res := db.Model(&models.Account{}).
		Where("identity = ?", identity).
		Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account %s: %w", identity, ErrNotFound)
	}
	return nil
}
