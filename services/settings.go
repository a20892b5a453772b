package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"phrase-game/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsService reads and writes the key/value game settings.
type SettingsService struct {
	DB     *gorm.DB
	logger *slog.Logger
}

func NewSettingsService(db *gorm.DB, logger *slog.Logger) *SettingsService {
	return &SettingsService{DB: db, logger: logger}
}

// EnsureDefaults inserts every default key that is missing and leaves
// existing values alone.
func (s *SettingsService) EnsureDefaults(ctx context.Context) error {
	return ensureDefaultSettings(s.DB.WithContext(ctx))
}

func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	return getSetting(s.DB.WithContext(ctx), key)
}

func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	return setSetting(s.DB.WithContext(ctx), key, value)
}

// Rewards returns the current reward schedule.
func (s *SettingsService) Rewards(ctx context.Context) (RewardSchedule, error) {
	return loadRewards(s.DB.WithContext(ctx))
}

// UpdateRewards stores all five reward amounts at once.
func (s *SettingsService) UpdateRewards(ctx context.Context, r RewardSchedule) error {
	if r.First < 0 || r.Second < 0 || r.Third < 0 || r.FourthFifth < 0 || r.Participate < 0 {
		return fmt.Errorf("rewards must not be negative: %w", ErrInvalidInput)
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, v := range r.settings() {
			if err := setSetting(tx, key, strconv.FormatInt(v, 10)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("rewards updated", "first", r.First, "second", r.Second, "third", r.Third,
		"fourth_fifth", r.FourthFifth, "participate", r.Participate)
	return nil
}

func (s *SettingsService) Title(ctx context.Context) (string, error) {
	return s.Get(ctx, models.SettingTitle)
}

// SetTitle keeps the old title when title is blank.
func (s *SettingsService) SetTitle(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	return s.Set(ctx, models.SettingTitle, title)
}

// CurrentRound is the round number recorded by the last close.
func (s *SettingsService) CurrentRound(ctx context.Context) (int, error) {
	v, err := s.Get(ctx, models.SettingCurrentRound)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

func ensureDefaultSettings(db *gorm.DB) error {
	rows := make([]models.Setting, 0, len(models.DefaultSettings))
	for k, v := range models.DefaultSettings {
		rows = append(rows, models.Setting{Key: k, Value: v})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func getSetting(db *gorm.DB, key string) (string, error) {
	var row models.Setting
	err := db.Where("setting_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if v, ok := models.DefaultSettings[key]; ok {
			return v, nil
		}
		return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

func setSetting(db *gorm.DB, key, value string) error {
	row := models.Setting{Key: key, Value: value}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"setting_value"}),
	}).Create(&row).Error
}

func loadRewards(db *gorm.DB) (RewardSchedule, error) {
	var rows []models.Setting
	keys := []string{
		models.SettingRewardFirst,
		models.SettingRewardSecond,
		models.SettingRewardThird,
		models.SettingRewardFourthFifth,
		models.SettingRewardParticipate,
	}
	if err := db.Where("setting_key IN ?", keys).Find(&rows).Error; err != nil {
		return RewardSchedule{}, err
	}
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		values[k] = models.DefaultSettings[k]
	}
	for _, row := range rows {
		values[row.Key] = row.Value
	}

	var r RewardSchedule
	targets := map[string]*int64{
		models.SettingRewardFirst:       &r.First,
		models.SettingRewardSecond:      &r.Second,
		models.SettingRewardThird:       &r.Third,
		models.SettingRewardFourthFifth: &r.FourthFifth,
		models.SettingRewardParticipate: &r.Participate,
	}
	for k, dst := range targets {
		v, err := strconv.ParseInt(strings.TrimSpace(values[k]), 10, 64)
		if err != nil {
			return RewardSchedule{}, fmt.Errorf("setting %s=%q: %w", k, values[k], err)
		}
		*dst = v
	}
	return r, nil
}
