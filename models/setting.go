package models

// Setting keys
const (
	SettingTitle             = "title"
	SettingCurrentRound      = "current_round"
	SettingRewardFirst       = "reward_first"
	SettingRewardSecond      = "reward_second"
	SettingRewardThird       = "reward_third"
	SettingRewardFourthFifth = "reward_45"
	SettingRewardParticipate = "reward_participate"
)

// DefaultSettings are inserted on boot when missing.
var DefaultSettings = map[string]string{
	SettingTitle:             "TWOWTE – Phrase Reality",
	SettingCurrentRound:      "1",
	SettingRewardFirst:       "10",
	SettingRewardSecond:      "7",
	SettingRewardThird:       "5",
	SettingRewardFourthFifth: "3",
	SettingRewardParticipate: "1",
}

type Setting struct {
	Key   string `gorm:"column:setting_key;primaryKey;type:varchar(64)" json:"key"`
	Value string `gorm:"column:setting_value;type:text;not null" json:"value"`
}
