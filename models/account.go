package models

// Account roles
const (
	RolePlayer = "player"
	RoleJudge  = "judge"
)

// Account is a registered participant. Coins may go negative through
// penalties and duel losses; nothing clamps the balance.
type Account struct {
	Identity       string `gorm:"primaryKey;type:varchar(64)" json:"identity"`
	CredentialHash string `gorm:"not null" json:"-"`
	Role           string `gorm:"type:varchar(16);not null;index" json:"role"` // player | judge
	IsAdmin        bool   `gorm:"not null" json:"is_admin"`
	Coins          int64  `gorm:"not null" json:"coins"`
	Active         bool   `gorm:"not null;index" json:"active"`

	Timestamps
}

func (a *Account) IsJudge() bool  { return a.Role == RoleJudge }
func (a *Account) IsPlayer() bool { return a.Role == RolePlayer }
