package store

import "time"

// Resource types spendable in duels.
const (
	ResourceEnergy      = "energy"
	ResourceBuzzCredits = "buzz_credits"
	ResourceClueCredits = "clue_credits"
)

func ValidResource(r string) bool {
	switch r {
	case ResourceEnergy, ResourceBuzzCredits, ResourceClueCredits:
		return true
	default:
		return false
	}
}

// Duel session statuses. AwaitDefense is the only non-terminal one.
const (
	DuelStatusAwaitDefense = "await_defense"
	DuelStatusResolved     = "resolved"
	DuelStatusExpired      = "expired"
)

// Ability kinds.
const (
	AbilityKindWeapon  = "weapon"
	AbilityKindDefense = "defense"
)

// Escrow entry statuses.
const (
	EscrowStatusOpen   = "open"
	EscrowStatusClosed = "closed"
)

type Account struct {
	UserID    string
	Resource  string
	Balance   int64
	UpdatedAt time.Time
}

type Profile struct {
	UserID     string
	Rank       int
	GhostUntil *time.Time
	CreatedAt  time.Time
}

// GhostActive reports whether the profile is immune to attacks at now.
func (p *Profile) GhostActive(now time.Time) bool {
	return p.GhostUntil != nil && now.Before(*p.GhostUntil)
}

type Ability struct {
	Key             string `json:"key"`
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	Power           int64  `json:"power"`
	CostResource    string `json:"cost_resource"`
	CostAmount      int64  `json:"cost_amount"`
	CooldownSeconds int    `json:"cooldown_seconds"`
	MinRank         int    `json:"min_rank"`
	Enabled         bool   `json:"enabled"`
}

type AbilityModifier struct {
	DefenseKey string
	WeaponKey  string
	PowerDelta int64
}

type CooldownRecord struct {
	UserID     string
	AbilityKey string
	UsableAt   time.Time
}

type DuelSession struct {
	ID            string
	AttackerID    string
	DefenderID    string
	WeaponKey     string
	StakeResource string
	StakeAmount   int64
	Status        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ResolvedAt    *time.Time
	WinnerID      *string
}

type EscrowEntry struct {
	ID        string
	SessionID string
	UserID    string
	Resource  string
	Amount    int64
	Status    string
	Outcome   string
	CreatedAt time.Time
	ClosedAt  *time.Time
}

type LedgerEntry struct {
	ID        string
	UserID    string
	Resource  string
	Type      string
	Amount    int64
	RefType   string
	RefID     string
	CreatedAt time.Time
}
