package duel

import (
	"context"
	"fmt"
	"time"

	"huntduel/internal/store"
)

// Policy decides who gets the stake when the defense window lapses in
// silence.
type Policy string

const (
	// PolicyDefaultWin treats the defender's silence as a loss.
	PolicyDefaultWin Policy = "default_win"
	// PolicyVoid refunds the attacker with no winner recorded.
	PolicyVoid Policy = "void"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyDefaultWin, PolicyVoid:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown expiry policy %q", s)
	}
}

type Config struct {
	DefenseWindow    time.Duration
	StakePercentages []int
	ExpiryPolicy     Policy
}

// Store is the persistence surface the session manager needs. *store.Store
// implements it; tests supply an in-memory double.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*store.Profile, error)
	GetBalance(ctx context.Context, userID, resource string) (int64, error)

	CreateDuelSession(ctx context.Context, sess store.DuelSession) error
	GetDuelSession(ctx context.Context, id string) (*store.DuelSession, error)
	GetOpenDuelByDefender(ctx context.Context, defenderID string) (*store.DuelSession, error)
	ListActiveDuelsByUser(ctx context.Context, userID string) ([]store.DuelSession, error)
	ListExpiredOpenDuels(ctx context.Context, now time.Time, limit int) ([]store.DuelSession, error)
	MarkDuelTerminal(ctx context.Context, id, status string, winnerID *string, resolvedAt time.Time) (bool, error)

	GetCooldown(ctx context.Context, userID, abilityKey string) (*time.Time, error)
	UpsertCooldown(ctx context.Context, userID, abilityKey string, usableAt time.Time) error
	ListCooldowns(ctx context.Context, userID string) ([]store.CooldownRecord, error)
}

// Notification event kinds.
const (
	EventDuelCreated  = "duel_created"
	EventDuelResolved = "duel_resolved"
	EventDuelExpired  = "duel_expired"
)

type Event struct {
	Kind          string `json:"kind"`
	SessionID     string `json:"session_id"`
	AttackerID    string `json:"attacker_id"`
	DefenderID    string `json:"defender_id"`
	WinnerID      string `json:"winner_id,omitempty"`
	StakeResource string `json:"stake_resource"`
	StakeAmount   int64  `json:"stake_amount"`
}

// Notifier delivers outcome events fire-and-forget; failures never roll back
// a duel.
type Notifier interface {
	Notify(userID string, ev Event)
}

type CreateDuelResult struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Stake     int64     `json:"stake"`
	Resolved  bool      `json:"resolved"`
	WinnerID  string    `json:"winner_id,omitempty"`
}

type DefenseResult struct {
	Status   string `json:"status"`
	WinnerID string `json:"winner_id"`
}

type CooldownView struct {
	AbilityKey string    `json:"ability_key"`
	UsableAt   time.Time `json:"usable_at"`
}
