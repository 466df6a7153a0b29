package duel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"huntduel/internal/store"
)

// memStore is an in-memory double for the persistence layer. It implements
// the store surfaces the duel service, ledger and catalog consume, with the
// same error semantics as the Postgres store.
type memStore struct {
	mu sync.Mutex

	profiles  map[string]store.Profile
	balances  map[string]int64
	abilities map[string]store.Ability
	modifiers map[string]int64
	cooldowns map[string]time.Time
	sessions  map[string]*store.DuelSession
	escrows   map[string]*store.EscrowEntry
	entries   []store.LedgerEntry

	nextID int
}

func newMemStore() *memStore {
	return &memStore{
		profiles:  map[string]store.Profile{},
		balances:  map[string]int64{},
		abilities: map[string]store.Ability{},
		modifiers: map[string]int64{},
		cooldowns: map[string]time.Time{},
		sessions:  map[string]*store.DuelSession{},
		escrows:   map[string]*store.EscrowEntry{},
	}
}

func balanceKey(userID, resource string) string { return userID + "|" + resource }
func cooldownKey(userID, ability string) string { return userID + "|" + ability }
func modifierKey(defense, weapon string) string { return defense + "|" + weapon }

func (m *memStore) genID() string {
	m.nextID++
	return fmt.Sprintf("id_%04d", m.nextID)
}

func (m *memStore) setBalance(userID, resource string, bal int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey(userID, resource)] = bal
}

func (m *memStore) balance(userID, resource string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[balanceKey(userID, resource)]
}

func (m *memStore) setProfile(userID string, rank int, ghostUntil *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = store.Profile{UserID: userID, Rank: rank, GhostUntil: ghostUntil}
}

func (m *memStore) addAbility(a store.Ability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abilities[a.Key] = a
}

func (m *memStore) addModifier(defenseKey, weaponKey string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modifiers[modifierKey(defenseKey, weaponKey)] = delta
}

func (m *memStore) GetProfile(_ context.Context, userID string) (*store.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) GetBalance(_ context.Context, userID, resource string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[balanceKey(userID, resource)]
	if !ok {
		return 0, store.ErrNotFound
	}
	return bal, nil
}

func (m *memStore) GetAbility(_ context.Context, key string) (*store.Ability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.abilities[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) GetAbilityModifier(_ context.Context, defenseKey, weaponKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modifiers[modifierKey(defenseKey, weaponKey)], nil
}

func (m *memStore) GetCooldown(_ context.Context, userID, abilityKey string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.cooldowns[cooldownKey(userID, abilityKey)]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memStore) UpsertCooldown(_ context.Context, userID, abilityKey string, usableAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns[cooldownKey(userID, abilityKey)] = usableAt
	return nil
}

func (m *memStore) ListCooldowns(_ context.Context, userID string) ([]store.CooldownRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.CooldownRecord{}
	prefix := userID + "|"
	for key, t := range m.cooldowns {
		if strings.HasPrefix(key, prefix) {
			out = append(out, store.CooldownRecord{UserID: userID, AbilityKey: key[len(prefix):], UsableAt: t})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AbilityKey < out[j].AbilityKey })
	return out, nil
}

func (m *memStore) CreateDuelSession(_ context.Context, sess store.DuelSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.DefenderID == sess.DefenderID && existing.Status == store.DuelStatusAwaitDefense {
			return store.ErrDefenderBusy
		}
	}
	cp := sess
	m.sessions[sess.ID] = &cp
	return nil
}

func (m *memStore) GetDuelSession(_ context.Context, id string) (*store.DuelSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (m *memStore) GetOpenDuelByDefender(_ context.Context, defenderID string) (*store.DuelSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		if sess.DefenderID == defenderID && sess.Status == store.DuelStatusAwaitDefense {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListActiveDuelsByUser(_ context.Context, userID string) ([]store.DuelSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.DuelSession{}
	for _, sess := range m.sessions {
		if sess.Status != store.DuelStatusAwaitDefense {
			continue
		}
		if sess.AttackerID == userID || sess.DefenderID == userID {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListExpiredOpenDuels(_ context.Context, now time.Time, limit int) ([]store.DuelSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.DuelSession{}
	for _, sess := range m.sessions {
		if sess.Status == store.DuelStatusAwaitDefense && !now.Before(sess.ExpiresAt) {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) MarkDuelTerminal(_ context.Context, id, status string, winnerID *string, resolvedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok || sess.Status != store.DuelStatusAwaitDefense {
		return false, nil
	}
	sess.Status = status
	sess.WinnerID = winnerID
	sess.ResolvedAt = &resolvedAt
	return true, nil
}

func (m *memStore) ReserveStake(_ context.Context, sessionID, userID, resource string, percentage int, costAmount int64) (string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[balanceKey(userID, resource)]
	if !ok {
		return "", 0, store.ErrInsufficientBalance
	}
	stake := bal * int64(percentage) / 100
	if stake < 1 || bal < stake+costAmount {
		return "", 0, store.ErrInsufficientBalance
	}
	m.balances[balanceKey(userID, resource)] = bal - stake - costAmount
	escrowID := m.genID()
	m.escrows[escrowID] = &store.EscrowEntry{
		ID:        escrowID,
		SessionID: sessionID,
		UserID:    userID,
		Resource:  resource,
		Amount:    stake,
		Status:    store.EscrowStatusOpen,
	}
	m.entries = append(m.entries,
		store.LedgerEntry{UserID: userID, Resource: resource, Type: "stake_reserve", Amount: -stake, RefType: "duel", RefID: sessionID})
	if costAmount > 0 {
		m.entries = append(m.entries,
			store.LedgerEntry{UserID: userID, Resource: resource, Type: "ability_cost", Amount: -costAmount, RefType: "duel", RefID: sessionID})
	}
	return escrowID, stake, nil
}

func (m *memStore) SettleEscrow(_ context.Context, escrowID, outcome, recipientID, entryType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, ok := m.escrows[escrowID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if esc.Status != store.EscrowStatusOpen {
		return 0, store.ErrAlreadySettled
	}
	esc.Status = store.EscrowStatusClosed
	esc.Outcome = outcome
	m.balances[balanceKey(recipientID, esc.Resource)] += esc.Amount
	m.entries = append(m.entries,
		store.LedgerEntry{UserID: recipientID, Resource: esc.Resource, Type: entryType, Amount: esc.Amount, RefType: "duel", RefID: esc.SessionID})
	return esc.Amount, nil
}

func (m *memStore) GetEscrowBySession(_ context.Context, sessionID string) (*store.EscrowEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, esc := range m.escrows {
		if esc.SessionID == sessionID {
			cp := *esc
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) DebitIfSufficient(_ context.Context, userID, resource string, amount int64, entryType, refType, refID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[balanceKey(userID, resource)]
	if !ok {
		return 0, store.ErrNotFound
	}
	if bal < amount {
		return 0, store.ErrInsufficientBalance
	}
	m.balances[balanceKey(userID, resource)] = bal - amount
	m.entries = append(m.entries,
		store.LedgerEntry{UserID: userID, Resource: resource, Type: entryType, Amount: -amount, RefType: refType, RefID: refID})
	return bal - amount, nil
}

// recordedNotifier captures events per user for assertions.
type recordedNotifier struct {
	mu     sync.Mutex
	events map[string][]Event
}

func newRecordedNotifier() *recordedNotifier {
	return &recordedNotifier{events: map[string][]Event{}}
}

func (n *recordedNotifier) Notify(userID string, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[userID] = append(n.events[userID], ev)
}

func (n *recordedNotifier) kinds(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events[userID]))
	for _, ev := range n.events[userID] {
		out = append(out, ev.Kind)
	}
	return out
}
