package duel

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"huntduel/internal/catalog"
	"huntduel/internal/ledger"
	"huntduel/internal/store"
)

// Service owns the duel session lifecycle: creation, defense, resolution and
// expiry. All balance movement goes through the escrow ledger so the session
// state machine never touches account rows directly.
type Service struct {
	store    Store
	catalog  *catalog.Resolver
	ledger   *ledger.Ledger
	notifier Notifier
	cfg      Config

	now func() time.Time
}

func New(st Store, cat *catalog.Resolver, led *ledger.Ledger, notifier Notifier, cfg Config) *Service {
	return &Service{
		store:    st,
		catalog:  cat,
		ledger:   led,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateDuel runs the eligibility gate, escrows the attacker's stake and
// opens a session awaiting defense. With instant set the session resolves on
// the spot against a zero-power defense instead of opening a window.
//
// The stake is reserved before the session row exists so the reservation can
// use a plain per-account transaction. If the session insert then loses the
// one-open-duel-per-defender race, the escrow is voided to release the funds
// and the caller sees ErrTargetBusy as if the gate had caught it.
func (s *Service) CreateDuel(ctx context.Context, attackerID, defenderID, weaponKey string, stakePercentage int, instant bool) (*CreateDuelResult, error) {
	now := s.now()
	weapon, err := s.guardAttack(ctx, attackerID, defenderID, weaponKey, stakePercentage, now)
	if err != nil {
		return nil, err
	}

	sessionID := store.NewID()
	_, stake, err := s.ledger.Reserve(ctx, sessionID, attackerID, weapon.CostResource, stakePercentage, weapon.CostAmount)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}

	sess := store.DuelSession{
		ID:            sessionID,
		AttackerID:    attackerID,
		DefenderID:    defenderID,
		WeaponKey:     weapon.Key,
		StakeResource: weapon.CostResource,
		StakeAmount:   stake,
		Status:        store.DuelStatusAwaitDefense,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.DefenseWindow),
	}
	if err := s.store.CreateDuelSession(ctx, sess); err != nil {
		if errors.Is(err, store.ErrDefenderBusy) {
			s.releaseEscrow(ctx, sessionID, attackerID, defenderID)
			return nil, ErrTargetBusy
		}
		return nil, err
	}

	if err := s.markCooldown(ctx, attackerID, weapon, now); err != nil {
		return nil, err
	}

	if instant {
		return s.resolveInstant(ctx, &sess, weapon, now)
	}

	s.notify(EventDuelCreated, &sess, nil)
	return &CreateDuelResult{
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
		Stake:     stake,
	}, nil
}

// SubmitDefense invokes a defense ability against an open session. The
// defender pays the ability's cost, the matchup is resolved and the escrow is
// settled. If the sweeper finalized the session first, the escrow claim fails
// with already_settled and the defender is told the session expired; the cost
// debit stands, same as any other spent invocation.
func (s *Service) SubmitDefense(ctx context.Context, sessionID, defenderID, defenseKey string) (*DefenseResult, error) {
	now := s.now()

	sess, err := s.store.GetDuelSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.DefenderID != defenderID {
		return nil, ErrDefenderMismatch
	}
	if sess.Status != store.DuelStatusAwaitDefense {
		return nil, ErrSessionNotAwaitingDefense
	}
	if now.After(sess.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	defense, err := s.guardDefense(ctx, defenderID, defenseKey, now)
	if err != nil {
		return nil, err
	}
	if defense.CostAmount > 0 {
		if _, err := s.ledger.DebitAbilityCost(ctx, defenderID, defense.CostResource, defense.CostAmount, sessionID); err != nil {
			if errors.Is(err, store.ErrInsufficientBalance) || errors.Is(err, store.ErrNotFound) {
				return nil, ErrInsufficientBalance
			}
			return nil, err
		}
	}

	weapon, err := s.catalog.Get(ctx, sess.WeaponKey)
	if err != nil {
		return nil, err
	}
	delta, err := s.catalog.Modifier(ctx, defense.Key, weapon.Key)
	if err != nil {
		return nil, err
	}

	outcome := ledger.OutcomeDefenderWin
	winnerID := sess.DefenderID
	if Resolve(weapon.Power, defense.Power+delta) == WinnerAttacker {
		outcome = ledger.OutcomeAttackerWin
		winnerID = sess.AttackerID
	}

	escrow, err := s.ledger.EscrowForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Settle(ctx, escrow.ID, outcome, sess.AttackerID, sess.DefenderID); err != nil {
		if errors.Is(err, store.ErrAlreadySettled) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	// Settling the escrow is the claim on the session; after winning it the
	// status write cannot race anyone.
	if _, err := s.store.MarkDuelTerminal(ctx, sessionID, store.DuelStatusResolved, &winnerID, now); err != nil {
		return nil, err
	}
	if err := s.markCooldown(ctx, defenderID, defense, now); err != nil {
		return nil, err
	}

	sess.Status = store.DuelStatusResolved
	s.notify(EventDuelResolved, sess, &winnerID)
	return &DefenseResult{Status: store.DuelStatusResolved, WinnerID: winnerID}, nil
}

// GetActiveDuels lists open sessions the user is a party to.
func (s *Service) GetActiveDuels(ctx context.Context, userID string) ([]store.DuelSession, error) {
	return s.store.ListActiveDuelsByUser(ctx, userID)
}

// GetCooldowns lists the user's abilities still cooling down.
func (s *Service) GetCooldowns(ctx context.Context, userID string) ([]CooldownView, error) {
	records, err := s.store.ListCooldowns(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]CooldownView, 0, len(records))
	for _, rec := range records {
		if now.Before(rec.UsableAt) {
			views = append(views, CooldownView{AbilityKey: rec.AbilityKey, UsableAt: rec.UsableAt})
		}
	}
	return views, nil
}

func (s *Service) resolveInstant(ctx context.Context, sess *store.DuelSession, weapon *store.Ability, now time.Time) (*CreateDuelResult, error) {
	winnerID := sess.AttackerID
	if Resolve(weapon.Power, 0) == WinnerDefender {
		winnerID = sess.DefenderID
	}
	outcome := ledger.OutcomeAttackerWin
	if winnerID == sess.DefenderID {
		outcome = ledger.OutcomeDefenderWin
	}

	escrow, err := s.ledger.EscrowForSession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Settle(ctx, escrow.ID, outcome, sess.AttackerID, sess.DefenderID); err != nil {
		return nil, err
	}
	if _, err := s.store.MarkDuelTerminal(ctx, sess.ID, store.DuelStatusResolved, &winnerID, now); err != nil {
		return nil, err
	}

	sess.Status = store.DuelStatusResolved
	s.notify(EventDuelResolved, sess, &winnerID)
	return &CreateDuelResult{
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
		Stake:     sess.StakeAmount,
		Resolved:  true,
		WinnerID:  winnerID,
	}, nil
}

func (s *Service) markCooldown(ctx context.Context, userID string, ability *store.Ability, now time.Time) error {
	if ability.CooldownSeconds <= 0 {
		return nil
	}
	usableAt := now.Add(time.Duration(ability.CooldownSeconds) * time.Second)
	return s.store.UpsertCooldown(ctx, userID, ability.Key, usableAt)
}

// releaseEscrow voids a reservation whose session never came to exist. Best
// effort; a failure leaves an open escrow visible in SumOpenEscrow for an
// operator to reconcile.
func (s *Service) releaseEscrow(ctx context.Context, sessionID, attackerID, defenderID string) {
	escrow, err := s.ledger.EscrowForSession(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("release escrow lookup failed")
		return
	}
	if err := s.ledger.Settle(ctx, escrow.ID, ledger.OutcomeVoid, attackerID, defenderID); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("release escrow settle failed")
	}
}

func (s *Service) notify(kind string, sess *store.DuelSession, winnerID *string) {
	if s.notifier == nil {
		return
	}
	ev := Event{
		Kind:          kind,
		SessionID:     sess.ID,
		AttackerID:    sess.AttackerID,
		DefenderID:    sess.DefenderID,
		StakeResource: sess.StakeResource,
		StakeAmount:   sess.StakeAmount,
	}
	if winnerID != nil {
		ev.WinnerID = *winnerID
	}
	s.notifier.Notify(sess.AttackerID, ev)
	s.notifier.Notify(sess.DefenderID, ev)
}
