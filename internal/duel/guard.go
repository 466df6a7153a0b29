package duel

import (
	"context"
	"errors"
	"time"

	"huntduel/internal/store"
)

const defaultRank = 1

// CanAttack is the read-side eligibility gate. No side effects; checks run
// in a fixed order and short-circuit on the first failure so the caller can
// render a precise reason.
func (s *Service) CanAttack(ctx context.Context, attackerID, defenderID, weaponKey string, stakePercentage int) error {
	_, err := s.guardAttack(ctx, attackerID, defenderID, weaponKey, stakePercentage, s.now())
	return err
}

func (s *Service) guardAttack(ctx context.Context, attackerID, defenderID, weaponKey string, stakePercentage int, now time.Time) (*store.Ability, error) {
	if !s.validPercentage(stakePercentage) {
		return nil, ErrInvalidStakePercentage
	}
	if attackerID == defenderID {
		return nil, ErrSelfAttack
	}

	defender, err := s.store.GetProfile(ctx, defenderID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if defender != nil && defender.GhostActive(now) {
		return nil, ErrTargetGhosted
	}

	if _, err := s.store.GetOpenDuelByDefender(ctx, defenderID); err == nil {
		return nil, ErrTargetBusy
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	weapon, err := s.catalog.Weapon(ctx, weaponKey)
	if err != nil {
		return nil, err
	}
	if err := s.checkRank(ctx, attackerID, weapon); err != nil {
		return nil, err
	}
	if err := s.checkCooldown(ctx, attackerID, weapon.Key, now); err != nil {
		return nil, err
	}

	bal, err := s.store.GetBalance(ctx, attackerID, weapon.CostResource)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	stake := bal * int64(stakePercentage) / 100
	if stake < 1 || bal < stake+weapon.CostAmount {
		return nil, ErrInsufficientBalance
	}
	return weapon, nil
}

// guardDefense covers the invocation-side checks for a defense ability:
// catalog validity, rank gating and cooldown. Balance is checked by the cost
// debit itself.
func (s *Service) guardDefense(ctx context.Context, defenderID, defenseKey string, now time.Time) (*store.Ability, error) {
	defense, err := s.catalog.Defense(ctx, defenseKey)
	if err != nil {
		return nil, err
	}
	if err := s.checkRank(ctx, defenderID, defense); err != nil {
		return nil, err
	}
	if err := s.checkCooldown(ctx, defenderID, defense.Key, now); err != nil {
		return nil, err
	}
	return defense, nil
}

func (s *Service) checkRank(ctx context.Context, userID string, ability *store.Ability) error {
	rank := defaultRank
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if profile != nil {
		rank = profile.Rank
	}
	if rank < ability.MinRank {
		return ErrRankTooLow
	}
	return nil
}

func (s *Service) checkCooldown(ctx context.Context, userID, abilityKey string, now time.Time) error {
	usableAt, err := s.store.GetCooldown(ctx, userID, abilityKey)
	if err != nil {
		return err
	}
	if usableAt != nil && now.Before(*usableAt) {
		return ErrOnCooldown
	}
	return nil
}

func (s *Service) validPercentage(pct int) bool {
	for _, allowed := range s.cfg.StakePercentages {
		if pct == allowed {
			return true
		}
	}
	return false
}
