package store

import (
	"context"
	"time"
)

// UpsertCooldown overwrites the usable-again-at timestamp for (user, ability).
func (s *Store) UpsertCooldown(ctx context.Context, userID, abilityKey string, usableAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO cooldowns (user_id, ability_key, usable_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, ability_key) DO UPDATE SET usable_at = EXCLUDED.usable_at`,
		userID, abilityKey, usableAt)
	return err
}

// GetCooldown returns nil when the ability has never been invoked.
func (s *Store) GetCooldown(ctx context.Context, userID, abilityKey string) (*time.Time, error) {
	var usableAt time.Time
	err := s.Pool.QueryRow(ctx, `
		SELECT usable_at FROM cooldowns WHERE user_id = $1 AND ability_key = $2`,
		userID, abilityKey).Scan(&usableAt)
	if err != nil {
		if mapNotFound(err) == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &usableAt, nil
}

func (s *Store) ListCooldowns(ctx context.Context, userID string) ([]CooldownRecord, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT user_id, ability_key, usable_at FROM cooldowns
		WHERE user_id = $1 ORDER BY ability_key`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CooldownRecord{}
	for rows.Next() {
		var c CooldownRecord
		if err := rows.Scan(&c.UserID, &c.AbilityKey, &c.UsableAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
