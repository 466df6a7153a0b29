package store

import "context"

func (s *Store) UpsertAbility(ctx context.Context, a Ability) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO abilities (key, name, kind, power, cost_resource, cost_amount, cooldown_seconds, min_rank, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			power = EXCLUDED.power,
			cost_resource = EXCLUDED.cost_resource,
			cost_amount = EXCLUDED.cost_amount,
			cooldown_seconds = EXCLUDED.cooldown_seconds,
			min_rank = EXCLUDED.min_rank,
			enabled = EXCLUDED.enabled`,
		a.Key, a.Name, a.Kind, a.Power, a.CostResource, a.CostAmount, a.CooldownSeconds, a.MinRank, a.Enabled)
	return err
}

func (s *Store) GetAbility(ctx context.Context, key string) (*Ability, error) {
	var a Ability
	err := s.Pool.QueryRow(ctx, `
		SELECT key, name, kind, power, cost_resource, cost_amount, cooldown_seconds, min_rank, enabled
		FROM abilities WHERE key = $1`, key).
		Scan(&a.Key, &a.Name, &a.Kind, &a.Power, &a.CostResource, &a.CostAmount, &a.CooldownSeconds, &a.MinRank, &a.Enabled)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &a, nil
}

func (s *Store) ListAbilities(ctx context.Context) ([]Ability, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT key, name, kind, power, cost_resource, cost_amount, cooldown_seconds, min_rank, enabled
		FROM abilities ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Ability{}
	for rows.Next() {
		var a Ability
		if err := rows.Scan(&a.Key, &a.Name, &a.Kind, &a.Power, &a.CostResource, &a.CostAmount, &a.CooldownSeconds, &a.MinRank, &a.Enabled); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpsertAbilityModifier(ctx context.Context, m AbilityModifier) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO ability_modifiers (defense_key, weapon_key, power_delta)
		VALUES ($1, $2, $3)
		ON CONFLICT (defense_key, weapon_key) DO UPDATE SET power_delta = EXCLUDED.power_delta`,
		m.DefenseKey, m.WeaponKey, m.PowerDelta)
	return err
}

// GetAbilityModifier returns the matchup power delta for a defense against a
// weapon, zero when no row exists.
func (s *Store) GetAbilityModifier(ctx context.Context, defenseKey, weaponKey string) (int64, error) {
	var delta int64
	err := s.Pool.QueryRow(ctx, `
		SELECT power_delta FROM ability_modifiers
		WHERE defense_key = $1 AND weapon_key = $2`, defenseKey, weaponKey).Scan(&delta)
	if err != nil {
		if mapNotFound(err) == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return delta, nil
}
