package catalog

import (
	"context"
	"errors"

	"huntduel/internal/store"
)

var (
	ErrAbilityNotFound = errors.New("ability_not_found")
	ErrAbilityDisabled = errors.New("ability_disabled")
)

// Store is the read-side catalog surface the resolver needs.
type Store interface {
	GetAbility(ctx context.Context, key string) (*store.Ability, error)
	GetAbilityModifier(ctx context.Context, defenseKey, weaponKey string) (int64, error)
}

// Resolver looks up weapon and defense definitions. Read-only; catalog rows
// are authored out-of-band by an administrator.
type Resolver struct {
	store Store
}

func New(s Store) *Resolver {
	return &Resolver{store: s}
}

// Get returns the raw catalog row without enabled/kind validation. Used when
// resolving a duel whose weapon was already committed.
func (r *Resolver) Get(ctx context.Context, key string) (*store.Ability, error) {
	a, err := r.store.GetAbility(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAbilityNotFound
		}
		return nil, err
	}
	return a, nil
}

// Weapon validates the key as an invocable weapon.
func (r *Resolver) Weapon(ctx context.Context, key string) (*store.Ability, error) {
	return r.invocable(ctx, key, store.AbilityKindWeapon)
}

// Defense validates the key as an invocable defense.
func (r *Resolver) Defense(ctx context.Context, key string) (*store.Ability, error) {
	return r.invocable(ctx, key, store.AbilityKindDefense)
}

func (r *Resolver) invocable(ctx context.Context, key, kind string) (*store.Ability, error) {
	a, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if a.Kind != kind {
		return nil, ErrAbilityNotFound
	}
	if !a.Enabled {
		return nil, ErrAbilityDisabled
	}
	return a, nil
}

// Modifier returns the matchup power delta a defense gets against a weapon.
// Matchups are catalog data, never code branches, so new abilities work
// without a deploy.
func (r *Resolver) Modifier(ctx context.Context, defenseKey, weaponKey string) (int64, error) {
	return r.store.GetAbilityModifier(ctx, defenseKey, weaponKey)
}
