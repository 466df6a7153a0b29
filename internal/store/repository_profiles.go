package store

import (
	"context"
	"time"
)

func (s *Store) UpsertProfile(ctx context.Context, userID string, rank int, ghostUntil *time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO profiles (user_id, rank, ghost_until)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET rank = EXCLUDED.rank, ghost_until = EXCLUDED.ghost_until`,
		userID, rank, ghostUntil)
	return err
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := s.Pool.QueryRow(ctx, `
		SELECT user_id, rank, ghost_until, created_at
		FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Rank, &p.GhostUntil, &p.CreatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &p, nil
}
