package store

import (
	"context"
	"time"
)

const duelSessionColumns = `id, attacker_id, defender_id, weapon_key, stake_resource,
	stake_amount, status, created_at, expires_at, resolved_at, winner_id`

// CreateDuelSession inserts a new session in await_defense. The partial
// unique index on defender_id rejects a second open duel against the same
// defender; that race surfaces as ErrDefenderBusy.
func (s *Store) CreateDuelSession(ctx context.Context, sess DuelSession) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO duel_sessions (id, attacker_id, defender_id, weapon_key, stake_resource,
			stake_amount, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sess.ID, sess.AttackerID, sess.DefenderID, sess.WeaponKey, sess.StakeResource,
		sess.StakeAmount, sess.Status, sess.CreatedAt, sess.ExpiresAt)
	if err != nil && isUniqueViolation(err) {
		return ErrDefenderBusy
	}
	return err
}

func (s *Store) GetDuelSession(ctx context.Context, id string) (*DuelSession, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+duelSessionColumns+` FROM duel_sessions WHERE id = $1`, id)
	return scanDuelSession(row)
}

func (s *Store) GetOpenDuelByDefender(ctx context.Context, defenderID string) (*DuelSession, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+duelSessionColumns+` FROM duel_sessions
		WHERE defender_id = $1 AND status = $2`, defenderID, DuelStatusAwaitDefense)
	return scanDuelSession(row)
}

func (s *Store) ListActiveDuelsByUser(ctx context.Context, userID string) ([]DuelSession, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+duelSessionColumns+` FROM duel_sessions
		WHERE status = $2 AND (attacker_id = $1 OR defender_id = $1)
		ORDER BY created_at`, userID, DuelStatusAwaitDefense)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DuelSession{}
	for rows.Next() {
		sess, err := scanDuelSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func (s *Store) ListExpiredOpenDuels(ctx context.Context, now time.Time, limit int) ([]DuelSession, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+duelSessionColumns+` FROM duel_sessions
		WHERE status = $2 AND expires_at < $1
		ORDER BY expires_at LIMIT $3`, now, DuelStatusAwaitDefense, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DuelSession{}
	for rows.Next() {
		sess, err := scanDuelSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// MarkDuelTerminal moves a session from await_defense to a terminal status.
// Returns false when the session was already terminal, keeping the status
// field single-writer under races.
func (s *Store) MarkDuelTerminal(ctx context.Context, id, status string, winnerID *string, resolvedAt time.Time) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE duel_sessions SET status = $2, winner_id = $3, resolved_at = $4
		WHERE id = $1 AND status = $5`,
		id, status, winnerID, resolvedAt, DuelStatusAwaitDefense)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDuelSession(row rowScanner) (*DuelSession, error) {
	var sess DuelSession
	err := row.Scan(&sess.ID, &sess.AttackerID, &sess.DefenderID, &sess.WeaponKey,
		&sess.StakeResource, &sess.StakeAmount, &sess.Status, &sess.CreatedAt,
		&sess.ExpiresAt, &sess.ResolvedAt, &sess.WinnerID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &sess, nil
}
