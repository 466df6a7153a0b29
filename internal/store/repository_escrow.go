package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ReserveStake is the single serialization point for duel creation: under
// one row lock it derives the stake from the live balance, checks it covers
// stake plus weapon cost, debits both and opens the escrow entry. Two
// concurrent reservations against the same account cannot both pass the
// balance check.
func (s *Store) ReserveStake(ctx context.Context, sessionID, userID, resource string, percentage int, costAmount int64) (string, int64, error) {
	if percentage <= 0 || percentage > 100 {
		return "", 0, errors.New("percentage out of range")
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback(ctx)

	var bal int64
	err = tx.QueryRow(ctx, `
		SELECT balance FROM accounts
		WHERE user_id = $1 AND resource = $2 FOR UPDATE`,
		userID, resource).Scan(&bal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, ErrInsufficientBalance
		}
		return "", 0, err
	}

	stake := bal * int64(percentage) / 100
	if stake < 1 {
		return "", 0, ErrInsufficientBalance
	}
	if bal < stake+costAmount {
		return "", 0, ErrInsufficientBalance
	}

	if _, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = $3, updated_at = now()
		WHERE user_id = $1 AND resource = $2`,
		userID, resource, bal-stake-costAmount); err != nil {
		return "", 0, err
	}

	escrowID := NewID()
	if _, err := tx.Exec(ctx, `
		INSERT INTO escrow_entries (id, session_id, user_id, resource, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		escrowID, sessionID, userID, resource, stake, EscrowStatusOpen); err != nil {
		return "", 0, err
	}
	if err := insertLedgerEntry(ctx, tx, userID, resource, "stake_reserve", -stake, "escrow", escrowID); err != nil {
		return "", 0, err
	}
	if costAmount > 0 {
		if err := insertLedgerEntry(ctx, tx, userID, resource, "ability_cost", -costAmount, "duel", sessionID); err != nil {
			return "", 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", 0, err
	}
	return escrowID, stake, nil
}

// SettleEscrow closes the escrow entry and pays the held amount out to the
// recipient in one transaction. The conditional update on the open status is
// the at-most-once claim: whichever of SubmitDefense or the sweeper gets here
// second sees zero rows and ErrAlreadySettled.
func (s *Store) SettleEscrow(ctx context.Context, escrowID, outcome, recipientID, entryType string) (int64, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var resource string
	var amount int64
	err = tx.QueryRow(ctx, `
		UPDATE escrow_entries SET status = $2, outcome = $3, closed_at = now()
		WHERE id = $1 AND status = $4
		RETURNING resource, amount`,
		escrowID, EscrowStatusClosed, outcome, EscrowStatusOpen).Scan(&resource, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAlreadySettled
		}
		return 0, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO accounts (user_id, resource, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, resource)
		DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()`,
		recipientID, resource, amount); err != nil {
		return 0, err
	}
	if err := insertLedgerEntry(ctx, tx, recipientID, resource, entryType, amount, "escrow", escrowID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return amount, nil
}

func (s *Store) GetEscrowBySession(ctx context.Context, sessionID string) (*EscrowEntry, error) {
	var e EscrowEntry
	err := s.Pool.QueryRow(ctx, `
		SELECT id, session_id, user_id, resource, amount, status, COALESCE(outcome, ''), created_at, closed_at
		FROM escrow_entries WHERE session_id = $1`, sessionID).
		Scan(&e.ID, &e.SessionID, &e.UserID, &e.Resource, &e.Amount, &e.Status, &e.Outcome, &e.CreatedAt, &e.ClosedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &e, nil
}

// SumOpenEscrow reports the total held out of circulation for one resource.
func (s *Store) SumOpenEscrow(ctx context.Context, resource string) (int64, error) {
	var sum int64
	err := s.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM escrow_entries
		WHERE resource = $1 AND status = $2`, resource, EscrowStatusOpen).Scan(&sum)
	return sum, err
}
