package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (s *Store) EnsureAccount(ctx context.Context, userID, resource string, initial int64) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO accounts (user_id, resource, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, resource) DO NOTHING`,
		userID, resource, initial)
	return err
}

func (s *Store) GetBalance(ctx context.Context, userID, resource string) (int64, error) {
	var bal int64
	err := s.Pool.QueryRow(ctx, `
		SELECT balance FROM accounts WHERE user_id = $1 AND resource = $2`,
		userID, resource).Scan(&bal)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return bal, nil
}

func (s *Store) GetBalances(ctx context.Context, userID string) (map[string]int64, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT resource, balance FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var resource string
		var bal int64
		if err := rows.Scan(&resource, &bal); err != nil {
			return nil, err
		}
		out[resource] = bal
	}
	return out, rows.Err()
}

// Credit adds amount to the account and records a ledger entry. The account
// row is created on first credit.
func (s *Store) Credit(ctx context.Context, userID, resource string, amount int64, entryType, refType, refID string) (int64, error) {
	if amount < 0 {
		return 0, errors.New("amount must be positive")
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var newBal int64
	err = tx.QueryRow(ctx, `
		INSERT INTO accounts (user_id, resource, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, resource)
		DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()
		RETURNING balance`,
		userID, resource, amount).Scan(&newBal)
	if err != nil {
		return 0, err
	}
	if err := insertLedgerEntry(ctx, tx, userID, resource, entryType, amount, refType, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBal, nil
}

// DebitIfSufficient atomically checks the balance and decrements it. The row
// lock serializes concurrent debits against the same account so a stale
// balance read can never double-spend.
func (s *Store) DebitIfSufficient(ctx context.Context, userID, resource string, amount int64, entryType, refType, refID string) (int64, error) {
	if amount < 0 {
		return 0, errors.New("amount must be positive")
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var bal int64
	err = tx.QueryRow(ctx, `
		SELECT balance FROM accounts
		WHERE user_id = $1 AND resource = $2 FOR UPDATE`,
		userID, resource).Scan(&bal)
	if err != nil {
		return 0, mapNotFound(err)
	}
	if bal < amount {
		return 0, ErrInsufficientBalance
	}
	newBal := bal - amount
	if _, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = $3, updated_at = now()
		WHERE user_id = $1 AND resource = $2`,
		userID, resource, newBal); err != nil {
		return 0, err
	}
	if err := insertLedgerEntry(ctx, tx, userID, resource, entryType, -amount, refType, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBal, nil
}

func insertLedgerEntry(ctx context.Context, tx pgx.Tx, userID, resource, entryType string, amount int64, refType, refID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, user_id, resource, type, amount, ref_type, ref_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		NewID(), userID, resource, entryType, amount, refType, refID)
	return err
}
