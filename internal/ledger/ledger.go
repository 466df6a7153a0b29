package ledger

import (
	"context"
	"fmt"

	"huntduel/internal/store"
)

// Outcome of a stake settlement. Settlement is the only state transition
// allowed to move a session's escrowed balance.
type Outcome string

const (
	OutcomeAttackerWin Outcome = "attacker_win"
	OutcomeDefenderWin Outcome = "defender_win"
	OutcomeVoid        Outcome = "void"
)

// Store carries the atomic escrow and balance primitives. Implementations
// must serialize per-account mutation (row lock or equivalent).
type Store interface {
	ReserveStake(ctx context.Context, sessionID, userID, resource string, percentage int, costAmount int64) (string, int64, error)
	SettleEscrow(ctx context.Context, escrowID, outcome, recipientID, entryType string) (int64, error)
	GetEscrowBySession(ctx context.Context, sessionID string) (*store.EscrowEntry, error)
	DebitIfSufficient(ctx context.Context, userID, resource string, amount int64, entryType, refType, refID string) (int64, error)
}

type Ledger struct {
	Store Store
}

func New(s Store) *Ledger {
	return &Ledger{Store: s}
}

// Reserve derives the stake from the attacker's live balance and holds it in
// escrow, debiting the weapon's invocation cost in the same transaction.
func (l *Ledger) Reserve(ctx context.Context, sessionID, attackerID, resource string, percentage int, costAmount int64) (string, int64, error) {
	return l.Store.ReserveStake(ctx, sessionID, attackerID, resource, percentage, costAmount)
}

// Settle closes the escrow entry exactly once and routes the held amount:
// back to the attacker on a win or a void, to the defender on a loss.
// A second call for the same escrow returns store.ErrAlreadySettled.
func (l *Ledger) Settle(ctx context.Context, escrowID string, outcome Outcome, attackerID, defenderID string) error {
	var recipientID, entryType string
	switch outcome {
	case OutcomeAttackerWin:
		recipientID, entryType = attackerID, "stake_payout"
	case OutcomeDefenderWin:
		recipientID, entryType = defenderID, "stake_forfeit"
	case OutcomeVoid:
		recipientID, entryType = attackerID, "stake_refund"
	default:
		return fmt.Errorf("unknown outcome %q", outcome)
	}
	_, err := l.Store.SettleEscrow(ctx, escrowID, string(outcome), recipientID, entryType)
	return err
}

// EscrowForSession resolves the escrow entry backing a duel session.
func (l *Ledger) EscrowForSession(ctx context.Context, sessionID string) (*store.EscrowEntry, error) {
	return l.Store.GetEscrowBySession(ctx, sessionID)
}

// DebitAbilityCost charges a defense invocation against the defender.
func (l *Ledger) DebitAbilityCost(ctx context.Context, userID, resource string, amount int64, sessionID string) (int64, error) {
	return l.Store.DebitIfSufficient(ctx, userID, resource, amount, "ability_cost", "duel", sessionID)
}
