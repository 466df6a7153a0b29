package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"huntduel/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	balances map[string]int64
	escrows  map[string]*store.EscrowEntry
	entries  []store.LedgerEntry
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances: map[string]int64{},
		escrows:  map[string]*store.EscrowEntry{},
	}
}

func (f *fakeStore) key(userID, resource string) string { return userID + "|" + resource }

func (f *fakeStore) ReserveStake(_ context.Context, sessionID, userID, resource string, percentage int, costAmount int64) (string, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bal, ok := f.balances[f.key(userID, resource)]
	if !ok {
		return "", 0, store.ErrInsufficientBalance
	}
	stake := bal * int64(percentage) / 100
	if stake < 1 || bal < stake+costAmount {
		return "", 0, store.ErrInsufficientBalance
	}
	f.balances[f.key(userID, resource)] = bal - stake - costAmount
	f.nextID++
	id := fmt.Sprintf("esc_%d", f.nextID)
	f.escrows[id] = &store.EscrowEntry{
		ID: id, SessionID: sessionID, UserID: userID,
		Resource: resource, Amount: stake, Status: store.EscrowStatusOpen,
	}
	f.entries = append(f.entries, store.LedgerEntry{UserID: userID, Resource: resource, Type: "stake_reserve", Amount: -stake, RefType: "duel", RefID: sessionID})
	return id, stake, nil
}

func (f *fakeStore) SettleEscrow(_ context.Context, escrowID, outcome, recipientID, entryType string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	esc, ok := f.escrows[escrowID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if esc.Status != store.EscrowStatusOpen {
		return 0, store.ErrAlreadySettled
	}
	esc.Status = store.EscrowStatusClosed
	esc.Outcome = outcome
	f.balances[f.key(recipientID, esc.Resource)] += esc.Amount
	f.entries = append(f.entries, store.LedgerEntry{UserID: recipientID, Resource: esc.Resource, Type: entryType, Amount: esc.Amount, RefType: "duel", RefID: esc.SessionID})
	return esc.Amount, nil
}

func (f *fakeStore) GetEscrowBySession(_ context.Context, sessionID string) (*store.EscrowEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, esc := range f.escrows {
		if esc.SessionID == sessionID {
			cp := *esc
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) DebitIfSufficient(_ context.Context, userID, resource string, amount int64, entryType, refType, refID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bal, ok := f.balances[f.key(userID, resource)]
	if !ok {
		return 0, store.ErrNotFound
	}
	if bal < amount {
		return 0, store.ErrInsufficientBalance
	}
	f.balances[f.key(userID, resource)] = bal - amount
	f.entries = append(f.entries, store.LedgerEntry{UserID: userID, Resource: resource, Type: entryType, Amount: -amount, RefType: refType, RefID: refID})
	return bal - amount, nil
}

func (f *fakeStore) total(resource string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for key, bal := range f.balances {
		if key[len(key)-len(resource):] == resource {
			sum += bal
		}
	}
	for _, esc := range f.escrows {
		if esc.Resource == resource && esc.Status == store.EscrowStatusOpen {
			sum += esc.Amount
		}
	}
	return sum
}

func TestReserveTakesPercentageOfLiveBalance(t *testing.T) {
	fs := newFakeStore()
	fs.balances[fs.key("alice", store.ResourceEnergy)] = 40
	led := New(fs)

	_, stake, err := led.Reserve(context.Background(), "sess1", "alice", store.ResourceEnergy, 50, 0)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if stake != 20 {
		t.Fatalf("stake = %d, want 20", stake)
	}
	if bal := fs.balances[fs.key("alice", store.ResourceEnergy)]; bal != 20 {
		t.Fatalf("balance = %d, want 20", bal)
	}
}

func TestReserveRejectsUnfundedStake(t *testing.T) {
	fs := newFakeStore()
	fs.balances[fs.key("alice", store.ResourceEnergy)] = 3
	led := New(fs)

	if _, _, err := led.Reserve(context.Background(), "sess1", "alice", store.ResourceEnergy, 25, 0); !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want insufficient balance", err)
	}
	// cost on top of the stake must also be covered
	fs.balances[fs.key("alice", store.ResourceEnergy)] = 10
	if _, _, err := led.Reserve(context.Background(), "sess2", "alice", store.ResourceEnergy, 75, 5); !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want insufficient balance", err)
	}
}

func TestSettleRoutesByOutcome(t *testing.T) {
	cases := []struct {
		outcome   Outcome
		recipient string
		entryType string
	}{
		{OutcomeAttackerWin, "alice", "stake_payout"},
		{OutcomeDefenderWin, "bob", "stake_forfeit"},
		{OutcomeVoid, "alice", "stake_refund"},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			fs := newFakeStore()
			fs.balances[fs.key("alice", store.ResourceEnergy)] = 40
			fs.balances[fs.key("bob", store.ResourceEnergy)] = 10
			led := New(fs)

			escrowID, stake, err := led.Reserve(context.Background(), "sess1", "alice", store.ResourceEnergy, 50, 0)
			if err != nil {
				t.Fatalf("Reserve: %v", err)
			}
			before := fs.balances[fs.key(tc.recipient, store.ResourceEnergy)]
			if err := led.Settle(context.Background(), escrowID, tc.outcome, "alice", "bob"); err != nil {
				t.Fatalf("Settle: %v", err)
			}
			if bal := fs.balances[fs.key(tc.recipient, store.ResourceEnergy)]; bal != before+stake {
				t.Fatalf("recipient balance = %d, want %d", bal, before+stake)
			}
			last := fs.entries[len(fs.entries)-1]
			if last.Type != tc.entryType || last.Amount != stake {
				t.Fatalf("ledger entry = %+v", last)
			}
		})
	}
}

func TestSettleExactlyOnce(t *testing.T) {
	fs := newFakeStore()
	fs.balances[fs.key("alice", store.ResourceEnergy)] = 40
	led := New(fs)

	escrowID, _, err := led.Reserve(context.Background(), "sess1", "alice", store.ResourceEnergy, 50, 0)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := led.Settle(context.Background(), escrowID, OutcomeDefenderWin, "alice", "bob"); err != nil {
		t.Fatalf("first Settle: %v", err)
	}
	if err := led.Settle(context.Background(), escrowID, OutcomeAttackerWin, "alice", "bob"); !errors.Is(err, store.ErrAlreadySettled) {
		t.Fatalf("second Settle err = %v, want already settled", err)
	}
	if bal := fs.balances[fs.key("bob", store.ResourceEnergy)]; bal != 20 {
		t.Fatalf("defender balance = %d, want 20", bal)
	}
}

func TestSettleRejectsUnknownOutcome(t *testing.T) {
	led := New(newFakeStore())
	if err := led.Settle(context.Background(), "esc_1", Outcome("coinflip"), "alice", "bob"); err == nil {
		t.Fatalf("expected error for unknown outcome")
	}
}

func TestResourceConservation(t *testing.T) {
	fs := newFakeStore()
	fs.balances[fs.key("alice", store.ResourceEnergy)] = 120
	fs.balances[fs.key("bob", store.ResourceEnergy)] = 50
	led := New(fs)

	before := fs.total(store.ResourceEnergy)
	escrowID, _, err := led.Reserve(context.Background(), "sess1", "alice", store.ResourceEnergy, 75, 0)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if got := fs.total(store.ResourceEnergy); got != before {
		t.Fatalf("total after reserve = %d, want %d", got, before)
	}
	if err := led.Settle(context.Background(), escrowID, OutcomeDefenderWin, "alice", "bob"); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got := fs.total(store.ResourceEnergy); got != before {
		t.Fatalf("total after settle = %d, want %d", got, before)
	}
}

func TestConcurrentReservesOneFunded(t *testing.T) {
	fs := newFakeStore()
	fs.balances[fs.key("alice", store.ResourceEnergy)] = 40
	led := New(fs)

	// 40 funds one 50% reserve with a cost of 15 (20+15 <= 40, leaves 5);
	// the leftover 5 cannot fund another (stake 2, 2+15 > 5). Whichever
	// reserve runs second must fail.
	type result struct {
		stake int64
		err   error
	}
	results := make(chan result, 2)
	var wg sync.WaitGroup
	for _, sessionID := range []string{"sess1", "sess2"} {
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			_, stake, err := led.Reserve(context.Background(), sessionID, "alice", store.ResourceEnergy, 50, 15)
			results <- result{stake, err}
		}(sessionID)
	}
	wg.Wait()
	close(results)

	reserved := 0
	for res := range results {
		if res.err == nil {
			reserved++
			if res.stake != 20 {
				t.Fatalf("stake = %d, want 20", res.stake)
			}
		} else if !errors.Is(res.err, store.ErrInsufficientBalance) {
			t.Fatalf("unexpected reserve error: %v", res.err)
		}
	}
	if reserved != 1 {
		t.Fatalf("funded reserves = %d, want exactly 1", reserved)
	}
	if bal := fs.balances[fs.key("alice", store.ResourceEnergy)]; bal != 5 {
		t.Fatalf("balance = %d, want 5", bal)
	}
	open := 0
	for _, esc := range fs.escrows {
		if esc.Status == store.EscrowStatusOpen {
			open++
			if esc.Amount != 20 {
				t.Fatalf("escrow amount = %d, want 20", esc.Amount)
			}
		}
	}
	if open != 1 {
		t.Fatalf("open escrows = %d, want 1", open)
	}
}

func TestConcurrentSettleOneWinner(t *testing.T) {
	fs := newFakeStore()
	fs.balances[fs.key("alice", store.ResourceEnergy)] = 40
	led := New(fs)

	escrowID, _, err := led.Reserve(context.Background(), "sess1", "alice", store.ResourceEnergy, 50, 0)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- led.Settle(context.Background(), escrowID, OutcomeAttackerWin, "alice", "bob")
		}()
	}
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		if err == nil {
			won++
		} else if !errors.Is(err, store.ErrAlreadySettled) {
			t.Fatalf("unexpected settle error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("settle winners = %d, want exactly 1", won)
	}
	if bal := fs.balances[fs.key("alice", store.ResourceEnergy)]; bal != 40 {
		t.Fatalf("attacker balance = %d, want stake paid out once", bal)
	}
}
