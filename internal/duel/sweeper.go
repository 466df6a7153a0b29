package duel

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"huntduel/internal/ledger"
	"huntduel/internal/store"
)

const sweepBatchSize = 100

var (
	sweepFinalized = expvar.NewInt("duel_sweep_finalized_total")
	sweepFailures  = expvar.NewInt("duel_sweep_failures_total")
)

// StartSweeper runs the expiry sweep on a ticker until ctx is cancelled.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Info().Dur("interval", interval).Str("policy", string(s.cfg.ExpiryPolicy)).Msg("duel sweeper started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("duel sweeper stopped")
				return
			case <-ticker.C:
				n, err := s.FinalizeExpired(ctx)
				if err != nil {
					log.Error().Err(err).Msg("duel sweep failed")
				} else if n > 0 {
					log.Info().Int("finalized", n).Msg("duel sweep finalized sessions")
				}
			}
		}
	}()
}

// FinalizeExpired settles every open session whose defense window has lapsed
// and returns how many it finalized. Each session is handled independently so
// one bad row never stalls the batch. Safe to run concurrently with defenses
// and with other sweepers: the escrow close is the single claim on a session,
// and a loser of that race reconciles from the closed escrow instead of
// settling again.
func (s *Service) FinalizeExpired(ctx context.Context) (int, error) {
	sessions, err := s.store.ListExpiredOpenDuels(ctx, s.now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for i := range sessions {
		done, err := s.finalizeSession(ctx, &sessions[i])
		if err != nil {
			sweepFailures.Add(1)
			log.Error().Err(err).Str("session_id", sessions[i].ID).Msg("finalize expired duel failed")
			continue
		}
		if done {
			finalized++
			sweepFinalized.Add(1)
		}
	}
	return finalized, nil
}

func (s *Service) finalizeSession(ctx context.Context, sess *store.DuelSession) (bool, error) {
	escrow, err := s.ledger.EscrowForSession(ctx, sess.ID)
	if err != nil {
		return false, err
	}
	if escrow.Status == store.EscrowStatusClosed {
		return s.reconcileSettled(ctx, sess, escrow.Outcome)
	}

	outcome := ledger.OutcomeAttackerWin
	var winnerID *string
	if s.cfg.ExpiryPolicy == PolicyVoid {
		outcome = ledger.OutcomeVoid
	} else {
		winnerID = &sess.AttackerID
	}
	if err := s.ledger.Settle(ctx, escrow.ID, outcome, sess.AttackerID, sess.DefenderID); err != nil {
		if errors.Is(err, store.ErrAlreadySettled) {
			// Lost the claim between the read and the settle.
			escrow, err = s.ledger.EscrowForSession(ctx, sess.ID)
			if err != nil {
				return false, err
			}
			return s.reconcileSettled(ctx, sess, escrow.Outcome)
		}
		return false, err
	}

	if _, err := s.store.MarkDuelTerminal(ctx, sess.ID, store.DuelStatusExpired, winnerID, s.now()); err != nil {
		return false, err
	}

	sess.Status = store.DuelStatusExpired
	s.notify(EventDuelExpired, sess, winnerID)
	return true, nil
}

// reconcileSettled finishes a session whose escrow is closed but whose
// terminal status never landed: a defense is mid-flight, or an earlier run
// died between the claim and the status write. The closed escrow's outcome
// says where the funds went, so the status is rebuilt from it without moving
// money. When a concurrent writer lands the status first the conditional
// update is a no-op and the session is not counted.
func (s *Service) reconcileSettled(ctx context.Context, sess *store.DuelSession, outcome string) (bool, error) {
	status := store.DuelStatusExpired
	var winnerID *string
	switch ledger.Outcome(outcome) {
	case ledger.OutcomeAttackerWin:
		winnerID = &sess.AttackerID
	case ledger.OutcomeDefenderWin:
		status = store.DuelStatusResolved
		winnerID = &sess.DefenderID
	case ledger.OutcomeVoid:
	default:
		return false, fmt.Errorf("unknown escrow outcome %q", outcome)
	}

	marked, err := s.store.MarkDuelTerminal(ctx, sess.ID, status, winnerID, s.now())
	if err != nil || !marked {
		return false, err
	}

	sess.Status = status
	kind := EventDuelExpired
	if status == store.DuelStatusResolved {
		kind = EventDuelResolved
	}
	s.notify(kind, sess, winnerID)
	return true, nil
}
