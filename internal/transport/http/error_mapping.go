package httptransport

import (
	"errors"
	"net/http"

	"huntduel/internal/catalog"
	"huntduel/internal/duel"
	"huntduel/internal/store"
)

// duelErrorStatus maps a service error to the HTTP status and stable error
// code handlers return. Unknown errors fall through as internal_error so a
// driver failure never leaks SQL to the client.
func duelErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, duel.ErrSelfAttack):
		return http.StatusBadRequest, "self_attack"
	case errors.Is(err, duel.ErrRankTooLow):
		return http.StatusBadRequest, "rank_too_low"
	case errors.Is(err, duel.ErrInsufficientBalance):
		return http.StatusBadRequest, "insufficient_balance"
	case errors.Is(err, duel.ErrInvalidStakePercentage):
		return http.StatusBadRequest, "invalid_stake_percentage"
	case errors.Is(err, catalog.ErrAbilityDisabled):
		return http.StatusBadRequest, "ability_disabled"
	case errors.Is(err, duel.ErrTargetGhosted):
		return http.StatusForbidden, "target_ghosted"
	case errors.Is(err, catalog.ErrAbilityNotFound):
		return http.StatusNotFound, "ability_not_found"
	case errors.Is(err, duel.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, duel.ErrTargetBusy):
		return http.StatusConflict, "target_busy"
	case errors.Is(err, duel.ErrSessionNotAwaitingDefense):
		return http.StatusConflict, "session_not_awaiting_defense"
	case errors.Is(err, duel.ErrAlreadySettled), errors.Is(err, store.ErrAlreadySettled):
		return http.StatusConflict, "already_settled"
	case errors.Is(err, duel.ErrDefenderMismatch):
		return http.StatusConflict, "defender_mismatch"
	case errors.Is(err, duel.ErrOnCooldown):
		return http.StatusTooManyRequests, "on_cooldown"
	case errors.Is(err, duel.ErrSessionExpired):
		return http.StatusGone, "session_expired"
	case errors.Is(err, duel.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeDuelError(w http.ResponseWriter, err error) {
	status, code := duelErrorStatus(err)
	WriteHTTPError(w, status, code)
}
