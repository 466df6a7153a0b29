package duel

import "errors"

var (
	ErrSelfAttack                = errors.New("self_attack")
	ErrTargetGhosted             = errors.New("target_ghosted")
	ErrTargetBusy                = errors.New("target_busy")
	ErrRankTooLow                = errors.New("rank_too_low")
	ErrOnCooldown                = errors.New("on_cooldown")
	ErrInsufficientBalance       = errors.New("insufficient_balance")
	ErrInvalidStakePercentage    = errors.New("invalid_stake_percentage")
	ErrSessionNotFound           = errors.New("session_not_found")
	ErrSessionNotAwaitingDefense = errors.New("session_not_awaiting_defense")
	ErrSessionExpired            = errors.New("session_expired")
	ErrDefenderMismatch          = errors.New("defender_mismatch")
	ErrAlreadySettled            = errors.New("already_settled")
	ErrStoreUnavailable          = errors.New("store_unavailable")
)
