package duel

// Winner side of a resolved duel.
type Winner int

const (
	WinnerAttacker Winner = iota
	WinnerDefender
)

// Resolve compares effective weapon power against effective defense power.
// Defense power is 0 when the defender never responded; matchup modifiers
// are folded into defensePower by the caller before the comparison. Ties go
// to the attacker so the result is deterministic.
func Resolve(weaponPower, defensePower int64) Winner {
	if weaponPower >= defensePower {
		return WinnerAttacker
	}
	return WinnerDefender
}
