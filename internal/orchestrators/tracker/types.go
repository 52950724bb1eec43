package tracker

import (
	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
)

// MutationOutput is returned by every operation that may change state
type MutationOutput struct {
	// State is a copy of the session state after the call
	State *sheet.SessionState
	// Changed is false when the call was a no-op
	Changed bool
}

// DamageHitPointsInput defines the request for taking damage
type DamageHitPointsInput struct {
	Amount int
}

// HealHitPointsInput defines the request for healing
type HealHitPointsInput struct {
	Amount int
}

// DamageShieldInput defines the request for draining a shield
type DamageShieldInput struct {
	ShieldID string
	Amount   int
}

// HealShieldInput defines the request for recharging a shield
type HealShieldInput struct {
	ShieldID string
	Amount   int
}

// SpellSlotInput identifies a spell slot level such as "1st" or "10th"
type SpellSlotInput struct {
	Level string
}

// LimitedAbilityInput identifies a limited-use ability by name
type LimitedAbilityInput struct {
	Name string
}

// ImportInput carries an exported document with a gameState section
type ImportInput struct {
	Data []byte
}

// ExportOutput carries the document with the current gameState section
type ExportOutput struct {
	Data []byte
}
