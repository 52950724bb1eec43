package testutils

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
)

// TestCharacterName is the name of the character in TestDocumentJSON
const TestCharacterName = "Thorin Oakenshield"

// TestDocumentJSON is a compact character document with one of each tracked
// resource. Derived maximum hit points are 100 + 20 + 2*5 = 130.
const TestDocumentJSON = `{
  "character": {"name": "Thorin Oakenshield", "level": 12, "race": "Dwarf", "class": "Fighter"},
  "abilityScores": {"strength": {"score": 18, "modifier": 4}},
  "combat": {
    "hitPoints": {
      "maximum": 130,
      "base": 100,
      "bonuses": [{"source": "Belt of Dwarvenkind", "amount": 20}],
      "perArtifact": 5
    },
    "shields": {
      "stoneShield": {"points": 50, "source": "Stoneskin", "canBeHealed": false, "special": "Indestructible"},
      "wardShield": {"points": 30, "source": "Arcane Ward", "canBeHealed": true}
    }
  },
  "spellcasting": {
    "spellSlots": {"1st": {"total": 4}, "2nd": {"total": 2}, "10th": {"total": 1}}
  },
  "longRestAbilities": {
    "Action Surge": {"total": 2},
    "Second Wind": {"total": 1}
  },
  "legendaryResistances": {"total": 3, "sources": ["Arkenstone (3)"]},
  "equipment": {"artifacts": [{"name": "Arkenstone"}, {"name": "Orcrist"}]}
}`

// TestDocumentMaxHitPoints is the derived maximum of TestDocumentJSON
const TestDocumentMaxHitPoints = 130

// CreateTestDocument parses TestDocumentJSON
func CreateTestDocument(t *testing.T) *sheet.Document {
	t.Helper()

	doc, err := sheet.ParseDocument([]byte(TestDocumentJSON))
	require.NoError(t, err, "failed to parse test document")
	return doc
}

// CreateTestState returns a fully rested state for TestDocumentJSON stamped at lastUpdated
func CreateTestState(t *testing.T, lastUpdated int64) *sheet.SessionState {
	t.Helper()

	state := CreateTestDocument(t).DefaultState()
	state.LastUpdated = lastUpdated
	return state
}
