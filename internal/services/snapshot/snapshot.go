// Package snapshot converts session state to and from its stored form and
// the document-shaped export format.
//
// The stored form is the session state as JSON. The export form is the full
// character document with its "gameState" section replaced by the session
// state; every other field of the document passes through untouched.
package snapshot

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

const (
	// GameStateKey is the top-level document field holding the session state
	GameStateKey = "gameState"

	// legacyAbilitiesKey is accepted on import in place of limitedUseAbilities
	legacyAbilitiesKey = "longRestAbilities"
)

var prettyOptions = &pretty.Options{
	Width:    80,
	Prefix:   "",
	Indent:   "  ",
	SortKeys: false,
}

// Encode serializes state for the session-state store
func Encode(state *sheet.SessionState) ([]byte, error) {
	if state == nil {
		return nil, errors.InvalidArgument("state is required")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode session state")
	}
	return data, nil
}

// Decode parses a stored snapshot. The result is normalized.
// Returns errors.DataLoss when the snapshot is unreadable.
func Decode(data []byte) (*sheet.SessionState, error) {
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return nil, errors.DataLoss("stored session state is not a JSON object")
	}

	var state sheet.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeDataLoss, "stored session state is unreadable")
	}

	state.Normalize()
	return &state, nil
}

// Export writes state into the document's gameState section and returns
// the whole document, indented
func Export(doc *sheet.Document, state *sheet.SessionState) ([]byte, error) {
	if doc == nil {
		return nil, errors.InvalidArgument("document is required")
	}

	stateJSON, err := Encode(state)
	if err != nil {
		return nil, err
	}

	out, err := sjson.SetRawBytes(doc.Raw(), GameStateKey, stateJSON)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to write %s section", GameStateKey)
	}

	return pretty.PrettyOptions(out, prettyOptions), nil
}

// Import reads the gameState section of an exported file. Fields missing
// from the file fall back to the document defaults; entries that only exist
// in the file are kept. The result is normalized.
// The document's maximum hit points always win over the file's.
// Returns errors.InvalidArgument if the data is not valid JSON, has no
// gameState object, or has a gameState section that is not an object.
func Import(doc *sheet.Document, data []byte) (*sheet.SessionState, error) {
	if doc == nil {
		return nil, errors.InvalidArgument("document is required")
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.InvalidArgument("import file is not valid JSON")
	}

	gameState := gjson.GetBytes(data, GameStateKey)
	if !gameState.IsObject() {
		return nil, errors.InvalidArgument("import file has no gameState section").
			WithMeta("field", GameStateKey)
	}

	sections := make(map[string]gjson.Result, len(objectSections))
	for _, name := range objectSections {
		section, err := optionalObject(gameState, name)
		if err != nil {
			return nil, err
		}
		sections[name] = section
	}

	state := doc.DefaultState()

	// maximum always comes from the document, as on load
	if current := sections["hitPoints"].Get("current"); current.Exists() {
		state.HitPoints.Current = int(current.Int())
	}

	sections["shields"].ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		id := key.String()
		shield, known := doc.DefaultShield(id)
		if capacity := value.Get("capacity"); capacity.Exists() {
			shield.Capacity = int(capacity.Int())
			if !known {
				shield.Current = shield.Capacity
			}
		}
		if current := value.Get("current"); current.Exists() {
			shield.Current = int(current.Int())
		}
		if healable := value.Get("healable"); healable.Exists() {
			shield.Healable = healable.Bool()
		}
		if label := value.Get("label"); label.Exists() {
			shield.Label = label.String()
		}
		if special := value.Get("special"); special.Exists() {
			shield.Special = special.String()
		}
		state.Shields[id] = shield
		return true
	})

	readCounters(sections["spellSlots"], state.SpellSlots)

	abilities := sections["limitedUseAbilities"]
	if !abilities.Exists() {
		abilities = sections[legacyAbilitiesKey]
	}
	readCounters(abilities, state.LimitedUseAbilities)

	if legendary := sections["legendaryResistances"]; legendary.Exists() {
		state.LegendaryResistances = readCounter(legendary, state.LegendaryResistances)
	}

	if lastUpdated := gameState.Get("lastUpdated"); lastUpdated.Exists() {
		state.LastUpdated = lastUpdated.Int()
	}

	state.Normalize()
	return state, nil
}

// objectSections are the gameState entries that must be JSON objects when present
var objectSections = []string{
	"hitPoints",
	"shields",
	"spellSlots",
	"limitedUseAbilities",
	legacyAbilitiesKey,
	"legendaryResistances",
}

// optionalObject returns the named section, or an empty result when it is
// absent. A section of any other JSON type is rejected.
func optionalObject(gameState gjson.Result, name string) (gjson.Result, error) {
	section := gameState.Get(name)
	if !section.Exists() || section.Type == gjson.Null {
		return gjson.Result{}, nil
	}
	if !section.IsObject() {
		return gjson.Result{}, errors.InvalidArgumentf("import file gameState.%s must be an object", name).
			WithMeta("field", GameStateKey+"."+name)
	}
	return section, nil
}

func readCounters(section gjson.Result, into map[string]sheet.Counter) {
	section.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		into[key.String()] = readCounter(value, into[key.String()])
		return true
	})
}

func readCounter(value gjson.Result, counter sheet.Counter) sheet.Counter {
	if total := value.Get("total"); total.Exists() {
		counter.Total = int(total.Int())
	}
	if used := value.Get("used"); used.Exists() {
		counter.Used = int(used.Int())
	}
	return counter
}
