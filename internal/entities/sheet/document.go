// Package sheet holds the character document and the session state tracked
// on top of it
package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

// Document is the static character document. The raw bytes are kept so that
// export can carry every static field through unchanged; the typed fields are
// the parts the tracker needs to seed its defaults.
type Document struct {
	raw []byte

	Name     string
	Level    int
	Race     string
	Class    string
	Subclass string

	HitPoints            HitPointFormula
	Shields              map[string]ShieldSpec
	SpellSlots           map[string]int
	LimitedUseAbilities  map[string]int
	LegendaryResistances LegendarySpec
	ArtifactCount        int
}

// HitPointFormula describes how maximum hit points are derived
type HitPointFormula struct {
	// Maximum is used as-is when Base is absent
	Maximum *int
	Base    *int
	Bonuses []HitPointBonus
	// PerArtifact is added once per equipped artifact
	PerArtifact int
}

// HitPointBonus is a flat bonus to maximum hit points from a named source
type HitPointBonus struct {
	Source string `json:"source"`
	Amount int    `json:"amount"`
}

// ShieldSpec is the static description of a shield
type ShieldSpec struct {
	Points      int    `json:"points"`
	Source      string `json:"source"`
	CanBeHealed bool   `json:"canBeHealed"`
	Special     string `json:"special,omitempty"`
}

// LegendarySpec describes the legendary resistance pool
type LegendarySpec struct {
	Total   int      `json:"total"`
	Sources []string `json:"sources"`
}

// documentJSON mirrors the subset of the document schema the tracker reads
type documentJSON struct {
	Character *struct {
		Name     string `json:"name"`
		Level    int    `json:"level"`
		Race     string `json:"race"`
		Class    string `json:"class"`
		Subclass string `json:"subclass"`
	} `json:"character"`
	Combat struct {
		HitPoints struct {
			Maximum     *int            `json:"maximum"`
			Base        *int            `json:"base"`
			Bonuses     []HitPointBonus `json:"bonuses"`
			PerArtifact int             `json:"perArtifact"`
		} `json:"hitPoints"`
		Shields map[string]ShieldSpec `json:"shields"`
	} `json:"combat"`
	Spellcasting struct {
		SpellSlots map[string]countSpec `json:"spellSlots"`
	} `json:"spellcasting"`
	LongRestAbilities    map[string]countSpec `json:"longRestAbilities"`
	LegendaryResistances *LegendarySpec       `json:"legendaryResistances"`
	Equipment            struct {
		Artifacts []json.RawMessage `json:"artifacts"`
	} `json:"equipment"`
}

// countSpec accepts either a bare number or an object with a "total" field
type countSpec int

func (c *countSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Total int `json:"total"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*c = countSpec(obj.Total)
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a number or an object with a total: %w", err)
	}
	*c = countSpec(n)
	return nil
}

// ParseDocument decodes and validates a character document.
// Returns errors.InvalidArgument for malformed or structurally invalid input.
func ParseDocument(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.InvalidArgument("character document must be a JSON object")
	}

	var parsed documentJSON
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "character document is not valid")
	}

	doc := &Document{
		raw:                 append([]byte(nil), trimmed...),
		Shields:             make(map[string]ShieldSpec, len(parsed.Combat.Shields)),
		SpellSlots:          make(map[string]int, len(parsed.Spellcasting.SpellSlots)),
		LimitedUseAbilities: make(map[string]int, len(parsed.LongRestAbilities)),
		HitPoints: HitPointFormula{
			Maximum:     parsed.Combat.HitPoints.Maximum,
			Base:        parsed.Combat.HitPoints.Base,
			Bonuses:     parsed.Combat.HitPoints.Bonuses,
			PerArtifact: parsed.Combat.HitPoints.PerArtifact,
		},
		ArtifactCount: len(parsed.Equipment.Artifacts),
	}

	if parsed.Character != nil {
		doc.Name = parsed.Character.Name
		doc.Level = parsed.Character.Level
		doc.Race = parsed.Character.Race
		doc.Class = parsed.Character.Class
		doc.Subclass = parsed.Character.Subclass
	}
	for id, spec := range parsed.Combat.Shields {
		doc.Shields[id] = spec
	}
	for level, total := range parsed.Spellcasting.SpellSlots {
		doc.SpellSlots[level] = int(total)
	}
	for name, total := range parsed.LongRestAbilities {
		doc.LimitedUseAbilities[name] = int(total)
	}
	if parsed.LegendaryResistances != nil {
		doc.LegendaryResistances = *parsed.LegendaryResistances
	}

	if err := validateDocument(doc, parsed.Character != nil); err != nil {
		return nil, err
	}

	return doc, nil
}

func validateDocument(doc *Document, hasCharacter bool) error {
	vb := errors.NewValidationBuilder()

	if !hasCharacter {
		vb.RequiredField("character")
	} else {
		errors.ValidateRequired("character.name", doc.Name, vb)
	}

	if doc.HitPoints.Maximum != nil {
		errors.ValidateNonNegative("combat.hitPoints.maximum", *doc.HitPoints.Maximum, vb)
	}
	if doc.HitPoints.Base != nil {
		errors.ValidateNonNegative("combat.hitPoints.base", *doc.HitPoints.Base, vb)
	}
	errors.ValidateNonNegative("combat.hitPoints.perArtifact", doc.HitPoints.PerArtifact, vb)
	errors.ValidateNonNegative("combat.hitPoints.derived", doc.MaxHitPoints(), vb)

	for id, spec := range doc.Shields {
		errors.ValidateNonNegative("combat.shields."+id+".points", spec.Points, vb)
	}
	for level, total := range doc.SpellSlots {
		errors.ValidateNonNegative("spellcasting.spellSlots."+level+".total", total, vb)
	}
	for name, total := range doc.LimitedUseAbilities {
		errors.ValidateNonNegative("longRestAbilities."+name+".total", total, vb)
	}
	errors.ValidateNonNegative("legendaryResistances.total", doc.LegendaryResistances.Total, vb)

	return vb.Build()
}

// Raw returns a copy of the document bytes as loaded
func (d *Document) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

// GetID implements core.Entity so the character can be an event source
func (d *Document) GetID() string {
	return d.Name
}

// GetType implements core.Entity
func (d *Document) GetType() string {
	return "character"
}

// MaxHitPoints derives maximum hit points. With a base value the result is
// base + flat bonuses + perArtifact * artifacts; otherwise the stated maximum.
func (d *Document) MaxHitPoints() int {
	if d.HitPoints.Base == nil {
		if d.HitPoints.Maximum == nil {
			return 0
		}
		return *d.HitPoints.Maximum
	}

	total := *d.HitPoints.Base
	for _, bonus := range d.HitPoints.Bonuses {
		total += bonus.Amount
	}
	total += d.HitPoints.PerArtifact * d.ArtifactCount
	return total
}

// DefaultShield returns the fresh state of a shield described by the document
func (d *Document) DefaultShield(id string) (Shield, bool) {
	spec, ok := d.Shields[id]
	if !ok {
		return Shield{}, false
	}
	return Shield{
		Capacity: spec.Points,
		Current:  spec.Points,
		Healable: spec.CanBeHealed,
		Label:    spec.Source,
		Special:  spec.Special,
	}, true
}

// DefaultState builds a fully rested session state from the document.
// LastUpdated is left at zero for the caller to stamp.
func (d *Document) DefaultState() *SessionState {
	maxHP := d.MaxHitPoints()
	state := &SessionState{
		HitPoints: HitPoints{
			Maximum: maxHP,
			Current: maxHP,
		},
		Shields:             make(map[string]Shield, len(d.Shields)),
		SpellSlots:          make(map[string]Counter, len(d.SpellSlots)),
		LimitedUseAbilities: make(map[string]Counter, len(d.LimitedUseAbilities)),
		LegendaryResistances: Counter{
			Total: d.LegendaryResistances.Total,
		},
	}

	for id := range d.Shields {
		state.Shields[id], _ = d.DefaultShield(id)
	}
	for level, total := range d.SpellSlots {
		state.SpellSlots[level] = Counter{Total: total}
	}
	for name, total := range d.LimitedUseAbilities {
		state.LimitedUseAbilities[name] = Counter{Total: total}
	}

	return state
}
