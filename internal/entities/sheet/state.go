package sheet

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// SessionState is the mutable consumable-resource state layered on top of a
// Document. Every counter stays inside its [0, total] or [0, capacity] range.
type SessionState struct {
	HitPoints            HitPoints          `json:"hitPoints"`
	Shields              map[string]Shield  `json:"shields"`
	SpellSlots           map[string]Counter `json:"spellSlots"`
	LimitedUseAbilities  map[string]Counter `json:"limitedUseAbilities"`
	LegendaryResistances Counter            `json:"legendaryResistances"`

	// LastUpdated is a Unix millisecond timestamp of the last change
	LastUpdated int64 `json:"lastUpdated"`
}

// HitPoints tracks current and maximum hit points
type HitPoints struct {
	Maximum int `json:"maximum"`
	Current int `json:"current"`
}

// Damage lowers current hit points, never below zero.
// Returns true if the value changed.
func (hp *HitPoints) Damage(amount int) bool {
	if amount <= 0 || hp.Current == 0 {
		return false
	}

	if amount >= hp.Current {
		hp.Current = 0
	} else {
		hp.Current -= amount
	}
	return true
}

// Heal restores hit points up to the maximum.
// Returns true if the value changed.
func (hp *HitPoints) Heal(amount int) bool {
	if amount <= 0 || hp.Current >= hp.Maximum {
		return false
	}

	// compare against the gap so huge amounts cannot overflow
	if amount >= hp.Maximum-hp.Current {
		hp.Current = hp.Maximum
	} else {
		hp.Current += amount
	}
	return true
}

// Shield is a secondary damage-absorbing pool
type Shield struct {
	Capacity int    `json:"capacity"`
	Current  int    `json:"current"`
	Healable bool   `json:"healable"`
	Label    string `json:"label"`
	Special  string `json:"special,omitempty"`
}

// Damage lowers the shield charge, never below zero
func (s *Shield) Damage(amount int) bool {
	if amount <= 0 || s.Current == 0 {
		return false
	}

	if amount >= s.Current {
		s.Current = 0
	} else {
		s.Current -= amount
	}
	return true
}

// Heal restores charge up to capacity. Non-healable shields never change.
func (s *Shield) Heal(amount int) bool {
	if !s.Healable || amount <= 0 || s.Current >= s.Capacity {
		return false
	}

	if amount >= s.Capacity-s.Current {
		s.Current = s.Capacity
	} else {
		s.Current += amount
	}
	return true
}

// Counter tracks uses of a limited resource
type Counter struct {
	Total int `json:"total"`
	Used  int `json:"used"`
}

// Remaining returns how many uses are left
func (c Counter) Remaining() int {
	return c.Total - c.Used
}

// Use consumes one use if any remain
func (c *Counter) Use() bool {
	if c.Used >= c.Total {
		return false
	}
	c.Used++
	return true
}

// Restore gives back one use if any were spent
func (c *Counter) Restore() bool {
	if c.Used <= 0 {
		return false
	}
	c.Used--
	return true
}

// Reset marks every use as available again
func (c *Counter) Reset() bool {
	if c.Used == 0 {
		return false
	}
	c.Used = 0
	return true
}

func (c *Counter) normalize() {
	if c.Total < 0 {
		c.Total = 0
	}
	c.Used = clamp(c.Used, 0, c.Total)
}

// Clone returns a deep copy of the state
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}

	clone := &SessionState{
		HitPoints:            s.HitPoints,
		Shields:              make(map[string]Shield, len(s.Shields)),
		SpellSlots:           make(map[string]Counter, len(s.SpellSlots)),
		LimitedUseAbilities:  make(map[string]Counter, len(s.LimitedUseAbilities)),
		LegendaryResistances: s.LegendaryResistances,
		LastUpdated:          s.LastUpdated,
	}
	for id, shield := range s.Shields {
		clone.Shields[id] = shield
	}
	for level, slot := range s.SpellSlots {
		clone.SpellSlots[level] = slot
	}
	for name, ability := range s.LimitedUseAbilities {
		clone.LimitedUseAbilities[name] = ability
	}
	return clone
}

// Normalize clamps every counter into its valid range and replaces nil maps.
// Used on state read from storage or import files.
func (s *SessionState) Normalize() {
	if s.HitPoints.Maximum < 0 {
		s.HitPoints.Maximum = 0
	}
	s.HitPoints.Current = clamp(s.HitPoints.Current, 0, s.HitPoints.Maximum)

	if s.Shields == nil {
		s.Shields = make(map[string]Shield)
	}
	for id, shield := range s.Shields {
		if shield.Capacity < 0 {
			shield.Capacity = 0
		}
		shield.Current = clamp(shield.Current, 0, shield.Capacity)
		s.Shields[id] = shield
	}

	if s.SpellSlots == nil {
		s.SpellSlots = make(map[string]Counter)
	}
	for level, slot := range s.SpellSlots {
		slot.normalize()
		s.SpellSlots[level] = slot
	}

	if s.LimitedUseAbilities == nil {
		s.LimitedUseAbilities = make(map[string]Counter)
	}
	for name, ability := range s.LimitedUseAbilities {
		ability.normalize()
		s.LimitedUseAbilities[name] = ability
	}

	s.LegendaryResistances.normalize()
}

// LongRest restores hit points, spell slots, limited-use abilities and
// legendary resistances. Shields are left alone.
// Returns true if anything changed.
func (s *SessionState) LongRest() bool {
	changed := false

	if s.HitPoints.Current != s.HitPoints.Maximum {
		s.HitPoints.Current = s.HitPoints.Maximum
		changed = true
	}

	for level, slot := range s.SpellSlots {
		if slot.Reset() {
			s.SpellSlots[level] = slot
			changed = true
		}
	}

	for name, ability := range s.LimitedUseAbilities {
		if ability.Reset() {
			s.LimitedUseAbilities[name] = ability
			changed = true
		}
	}

	if s.LegendaryResistances.Reset() {
		changed = true
	}

	return changed
}

// SpellLevels returns spell slot keys in ascending level order
func (s *SessionState) SpellLevels() []string {
	levels := make([]string, 0, len(s.SpellSlots))
	for level := range s.SpellSlots {
		levels = append(levels, level)
	}
	SortSpellLevels(levels)
	return levels
}

// ShieldIDs returns shield identifiers sorted alphabetically
func (s *SessionState) ShieldIDs() []string {
	return sortedKeys(s.Shields)
}

// AbilityNames returns limited-use ability names sorted alphabetically
func (s *SessionState) AbilityNames() []string {
	return sortedKeys(s.LimitedUseAbilities)
}

// SortSpellLevels orders labels such as "1st", "2nd", "10th" numerically.
// Labels without a leading number sort after numbered ones, alphabetically.
func SortSpellLevels(levels []string) {
	sort.SliceStable(levels, func(i, j int) bool {
		ni, oki := levelNumber(levels[i])
		nj, okj := levelNumber(levels[j])
		switch {
		case oki && okj && ni != nj:
			return ni < nj
		case oki != okj:
			return oki
		default:
			return levels[i] < levels[j]
		}
	})
}

func levelNumber(label string) (int, bool) {
	digits := strings.TrimRightFunc(label, func(r rune) bool { return !unicode.IsDigit(r) })
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
