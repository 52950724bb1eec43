// Package tracker implements the session state tracker, the single writer of
// a character's consumable resources. Every change is stamped and handed to
// the saver before listeners hear about it.
package tracker

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/events"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
	sessionstate "github.com/KirkDiggler/rpg-sheet/internal/repositories/session_state"
	"github.com/KirkDiggler/rpg-sheet/internal/services/persistence"
	"github.com/KirkDiggler/rpg-sheet/internal/services/snapshot"
)

// Service defines the session state operations.
// Out-of-range amounts and unknown identifiers are clamped or ignored;
// they never return an error.
type Service interface {
	// GetState returns a copy of the current state
	GetState(ctx context.Context) *sheet.SessionState

	DamageHitPoints(ctx context.Context, input *DamageHitPointsInput) (*MutationOutput, error)
	HealHitPoints(ctx context.Context, input *HealHitPointsInput) (*MutationOutput, error)

	// HealShield only affects shields that can be healed
	DamageShield(ctx context.Context, input *DamageShieldInput) (*MutationOutput, error)
	HealShield(ctx context.Context, input *HealShieldInput) (*MutationOutput, error)

	UseSpellSlot(ctx context.Context, input *SpellSlotInput) (*MutationOutput, error)
	RestoreSpellSlot(ctx context.Context, input *SpellSlotInput) (*MutationOutput, error)

	UseLimitedAbility(ctx context.Context, input *LimitedAbilityInput) (*MutationOutput, error)
	RestoreLimitedAbility(ctx context.Context, input *LimitedAbilityInput) (*MutationOutput, error)

	UseLegendaryResistance(ctx context.Context) (*MutationOutput, error)
	RestoreLegendaryResistance(ctx context.Context) (*MutationOutput, error)

	// LongRest restores everything except shields
	LongRest(ctx context.Context) (*MutationOutput, error)

	// Reset rebuilds the state from the document defaults
	Reset(ctx context.Context) (*MutationOutput, error)

	// Import replaces the state with the gameState section of an exported file.
	// Invalid input returns an InvalidArgument error and leaves state untouched.
	Import(ctx context.Context, input *ImportInput) (*MutationOutput, error)

	// Export returns the document with the current state as its gameState section
	Export(ctx context.Context) (*ExportOutput, error)

	// Subscribe registers a listener called after every change. Listeners may
	// read state but must not mutate it through the tracker.
	Subscribe(listener events.Listener) string
	Unsubscribe(id string) error

	// Close writes any pending snapshot
	Close(ctx context.Context) error
}

// Config holds the dependencies for the tracker
type Config struct {
	Document   *sheet.Document
	Repository sessionstate.Repository
	Saver      persistence.Saver
	Notifier   events.Notifier
	Clock      clock.Clock
	Key        string

	// Preloaded marks Snapshot as the result of an earlier LoadSnapshot
	// call; a nil Snapshot then means defaults. Without it the tracker
	// reads the store itself.
	Preloaded bool
	Snapshot  *sheet.SessionState
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}

	vb := errors.NewValidationBuilder()
	if c.Document == nil {
		vb.RequiredField("Document")
	}
	if c.Repository == nil && !c.Preloaded {
		vb.RequiredField("Repository")
	}
	if c.Saver == nil {
		vb.RequiredField("Saver")
	}
	if c.Notifier == nil {
		vb.RequiredField("Notifier")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}
	errors.ValidateRequired("Key", c.Key, vb)

	return vb.Build()
}

type orchestrator struct {
	doc      *sheet.Document
	saver    persistence.Saver
	notifier events.Notifier
	clock    clock.Clock

	// mu guards state. notifyMu is taken before mu is released so that
	// notifications go out in mutation order while listeners can still
	// call GetState.
	mu       sync.Mutex
	notifyMu sync.Mutex
	state    *sheet.SessionState
}

// NewOrchestrator creates the tracker and loads the persisted state
func NewOrchestrator(ctx context.Context, cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	stored := cfg.Snapshot
	if !cfg.Preloaded {
		stored = LoadSnapshot(ctx, cfg.Repository, cfg.Key)
	}

	o := &orchestrator{
		doc:      cfg.Document,
		saver:    cfg.Saver,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
	}
	o.state = o.restore(ctx, stored)

	return o, nil
}

// LoadSnapshot reads and decodes the stored state. A missing or unreadable
// snapshot is logged and returns nil so the caller falls back to defaults.
func LoadSnapshot(ctx context.Context, repo sessionstate.Repository, key string) *sheet.SessionState {
	if repo == nil {
		return nil
	}

	out, err := repo.Get(ctx, &sessionstate.GetInput{Key: key})
	if err != nil {
		if errors.IsNotFound(err) {
			slog.InfoContext(ctx, "No stored session state, starting from document defaults", "key", key)
		} else {
			slog.WarnContext(ctx, "Failed to read stored session state, starting from document defaults",
				"key", key,
				"error", err)
		}
		return nil
	}

	state, err := snapshot.Decode(out.Record.Value)
	if err != nil {
		slog.WarnContext(ctx, "Stored session state is unreadable, starting from document defaults",
			"key", key,
			"error", err)
		return nil
	}

	return state
}

// restore applies the document's current maximum hit points to a stored
// state, or builds defaults when there is none
func (o *orchestrator) restore(ctx context.Context, stored *sheet.SessionState) *sheet.SessionState {
	if stored == nil {
		state := o.doc.DefaultState()
		state.LastUpdated = clock.Stamp(o.clock, 0)
		return state
	}

	state := stored.Clone()
	state.Normalize()
	maxHP := o.doc.MaxHitPoints()
	if state.HitPoints.Maximum != maxHP {
		slog.InfoContext(ctx, "Maximum hit points changed since last session",
			"stored", state.HitPoints.Maximum,
			"current", maxHP)
		state.HitPoints.Maximum = maxHP
		state.Normalize()
	}

	slog.DebugContext(ctx, "Restored session state",
		"character", o.doc.Name,
		"hit_points", state.HitPoints.Current,
		"last_updated", state.LastUpdated)
	return state
}

// apply runs fn against the state. When fn reports a change the state is
// stamped, scheduled for saving and published. No-ops do none of that.
func (o *orchestrator) apply(ctx context.Context, op string, fn func(state *sheet.SessionState) bool) *MutationOutput {
	o.mu.Lock()

	if !fn(o.state) {
		out := &MutationOutput{State: o.state.Clone()}
		o.mu.Unlock()
		slog.DebugContext(ctx, "Session state unchanged", "op", op)
		return out
	}

	o.state.LastUpdated = clock.Stamp(o.clock, o.state.LastUpdated)
	o.saver.Schedule(ctx, o.state)
	published := o.state.Clone()

	o.notifyMu.Lock()
	o.mu.Unlock()
	defer o.notifyMu.Unlock()

	if err := o.notifier.Publish(ctx, o.doc, published); err != nil {
		slog.ErrorContext(ctx, "Failed to notify state listeners", "op", op, "error", err)
	}

	slog.DebugContext(ctx, "Session state changed",
		"op", op,
		"last_updated", published.LastUpdated)

	return &MutationOutput{State: published.Clone(), Changed: true}
}

func (o *orchestrator) GetState(_ context.Context) *sheet.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

func (o *orchestrator) DamageHitPoints(ctx context.Context, input *DamageHitPointsInput) (*MutationOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	return o.apply(ctx, "damage_hit_points", func(state *sheet.SessionState) bool {
		return state.HitPoints.Damage(input.Amount)
	}), nil
}

func (o *orchestrator) HealHitPoints(ctx context.Context, input *HealHitPointsInput) (*MutationOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	return o.apply(ctx, "heal_hit_points", func(state *sheet.SessionState) bool {
		return state.HitPoints.Heal(input.Amount)
	}), nil
}

func (o *orchestrator) DamageShield(ctx context.Context, input *DamageShieldInput) (*MutationOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	return o.apply(ctx, "damage_shield", func(state *sheet.SessionState) bool {
		return updateShield(ctx, state, input.ShieldID, func(shield *sheet.Shield) bool {
			return shield.Damage(input.Amount)
		})
	}), nil
}

func (o *orchestrator) HealShield(ctx context.Context, input *HealShieldInput) (*MutationOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	return o.apply(ctx, "heal_shield", func(state *sheet.SessionState) bool {
		return updateShield(ctx, state, input.ShieldID, func(shield *sheet.Shield) bool {
			return shield.Heal(input.Amount)
		})
	}), nil
}

func (o *orchestrator) UseSpellSlot(ctx context.Context, input *SpellSlotInput) (*MutationOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	return o.apply(ctx, "use_spell_slot", func(state *sheet.SessionState) bool {
		return updateCounter(ctx, state.SpellSlots, "spell slot", input.Level, (*sheet.Counter).Use)
	}), nil
}

func (o *orchestrator) RestoreSpellSlot(ctx context.Context, input *SpellSlotInput) (*MutationOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	return o.apply(ctx, "restore_spell_slot", func(state *sheet.SessionState) bool {
		return updateCounter(ctx, state.SpellSlots, "spell slot", input.Level, (*sheet.Counter).Restore)
	}), nil
}

func (o *orchestrator) UseLimitedAbility(ctx context.Context, input *LimitedAbilityInput) (*MutationOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	return o.apply(ctx, "use_limited_ability", func(state *sheet.SessionState) bool {
		return updateCounter(ctx, state.LimitedUseAbilities, "ability", input.Name, (*sheet.Counter).Use)
	}), nil
}

func (o *orchestrator) RestoreLimitedAbility(ctx context.Context, input *LimitedAbilityInput) (*MutationOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	return o.apply(ctx, "restore_limited_ability", func(state *sheet.SessionState) bool {
		return updateCounter(ctx, state.LimitedUseAbilities, "ability", input.Name, (*sheet.Counter).Restore)
	}), nil
}

func (o *orchestrator) UseLegendaryResistance(ctx context.Context) (*MutationOutput, error) {
	return o.apply(ctx, "use_legendary_resistance", func(state *sheet.SessionState) bool {
		return state.LegendaryResistances.Use()
	}), nil
}

func (o *orchestrator) RestoreLegendaryResistance(ctx context.Context) (*MutationOutput, error) {
	return o.apply(ctx, "restore_legendary_resistance", func(state *sheet.SessionState) bool {
		return state.LegendaryResistances.Restore()
	}), nil
}

func (o *orchestrator) LongRest(ctx context.Context) (*MutationOutput, error) {
	out := o.apply(ctx, "long_rest", func(state *sheet.SessionState) bool {
		return state.LongRest()
	})
	if out.Changed {
		slog.InfoContext(ctx, "Long rest taken", "character", o.doc.Name)
	}
	return out, nil
}

func (o *orchestrator) Reset(ctx context.Context) (*MutationOutput, error) {
	return o.apply(ctx, "reset", func(state *sheet.SessionState) bool {
		defaults := o.doc.DefaultState()
		defaults.LastUpdated = state.LastUpdated
		if reflect.DeepEqual(defaults, state) {
			return false
		}
		*state = *defaults
		return true
	}), nil
}

func (o *orchestrator) Import(ctx context.Context, input *ImportInput) (*MutationOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	imported, err := snapshot.Import(o.doc, input.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to import session state")
	}

	out := o.apply(ctx, "import", func(state *sheet.SessionState) bool {
		previous := state.LastUpdated
		*state = *imported
		// stamping continues from whichever is later
		if previous > state.LastUpdated {
			state.LastUpdated = previous
		}
		return true
	})

	slog.InfoContext(ctx, "Imported session state",
		"character", o.doc.Name,
		"last_updated", out.State.LastUpdated)
	return out, nil
}

func (o *orchestrator) Export(ctx context.Context) (*ExportOutput, error) {
	state := o.GetState(ctx)

	data, err := snapshot.Export(o.doc, state)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export session state")
	}
	return &ExportOutput{Data: data}, nil
}

func (o *orchestrator) Subscribe(listener events.Listener) string {
	return o.notifier.Subscribe(listener)
}

func (o *orchestrator) Unsubscribe(id string) error {
	return o.notifier.Unsubscribe(id)
}

func (o *orchestrator) Close(ctx context.Context) error {
	if err := o.saver.Close(ctx); err != nil {
		return errors.Wrap(err, "failed to write pending session state")
	}
	return nil
}

func updateShield(ctx context.Context, state *sheet.SessionState, id string, fn func(*sheet.Shield) bool) bool {
	shield, ok := state.Shields[id]
	if !ok {
		slog.DebugContext(ctx, "Unknown shield", "shield_id", id)
		return false
	}
	if !fn(&shield) {
		return false
	}
	state.Shields[id] = shield
	return true
}

func updateCounter(ctx context.Context, counters map[string]sheet.Counter, kind, name string, fn func(*sheet.Counter) bool) bool {
	counter, ok := counters[name]
	if !ok {
		slog.DebugContext(ctx, "Unknown "+kind, "name", name)
		return false
	}
	if !fn(&counter) {
		return false
	}
	counters[name] = counter
	return true
}
