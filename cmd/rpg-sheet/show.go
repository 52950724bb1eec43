package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
)

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the character's current resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				return renderState(cmd.OutOrStdout(), a.doc, a.tracker.GetState(ctx))
			})
		},
	}
}

func renderState(out io.Writer, doc *sheet.Document, state *sheet.SessionState) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "%s\n", doc.Name)
	fmt.Fprintf(w, "Level %d %s %s\n", doc.Level, doc.Race, classLine(doc))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Hit Points\t%d / %d\n", state.HitPoints.Current, state.HitPoints.Maximum)

	if len(state.Shields) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Shields")
		for _, id := range state.ShieldIDs() {
			shield := state.Shields[id]
			line := fmt.Sprintf("  %s (%s)\t%d / %d", shield.Label, id, shield.Current, shield.Capacity)
			if !shield.Healable {
				line += "\tcannot be healed"
			}
			if shield.Special != "" {
				line += "\t" + shield.Special
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(state.SpellSlots) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Spell Slots")
		for _, level := range state.SpellLevels() {
			slot := state.SpellSlots[level]
			fmt.Fprintf(w, "  %s\t%d / %d\n", level, slot.Remaining(), slot.Total)
		}
	}

	if len(state.LimitedUseAbilities) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Abilities")
		for _, name := range state.AbilityNames() {
			ability := state.LimitedUseAbilities[name]
			fmt.Fprintf(w, "  %s\t%d / %d\n", name, ability.Remaining(), ability.Total)
		}
	}

	legendary := state.LegendaryResistances
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Legendary Resistances\t%d / %d\n", legendary.Remaining(), legendary.Total)
	for _, source := range doc.LegendaryResistances.Sources {
		fmt.Fprintf(w, "  %s\n", source)
	}

	if state.LastUpdated > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Last updated\t%s\n", time.UnixMilli(state.LastUpdated).Format(time.RFC1123))
	}

	return w.Flush()
}

func classLine(doc *sheet.Document) string {
	parts := []string{doc.Class}
	if doc.Subclass != "" {
		parts = append(parts, "("+doc.Subclass+")")
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
