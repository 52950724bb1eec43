package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/orchestrators/tracker"
)

func newHitPointsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hp",
		Short: "Damage or heal hit points",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "damage AMOUNT",
		Short: "Take damage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.DamageHitPoints(ctx, &tracker.DamageHitPointsInput{Amount: amount})
			}, describeHitPoints)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "heal AMOUNT",
		Short: "Restore hit points up to the maximum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.HealHitPoints(ctx, &tracker.HealHitPointsInput{Amount: amount})
			}, describeHitPoints)
		},
	})

	return cmd
}

func newShieldCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shield",
		Short: "Damage or recharge a shield",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "damage SHIELD AMOUNT",
		Short: "Drain a shield",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.DamageShield(ctx, &tracker.DamageShieldInput{ShieldID: id, Amount: amount})
			}, describeShield(id))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "heal SHIELD AMOUNT",
		Short: "Recharge a healable shield",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.HealShield(ctx, &tracker.HealShieldInput{ShieldID: id, Amount: amount})
			}, describeShield(id))
		},
	})

	return cmd
}

func newSlotCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Spend or restore a spell slot",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "use LEVEL",
		Short:   "Spend a spell slot, e.g. \"3rd\"",
		Example: "  rpg-sheet slot use 9th",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := args[0]
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.UseSpellSlot(ctx, &tracker.SpellSlotInput{Level: level})
			}, describeSlot(level))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore LEVEL",
		Short: "Give back a spent spell slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := args[0]
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.RestoreSpellSlot(ctx, &tracker.SpellSlotInput{Level: level})
			}, describeSlot(level))
		},
	})

	return cmd
}

func newAbilityCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ability",
		Short: "Spend or restore a limited-use ability",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "use NAME",
		Short:   "Spend one use of an ability",
		Example: "  rpg-sheet ability use Wild Shape",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.UseLimitedAbility(ctx, &tracker.LimitedAbilityInput{Name: name})
			}, describeAbility(name))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore NAME",
		Short: "Give back one use of an ability",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.RestoreLimitedAbility(ctx, &tracker.LimitedAbilityInput{Name: name})
			}, describeAbility(name))
		},
	})

	return cmd
}

func newLegendaryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legendary",
		Short: "Spend or restore a legendary resistance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "use",
		Short: "Spend a legendary resistance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.UseLegendaryResistance(ctx)
			}, describeLegendary)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore",
		Short: "Give back a legendary resistance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.RestoreLegendaryResistance(ctx)
			}, describeLegendary)
		},
	})

	return cmd
}

func newLongRestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "long-rest",
		Short: "Restore hit points, spell slots, abilities and legendary resistances",
		Long:  "Finish a long rest. Shields keep their current charge.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.LongRest(ctx)
			}, func(out io.Writer, _ *sheet.SessionState) {
				fmt.Fprintln(out, "Long rest complete")
			})
		},
	}
}

func newResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return every resource, shields included, to the document defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mutate(cmd, opts, func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error) {
				return svc.Reset(ctx)
			}, func(out io.Writer, _ *sheet.SessionState) {
				fmt.Fprintln(out, "Session state reset")
			})
		},
	}
}

type mutation func(ctx context.Context, svc tracker.Service) (*tracker.MutationOutput, error)

// mutate runs one tracker operation and reports the result
func mutate(cmd *cobra.Command, opts *options, run mutation, describe func(io.Writer, *sheet.SessionState)) error {
	return runWithApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
		output, err := run(ctx, a.tracker)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !output.Changed {
			fmt.Fprintln(out, "No change")
			return nil
		}
		describe(out, output.State)
		return nil
	})
}

func parseAmount(raw string) (int, error) {
	amount, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidArgumentf("amount %q is not a whole number", raw)
	}
	return amount, nil
}

func describeHitPoints(out io.Writer, state *sheet.SessionState) {
	fmt.Fprintf(out, "Hit Points: %d / %d\n", state.HitPoints.Current, state.HitPoints.Maximum)
}

func describeShield(id string) func(io.Writer, *sheet.SessionState) {
	return func(out io.Writer, state *sheet.SessionState) {
		shield := state.Shields[id]
		fmt.Fprintf(out, "%s: %d / %d\n", shield.Label, shield.Current, shield.Capacity)
	}
}

func describeSlot(level string) func(io.Writer, *sheet.SessionState) {
	return func(out io.Writer, state *sheet.SessionState) {
		slot := state.SpellSlots[level]
		fmt.Fprintf(out, "%s level slots: %d / %d\n", level, slot.Remaining(), slot.Total)
	}
}

func describeAbility(name string) func(io.Writer, *sheet.SessionState) {
	return func(out io.Writer, state *sheet.SessionState) {
		ability := state.LimitedUseAbilities[name]
		fmt.Fprintf(out, "%s: %d / %d\n", name, ability.Remaining(), ability.Total)
	}
}

func describeLegendary(out io.Writer, state *sheet.SessionState) {
	legendary := state.LegendaryResistances
	fmt.Fprintf(out, "Legendary Resistances: %d / %d\n", legendary.Remaining(), legendary.Total)
}
