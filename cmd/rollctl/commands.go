package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/game/dice"
	"github.com/cory-johannsen/multiroll/internal/rolls"
)

// modifierFlags are the held keys of the simulated triggering event.
type modifierFlags struct {
	shift, alt, ctrl, meta bool
}

func (m *modifierFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&m.shift, "shift", false, "hold shift during the roll")
	cmd.Flags().BoolVar(&m.alt, "alt", false, "hold alt during the roll")
	cmd.Flags().BoolVar(&m.ctrl, "ctrl", false, "hold ctrl during the roll")
	cmd.Flags().BoolVar(&m.meta, "meta", false, "hold meta during the roll")
}

func (m modifierFlags) modifiers() rolls.Modifiers {
	return rolls.Modifiers{Shift: m.shift, Alt: m.alt, Ctrl: m.ctrl, Meta: m.meta}
}

var (
	useMods    modifierFlags
	useSpell   int
	damageMods modifierFlags
	damageOpts struct {
		group     int
		critical  bool
		versatile bool
		rollMode  string
	}
)

var useCmd = &cobra.Command{
	Use:   "use [item-id]",
	Short: "Use an item and run its automatic follow-up rolls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			it, err := a.item(args[0])
			if err != nil {
				return err
			}
			a.keys.Set(useMods.modifiers())
			req := rolls.ItemRollRequest{}
			if cmd.Flags().Changed("spell-level") {
				req.SpellLevel = &useSpell
			}
			_, err = a.patcher.RollItem(ctx, it, req)
			return err
		})
	},
}

var damageCmd = &cobra.Command{
	Use:   "damage [item-id]",
	Short: "Roll the damage of one formula group of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			it, err := a.item(args[0])
			if err != nil {
				return err
			}
			mode := chat.RollMode("")
			if damageOpts.rollMode != "" {
				if mode, err = chat.ParseRollMode(damageOpts.rollMode); err != nil {
					return err
				}
			}
			ev := damageMods.modifiers()
			_, err = a.patcher.RollDamage(ctx, it, rolls.DamageRequest{
				Event:        &ev,
				FormulaGroup: damageOpts.group,
				Critical:     damageOpts.critical,
				Versatile:    damageOpts.versatile,
				Options:      rolls.Options{RollMode: mode},
			})
			return err
		})
	},
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List the item catalogue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			out := cmd.OutOrStdout()
			for _, it := range a.registry.All() {
				fmt.Fprintf(out, "%-20s %-30s %d damage part(s)\n", it.ID, it.Name, len(it.DamageParts()))
			}
			return nil
		})
	},
}

func init() {
	useMods.register(useCmd)
	useCmd.Flags().IntVar(&useSpell, "spell-level", 0, "cast level of the damage roll")

	damageMods.register(damageCmd)
	damageCmd.Flags().IntVar(&damageOpts.group, "group", 0, "formula group index")
	damageCmd.Flags().BoolVar(&damageOpts.critical, "critical", false, "roll a critical hit")
	damageCmd.Flags().BoolVar(&damageOpts.versatile, "versatile", false, "use the versatile formula")
	damageCmd.Flags().StringVar(&damageOpts.rollMode, "roll-mode", "", "publicroll, gmroll, blindroll or selfroll")
}

// withApp wires an app, runs fn and prints every message fn created.
func withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	before, err := a.messages.List(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, a); err != nil {
		return err
	}
	after, err := a.messages.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range after[len(before):] {
		printMessage(cmd.OutOrStdout(), p)
	}
	return nil
}

func printMessage(w io.Writer, p chat.Payload) {
	label := p.Flavor()
	if label == "" {
		label, _ = p[chat.KeyType].(string)
	}
	var visibility []string
	if whisper := p.Whisper(); len(whisper) > 0 {
		visibility = append(visibility, "whisper="+strings.Join(whisper, ","))
	}
	if p.Blind() {
		visibility = append(visibility, "blind")
	}
	suffix := ""
	if len(visibility) > 0 {
		suffix = " [" + strings.Join(visibility, " ") + "]"
	}
	fmt.Fprintf(w, "%s%s\n", label, suffix)
	for _, r := range messageRolls(p) {
		fmt.Fprintf(w, "  %s\n", r.String())
	}
}

// messageRolls returns the part rolls of a damage message, or the single
// roll of a primitive roll message.
func messageRolls(p chat.Payload) []*dice.Roll {
	var out []*dice.Roll
	for _, raw := range p.PartRolls() {
		var r dice.Roll
		if json.Unmarshal(raw, &r) == nil {
			out = append(out, &r)
		}
	}
	if len(out) > 0 {
		return out
	}
	switch v := p[chat.KeyRoll].(type) {
	case *dice.Roll:
		if len(v.Terms) > 0 {
			out = append(out, v)
		}
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var r dice.Roll
		if json.Unmarshal(data, &r) == nil && len(r.Terms) > 0 {
			out = append(out, &r)
		}
	}
	return out
}
