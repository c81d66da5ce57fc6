package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantumlife/focuscoach/internal/bootstrap"
	"github.com/quantumlife/focuscoach/internal/core"
)

// profileCmd manages user profiles
func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit user profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <user>",
		Short: "Show what the engine has learned about a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(e *bootstrap.Engine) error {
				p, err := e.Service.Profile(cmd.Context(), core.UserID(args[0]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(p)
				}
				printProfile(p)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(e *bootstrap.Engine) error {
				ids, err := e.Store.List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(ids)
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(profileSetCmd())

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <user>",
		Short: "Forget everything about a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(e *bootstrap.Engine) error {
				if err := e.Service.ResetUser(cmd.Context(), core.UserID(args[0])); err != nil {
					return err
				}
				fmt.Printf("%s %s reset\n", green("✓"), args[0])
				return nil
			})
		},
	})

	return cmd
}

func profileSetCmd() *cobra.Command {
	var (
		preset        string
		learningStyle string
		communication string
		workPattern   string
		motivations   []string
		threshold     float64
	)

	cmd := &cobra.Command{
		Use:   "set <user>",
		Short: "Set a user's traits",
		Long: `Set a user's traits from a preset and/or individual flags.

Presets: ` + strings.Join(presetNames(), ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := core.UserID(args[0])

			return withEngine(cmd.Context(), func(e *bootstrap.Engine) error {
				traits := core.DefaultTraits()
				if p, err := e.Service.Profile(cmd.Context(), userID); err == nil {
					traits = p.Traits
				}
				if preset != "" {
					t, ok := core.TraitPresets[preset]
					if !ok {
						return fmt.Errorf("%w: unknown preset %q", core.ErrInvalidTrait, preset)
					}
					traits = t.Clone()
				}

				var err error
				flags := cmd.Flags()
				if flags.Changed("learning-style") {
					if traits.LearningStyle, err = core.ParseLearningStyle(learningStyle); err != nil {
						return err
					}
				}
				if flags.Changed("communication") {
					if traits.Communication, err = core.ParseCommunicationPref(communication); err != nil {
						return err
					}
				}
				if flags.Changed("work-pattern") {
					if traits.WorkPattern, err = core.ParseWorkPattern(workPattern); err != nil {
						return err
					}
				}
				if flags.Changed("motivation") {
					traits.Motivations = nil
					for _, m := range motivations {
						mt, err := core.ParseMotivationTrigger(m)
						if err != nil {
							return err
						}
						traits.Motivations = append(traits.Motivations, mt)
					}
				}
				if flags.Changed("threshold") {
					traits.CognitiveLoadThreshold = threshold
				}

				p, err := e.Service.SetTraits(cmd.Context(), userID, traits)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(p)
				}
				printProfile(p)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "start from a named preset")
	cmd.Flags().StringVar(&learningStyle, "learning-style", "", "systematic, exploratory or balanced")
	cmd.Flags().StringVar(&communication, "communication", "", "direct, enthusiastic, supportive or consultative")
	cmd.Flags().StringVar(&workPattern, "work-pattern", "", "deep_focus, flexible or collaborative")
	cmd.Flags().StringSliceVar(&motivations, "motivation", nil, "motivation triggers (repeatable)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "cognitive load threshold in (0,1]")
	return cmd
}

func presetNames() []string {
	names := make([]string, 0, len(core.TraitPresets))
	for name := range core.TraitPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func printProfile(p *core.UserProfile) {
	t := p.Traits
	fmt.Printf("%s %s\n\n", bold("User:"), p.UserID)
	fmt.Printf("   %-14s %s\n", gray("learning"), t.LearningStyle)
	fmt.Printf("   %-14s %s\n", gray("tone"), t.Communication)
	fmt.Printf("   %-14s %s\n", gray("work"), t.WorkPattern)
	motivations := make([]string, len(t.Motivations))
	for i, m := range t.Motivations {
		motivations[i] = string(m)
	}
	fmt.Printf("   %-14s %s\n", gray("motivations"), strings.Join(motivations, ", "))
	fmt.Printf("   %-14s %.2f\n", gray("load limit"), t.CognitiveLoadThreshold)

	fmt.Printf("\n   %-14s %d today, %d dismissed in a row\n", gray("interventions"), p.DailyCount, p.ConsecutiveDismissals)
	if !p.LastInterventionAt.IsZero() {
		fmt.Printf("   %-14s %s\n", gray("last"), p.LastInterventionAt.Local().Format("Mon 15:04"))
	}
	fmt.Printf("   %-14s %.0f%% of %d responses\n", gray("engagement"), p.ResponseRate()*100, p.ResponsesRecorded)

	if len(p.EffectivenessScores) == 0 {
		return
	}
	ids := make([]core.TemplateID, 0, len(p.EffectivenessScores))
	for id := range p.EffectivenessScores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return p.EffectivenessScores[ids[i]] > p.EffectivenessScores[ids[j]] })

	fmt.Printf("\n   %s\n", bold("What works"))
	for _, id := range ids {
		score := p.EffectivenessScores[id]
		fmt.Printf("   %-16s %s %.2f %s\n", id, bar(score, 20), score,
			gray(fmt.Sprintf("(%d samples)", p.EffectivenessSamples[id])))
	}
}

func bar(v float64, width int) string {
	n := int(v*float64(width) + 0.5)
	if n < 0 {
		n = 0
	}
	if n > width {
		n = width
	}
	return cyan(strings.Repeat("█", n)) + gray(strings.Repeat("░", width-n))
}
