package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumlife/focuscoach/internal/catalog"
	"github.com/quantumlife/focuscoach/internal/core"
	"github.com/quantumlife/focuscoach/internal/simulation"
)

// simulateCmd runs synthetic users against a fresh in-memory engine
func simulateCmd() *cobra.Command {
	var (
		users int
		steps int
		seed  int64
		every time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run synthetic users against the engine",
		Long: `Simulate work days for synthetic users with hidden preferences and
report how often interventions were accepted and what the engine learned.

The run uses the configured policy and catalog with an in-memory store;
stored profiles are not touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}

			simCfg := simulation.DefaultConfig()
			simCfg.Users, simCfg.Steps, simCfg.Seed = cfg.Simulation.Users, cfg.Simulation.Steps, cfg.Simulation.Seed
			flags := cmd.Flags()
			if flags.Changed("users") {
				simCfg.Users = users
			}
			if flags.Changed("steps") {
				simCfg.Steps = steps
			}
			if flags.Changed("seed") {
				simCfg.Seed = seed
			}
			if flags.Changed("step") {
				simCfg.StepInterval = every
			}

			sim, err := simulation.New(simCfg, nil, cat, cfg.Policy)
			if err != nil {
				return err
			}
			report, err := sim.Run(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(report)
			}
			printReport(report)
			return nil
		},
	}

	cmd.Flags().IntVar(&users, "users", 0, "number of synthetic users")
	cmd.Flags().IntVar(&steps, "steps", 0, "decisions per user")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().DurationVar(&every, "step", 15*time.Minute, "simulated time between decisions")
	return cmd
}

func printReport(r *simulation.Report) {
	fmt.Printf("%s %d users × %d steps, seed %d, %s → %s\n\n", bold("Simulation:"),
		r.Users, r.Steps, r.Seed, r.Start.Format("Mon Jan 2"), r.End.Format("Mon Jan 2"))

	total := 0
	for _, n := range r.Outcomes {
		total += n
	}
	for _, o := range []core.Outcome{core.OutcomeIntervene, core.OutcomeDeferred, core.OutcomeSkipped} {
		fmt.Printf("   %-10s %6d  %5.1f%%\n", o, r.Outcomes[o], pct(r.Outcomes[o], total))
	}

	reasons := make([]core.Reason, 0, len(r.Reasons))
	for reason := range r.Reasons {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return r.Reasons[reasons[i]] > r.Reasons[reasons[j]] })
	if len(reasons) > 0 {
		fmt.Printf("\n   %s\n", bold("Reasons"))
		for _, reason := range reasons {
			fmt.Printf("   %-22s %6d\n", reason, r.Reasons[reason])
		}
	}

	width := termWidth() - 60
	if width < 10 {
		width = 10
	}
	if width > 30 {
		width = 30
	}

	fmt.Printf("\n   %s %s of %d issued\n", bold("Accepted"), green(fmt.Sprintf("%.1f%%", r.AcceptanceRate*100)), r.Issued)
	fmt.Printf("\n   %-16s %6s %9s  %s\n", gray("template"), gray("issued"), gray("accepted"), gray("learned"))
	for _, t := range r.Templates {
		fmt.Printf("   %-16s %6d %8.1f%%  %s %.2f\n", t.TemplateID, t.Issued, t.AcceptanceRate*100, bar(t.LearnedScore, width), t.LearnedScore)
	}

	fmt.Printf("\n   %-16s %6s %9s\n", gray("persona"), gray("issued"), gray("accepted"))
	for _, p := range r.Personas {
		fmt.Printf("   %-16s %6d %8.1f%%\n", p.Persona, p.Issued, p.AcceptanceRate*100)
	}
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
