package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumlife/focuscoach/internal/bootstrap"
	"github.com/quantumlife/focuscoach/internal/core"
)

// decideCmd runs one decision for a user
func decideCmd() *cobra.Command {
	var (
		signals     map[string]string
		contextFile string
	)

	cmd := &cobra.Command{
		Use:   "decide <user>",
		Short: "Assess a context and decide on an intervention",
		Long: `Assess the user's current context and decide whether to intervene.

Signals are given as key=value pairs or as a JSON object:

  coach decide alice -s task_complexity=0.7 -s distractions=4 -s time_of_day=morning
  echo '{"stress_level": 0.8}' | coach decide alice --context-file -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readContext(signals, contextFile)
			if err != nil {
				return err
			}

			return withEngine(cmd.Context(), func(e *bootstrap.Engine) error {
				res, err := e.Service.AssessAndDecide(cmd.Context(), core.UserID(args[0]), raw)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(res)
				}
				printDecision(res)
				return nil
			})
		},
	}

	cmd.Flags().StringToStringVarP(&signals, "signal", "s", nil, "context signal as key=value (repeatable)")
	cmd.Flags().StringVar(&contextFile, "context-file", "", "JSON context object, - for stdin")
	return cmd
}

func readContext(signals map[string]string, path string) (map[string]interface{}, error) {
	raw := make(map[string]interface{})

	if path != "" {
		var r io.Reader = os.Stdin
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: context: %v", core.ErrInvalidInput, err)
		}
	}

	// Flags win over the file
	for k, v := range signals {
		raw[k] = v
	}
	return raw, nil
}

func printDecision(res *core.DecisionResult) {
	a := res.Assessed
	fmt.Printf("%s  load %.2f  energy %.2f  stress %.2f  receptivity %.2f  focus %s\n",
		gray("assessed"), a.CognitiveLoad, a.EnergyLevel, a.StressLevel, a.Receptivity, a.FocusState)
	if len(a.Triggers) > 0 {
		fmt.Printf("%s  %s\n", gray("triggers"), strings.Join(a.Triggers, ", "))
	}
	for _, w := range res.Warnings {
		fmt.Printf("%s %s\n", yellow("!"), w)
	}
	fmt.Println()

	switch res.Outcome {
	case core.OutcomeDeferred:
		fmt.Printf("%s %s, retry in %s\n", yellow("deferred:"), res.Reason, res.RetryAfter.Round(time.Second))
		return
	case core.OutcomeSkipped:
		fmt.Printf("%s %s\n", yellow("skipped:"), res.Reason)
		return
	}

	iv := res.Intervention
	header := fmt.Sprintf("%s %s", green("intervene:"), bold(iv.Headline))
	if res.Reason != core.ReasonNone {
		header += gray(fmt.Sprintf(" (%s)", res.Reason))
	}
	fmt.Println(header)
	fmt.Printf("   %s %s  %s %s  %s %s\n",
		gray("id"), iv.ID, gray("template"), iv.TemplateID, gray("intensity"), iv.Intensity)

	for i, step := range iv.Steps {
		marker := "•"
		switch iv.Format {
		case core.FormatNumbered:
			marker = fmt.Sprintf("%d.", i+1)
		case core.FormatSuggested:
			marker = "→"
		}
		fmt.Printf("   %s %s %s\n", cyan(marker), step.Text, gray("("+step.Duration.String()+")"))
	}

	t := iv.Timing
	fmt.Printf("\n   %s %s at %s, expires %s",
		gray("deliver"), t.Mode, t.DeliverAt.Format("15:04"), t.Expiry.Format("15:04"))
	if t.QuietShifted {
		fmt.Print(gray(" (after quiet hours)"))
	}
	fmt.Printf("\n   %s %d left today\n", gray("budget"), t.DailyRemaining)
}

// feedbackCmd records the outcome of an intervention
func feedbackCmd() *cobra.Command {
	var (
		completed    bool
		satisfaction float64
		engagement   float64
	)

	cmd := &cobra.Command{
		Use:   "feedback <user> <intervention-id>",
		Short: "Record how an intervention went",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if satisfaction < 0 || satisfaction > 1 {
				return fmt.Errorf("%w: satisfaction must be within [0,1]", core.ErrInvalidInput)
			}
			fb := core.Feedback{
				Completion:   completed,
				Satisfaction: satisfaction,
				Timestamp:    time.Now(),
			}
			if cmd.Flags().Changed("engagement") {
				if engagement < 0 || engagement > 1 {
					return fmt.Errorf("%w: engagement must be within [0,1]", core.ErrInvalidInput)
				}
				fb.Engagement = &engagement
			}

			return withEngine(cmd.Context(), func(e *bootstrap.Engine) error {
				status, err := e.Service.RecordFeedback(cmd.Context(), core.UserID(args[0]), core.InterventionID(args[1]), fb)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(map[string]interface{}{"status": status})
				}
				switch status {
				case core.FeedbackOK:
					fmt.Printf("%s feedback recorded\n", green("✓"))
				default:
					fmt.Printf("%s %s\n", yellow("!"), status)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completed, "completed", false, "the user completed the intervention")
	cmd.Flags().Float64Var(&satisfaction, "satisfaction", 0.5, "satisfaction in [0,1]")
	cmd.Flags().Float64Var(&engagement, "engagement", 0, "engagement in [0,1]")
	return cmd
}
