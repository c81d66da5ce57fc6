// FocusCoach CLI - make and inspect coaching decisions from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quantumlife/focuscoach/internal/bootstrap"
	"github.com/quantumlife/focuscoach/internal/config"
	"github.com/quantumlife/focuscoach/internal/logging"
)

var (
	// Config
	configPath string
	dataDir    string
	jsonOutput bool

	// Version
	version = "0.1.0-alpha"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coach",
		Short: "FocusCoach - contextual intervention engine",
		Long: `FocusCoach decides whether, what, how and when to coach a person
based on what they are doing right now and what has worked for them before.

State is kept in the data directory; the same engine backs coachd.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				color.NoColor = true
			}
			logging.SetOutput(os.Stderr)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	// Commands
	rootCmd.AddCommand(decideCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	// The CLI keeps stdout for results
	return bootstrap.LoadConfig(configPath, dataDir, os.Stderr)
}

// withEngine opens the engine for the duration of fn.
func withEngine(ctx context.Context, fn func(e *bootstrap.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := bootstrap.EnsureDataDir(cfg); err != nil {
		return err
	}
	e, err := bootstrap.Open(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// termWidth is the terminal width, or 80 when stdout is not a terminal.
func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// versionCmd shows version info
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("coach %s\n", version)
		},
	}
}

// configCmd shows or writes configuration
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := configPath
			if path == "" {
				path = config.DefaultPath(cfg.DataDir)
			}
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("%s %s already exists\n", yellow("!"), path)
				return nil
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Printf("%s wrote %s\n", green("✓"), path)
			return nil
		},
	})

	return cmd
}
