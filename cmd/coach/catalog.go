package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantumlife/focuscoach/internal/catalog"
)

// catalogCmd inspects intervention catalogs
func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate intervention catalogs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List templates in the active catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cat.Templates())
			}
			for _, t := range cat.Templates() {
				def := ""
				if t.Default {
					def = green(" default")
				}
				fmt.Printf("%-16s %-12s %s%s\n", bold(string(t.ID)), cyan(t.Category), t.Title, def)
				fmt.Printf("%-16s %s %s  %s [%.1f, %.1f]\n", "", gray("actions"), t.TotalDuration(),
					gray("load"), t.LoadBand.Min, t.LoadBand.Max)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %d templates in %s\n", green("✓"), cat.Len(), strings.Join(cat.Categories(), ", "))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Print the built-in catalog as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Builtin()
			if err != nil {
				return err
			}
			data, err := catalog.Marshal(cat.Templates())
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	})

	return cmd
}
