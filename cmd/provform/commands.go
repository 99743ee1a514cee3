package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/provform/internal/api"
	"github.com/kalambet/provform/internal/config"
	"github.com/kalambet/provform/internal/profile"
)

// --- profiles ---

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Browse submitted profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List submitted profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var list []api.ProfileSummary
		if err := client.getJSON(cmd.Context(), "/profiles", &list); err != nil {
			return err
		}
		if len(list) == 0 {
			printWarning("No profiles submitted yet")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSUBMITTED\tSUMMARY")
		for _, p := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.SubmittedAt.Local().Format("2006-01-02 15:04"), p.Summary)
		}
		return tw.Flush()
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a submitted profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var p profile.SavedProfile
		if err := client.getJSON(cmd.Context(), "/profiles/"+args[0], &p); err != nil {
			return err
		}

		withPicture, _ := cmd.Flags().GetBool("with-picture")
		if !withPicture && p.ProfilePicture != nil {
			placeholder := fmt.Sprintf("<%d bytes omitted, use --with-picture>", len(*p.ProfilePicture))
			p.ProfilePicture = &placeholder
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var profilesDiffCmd = &cobra.Command{
	Use:   "diff <id-a> <id-b>",
	Short: "Show what changed between two submitted profiles",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var a, b profile.SavedProfile
		if err := client.getJSON(cmd.Context(), "/profiles/"+args[0], &a); err != nil {
			return err
		}
		if err := client.getJSON(cmd.Context(), "/profiles/"+args[1], &b); err != nil {
			return err
		}

		diff := profile.DiffSaved(a, b)
		if diff == "" {
			printSuccess("Profiles %s and %s are identical", a.ID, b.ID)
			return nil
		}
		writeDiff(cmd.OutOrStdout(), diff)
		return nil
	},
}

func writeDiff(w io.Writer, diff string) {
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			fmt.Fprintln(w, colorize(colorBold, line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintln(w, colorize(colorRed, line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprintln(w, colorize(colorGreen, line))
		default:
			fmt.Fprintln(w, line)
		}
	}
}

func init() {
	profilesShowCmd.Flags().Bool("with-picture", false, "include the full picture data URI")
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	profilesCmd.AddCommand(profilesDiffCmd)
}

// --- data ---

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Export stored data",
}

var dataExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all submitted profiles as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var list []api.ProfileSummary
		if err := client.getJSON(cmd.Context(), "/profiles", &list); err != nil {
			return err
		}

		writer := cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		enc := json.NewEncoder(writer)
		for _, s := range list {
			var p profile.SavedProfile
			if err := client.getJSON(cmd.Context(), "/profiles/"+s.ID, &p); err != nil {
				return err
			}
			record := map[string]any{"type": "profile", "data": p}
			if err := enc.Encode(record); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
		}

		if output != "" {
			printSuccess("Exported %d profiles to %s", len(list), output)
		}
		return nil
	},
}

func init() {
	dataExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	dataCmd.AddCommand(dataExportCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
