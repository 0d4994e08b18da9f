package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/abdul-hamid-achik/apicheck/packages/targets"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [suite.yaml|directory...]",
	Short: "List catalog targets or the cases of suites",
	Long: `Without arguments, list the built-in targets. With suite files or
--target, list every case with its tags.

Examples:
  apicheck list
  apicheck list ./suites/
  apicheck list --target brewery`,
	RunE: listCommand,
}

func init() {
	listCmd.Flags().StringVarP(&targetFlag, "target", "T", "", "Catalog targets to list, comma-separated, or \"all\"")
	listCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("APICHECK_ENV_FILE", ""), "Comma-separated .env files for variable interpolation (env: APICHECK_ENV_FILE)")
	listCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Set a suite variable (key=value), repeatable")
}

func listCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) == 0 && targetFlag == "" {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TARGET\tBASE URL\tDESCRIPTION")
		for _, t := range targets.All() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.BaseURL, t.Description)
		}
		return tw.Flush()
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	suites, err := collectSuites(args, cfg)
	if err != nil {
		return err
	}

	for _, s := range suites {
		label := s.Name
		if s.Source != "" {
			label += " (" + s.Source + ")"
		}
		fmt.Fprintf(out, "\n%s:\n", label)
		for _, c := range s.Cases {
			fmt.Fprintf(out, "  - %s\n", c.ID)
			if len(c.Tags) > 0 {
				fmt.Fprintf(out, "    tags: %v\n", c.Tags)
			}
			if c.Skip != "" {
				fmt.Fprintf(out, "    skip: %s\n", c.Skip)
			}
		}
	}
	return nil
}
