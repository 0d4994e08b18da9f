package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <suite.yaml|directory...>",
	Short: "Validate suite files without sending requests",
	Long: `Load suite files and check that every case refers to a known
template, schema and lookup, and that every template parameter is set.

Examples:
  apicheck validate posts.yaml
  apicheck validate ./suites/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func init() {
	validateCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("APICHECK_ENV_FILE", ""), "Comma-separated .env files for variable interpolation (env: APICHECK_ENV_FILE)")
	validateCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Set a suite variable (key=value), repeatable")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withCode(ExitUsageError, fmt.Errorf("no .yaml or .yml suite files found"))
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	vars, err := loadVariables(cfg)
	if err != nil {
		return err
	}

	hasErrors := false
	for _, file := range files {
		s, err := suite.LoadFile(file, suite.WithVariables(vars), suite.WithWarnFunc(warnf))
		if err == nil {
			err = s.Validate()
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d cases)\n", file, len(s.Cases))
	}

	if hasErrors {
		return withCode(ExitParseError, fmt.Errorf("validation failed"))
	}
	return nil
}
