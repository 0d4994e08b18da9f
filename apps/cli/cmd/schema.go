package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
	"github.com/abdul-hamid-achik/apicheck/packages/targets"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [name]",
	Short: "Show record schemas or check a payload against one",
	Long: `Without arguments, list the known record schemas. With a name, print
the schema as a JSON Schema document, or validate a JSON payload against it
with --check.

Schemas come from the target catalog, or from a suite file with --suite.

Examples:
  apicheck schema
  apicheck schema brewery
  apicheck schema post --check response.json --strict-all
  apicheck schema --suite posts.yaml post`,
	Args: cobra.MaximumNArgs(1),
	RunE: schemaCommand,
}

var (
	schemaSuiteFlag string
	schemaCheckFlag string
	schemaPathFlag  string
)

func init() {
	schemaCmd.Flags().StringVar(&schemaSuiteFlag, "suite", "", "Read schemas from this suite file instead of the catalog")
	schemaCmd.Flags().StringVar(&schemaCheckFlag, "check", "", "Validate this JSON file against the schema (- for stdin)")
	schemaCmd.Flags().StringVar(&schemaPathFlag, "path", "", "gjson path to the records inside the payload")
	schemaCmd.Flags().BoolVar(&strictAllFlag, "strict-all", false, "Validate every array element, not just the first")
}

func knownSchemas() (map[string]*schema.Schema, error) {
	schemas := make(map[string]*schema.Schema)
	if schemaSuiteFlag != "" {
		s, err := suite.LoadFile(schemaSuiteFlag, suite.WithWarnFunc(warnf))
		if err != nil {
			return nil, withCode(ExitParseError, err)
		}
		for name, sc := range s.Schemas {
			schemas[name] = sc
		}
		return schemas, nil
	}
	for _, t := range targets.All() {
		for name, sc := range t.Suite("").Schemas {
			schemas[name] = sc
		}
	}
	return schemas, nil
}

func schemaCommand(cmd *cobra.Command, args []string) error {
	schemas, err := knownSchemas()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, name := range names {
			sc := schemas[name]
			fmt.Fprintf(out, "%s (%d fields, required: %s)\n", name, len(sc.Fields), strings.Join(sc.RequiredFields(), ", "))
		}
		return nil
	}

	sc, ok := schemas[args[0]]
	if !ok {
		return withCode(ExitUsageError, fmt.Errorf("unknown schema %q (available: %s)", args[0], strings.Join(names, ", ")))
	}

	if schemaCheckFlag == "" {
		data, err := sc.MarshalJSONSchema()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	var payload []byte
	if schemaCheckFlag == "-" {
		payload, err = io.ReadAll(cmd.InOrStdin())
	} else {
		payload, err = os.ReadFile(schemaCheckFlag)
	}
	if err != nil {
		return withCode(ExitUsageError, fmt.Errorf("cannot read payload: %w", err))
	}

	result := schema.Validate(sc, payload, schema.WithStrictAll(strictAllFlag), schema.WithPath(schemaPathFlag))
	if result.Valid {
		fmt.Fprintf(out, "valid: %d record(s) match %s\n", len(result.Records), sc.Name)
		return nil
	}
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  - %s\n", e.Error())
	}
	return withCode(ExitTestFailure, fmt.Errorf("payload does not match schema %q", sc.Name))
}
