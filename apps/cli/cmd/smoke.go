package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
	"github.com/abdul-hamid-achik/apicheck/packages/targets"
	"github.com/spf13/cobra"
)

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Check that a URL answers with the expected status",
	Long: `Send one GET request and check the status code. Useful to confirm
network access before running full suites.

Examples:
  apicheck smoke
  apicheck smoke --url https://api.openbrewerydb.org/v1/breweries --status-code 200`,
	Args: cobra.NoArgs,
	RunE: smokeCommand,
}

var (
	smokeURLFlag    string
	smokeStatusFlag int
)

func init() {
	smokeCmd.Flags().StringVar(&smokeURLFlag, "url", getEnvString("APICHECK_SMOKE_URL", targets.SmokeURL), "URL to request (env: APICHECK_SMOKE_URL)")
	smokeCmd.Flags().IntVar(&smokeStatusFlag, "status-code", targets.SmokeStatus, "Expected status code")
	smokeCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("APICHECK_TIMEOUT", ""), "Request timeout (e.g., 10s) (env: APICHECK_TIMEOUT)")
	smokeCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("APICHECK_NO_COLOR", false), "Disable colored output (env: APICHECK_NO_COLOR)")
	smokeCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output")
	smokeCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("APICHECK_PROXY", ""), "Proxy URL for HTTP requests (env: APICHECK_PROXY)")
	smokeCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("APICHECK_INSECURE", false), "Disable SSL certificate validation (env: APICHECK_INSECURE)")
}

func smokeCommand(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// Console only; a smoke check is never written to a report file.
	cfg.Output = "console"
	cfg.OutputFile = ""

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runSuites(ctx, cmd, cfg, []*suite.Suite{targets.Smoke(smokeURLFlag, smokeStatusFlag)}, nil)
}
