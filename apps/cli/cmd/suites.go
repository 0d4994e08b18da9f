package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/apicheck/packages/core/config"
	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
	"github.com/abdul-hamid-achik/apicheck/packages/targets"
)

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isSuiteFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if isSuiteFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

func isSuiteFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadSuites loads suite files. Every file is attempted; errors are joined
// per file.
func loadSuites(files []string, vars map[string]any) ([]*suite.Suite, error) {
	var (
		suites []*suite.Suite
		errs   []string
	)
	for _, file := range files {
		s, err := suite.LoadFile(file, suite.WithVariables(vars), suite.WithWarnFunc(warnf))
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		suites = append(suites, s)
	}
	if len(errs) > 0 {
		return suites, withCode(ExitParseError, fmt.Errorf("%s", strings.Join(errs, "\n")))
	}
	return suites, nil
}

// targetSuites builds catalog suites by name. "all" selects every target.
// A base URL comes from APICHECK_<NAME>_URL, else the config file's
// targets map, else the catalog default.
func targetSuites(names []string, cfg *config.Config) ([]*suite.Suite, error) {
	if len(names) == 1 && names[0] == "all" {
		names = targets.Names()
	}
	var suites []*suite.Suite
	for _, name := range names {
		target, ok := targets.Lookup(name)
		if !ok {
			return nil, withCode(ExitUsageError, fmt.Errorf("unknown target %q (available: %s)", name, strings.Join(targets.Names(), ", ")))
		}
		baseURL, _ := cfg.TargetURL(name)
		if u := os.Getenv(targetURLEnv(name)); u != "" {
			baseURL = u
		}
		suites = append(suites, target.Suite(baseURL))
	}
	return suites, nil
}

func targetURLEnv(name string) string {
	return "APICHECK_" + strings.ToUpper(name) + "_URL"
}
