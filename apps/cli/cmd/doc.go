// Package cmd implements the apicheck CLI commands using Cobra.
//
// Available commands:
//   - run: Run suite files and catalog targets
//   - smoke: Check that one URL answers with the expected status
//   - validate: Load suites and check their references without sending requests
//   - list: Show catalog targets or the cases of suites
//   - schema: Print record schemas as JSON Schema or check a payload
//   - history: Query runs recorded with --history
//   - import: Generate suites from OpenAPI documents
//   - init: Create a config file and an example suite
//   - version: Show version information
//
// Exit codes: 0 when every case passes, 1 on test failures, 2 for suites
// that do not load, 3 for config errors, 4 when every failure is a
// transport failure, 64 for usage errors.
package cmd
