// Package output renders suite reports.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output, with curl
//     reproductions of failed requests in verbose mode
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//   - XLSX: Excel workbook with one row per case
//
// Each formatter implements the Formatter interface and can optionally
// implement Flushable for formats that accumulate results before output.
package output
