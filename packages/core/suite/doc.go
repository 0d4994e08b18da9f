// Package suite models parametrized contract-test cases.
//
// A Suite groups endpoint templates, record schemas, lookups and cases.
// Suites are built in Go (see the targets package) or loaded from YAML
// files with LoadFile. Parametrized YAML cases expand into one case per
// parameter set with ids such as by_type[micro].
package suite
