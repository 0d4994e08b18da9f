// Package assertions evaluates declarative expectations against responses.
//
// Supported expectations:
//   - Status code equality
//   - Field equality and predicates over gjson paths (body.items[0].id)
//   - Collection length
//   - Record schema validity (from package schema)
//   - Header predicates
//   - JSON Schema documents
//
// Predicates: equals, contains, prefix, matches, range, one_of, type,
// not_empty and each. Every check runs unless fail-fast is requested, so
// a report lists all failures of a case.
package assertions
