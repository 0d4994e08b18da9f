// Package schema validates JSON payloads against record schemas.
//
// A Schema is an ordered table of field descriptors. Validation walks the
// payload with gjson, so no reflection over user types is needed:
//   - Required fields must be present and coercible to the declared type
//   - Optional fields may be absent or null
//   - Unknown fields are ignored unless the schema is strict
//   - Arrays validate their first element, or every element in strict-all mode
//
// Coercion is lax in the way most API models are: an integer field accepts
// a numeric string, a boolean field accepts "true" and "false".
package schema
