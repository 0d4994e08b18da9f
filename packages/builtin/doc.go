// Package builtin provides the functions available inside {{...}}
// expressions of suite files.
//
// Available functions:
//   - uuid(): random UUID v4, handy for well-formed ids that do not exist
//   - now(), timestamp(), date(format)
//   - random(min, max): random integer in range
//   - randomString(length): random alphanumeric string
//   - pick(a, b, ...): one of the arguments at random
//   - base64(value), urlEncode(value), lower(value), upper(value)
package builtin
