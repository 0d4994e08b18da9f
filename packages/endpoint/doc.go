// Package endpoint builds request descriptors from endpoint templates.
//
// Templates carry a method, a URL with {name} placeholders, default query
// parameters and default headers. Build substitutes case parameters into
// the URL (path-escaped), merges overrides over the defaults and attaches
// a pre-serialized body.
package endpoint
