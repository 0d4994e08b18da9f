// Package http executes request descriptors against live endpoints.
//
// It wraps the standard library's http package with:
//   - A default 100 second timeout, overridable per request
//   - Redirect, proxy and TLS verification options
//   - Classified transport errors (timeout, dns, connection, protocol)
//   - Shell-quoted curl reproductions of requests
package http
