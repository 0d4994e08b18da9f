// Package twins provides in-process stand-ins for the public APIs in the
// target catalog. They reproduce the documented behavior the catalog's
// cases check (status codes, page-size clamping, echoed bodies) so the
// repository's own tests never touch the network. The CLI never uses them.
package twins
