// Package targets is the catalog of APIs apicheck knows out of the box:
// the Open Brewery DB, the Dog CEO image API and JSONPlaceholder posts,
// plus an ad-hoc smoke check against any URL.
//
// Every target is plain data: templates, record schemas and cases built on
// the suite package. Adding an API means adding a file here (or a YAML
// suite); the runner does not change.
package targets
