// Package live holds the Ginkgo contract specs for the target catalog.
//
// By default the specs run against the in-process twins. Set APICHECK_LIVE=1
// (in the environment or a .env file) to run them against the public APIs;
// APICHECK_<TARGET>_URL overrides a single target's base URL.
package live
