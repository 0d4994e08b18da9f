// Package runner executes suites of contract-test cases.
//
// For each selected case it builds the request from the case's endpoint
// template, sends it, validates the declared record schema and evaluates
// every expectation. Failures are classified (assertion, transport or
// missing parameter) and recorded per case; none of them stops the run.
//
// Cases run sequentially by default. Parallel mode bounds concurrency with
// a semaphore and each case writes only its own result slot. An optional
// rate limit throttles requests to public APIs.
package runner
