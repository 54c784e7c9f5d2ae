// Package integration_tests holds end-to-end scenarios that run the
// application from HCL configuration through the store to persistence.
// The tests live in subdirectories grouped by concern.
package integration_tests
