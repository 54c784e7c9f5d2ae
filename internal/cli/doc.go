// Package cli parses command-line arguments into an Invocation. It layers
// HCL configuration files, BURSTSTATE_* environment variables and explicit
// flags, and reports usage problems as an ExitError carrying an exit code.
package cli
