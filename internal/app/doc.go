// Package app contains the core application logic. It wires configuration,
// logging, the module registry, the store, its persistence backend and the
// optional devtools connection, and runs the application lifecycle
// decoupled from any specific entrypoint like a CLI.
package app
