// Package config defines the format-agnostic configuration model for the
// application and the Loader interface that fills it from a concrete file
// format. Environment overrides are applied on top of whatever a Loader
// produced; command-line flags are applied last by the cli package.
package config
