// Package registry is the glue between module packages and the store.
//
// Module packages self-register through the Module interface. Once every
// module is in, Build validates the set, folds every serializer
// contribution into one codec and computes the action routing table. All
// construction problems are reported together so a misconfigured module
// set fails fast at startup.
package registry
