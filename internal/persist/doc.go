// Package persist converts the whole store to a single text blob and back.
//
// A Backend only stores and returns opaque text. The Bridge owns the
// format: every module's state is encoded with the store codec and the
// results are written as one JSON document, keys in module registration
// order. Restore degrades per module: an unknown id is dropped, a missing
// or undecodable one keeps its initial state, and the rest are swapped in
// together while dispatch is paused.
package persist
