// Package codec serializes heterogeneous, polymorphic module state and
// actions to text and back.
//
// Modules contribute the concrete variants of their polymorphic families to
// a Registry at construction time. Compose freezes the merged registry into
// an immutable Codec that is safe for concurrent use.
//
// The wire format is JSON. A value in an interface-typed position is written
// as a tagged envelope:
//
//	{"@type":"counter.Increment","value":{...}}
//
// A value in an `any` position whose dynamic type was never registered is
// converted structurally through cty and written as {"@any":...}. That path
// keeps numbers, strings, bools, sequences and string-keyed maps but not Go
// types: numbers come back as float64.
package codec
