// Package module defines what a store module is: an identifier, an initial
// state, a pure reducer, optional serializer contributions and an optional
// asynchronous Logic handler.
//
// Modules are plain data. The registry package collects them, and the store
// package turns a fixed set of them into a running store. Logic handlers and
// other consumers only ever see the store through the Accessor interface.
package module
