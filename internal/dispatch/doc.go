// Package dispatch sequences actions into module reducers.
//
// Every action first runs through the middleware chain on the caller's
// goroutine. Only when the whole chain returns nil is the (possibly
// rewritten) action routed to its owning module and queued on that
// module's lane. A fixed pool of workers drains lanes so each module sees its actions strictly in arrival order, one at a
// time, while different modules progress in parallel. There is no ordering
// between modules.
//
// After the reducer runs, the new value is published to observers, the
// action is handed to the inspection tap and finally forwarded to the
// module's Logic handler. Failed, dropped and rejected actions reach the
// tap too, tagged with their outcome.
package dispatch
