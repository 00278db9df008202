// Package hedgekit provides the shared types used by hedging strategies: the
// resilience Context that crosses attempts, its property bag and event log,
// and the telemetry listener interface. The hedging algorithm itself lives in
// the hedging package.
package hedgekit

// Operation is a unit of work that a strategy executes, possibly several times
// concurrently. Each racing attempt receives its own Context whose property
// bag and event log are isolated from sibling attempts.
//
// R is the operation result type.
type Operation[R any] func(ctx *Context) (R, error)
