package hedgekit

import (
	"context"
)

// Context carries the state that a strategy threads through an execution: a
// cancellation context, a mutable property bag, and an append-only event log.
// A Context is not safe for concurrent mutation; strategies give each racing
// attempt its own isolated Context and merge the winner's state back when the
// execution completes.
type Context struct {
	ctx    context.Context
	props  *Properties
	events []Event
}

// NewContext returns a Context whose cancellation is governed by ctx and whose
// property bag is empty. A nil ctx defaults to context.Background().
func NewContext(ctx context.Context) *Context {
	return NewContextWithProperties(ctx, NewProperties())
}

// NewContextWithProperties returns a Context with the ctx and props. A nil ctx
// defaults to context.Background() and nil props default to an empty bag.
func NewContextWithProperties(ctx context.Context, props *Properties) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if props == nil {
		props = NewProperties()
	}
	return &Context{
		ctx:   ctx,
		props: props,
	}
}

// Context returns the cancellation context.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Properties returns the current property bag.
func (c *Context) Properties() *Properties {
	return c.props
}

// SwapProperties replaces the property bag with props and returns the previous
// bag. Strategies use this to isolate in-flight attempt state from the
// caller's bag, restoring the original reference when the execution completes.
func (c *Context) SwapProperties(props *Properties) *Properties {
	previous := c.props
	c.props = props
	return previous
}

// AddEvent appends an event to the log.
func (c *Context) AddEvent(event Event) {
	c.events = append(c.events, event)
}

// Events returns the events appended so far, oldest first.
func (c *Context) Events() []Event {
	return c.events
}
