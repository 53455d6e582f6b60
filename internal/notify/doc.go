// Package notify implements the delivery half of the pipeline.
//
// A Registry maps channel type tags (email | webhook | chat-webhook) to
// Sender implementations. Senders validate their config before any I/O,
// bound every network call, and fold all failures into a Result — nothing
// escapes to crash the loop.
//
// The Dispatcher periodically scans unacknowledged events, fans each out to
// the channels matched by severity rules, and records every attempt as an
// EventDelivery row. The row's existence is checked before sending and the
// insert commits immediately after, which is what makes delivery
// at-most-once per (event, channel) even across crashes and restarts.
// Failed attempts are recorded, never retried.
package notify
