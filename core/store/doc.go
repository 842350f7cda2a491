// Package store holds conversation state in memory and runs the send-message
// lifecycle.
//
// A send moves through idle, sending, streaming and one of finalized,
// cancelled or failed. [Store.BeginSend] appends the user message and a
// partial assistant placeholder and hands out a [Send] carrying the store's
// single live token; starting another send, or [Store.Abort], revokes it, and
// the revoked holder's later calls return [ErrStaleToken]. Within one
// conversation at most one message is ever partial.
//
// The store never calls providers itself; callers feed it the stream events
// and the final outcome.
package store
