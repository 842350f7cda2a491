// Package sse decodes Server-Sent Event streams into discrete frames.
//
// A [Decoder] keeps one growing byte buffer, locates complete frames by the
// blank-line delimiter and slices them off, so the result does not depend on
// how the transport splits the bytes. [DecodeJSON] layers JSON decoding on top
// and drops malformed frames instead of aborting the stream.
//
// Two dialects are understood: [DialectEvent], where the event name travels in
// an "event:" field (or an "event" member of the payload), and [DialectTyped],
// where the payload's "type" member discriminates.
package sse
