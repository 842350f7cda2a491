// Package cost reads the usage and price figures that workflow backends
// attach to finished answers and totals them per conversation.
//
// [FromMetadata] extracts a [Usage] from the metadata of an end event or a
// stored message; [Summarize] totals a conversation. Prices are reported by
// the backend, never computed locally.
package cost
