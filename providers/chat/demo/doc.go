// Package demo provides an offline [chat.Provider] that answers with canned
// replies typed out rune by rune.
//
// It stands in for the workflow backend when no API key is configured, so
// the rest of the stack (store lifecycle, cancellation, rendering of partial
// answers) can be exercised without a network. Conversations live in memory
// for the lifetime of the provider.
package demo
