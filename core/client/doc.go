// Package client is the calling layer between a user interface and the chat
// providers. It resolves the provider of each conversation through a
// [chat.Registry], drives the [store.Store] send lifecycle from the provider's
// stream events, and records every provider failure on the store so the
// interface can surface it.
//
// The primary entry point is [New], which accepts a registry and functional
// options (e.g. [WithObserver], [WithMiddleware], [WithScope]). Provider calls
// travel through a middleware chain; see the middleware subpackage for
// logging, timeout and retry implementations.
package client
