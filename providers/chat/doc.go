// Package chat defines the provider-agnostic conversation contract shared by
// every chat backend adapter (workflow, RAG, demo).
//
// Adapters implement [Provider]; each maps its backend's REST and SSE surface
// onto [Conversation], [Message] and the cumulative [StreamEvent] sequence. A
// [Registry] resolves adapters by [ID] at call time, and [LocalID] namespaces
// backend-native identifiers so conversations from different providers never
// collide.
//
// Endpoint configuration is immutable per call: adapters capture an
// [Endpoint] snapshot from an [EndpointResolver] when a call starts, so a
// concurrent [Retargetable.Retarget] never affects a request already in flight.
package chat
