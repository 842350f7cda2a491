// Package rag implements [chat.Provider] for the knowledge-base question
// answering service.
//
// Every call is scoped to a knowledge base through [chat.Scope.KnowledgeBaseID].
// Answers stream as "data:" frames whose JSON "type" member is start, content,
// end or error; content frames carry deltas on the wire and the adapter emits
// cumulative text. The service has no feedback, delete or attachment support,
// and those operations succeed without touching the network.
package rag
