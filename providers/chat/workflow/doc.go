// Package workflow implements [chat.Provider] for Dify-style workflow chat
// applications.
//
// Answers stream over SSE in the event dialect ("message", "message_end",
// "error"); the adapter accumulates the answer fragments and emits cumulative
// [chat.StreamEvent] values. Attachments are uploaded concurrently before the
// message is sent, and upload failures are reported on the reply instead of
// aborting the send.
//
// The primary entry point is [New], which reads DIFY_API_URL, DIFY_API_KEY,
// DIFY_APP_TOKEN and CHATMUX_USER from the environment. Per-agent endpoints
// are registered with [WorkflowProvider.WithAgents] and selected per call via
// [chat.Scope.AgentID].
package workflow
