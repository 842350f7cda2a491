// Package utils provides the low-level helpers shared by the chat adapters:
// JSON request helpers ([DoJSON]), multipart uploads ([DoMultipart]), the
// streaming POST used for Server-Sent Events ([DoPostStream]), URL joining,
// and rune-aware string truncation.
//
// Every helper returns an [*HTTPError] for non-2xx responses so adapters can
// translate backend status codes into descriptive messages.
package utils
