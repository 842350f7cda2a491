// Package config loads chatmux settings from the environment, an optional
// .env file and an optional agents file, and builds the provider registry
// from them.
//
// Recognised variables:
//
//	DIFY_API_URL, DIFY_API_KEY, DIFY_APP_TOKEN   default workflow endpoint
//	DIFY_AGENT_<N>_{ID,NAME,DESCRIPTION,BASE_URL,API_KEY,APP_TOKEN}
//	                                             per-agent endpoints, N from 1
//	CHATMUX_AGENTS_FILE                          TOML agents file (default agents.toml)
//	CHATMUX_USER                                 workflow end-user id
//	RAG_API_URL, RAG_API_KEY                     RAG endpoint
//	RAG_KNOWLEDGE_BASE_ID, RAG_MAX_CHUNKS        default RAG scope
//	CHATMUX_LOG_LEVEL, CHATMUX_LOG_FORMAT, CHATMUX_LOG_FILE
//
// With no workflow API key anywhere, the demo adapter answers under the
// workflow provider id so the application stays usable offline.
package config
