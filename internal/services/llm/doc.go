// Package llm provides an OpenRouter-compatible chat client that returns
// JSON-only completions.
//
// The translation engine is the only caller: it sends a system prompt that
// describes the expected JSON object and decodes the reply with DecodeLLMJSON,
// which tolerates code fences and prose around the payload.
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, network timeouts, and empty
// completions with exponential backoff (base 1s, max 10s, 5 attempts by
// default). A Retry-After header overrides the computed delay. Context
// cancellation aborts retries immediately.
//
// Final errors carry a services marker: ErrRateLimited for 429,
// ErrConfiguration for 401/403, ErrTimeout for client timeouts, and
// ErrExternalTool otherwise.
package llm
