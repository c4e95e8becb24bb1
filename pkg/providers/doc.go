// Package providers defines the vendor adapter contract and the shared
// machinery every adapter builds on.
//
// The central abstraction is the Provider interface: submit a
// vendor-agnostic ChatRequest, receive a channel of canonical ChatEvents.
// Adapters for individual vendors live in subpackages (deepseek, zhipu,
// kimi, qwen, doubao, metaso, minimax) and translate their undocumented
// wire protocols into that single canonical stream.
//
// Shared machinery in this package:
//
//   - HTTPProvider: pooled HTTP transport with per-call deadlines, a
//     single transparent retry for transport-class failures, and typed
//     error mapping. DoAuthenticated adds a single transparent session
//     refresh-and-retry on authentication rejection.
//   - SSEScanner / LineScanner: incremental framing readers for
//     Server-Sent-Events and chunked JSON-lines responses.
//   - Sequencer: enforces the canonical stream's ordering contract
//     (monotonic deltas, exactly one terminal event).
//   - Typed errors (ChallengeError, AuthExpiredError, TimeoutError,
//     TransportError, MalformedUpstreamError, UpstreamError) and the
//     ErrorKind classifier used for metrics and terminal events.
package providers
