// Nxapi is an OpenAI-compatible gateway over consumer web chat
// backends.
//
// It exposes /v1/chat/completions and /v1/models in front of seven
// vendor web APIs (DeepSeek, Zhipu, Kimi, Qwen, Doubao, Metaso,
// MiniMax), handling each vendor's private protocol behind the
// standard surface:
//   - Proof-of-work and request-signing challenges
//   - Session and cookie credential refresh
//   - Stream normalization into OpenAI chunk format
//   - Reasoning segments rendered inline as <think:...> markers
//
// Usage:
//
//	# Start the gateway with default configuration
//	nxapi run
//
//	# Start with a custom configuration file
//	nxapi run --config /path/to/config.yaml
//
//	# Check a configuration file without starting
//	nxapi validate --config /path/to/config.yaml
//
//	# Show version information
//	nxapi version
package main

func main() {
	Execute()
}
