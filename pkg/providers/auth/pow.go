package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/crypto/sha3"
)

// AlgorithmDeepSeekHashV1 is the only proof-of-work algorithm currently
// issued by the DeepSeek web backend.
const AlgorithmDeepSeekHashV1 = "DeepSeekHashV1"

// DefaultPowMaxAttempts bounds the nonce search when the provider
// configuration does not override it.
const DefaultPowMaxAttempts = 10_000_000

// Challenge is a proof-of-work challenge as issued by the vendor.
type Challenge struct {
	// Algorithm names the hash scheme; only DeepSeekHashV1 is supported
	Algorithm string `json:"algorithm"`

	// Challenge is the server-chosen challenge string
	Challenge string `json:"challenge"`

	// Salt is mixed into the hashed prefix
	Salt string `json:"salt"`

	// Difficulty is the required number of leading zero bits
	Difficulty int `json:"difficulty"`

	// ExpireAt is the challenge expiry in epoch milliseconds
	ExpireAt int64 `json:"expire_at"`

	// Signature is opaque server state echoed back in the answer
	Signature string `json:"signature"`

	// TargetPath is the request path the answer authorizes
	TargetPath string `json:"target_path"`
}

// challengeAnswer is the wire shape of a solved challenge.
type challengeAnswer struct {
	Algorithm  string `json:"algorithm"`
	Challenge  string `json:"challenge"`
	Salt       string `json:"salt"`
	Answer     int64  `json:"answer"`
	Signature  string `json:"signature"`
	TargetPath string `json:"target_path"`
}

// SolveChallenge searches for a nonce whose SHA3-256 digest over
// challenge || salt_expireAt_ || nonce has the required number of
// leading zero bits. The search is bounded by maxAttempts (or
// DefaultPowMaxAttempts when maxAttempts is zero); exhausting the budget
// returns an error with the attempt count so the caller can wrap it.
func SolveChallenge(ch *Challenge, maxAttempts int) (int64, error) {
	if ch.Algorithm != AlgorithmDeepSeekHashV1 {
		return 0, fmt.Errorf("unsupported proof-of-work algorithm %q", ch.Algorithm)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPowMaxAttempts
	}

	prefix := []byte(ch.Challenge + ch.Salt + "_" + strconv.FormatInt(ch.ExpireAt, 10) + "_")

	buf := make([]byte, 0, len(prefix)+20)
	for nonce := 0; nonce < maxAttempts; nonce++ {
		buf = append(buf[:0], prefix...)
		buf = strconv.AppendInt(buf, int64(nonce), 10)

		digest := sha3.Sum256(buf)
		if hasLeadingZeroBits(digest[:], ch.Difficulty) {
			return int64(nonce), nil
		}
	}

	return 0, fmt.Errorf("proof-of-work search exhausted after %d attempts", maxAttempts)
}

// EncodeAnswer packages a solved challenge into the base64 JSON blob the
// vendor expects in the x-ds-pow-response header.
func EncodeAnswer(ch *Challenge, answer int64) string {
	payload, _ := json.Marshal(challengeAnswer{
		Algorithm:  ch.Algorithm,
		Challenge:  ch.Challenge,
		Salt:       ch.Salt,
		Answer:     answer,
		Signature:  ch.Signature,
		TargetPath: ch.TargetPath,
	})
	return base64.StdEncoding.EncodeToString(payload)
}

func hasLeadingZeroBits(digest []byte, bits int) bool {
	fullBytes := bits / 8
	if fullBytes > len(digest) {
		return false
	}
	for i := 0; i < fullBytes; i++ {
		if digest[i] != 0 {
			return false
		}
	}
	remaining := bits % 8
	if remaining == 0 {
		return true
	}
	if fullBytes >= len(digest) {
		return false
	}
	return digest[fullBytes]>>(8-remaining) == 0
}
