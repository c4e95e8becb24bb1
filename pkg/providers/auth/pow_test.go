package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
)

var testChallenge = Challenge{
	Algorithm:  AlgorithmDeepSeekHashV1,
	Challenge:  "94e422f2ac55677000b92e561bb1a10da1a7fad54af93fa4706e4c1fa06eba5c",
	Salt:       "9fa6d396e71f769c77ee",
	ExpireAt:   1771229508176,
	Signature:  "5c3b59d95f2810681e60601850583b347bad470734f6aa22bb5b5ab55aa50271",
	TargetPath: "/api/v0/chat/completion",
}

func TestSolveChallengeKnownNonce(t *testing.T) {
	tests := []struct {
		difficulty int
		wantNonce  int64
	}{
		{difficulty: 4, wantNonce: 24},
		{difficulty: 8, wantNonce: 68},
	}

	for _, tt := range tests {
		ch := testChallenge
		ch.Difficulty = tt.difficulty

		nonce, err := SolveChallenge(&ch, 1000)
		if err != nil {
			t.Fatalf("difficulty %d: unexpected error: %v", tt.difficulty, err)
		}
		if nonce != tt.wantNonce {
			t.Errorf("difficulty %d: expected nonce %d, got %d", tt.difficulty, tt.wantNonce, nonce)
		}
	}
}

func TestSolveChallengeExhaustsBudget(t *testing.T) {
	ch := testChallenge
	ch.Difficulty = 64

	_, err := SolveChallenge(&ch, 100)
	if err == nil {
		t.Fatal("expected budget exhaustion error")
	}
	if !strings.Contains(err.Error(), "100 attempts") {
		t.Errorf("error should carry the attempt count: %v", err)
	}
}

func TestSolveChallengeRejectsUnknownAlgorithm(t *testing.T) {
	ch := testChallenge
	ch.Algorithm = "DeepSeekHashV2"

	if _, err := SolveChallenge(&ch, 10); err == nil {
		t.Fatal("expected unsupported algorithm error")
	}
}

func TestEncodeAnswer(t *testing.T) {
	ch := testChallenge
	ch.Difficulty = 8

	encoded := EncodeAnswer(&ch, 68)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("answer is not valid base64: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("answer is not valid JSON: %v", err)
	}

	if decoded["algorithm"] != AlgorithmDeepSeekHashV1 {
		t.Errorf("unexpected algorithm: %v", decoded["algorithm"])
	}
	if decoded["answer"] != float64(68) {
		t.Errorf("unexpected answer: %v", decoded["answer"])
	}
	if decoded["signature"] != ch.Signature {
		t.Errorf("signature must be echoed back verbatim")
	}
	if decoded["target_path"] != ch.TargetPath {
		t.Errorf("target path must be echoed back verbatim")
	}
}

func TestHasLeadingZeroBits(t *testing.T) {
	tests := []struct {
		digest []byte
		bits   int
		want   bool
	}{
		{[]byte{0x00, 0xff}, 8, true},
		{[]byte{0x00, 0xff}, 9, false},
		{[]byte{0x0f, 0xff}, 4, true},
		{[]byte{0x0f, 0xff}, 5, false},
		{[]byte{0x00, 0x7f}, 9, true},
		{[]byte{0xff}, 0, true},
		{[]byte{0x00}, 16, false},
	}
	for _, tt := range tests {
		if got := hasLeadingZeroBits(tt.digest, tt.bits); got != tt.want {
			t.Errorf("hasLeadingZeroBits(%x, %d) = %v, want %v", tt.digest, tt.bits, got, tt.want)
		}
	}
}
