package auth

import (
	"encoding/base64"
	"testing"
)

func TestDecodeJWTPayload(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"user":{"id":"u1"},"deviceID":"d1","exp":1700000000}`))
	token := "eyJhbGciOiJIUzI1NiJ9." + payload + ".sig"

	claims, err := DecodeJWTPayload(token)
	if err != nil {
		t.Fatalf("DecodeJWTPayload failed: %v", err)
	}
	if got := JWTStringClaim(claims, "deviceID"); got != "d1" {
		t.Errorf("deviceID claim = %q, want d1", got)
	}
	if got := JWTStringClaim(claims, "missing"); got != "" {
		t.Errorf("missing claim = %q, want empty", got)
	}

	user, ok := claims["user"].(map[string]any)
	if !ok || user["id"] != "u1" {
		t.Errorf("nested user claim = %v", claims["user"])
	}
}

func TestDecodeJWTPayloadRejectsMalformed(t *testing.T) {
	for _, token := range []string{
		"",
		"onlyonesegment",
		"a.b",
		"a.!!!not-base64!!!.c",
		"a." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".c",
	} {
		if _, err := DecodeJWTPayload(token); err == nil {
			t.Errorf("expected error for %q", token)
		}
	}
}
