package auth

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MD5Hex returns the lowercase hex MD5 digest of s. The vendor signing
// schemes in this package are all MD5-keyed; the digest is not used for
// anything security-sensitive on our side, it just reproduces what the
// vendor web clients compute.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NewNonce returns a 32-character hex nonce.
func NewNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// MangleTimestamp reproduces the chatglm.cn timestamp obfuscation: the
// second-to-last digit of the millisecond timestamp is replaced with the
// digit sum (excluding that digit) modulo 10.
func MangleTimestamp(now time.Time) string {
	return mangleMillis(strconv.FormatInt(now.UnixMilli(), 10))
}

func mangleMillis(t string) string {
	n := len(t)
	sum := 0
	for _, c := range t {
		sum += int(c - '0')
	}
	sum -= int(t[n-2] - '0')
	return t[:n-2] + strconv.Itoa(sum%10) + t[n-1:]
}

// TimestampSign computes the X-Sign header value for chatglm.cn:
// md5("{mangledTimestamp}-{nonce}-{secret}").
func TimestampSign(timestamp, nonce, secret string) string {
	return MD5Hex(timestamp + "-" + nonce + "-" + secret)
}

// BodySignature computes the x-signature header value for
// agent.minimaxi.com: md5("{unixSeconds}{secret}{compactBodyJSON}").
func BodySignature(unixSeconds int64, secret, body string) string {
	return MD5Hex(strconv.FormatInt(unixSeconds, 10) + secret + body)
}

// PathDigest computes the yy header value for agent.minimaxi.com:
// md5(percentEncode(pathWithQuery) + "_" + body + md5(millis) + suffix).
// For bodyless requests body must be "{}".
func PathDigest(unixMillis int64, pathWithQuery, body, suffix string) string {
	timeDigest := MD5Hex(strconv.FormatInt(unixMillis, 10))
	return MD5Hex(percentEncodeAll(pathWithQuery) + "_" + body + timeDigest + suffix)
}

// percentEncodeAll percent-encodes every byte except the unreserved set
// (letters, digits, '_', '.', '-', '~'). This matches the encoding the
// vendor web client applies to the request path before digesting it.
func percentEncodeAll(s string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '_' || c == '.' || c == '-' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}
