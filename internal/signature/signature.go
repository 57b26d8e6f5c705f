// Package signature implements the subscription-authorization digest used
// by both the HTTP auth endpoint and the protocol engine's subscribe
// handler.
//
// The secret is concatenated as a trailing field of the signed string
// rather than used as an HMAC key. This is not a stand-in for HMAC; it is
// the wire format clients already expect.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign computes the "<key>:<hex>" subscription-auth token for the given
// socket id, channel name and application key/secret. channelData, when
// non-empty, is appended as a fourth colon-delimited field.
func Sign(key, secret, socketID, channelName, channelData string) string {
	digest := Digest(secret, socketID, channelName, channelData)
	return key + ":" + digest
}

// Digest computes the raw lowercase-hex SHA-256 digest without the leading
// "<key>:" prefix, for callers that only need to compare against the
// "auth" field a client already split on ':'.
func Digest(secret, socketID, channelName, channelData string) string {
	var b strings.Builder
	b.WriteString(socketID)
	b.WriteByte(':')
	b.WriteString(channelName)
	b.WriteByte(':')
	b.WriteString(secret)
	if channelData != "" {
		b.WriteByte(':')
		b.WriteString(channelData)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether auth (the full "<key>:<hex>" value a client sent)
// matches the expected signature for the given parameters.
func Verify(key, secret, socketID, channelName, channelData, auth string) bool {
	expected := Sign(key, secret, socketID, channelName, channelData)
	return constantTimeEqual(expected, auth)
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
