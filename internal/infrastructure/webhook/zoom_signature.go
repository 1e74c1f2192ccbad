// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ZoomSignatureVersion prefixes both the signed message and the signature header.
const ZoomSignatureVersion = "v0"

// Sign computes the x-zm-signature value for a request body:
// "v0=" + hex(HMAC-SHA256(secret, "v0:" + timestamp + ":" + body)).
// The body must be the raw bytes as received on the wire.
func Sign(secretToken, timestamp string, body []byte) string {
	return ZoomSignatureVersion + "=" + hex.EncodeToString(mac(secretToken, signedMessage(timestamp, body)))
}

// Verify reports whether signature is the signature of body and timestamp under secretToken.
// The comparison runs in constant time. An empty secret never verifies.
func Verify(secretToken, signature, timestamp string, body []byte) bool {
	if secretToken == "" {
		return false
	}

	provided, ok := strings.CutPrefix(signature, ZoomSignatureVersion+"=")
	if !ok {
		return false
	}
	providedMAC, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	return hmac.Equal(providedMAC, mac(secretToken, signedMessage(timestamp, body)))
}

// EncryptToken answers an endpoint.url_validation challenge: hex(HMAC-SHA256(secret, plainToken)).
func EncryptToken(secretToken, plainToken string) string {
	return hex.EncodeToString(mac(secretToken, []byte(plainToken)))
}

func signedMessage(timestamp string, body []byte) []byte {
	msg := make([]byte, 0, len(ZoomSignatureVersion)+len(timestamp)+len(body)+2)
	msg = append(msg, ZoomSignatureVersion...)
	msg = append(msg, ':')
	msg = append(msg, timestamp...)
	msg = append(msg, ':')
	return append(msg, body...)
}

func mac(secretToken string, message []byte) []byte {
	h := hmac.New(sha256.New, []byte(secretToken))
	h.Write(message)
	return h.Sum(nil)
}
