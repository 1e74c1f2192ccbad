// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZoomHeadersAreCanonicalizedByNetHTTP(t *testing.T) {
	header := http.Header{}
	header.Set(ZoomSignatureHeader, "v0=abc")
	header.Set(ZoomRequestTimestampHeader, "1700000000")

	assert.Equal(t, "v0=abc", header.Get("X-Zm-Signature"))
	assert.Equal(t, "1700000000", header.Get("X-Zm-Request-Timestamp"))
}
