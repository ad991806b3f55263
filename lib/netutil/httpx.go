// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP response reads for the content-site
// client. A misbehaving or hostile wiki cannot make the bot allocate
// more than MaxResponseSize for a single API reply.
package netutil

import "io"

// MaxResponseSize caps a single action API response at 32 MB. A
// 500-row usercontribs page is a few hundred kilobytes.
const MaxResponseSize int64 = 32 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorBody returns a bounded, truncated body for error messages. Read
// errors are ignored; a partial body is still useful in a log line.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	return string(data)
}
