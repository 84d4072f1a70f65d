package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Tier-2 values of compressible classes carry a one-byte frame marker owned
// by the cache, so decoding never inspects the payload itself. Payloads are
// opaque: a caller may store bytes that happen to look like a gzip stream.
const (
	frameRaw  byte = 0x00
	frameGzip byte = 0x01
)

// encodeFramed wraps the payload for tier-2 storage: gzip-compressed behind
// a gzip marker when that shrinks it, raw behind a raw marker otherwise.
func encodeFramed(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(frameGzip)
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if buf.Len() >= len(payload)+1 {
		framed := make([]byte, 0, len(payload)+1)
		framed = append(framed, frameRaw)
		return append(framed, payload...), nil
	}
	return buf.Bytes(), nil
}

// decodeFramed reverses encodeFramed.
func decodeFramed(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("decode payload: missing frame marker")
	}
	switch payload[0] {
	case frameRaw:
		return payload[1:], nil
	case frameGzip:
		zr, err := gzip.NewReader(bytes.NewReader(payload[1:]))
		if err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		defer zr.Close()

		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("decode payload: unknown frame marker 0x%02x", payload[0])
	}
}
