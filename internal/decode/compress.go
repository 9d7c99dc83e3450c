package decode

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
)

// Decompressor expands one raw frame before decoding. A nil
// Decompressor means frames arrive uncompressed.
type Decompressor func(frame []byte) ([]byte, error)

// ForCompression resolves a compression name from configuration.
// Supported: "none" (or empty), "gzip", "flate".
func ForCompression(name string) (Decompressor, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "gzip":
		return gunzip, nil
	case "flate":
		return inflate, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}

func gunzip(frame []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return out, nil
}

func inflate(frame []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(frame))
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	return out, nil
}
