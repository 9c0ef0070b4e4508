package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Encoding is a recognized Content-Encoding value.
type Encoding string

const (
	Identity Encoding = ""
	Gzip     Encoding = "gzip"
	Deflate  Encoding = "deflate"
)

// Detect maps a content-encoding header value onto a supported encoding.
// Anything other than gzip or deflate, including an empty value, is pass-through.
func Detect(value string) Encoding {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "gzip":
		return Gzip
	case "deflate":
		return Deflate
	default:
		return Identity
	}
}

// Active reports whether the encoding transcodes bodies.
func (e Encoding) Active() bool { return e == Gzip || e == Deflate }

// Error is returned when compressing or decompressing a body fails.
type Error struct {
	Op       string // "compress" | "decompress"
	Encoding Encoding
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec: %s %s: %v", e.Op, e.Encoding, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Compress encodes b. Identity returns a copy of b.
func Compress(enc Encoding, b []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch enc {
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Deflate:
		// HTTP "deflate" is the zlib container format.
		w = zlib.NewWriter(&buf)
	default:
		return append([]byte(nil), b...), nil
	}
	if _, err := w.Write(b); err != nil {
		_ = w.Close()
		return nil, &Error{Op: "compress", Encoding: enc, Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &Error{Op: "compress", Encoding: enc, Err: err}
	}
	return buf.Bytes(), nil
}

// Decompress decodes b. Identity returns a copy of b.
func Decompress(enc Encoding, b []byte) ([]byte, error) {
	switch enc {
	case Gzip:
		zr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, &Error{Op: "decompress", Encoding: enc, Err: err}
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, &Error{Op: "decompress", Encoding: enc, Err: err}
		}
		return out, nil
	case Deflate:
		out, err := inflate(b)
		if err != nil {
			return nil, &Error{Op: "decompress", Encoding: enc, Err: err}
		}
		return out, nil
	default:
		return append([]byte(nil), b...), nil
	}
}

// inflate reads a zlib stream and falls back to raw DEFLATE, which some servers send.
func inflate(b []byte) ([]byte, error) {
	zr, zerr := zlib.NewReader(bytes.NewReader(b))
	if zerr == nil {
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err == nil {
			return out, nil
		}
		zerr = err
	}
	fr := flate.NewReader(bytes.NewReader(b))
	defer fr.Close()
	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, zerr
	}
	return out, nil
}
