package index

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
)

// Decode undoes the declared Content-Encoding of an index body. Unknown or empty
// encodings pass the body through unchanged.
func Decode(body []byte, contentEncoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: open gzip stream: %w", edgar.ErrDecode, err)
		}
		defer zr.Close() //nolint:errcheck // reader close only releases state
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: inflate gzip stream: %w", edgar.ErrDecode, err)
		}
		return out, nil
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close() //nolint:errcheck // reader close only releases state
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, fmt.Errorf("%w: inflate deflate stream: %w", edgar.ErrDecode, err)
		}
		return out, nil
	default:
		return body, nil
	}
}
