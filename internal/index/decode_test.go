package index

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func deflateBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	t.Parallel()

	plain := []byte("CIK|Company Name|Form Type|Date Filed|File Name\n---\n")

	tests := []struct {
		name     string
		body     []byte
		encoding string
	}{
		{name: "identity when header absent", body: plain, encoding: ""},
		{name: "identity for unknown encoding", body: plain, encoding: "br"},
		{name: "gzip", body: gzipBytes(t, plain), encoding: "gzip"},
		{name: "gzip mixed case", body: gzipBytes(t, plain), encoding: " GZIP "},
		{name: "deflate", body: deflateBytes(t, plain), encoding: "deflate"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode(tt.body, tt.encoding)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		})
	}
}

func TestDecodeMalformedStream(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("definitely not gzip"), "gzip")
	require.ErrorIs(t, err, edgar.ErrDecode)

	_, err = Decode([]byte{0xff, 0xff, 0xff}, "deflate")
	require.ErrorIs(t, err, edgar.ErrDecode)
}
