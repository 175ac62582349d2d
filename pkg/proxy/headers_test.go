package proxy

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compress(t *testing.T, kind string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch kind {
	case "gzip":
		w := gzip.NewWriter(&buf)
		w.Write(data)
		require.NoError(t, w.Close())
	case "zlib":
		w := zlib.NewWriter(&buf)
		w.Write(data)
		require.NoError(t, w.Close())
	case "flate":
		w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		w.Write(data)
		require.NoError(t, w.Close())
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	plain := []byte(`{"items":[1,2,3]}`)

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"gzip", "gzip", compress(t, "gzip", plain)},
		{"deflate zlib", "deflate", compress(t, "zlib", plain)},
		{"deflate cru", "deflate", compress(t, "flate", plain)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{
				"Content-Encoding": {tt.encoding},
				"Content-Type":     {"application/json"},
				"Content-Length":   {"99"},
			}

			body, out, err := Decode(h, tt.body)

			require.NoError(t, err)
			assert.Equal(t, plain, body)
			assert.Empty(t, out.Get("Content-Encoding"))
			assert.Empty(t, out.Get("Content-Length"))
			assert.Equal(t, "application/json", out.Get("Content-Type"))
			// o original não é alterado
			assert.Equal(t, tt.encoding, h.Get("Content-Encoding"))
		})
	}
}

func TestDecode_PassThrough(t *testing.T) {
	h := http.Header{"Content-Encoding": {"br"}, "Transfer-Encoding": {"chunked"}}
	body, out, err := Decode(h, []byte("raw"))

	require.NoError(t, err)
	assert.Equal(t, "raw", string(body))
	assert.Equal(t, "br", out.Get("Content-Encoding"))
	assert.Empty(t, out.Get("Transfer-Encoding"))
}

func TestDecode_CorruptGzip(t *testing.T) {
	_, _, err := Decode(http.Header{"Content-Encoding": {"gzip"}}, []byte("não é gzip"))
	assert.Error(t, err)
}

func TestCleanHeader(t *testing.T) {
	out := CleanHeader(http.Header{
		"connection":   {"keep-alive"},
		"Set-Cookie":   {"a=1", "b=2"},
		"x-request-id": {"abc"},
	})

	assert.Empty(t, out.Get("Connection"))
	assert.Equal(t, []string{"a=1", "b=2"}, out.Values("Set-Cookie"))
	assert.Equal(t, "abc", out.Get("X-Request-Id"))
}
