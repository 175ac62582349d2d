package proxy

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

var hopByHop = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Proxy-Connection":    true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

func isHopByHop(key string) bool {
	return hopByHop[http.CanonicalHeaderKey(key)]
}

// CleanHeader remove cabeçalhos que descrevem a conexão ou o tamanho do
// corpo original. O que sobra é o que se grava e se devolve ao cliente.
func CleanHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if isHopByHop(k) || http.CanonicalHeaderKey(k) == "Content-Length" {
			continue
		}
		out[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
	return out
}

// Decode desfaz content-encoding gzip ou deflate. Quando decodifica, o
// cabeçalho content-encoding é removido do resultado. Outras codificações
// são devolvidas intactas.
func Decode(header http.Header, body []byte) ([]byte, http.Header, error) {
	out := CleanHeader(header)
	encoding := strings.ToLower(strings.TrimSpace(out.Get("Content-Encoding")))

	var (
		decoded []byte
		err     error
	)
	switch encoding {
	case "gzip", "x-gzip":
		decoded, err = gunzip(body)
	case "deflate":
		decoded, err = inflate(body)
	default:
		return body, out, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("falha ao descompactar resposta (%s): %w", encoding, err)
	}

	out.Del("Content-Encoding")
	return decoded, out, nil
}

func gunzip(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// inflate aceita zlib (RFC 1950) e, como fallback, deflate cru.
func inflate(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}
	if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
		defer r.Close()
		if out, err := io.ReadAll(r); err == nil {
			return out, nil
		}
	}
	r := flate.NewReader(bytes.NewReader(body))
	defer r.Close()
	return io.ReadAll(r)
}
