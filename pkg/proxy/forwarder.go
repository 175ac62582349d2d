package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Request descreve a chamada a ser repassada para o backend real.
type Request struct {
	Method string
	// BaseURL é a URL devolvida pelo backend (getUrl).
	BaseURL string
	// RequestURI é o path + query recebidos pelo stubber.
	RequestURI string
	Header     http.Header
	Body       []byte
}

// Response representa a resposta do serviço upstream.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Options controla o cliente HTTP usado nas gravações.
type Options struct {
	Timeout    time.Duration
	Proxy      string
	ClientCert string
	ClientKey  string
	// CACert adiciona autoridades ao pool do sistema (PEM).
	CACert string
	// Limiter opcional; nil = sem limite.
	Limiter *rate.Limiter
}

// Forwarder repassa requisições ao upstream. É seguro para uso concorrente.
type Forwarder struct {
	client    *http.Client
	tlsClient *http.Client
	limiter   *rate.Limiter
}

// NewForwarder monta os clientes HTTP. O par de certificados é carregado uma
// única vez; se os arquivos não existirem, o mTLS é ignorado com um aviso.
func NewForwarder(opts Options) (*Forwarder, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second // Timeout padrão seguro
	}

	var proxyFunc func(*http.Request) (*url.URL, error)
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("proxy inválido '%s': %w", opts.Proxy, err)
		}
		proxyFunc = http.ProxyURL(proxyURL)
	}

	var baseTLS *tls.Config
	if opts.CACert != "" {
		pool, err := loadCertPool(opts.CACert)
		if err != nil {
			return nil, err
		}
		baseTLS = &tls.Config{RootCAs: pool}
	}

	f := &Forwarder{
		client:  newClient(proxyFunc, baseTLS, opts.Timeout),
		limiter: opts.Limiter,
	}

	if opts.ClientCert != "" && opts.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(opts.ClientCert, opts.ClientKey)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Warn().Str("cert", opts.ClientCert).Str("key", opts.ClientKey).
				Msg("Certificado de cliente não encontrado, mTLS desabilitado")
		case err != nil:
			return nil, fmt.Errorf("falha ao carregar certificado de cliente: %w", err)
		default:
			conf := &tls.Config{Certificates: []tls.Certificate{cert}}
			if baseTLS != nil {
				conf.RootCAs = baseTLS.RootCAs
			}
			f.tlsClient = newClient(proxyFunc, conf, opts.Timeout)
		}
	}

	return f, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("falha ao ler ca_cert: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca_cert '%s' não contém certificados PEM", path)
	}
	return pool, nil
}

func newClient(proxyFunc func(*http.Request) (*url.URL, error), tlsConf *tls.Config, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyFunc
	transport.TLSClientConfig = tlsConf
	// A descompressão é feita explicitamente em Decode.
	transport.DisableCompression = true

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		// Redirects são gravados como vieram do upstream.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// MutualTLS informa se o par de certificados foi carregado.
func (f *Forwarder) MutualTLS() bool {
	return f.tlsClient != nil
}

// Forward envia a requisição para o upstream e lê a resposta completa.
// O contexto da requisição de entrada é propagado: cancelamento aborta a chamada.
func (f *Forwarder) Forward(ctx context.Context, req Request) (*Response, error) {
	target, err := JoinURL(req.BaseURL, req.RequestURI)
	if err != nil {
		return nil, err
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit upstream: %w", err)
		}
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar forward request: %w", err)
	}

	copyHeaders(httpReq.Header, req.Header)

	client := f.client
	if target.Scheme == "https" && f.tlsClient != nil {
		client = f.tlsClient
	}

	zerolog.Ctx(ctx).Debug().Str("target", target.String()).Str("method", httpReq.Method).Msg("Forward upstream")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("falha na conexão com target (%s): %w", target.Redacted(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler resposta do target: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       respBody,
	}, nil
}

// JoinURL resolve o path recebido relativo à URL base do backend,
// como em url.resolve("http://up/api/", "items/1").
func JoinURL(baseURL, requestURI string) (*url.URL, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("url base inválida '%s': %w", baseURL, err)
	}
	// "./" impede que um segmento com ':' seja lido como scheme.
	ref, err := url.Parse("./" + strings.TrimPrefix(requestURI, "/"))
	if err != nil {
		return nil, fmt.Errorf("request uri inválida '%s': %w", requestURI, err)
	}
	return base.ResolveReference(ref), nil
}

func copyHeaders(dst, src http.Header) {
	for k, values := range src {
		if isHopByHop(k) || strings.EqualFold(k, "Host") || strings.EqualFold(k, "Content-Length") {
			continue
		}
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	// Só pedimos codificações que sabemos desfazer.
	if dst.Get("Accept-Encoding") != "" {
		dst.Set("Accept-Encoding", "gzip, deflate")
	}
}
