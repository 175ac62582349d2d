package journey

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/raywall/fast-service-stubber/pkg/backend"
	"github.com/raywall/fast-service-stubber/pkg/domain"
	"github.com/raywall/fast-service-stubber/pkg/metrics"
	"github.com/raywall/fast-service-stubber/pkg/proxy"
	"github.com/rs/zerolog"
)

// Reply é a resposta que a camada HTTP deve escrever.
type Reply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Upstream abstrai o cliente que alcança o backend real.
type Upstream interface {
	Forward(ctx context.Context, req proxy.Request) (*proxy.Response, error)
}

// Recorder repassa requisições ao backend e grava as respostas.
type Recorder struct {
	registry *backend.Registry
	store    *Store
	upstream Upstream
	metrics  metrics.Provider
}

func NewRecorder(registry *backend.Registry, store *Store, upstream Upstream, provider metrics.Provider) *Recorder {
	return &Recorder{registry: registry, store: store, upstream: upstream, metrics: provider}
}

// Pattern monta a chave do manifesto para a requisição.
func Pattern(b backend.Backend, requestURI string) string {
	return b.ParseURL("^" + regexp.QuoteMeta(requestURI) + "$")
}

// Record executa uma captura completa. A chamada upstream acontece fora da
// seção crítica; índice, artefato e manifesto são gravados sob o lock da
// jornada, nessa ordem, antes da resposta.
func (r *Recorder) Record(ctx context.Context, j *Journey, req *http.Request) (*Reply, error) {
	logger := zerolog.Ctx(ctx)
	requestURI := req.URL.RequestURI()

	b, err := r.resolve(j, requestURI)
	if err != nil {
		return nil, err
	}

	baseURL, err := b.URL()
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstreamRequestFailed, err, "backend %s has no usable URL", b.Name())
	}

	var body []byte
	if req.Method != http.MethodGet && req.Body != nil {
		if body, err = io.ReadAll(req.Body); err != nil {
			return nil, domain.Wrap(domain.KindUpstreamRequestFailed, err, "cannot read request body")
		}
	}

	start := time.Now()
	resp, err := r.upstream.Forward(ctx, proxy.Request{
		Method:     req.Method,
		BaseURL:    baseURL,
		RequestURI: requestURI,
		Header:     req.Header,
		Body:       body,
	})
	tags := metrics.Tags(j.Name, b.Name())
	r.emit(ctx, metrics.UpstreamLatency, float64(time.Since(start).Milliseconds()), tags)
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstreamRequestFailed, err, "upstream request to %s failed", b.Name())
	}

	decoded, header, err := proxy.Decode(resp.Header, resp.Body)
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstreamRequestFailed, err, "invalid upstream response from %s", b.Name())
	}

	pattern := Pattern(b, requestURI)
	ext := ExtensionFor(header.Get("Content-Type"))
	parsed := b.ParseBody(decoded)

	// Cliente desistiu: nada é persistido.
	if err := ctx.Err(); err != nil {
		return nil, domain.Wrap(domain.KindUpstreamRequestFailed, err, "request canceled before persisting")
	}

	file, err := r.persist(j, b.Name(), pattern, ext, RecordedCall{
		Method:     req.Method,
		StatusCode: resp.StatusCode,
		Headers:    Headers(header.Clone()),
	}, parsed)
	if err != nil {
		return nil, err
	}

	r.emit(ctx, metrics.Recorded, 1, tags)
	logger.Debug().
		Str("journey", j.Name).
		Str("backend", b.Name()).
		Str("pattern", pattern).
		Str("file", file).
		Int("status", resp.StatusCode).
		Int("bytes", len(parsed)).
		Msg("Chamada gravada")

	return &Reply{StatusCode: resp.StatusCode, Header: header, Body: parsed}, nil
}

func (r *Recorder) resolve(j *Journey, requestURI string) (backend.Backend, error) {
	if j.Backend != "" {
		return r.registry.Resolve(j.Backend)
	}
	return r.registry.AutoMatch(requestURI)
}

func (r *Recorder) persist(j *Journey, backendName, pattern, ext string, call RecordedCall, body []byte) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	index, err := j.manifest.Ensure(pattern)
	if err != nil {
		return "", domain.Wrap(domain.KindArtifactWriteFailed, err, "backend %s produced an invalid pattern", backendName)
	}

	call.File = ArtifactPath(backendName, index, pattern, ext)
	if err := r.store.WriteArtifact(j.Name, call.File, body); err != nil {
		return "", err
	}
	if err := j.manifest.Append(pattern, call); err != nil {
		return "", domain.Wrap(domain.KindArtifactWriteFailed, err, "cannot append call")
	}
	if err := r.store.WriteManifest(j.Name, j.manifest); err != nil {
		return "", err
	}
	return call.File, nil
}

func (r *Recorder) emit(ctx context.Context, def metrics.MetricDefinition, value float64, tags []string) {
	if err := metrics.Emit(r.metrics, def, value, tags); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("metric", def.Name).Msg("Falha ao emitir métrica")
	}
}
