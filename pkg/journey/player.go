package journey

import (
	"context"
	"net/http"

	"github.com/raywall/fast-service-stubber/pkg/domain"
	"github.com/raywall/fast-service-stubber/pkg/metrics"
	"github.com/rs/zerolog"
)

// Player responde a partir de uma jornada gravada.
type Player struct {
	store   *Store
	metrics metrics.Provider
}

func NewPlayer(store *Store, provider metrics.Provider) *Player {
	return &Player{store: store, metrics: provider}
}

// Play consome a primeira chamada pendente que casa com a requisição. Marcar
// e ler o artefato acontecem sob o lock da jornada, então uma chamada nunca é
// servida duas vezes. Se a leitura falhar a chamada volta a ficar pendente.
func (p *Player) Play(ctx context.Context, j *Journey, req *http.Request) (*Reply, error) {
	requestURI := req.URL.RequestURI()
	tags := metrics.Tags(j.Name, "")

	j.mu.Lock()
	defer j.mu.Unlock()

	call := j.manifest.Next(req.Method, requestURI)
	if call == nil {
		p.emit(ctx, metrics.Misses, tags)
		return nil, domain.New(domain.KindNoRecordedMatch, "cannot find url %s in journey %s", requestURI, j.Name)
	}

	call.Played = true
	body, err := p.store.ReadArtifact(j.Name, call.File)
	if err != nil {
		call.Played = false
		return nil, err
	}

	p.emit(ctx, metrics.Played, tags)
	zerolog.Ctx(ctx).Debug().
		Str("journey", j.Name).
		Str("file", call.File).
		Int("status", call.StatusCode).
		Msg("Chamada reproduzida")

	return &Reply{StatusCode: call.StatusCode, Header: call.Headers.Header(), Body: body}, nil
}

func (p *Player) emit(ctx context.Context, def metrics.MetricDefinition, tags []string) {
	if err := metrics.Emit(p.metrics, def, 1, tags); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("metric", def.Name).Msg("Falha ao emitir métrica")
	}
}
