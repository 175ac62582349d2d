package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/raywall/fast-service-stubber/pkg/domain"
	"github.com/raywall/fast-service-stubber/pkg/journey"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	HeaderCorrelationID = "x-correlation-id"
	HeaderLatency       = "x-latency-ms"
)

type ctxKey string

const ContextKeyCorrID ctxKey = "correlation_id"

// Controller são as transições de jornada expostas nas rotas de controle.
type Controller interface {
	StartRecording(ctx context.Context, name, backendName string) (*journey.Journey, error)
	StartPlaying(ctx context.Context, name string) (*journey.Journey, error)
	Status() journey.Snapshot
}

// Dispatcher atende todo o tráfego que não é rota de controle.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *http.Request) (*journey.Reply, error)
}

type RouterOptions struct {
	// ReadOnly remove as rotas /record.
	ReadOnly bool
}

// NewRouter monta as rotas de controle e o catch-all. Rotas de controle só
// respondem GET; outros métodos no mesmo path caem no Dispatcher.
func NewRouter(ctrl Controller, dispatcher Dispatcher, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	// Paths chegam intactos ao Dispatcher, sem redirect de limpeza.
	r.SkipClean(true)

	r.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	if !opts.ReadOnly {
		record := func(w http.ResponseWriter, req *http.Request) {
			vars := mux.Vars(req)
			if _, err := ctrl.StartRecording(req.Context(), vars["journey"], vars["backend"]); err != nil {
				writeError(w, req, err)
				return
			}
			writeJSON(w, http.StatusOK, ctrl.Status())
		}
		r.HandleFunc("/record/{journey}", record).Methods(http.MethodGet)
		r.HandleFunc("/record/{journey}/{backend}", record).Methods(http.MethodGet)
	}

	r.HandleFunc("/play/{journey}", func(w http.ResponseWriter, req *http.Request) {
		if _, err := ctrl.StartPlaying(req.Context(), mux.Vars(req)["journey"]); err != nil {
			writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, ctrl.Status())
	}).Methods(http.MethodGet)

	r.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, ctrl.Status())
	}).Methods(http.MethodGet)

	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		reply, err := dispatcher.Dispatch(req.Context(), req)
		if err != nil {
			writeError(w, req, err)
			return
		}
		writeReply(w, req, reply)
	})

	return ObservabilityMiddleware(r)
}

// errorBody é o formato JSON de todos os erros.
type errorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := domain.KindOf(err)

	evt := log.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Ctx(r.Context()).Error()
	}
	evt.Err(err).Str("kind", string(kind)).Str("uri", r.URL.RequestURI()).Msg("Requisição falhou")

	writeJSON(w, status, errorBody{Name: string(kind), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeReply(w http.ResponseWriter, r *http.Request, reply *journey.Reply) {
	for k, values := range reply.Header {
		// cabeçalhos do middleware prevalecem sobre os gravados
		if strings.EqualFold(k, HeaderCorrelationID) || strings.EqualFold(k, HeaderLatency) {
			continue
		}
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(reply.StatusCode)
	n, err := w.Write(reply.Body)

	zerolog.Ctx(r.Context()).Debug().Err(err).Int("bytes", n).Msg("Resposta enviada")
}

// --- MIDDLEWARE DE OBSERVABILIDADE ---
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode  int
	startTime   time.Time
	wroteHeader bool
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	duration := time.Since(rw.startTime)
	rw.Header().Set(HeaderLatency, fmt.Sprintf("%d", duration.Milliseconds()))
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

func (rw *responseWriterWrapper) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func ObservabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		corrID := r.Header.Get(HeaderCorrelationID)
		if corrID == "" {
			corrID = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, corrID)

		logger := log.With().Str("correlation_id", corrID).Logger()
		ctx := logger.WithContext(r.Context())
		ctx = context.WithValue(ctx, ContextKeyCorrID, corrID)

		wrapper := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			startTime:      start,
		}

		next.ServeHTTP(wrapper, r.WithContext(ctx))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Msg("request completed")
	})
}
