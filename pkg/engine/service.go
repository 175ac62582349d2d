package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/raywall/fast-service-stubber/pkg/backend"
	"github.com/raywall/fast-service-stubber/pkg/config"
	"github.com/raywall/fast-service-stubber/pkg/journey"
	"github.com/raywall/fast-service-stubber/pkg/logger"
	"github.com/raywall/fast-service-stubber/pkg/metrics"
	"github.com/raywall/fast-service-stubber/pkg/observability"
	"github.com/raywall/fast-service-stubber/pkg/proxy"
	"github.com/raywall/fast-service-stubber/pkg/rules"
	"github.com/raywall/fast-service-stubber/pkg/secrets"
	"github.com/raywall/fast-service-stubber/pkg/transport"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 5 * time.Second

// Stubber agrupa todos os componentes montados a partir da configuração.
type Stubber struct {
	Config     *config.StubberConfig
	Logger     zerolog.Logger
	Metrics    metrics.Provider
	Registry   *backend.Registry
	Store      *journey.Store
	Machine    *journey.Machine
	Dispatcher *journey.Dispatcher
	Handler    http.Handler

	metricsHandler http.Handler
	sqsClient      transport.SQSClient
	redisClient    observability.RedisClient
	mirror         *observability.RedisMirror
	closers        []func() error
}

// Option customiza a montagem do Stubber.
type Option func(*Stubber)

// WithSQSClient injeta o cliente da fila de controle (usado em testes).
func WithSQSClient(c transport.SQSClient) Option {
	return func(s *Stubber) { s.sqsClient = c }
}

// WithStatusMirror injeta o cliente Redis do espelho de estado (usado em testes).
func WithStatusMirror(c observability.RedisClient) Option {
	return func(s *Stubber) { s.redisClient = c }
}

// NewStubber monta logger, métricas, backends, motor de jornadas e rotas.
func NewStubber(cfg *config.StubberConfig, opts ...Option) (*Stubber, error) {
	log := logger.Configure(cfg.Service.Logging, cfg.Service.Name)

	provider, metricsHandler, err := observability.SetupMetrics(cfg.Service.Metrics)
	if err != nil {
		return nil, fmt.Errorf("falha métricas: %w", err)
	}

	rm, err := rules.NewRuleManager()
	if err != nil {
		return nil, fmt.Errorf("falha fatal ao iniciar RuleManager: %w", err)
	}

	s := &Stubber{
		Config:         cfg,
		Logger:         log,
		Metrics:        provider,
		Registry:       backend.NewRegistry(),
		metricsHandler: metricsHandler,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, bc := range cfg.Backends {
		caps, err := backend.FromConfig(bc, rm)
		if err != nil {
			return nil, err
		}
		if err := s.RegisterBackend(bc.Name, caps); err != nil {
			log.Warn().Str("backend", bc.Name).Msg("Backend fora da lista de permitidos, ignorado")
		}
	}

	forwarder, err := proxy.NewForwarder(proxy.Options{
		Timeout:    cfg.Service.Upstream.GetTimeout(),
		Proxy:      cfg.Service.Proxy,
		ClientCert: cfg.Service.ResolvePath(cfg.Service.ClientCert),
		ClientKey:  cfg.Service.ResolvePath(cfg.Service.ClientKey),
		CACert:     cfg.Service.ResolvePath(cfg.Service.CACert),
		Limiter:    newLimiter(cfg.Service.Upstream.RateLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("falha ao criar cliente upstream: %w", err)
	}

	s.Store = journey.NewStore(cfg.Service.ResolvePath(cfg.Service.JourneyPath))
	s.Machine = journey.NewMachine(s.Store, s.Registry)
	s.Dispatcher = journey.NewDispatcher(
		s.Machine,
		journey.NewRecorder(s.Registry, s.Store, forwarder, provider),
		journey.NewPlayer(s.Store, provider),
	)

	host, _ := os.Hostname()
	if s.redisClient != nil {
		s.mirror = observability.NewRedisMirror(s.redisClient, cfg.Service.StatusMirror.Redis.Key, host)
	} else {
		mirror, closeMirror, err := observability.SetupMirror(cfg.Service.StatusMirror, host)
		if err != nil {
			return nil, fmt.Errorf("falha espelho de estado: %w", err)
		}
		s.closers = append(s.closers, closeMirror)
		s.mirror = mirror
	}
	if s.mirror != nil {
		s.Machine.OnTransition(s.mirror.Observe)
	}

	s.Handler = transport.NewRouter(s.Machine, s.Dispatcher, transport.RouterOptions{ReadOnly: cfg.Service.ReadOnly})

	log.Info().
		Strs("backends", s.Registry.Names()).
		Str("journey_path", s.Store.Root()).
		Bool("read_only", cfg.Service.ReadOnly).
		Bool("mtls", forwarder.MutualTLS()).
		Msg("Stubber inicializado")

	return s, nil
}

// RegisterBackend registra um backend programático respeitando a lista de
// permitidos da configuração.
func (s *Stubber) RegisterBackend(name string, caps backend.Capabilities) error {
	if !s.Config.Service.Permits(name) {
		return fmt.Errorf("backend '%s' não está em service.backends", name)
	}
	s.Registry.Register(name, caps)
	return nil
}

func newLimiter(cfg config.RateLimitConf) *rate.Limiter {
	if cfg.RPS <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RPS), burst)
}

// Serve escuta na porta configurada até o contexto ser cancelado.
func (s *Stubber) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Config.Service.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("falha ao escutar em %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Stubber) serve(ctx context.Context, ln net.Listener) error {
	controller, err := s.sqsController(ctx)
	if err != nil {
		ln.Close()
		return err
	}

	s.logPeerState(ctx)

	g, gctx := errgroup.WithContext(ctx)
	servers := []*http.Server{{Handler: s.Handler, ReadHeaderTimeout: 10 * time.Second}}

	s.Logger.Info().Str("addr", ln.Addr().String()).Msg("Servidor HTTP ouvindo")
	g.Go(func() error {
		return ignoreClosed(servers[0].Serve(ln))
	})

	if s.metricsHandler != nil {
		prom := s.Config.Service.Metrics.Prometheus
		mux := http.NewServeMux()
		mux.Handle(prom.Path, s.metricsHandler)
		metricsSrv := &http.Server{Addr: prom.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		servers = append(servers, metricsSrv)

		s.Logger.Info().Str("addr", prom.Addr).Str("path", prom.Path).Msg("Métricas Prometheus expostas")
		g.Go(func() error {
			return ignoreClosed(metricsSrv.ListenAndServe())
		})
	}

	if controller != nil {
		g.Go(func() error {
			return controller.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		for _, closeFn := range s.closers {
			errs = append(errs, closeFn())
		}
		s.Logger.Info().Msg("Servidor finalizado")
		return errors.Join(errs...)
	})

	return g.Wait()
}

// logPeerState registra a última jornada publicada no espelho por qualquer
// instância, para quem sobe um stubber ao lado de outro.
func (s *Stubber) logPeerState(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	st, err := s.mirror.Current(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("Espelho de estado indisponível na inicialização")
		return
	}
	s.Logger.Info().
		Str("journey", st.Name).
		Str("state", string(st.State)).
		Str("host", st.Host).
		Msg("Estado publicado no espelho")
}

func (s *Stubber) sqsController(ctx context.Context) (*transport.SQSController, error) {
	queue := s.Config.Service.Control.SQSQueueURL
	if queue == "" {
		return nil, nil
	}
	client := s.sqsClient
	if client == nil {
		awsCfg, err := secrets.GetAWSConfig(ctx, s.Config.Service.Control.Region)
		if err != nil {
			return nil, fmt.Errorf("falha ao carregar config AWS para o SQS: %w", err)
		}
		client = sqs.NewFromConfig(awsCfg)
	}
	return transport.NewSQSController(client, queue, s.Machine, s.Config.Service.ReadOnly), nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
