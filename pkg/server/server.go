package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apiv1 "github.com/beam-cloud/gmail2tg/pkg/api/v1"
	"github.com/beam-cloud/gmail2tg/pkg/clients"
	"github.com/beam-cloud/gmail2tg/pkg/common"
	"github.com/beam-cloud/gmail2tg/pkg/oauth"
	"github.com/beam-cloud/gmail2tg/pkg/relay"
	"github.com/beam-cloud/gmail2tg/pkg/repository"
	"github.com/beam-cloud/gmail2tg/pkg/types"
)

// Server runs the poller and the liveness endpoint in one process
type Server struct {
	Config      types.AppConfig
	RedisClient *common.RedisClient

	poller     *relay.Poller
	echo       *echo.Echo
	httpServer *http.Server

	mu   sync.Mutex
	addr string
}

// NewServer validates config and builds every dependency. Failures are
// *types.ErrStartup.
func NewServer(ctx context.Context, config types.AppConfig) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, &types.ErrStartup{Reason: "invalid configuration", Err: err}
	}

	httpClient, err := oauth.NewAuthorizedClient(ctx, config.Gmail)
	if err != nil {
		return nil, err
	}

	gmailClient, err := clients.NewGmailClient(ctx, httpClient, config.Gmail.UserID)
	if err != nil {
		return nil, &types.ErrStartup{Reason: "unable to create gmail client", Err: err}
	}

	backend, err := openStateBackend(ctx, config.State)
	if err != nil {
		return nil, err
	}

	return newServer(config, gmailClient, clients.NewTelegramClient(config.Telegram), backend), nil
}

func newServer(config types.AppConfig, mailbox relay.Mailbox, notifier relay.Notifier, backend *stateBackend) *Server {
	pollerConfig := relay.PollerConfigFrom(config)

	var opts []relay.PollerOption
	if backend.rdb != nil {
		key := common.Keys.PollerLock(backend.rdb.KeyPrefix, pollerConfig.ChatID)
		opts = append(opts, relay.WithTickLock(relay.NewRedisTickLock(backend.rdb, key, relay.TickLockTTL(pollerConfig))))
	}

	s := &Server{
		Config:      config,
		RedisClient: backend.rdb,
		poller:      relay.NewPoller(pollerConfig, mailbox, notifier, backend.repo, relay.NewComposer(config.Message), opts...),
	}
	s.initHTTP()
	return s
}

func (s *Server) initHTTP() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())

	if s.Config.HTTP.EnablePrettyLogs {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human}\n",
		}))
	}

	e.Use(middleware.Recover())

	s.echo = e
	s.httpServer = &http.Server{
		Addr:    s.Config.HTTP.Addr(),
		Handler: e,
	}

	baseRouteGroup := e.Group(apiv1.HttpServerBaseRoute)
	rootRouteGroup := e.Group(apiv1.HttpServerRootRoute)

	apiv1.RegisterRoot(e)
	apiv1.NewHealthGroup(rootRouteGroup.Group("/health"))
	apiv1.NewStatusGroup(baseRouteGroup.Group("/status"), s.poller)
}

// Start serves HTTP and runs the poller until ctx is cancelled or the process
// receives SIGINT or SIGTERM. A poller startup failure stops both and is
// returned.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer s.close()

	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return &types.ErrStartup{Reason: "unable to listen on http", Err: err}
	}
	s.setAddr(lis.Addr().String())

	log.Info().
		Str("addr", lis.Addr().String()).
		Str("state_backend", s.Config.State.Backend).
		Int64("chat_id", s.Config.Telegram.ChatID).
		Msg("gmail2tg http server running")

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		return s.poller.Run(egCtx)
	})

	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Config.HTTP.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	log.Info().Msg("gmail2tg stopped")
	return nil
}

// Addr returns the bound HTTP address once Start is listening
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) setAddr(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addr = addr
}

// Poller returns the poller driven by Start
func (s *Server) Poller() *relay.Poller {
	return s.poller
}

func (s *Server) close() {
	if s.RedisClient == nil {
		return
	}
	if err := s.RedisClient.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis client")
	}
}

type stateBackend struct {
	repo repository.StateRepository
	rdb  *common.RedisClient
}

func openStateBackend(ctx context.Context, cfg types.StateConfig) (*stateBackend, error) {
	backend := &stateBackend{}

	var objects repository.ObjectStore
	switch cfg.Backend {
	case types.StateBackendRedis:
		var opts []common.RedisOption
		if cfg.Redis.ClientName == "" {
			opts = append(opts, common.WithClientName("gmail2tg"))
		}
		rdb, err := common.NewRedisClient(cfg.Redis, opts...)
		if err != nil {
			return nil, &types.ErrStartup{Reason: "unable to connect to redis", Err: err}
		}
		backend.rdb = rdb
	case types.StateBackendS3:
		storage, err := clients.NewStorageClient(ctx, cfg.S3)
		if err != nil {
			return nil, &types.ErrStartup{Reason: "unable to create s3 client", Err: err}
		}
		objects = storage
	}

	repo, err := repository.NewStateRepository(cfg, backend.rdb, objects)
	if err != nil {
		backend.Close()
		return nil, &types.ErrStartup{Reason: "unable to open state backend", Err: err}
	}
	backend.repo = repo
	return backend, nil
}

func (b *stateBackend) Close() error {
	if b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// OpenStateRepository opens the configured state backend on its own, for
// inspection outside the poller. The returned func closes it.
func OpenStateRepository(ctx context.Context, cfg types.StateConfig) (repository.StateRepository, func() error, error) {
	backend, err := openStateBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return backend.repo, backend.Close, nil
}
