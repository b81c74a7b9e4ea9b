package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"batchrpc/internal/api"
	"batchrpc/internal/cache"
	"batchrpc/internal/config"
	"batchrpc/internal/fault"
	"batchrpc/internal/forward"
	"batchrpc/internal/handler"
	"batchrpc/internal/interceptor"
	"batchrpc/internal/message"
	"batchrpc/internal/plugin"
	"batchrpc/internal/processor"
	"batchrpc/internal/shop"
	"batchrpc/internal/upstream"
	"batchrpc/internal/ws"
)

// ShutdownTimeout bounds the graceful shutdown of both listeners
const ShutdownTimeout = 30 * time.Second

// Server represents the main server
type Server struct {
	cfg           *config.Config
	types         *message.TypeRegistry
	handlers      *handler.Registry
	inventory     *shop.Inventory
	cacheManager  *cache.Manager
	pluginManager *plugin.Manager
	pool          *upstream.Pool
	processor     *processor.Processor
	httpHandler   http.Handler
	wsHandler     http.Handler
	logger        zerolog.Logger
}

// New creates a new Server with every component wired from cfg
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		types:     message.NewTypeRegistry(),
		handlers:  handler.NewRegistry(logger),
		inventory: shop.NewInventory(shop.DemoStock()),
		logger:    logger,
	}
	codec := message.NewCodec(s.types)

	if err := shop.Register(s.types, s.handlers, s.inventory, logger); err != nil {
		return nil, fmt.Errorf("failed to register shop handlers: %w", err)
	}

	if err := s.setupPlugins(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.setupForwarding(codec); err != nil {
		s.Close()
		return nil, err
	}

	var gateway cache.Gateway = cache.NoopGateway{}
	if cfg.IsCacheEnabled() {
		store, err := cache.NewMemoryStore(cfg.Cache.Size, cache.DefaultSweepInterval)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		s.cacheManager = cache.NewManager(store, codec, cache.Policy{
			DefaultTTL: cfg.Cache.GetTTLDuration(),
			Types:      cfg.Cache.GetTypeTTLs(),
			Disabled:   cfg.Cache.DisabledTypes,
		}, logger)
		gateway = s.cacheManager

		logger.Info().
			Int("size", cfg.Cache.Size).
			Int("ttl", cfg.Cache.TTL).
			Int("types", len(cfg.Cache.Types)).
			Msg("cache enabled")
	} else {
		logger.Info().Msg("cache disabled")
	}

	classifier := fault.NewClassifier(
		fault.WithBusinessError[*shop.Error](),
		fault.WithSecurityError[*shop.AccessDenied](),
	)
	resolver := fault.NewResponseResolver(s.types,
		fault.WithCache(gateway),
		fault.WithDefaultResponder(s.handlers),
	)

	chain := interceptor.NewChain(logger,
		interceptor.NewLoggingInterceptor(logger),
		interceptor.NewCachingInterceptor(gateway),
	)

	s.processor = processor.New(s.handlers, fault.NewErrorHandler(classifier, resolver), logger,
		processor.WithInterceptors(chain),
		processor.WithUnitOfWork(s.inventory.UnitOfWork()),
		processor.WithThresholds(cfg.GetBatchWarnThresholdDuration(), cfg.GetRequestWarnThresholdDuration()),
	)

	service := api.NewService(codec, s.processor, logger)
	s.httpHandler = api.NewHandler(service, cfg.MaxBodySize, logger)
	s.wsHandler = ws.NewHandler(service, cfg.MaxBodySize, logger)

	logger.Info().
		Strs("types", s.handlers.Types()).
		Msg("handlers registered")

	return s, nil
}

// setupPlugins loads script handlers if enabled
func (s *Server) setupPlugins() error {
	if !s.cfg.IsPluginsEnabled() {
		s.logger.Info().Msg("plugins disabled")
		return nil
	}

	s.pluginManager = plugin.NewManager(s.types, s.logger)
	s.pluginManager.SetTimeout(s.cfg.GetPluginTimeoutDuration())

	if err := s.pluginManager.LoadFromDirectory(s.cfg.GetPluginDirectory()); err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}
	if err := s.pluginManager.RegisterAll(s.handlers); err != nil {
		return fmt.Errorf("failed to register plugins: %w", err)
	}

	s.logger.Info().
		Strs("types", s.pluginManager.RequestTypes()).
		Str("directory", s.cfg.GetPluginDirectory()).
		Msg("plugins enabled")
	return nil
}

// setupForwarding relays the configured request types to remote endpoints
func (s *Server) setupForwarding(codec *message.Codec) error {
	if !s.cfg.IsForwardingEnabled() {
		return nil
	}

	client := s.cfg.Client
	for _, tag := range client.Forward {
		if !s.types.HasRequest(tag) {
			return fmt.Errorf("forwarded type %q is not a known request type", tag)
		}
	}

	s.pool = upstream.NewPool(client, codec, s.cfg.GetRequestTimeoutDuration(), s.logger)
	if err := forward.RegisterAll(s.handlers, client.Forward, s.types, s.pool, s.logger); err != nil {
		return fmt.Errorf("failed to register forwarding handlers: %w", err)
	}

	s.logger.Info().
		Strs("types", client.Forward).
		Int("endpoints", len(client.Endpoints)).
		Msg("forwarding enabled")
	return nil
}

// HTTPHandler returns the HTTP batch endpoint
func (s *Server) HTTPHandler() http.Handler {
	return s.httpHandler
}

// WSHandler returns the WebSocket batch endpoint
func (s *Server) WSHandler() http.Handler {
	return s.wsHandler
}

// Processor returns the batch processor
func (s *Server) Processor() *processor.Processor {
	return s.processor
}

// Inventory returns the shop inventory
func (s *Server) Inventory() *shop.Inventory {
	return s.inventory
}

// Run listens on the configured addresses and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	httpAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.HTTPPort)
	wsAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.WSPort)

	httpLn, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", httpAddr, err)
	}
	wsLn, err := net.Listen("tcp", wsAddr)
	if err != nil {
		httpLn.Close()
		return fmt.Errorf("failed to listen on %s: %w", wsAddr, err)
	}
	return s.Serve(ctx, httpLn, wsLn)
}

// Serve serves HTTP and WebSocket batches on the given listeners until ctx
// is done or one of them fails, then shuts both down gracefully
func (s *Server) Serve(ctx context.Context, httpLn, wsLn net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	httpServer := newHTTPServer(s.httpHandler)
	wsServer := newHTTPServer(s.wsHandler)
	// hijacked connections outlive Shutdown; their context ends with the group
	wsServer.BaseContext = func(net.Listener) context.Context { return gctx }

	g.Go(func() error {
		s.logger.Info().Str("addr", httpLn.Addr().String()).Msg("starting HTTP server")
		if err := httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.logger.Info().Str("addr", wsLn.Addr().String()).Msg("starting WebSocket server")
		if err := wsServer.Serve(wsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("WebSocket server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		return errors.Join(httpServer.Shutdown(shutdownCtx), wsServer.Shutdown(shutdownCtx))
	})

	err := g.Wait()
	s.logger.Info().Msg("server stopped")
	return err
}

func newHTTPServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Close releases the cache, the plugins and the remote endpoints
func (s *Server) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pluginManager != nil {
		s.pluginManager.Close()
	}
	if s.cacheManager != nil {
		s.cacheManager.Close()
	}
}
