package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"3tcapital/ms_cartaporte_core/internal/infrastructure/config"
	httperrors "3tcapital/ms_cartaporte_core/internal/infrastructure/http"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/http/middleware"
)

// CartaPorteRoutes is the set of handlers behind /api/v1/carta-porte.
type CartaPorteRoutes interface {
	Validate(w http.ResponseWriter, r *http.Request)
	ValidateBatch(w http.ResponseWriter, r *http.Request)
	PreviewXML(w http.ResponseWriter, r *http.Request)
	Stamp(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
}

// Options configures the HTTP server. HealthHandler is required; every
// other handler is optional.
type Options struct {
	Config         config.AppConfig
	Logger         *slog.Logger
	HealthHandler  http.Handler
	LiveHandler    http.Handler
	MetricsHandler http.Handler
	// CartaPorte is nil when the stamping service could not be built; its
	// routes then answer 503.
	CartaPorte CartaPorteRoutes
}

// Server wraps the chi router and the underlying http.Server.
type Server struct {
	cfg        config.AppConfig
	log        *slog.Logger
	httpServer *http.Server
	auth       *middleware.JWTAuthenticator
}

// New wires middleware and routes.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.HealthHandler == nil {
		return nil, errors.New("health handler is required")
	}

	auth, err := middleware.NewJWTAuthenticator(opts.Config.Auth, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("configure authentication: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(auth.Middleware)

	r.Method(http.MethodGet, "/health", opts.HealthHandler)
	if opts.LiveHandler != nil {
		r.Method(http.MethodGet, "/health/live", opts.LiveHandler)
	}
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api/v1/carta-porte", func(r chi.Router) {
		if opts.CartaPorte == nil {
			r.HandleFunc("/*", unavailable(opts.Logger))
			return
		}
		long := middleware.ExtendedTimeout(opts.Config.HTTP.WriteTimeoutBatch)

		r.Post("/validar", opts.CartaPorte.Validate)
		r.With(long).Post("/validar/lote", opts.CartaPorte.ValidateBatch)
		r.Post("/xml", opts.CartaPorte.PreviewXML)
		r.With(long).Post("/timbrar", opts.CartaPorte.Stamp)
		r.Get("/{uuid}", opts.CartaPorte.Get)
	})

	return &Server{
		cfg: opts.Config,
		log: opts.Logger,
		httpServer: &http.Server{
			Addr:         opts.Config.HTTP.Address(),
			Handler:      r,
			ReadTimeout:  opts.Config.HTTP.ReadTimeout,
			WriteTimeout: opts.Config.HTTP.WriteTimeout,
			IdleTimeout:  opts.Config.HTTP.IdleTimeout,
		},
		auth: auth,
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// Close releases the JWKS refresher.
func (s *Server) Close() {
	s.auth.Close()
}

func unavailable(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, http.StatusServiceUnavailable, "Servicio No Disponible",
			[]string{"El servicio de Carta Porte no está configurado"}, log)
	}
}
