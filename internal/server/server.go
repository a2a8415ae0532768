// Пакет server — HTTP-сервер индексатора: health, метрики и API /api/v1.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/tgmedia-indexer/internal/api/handlers"
	"github.com/bigkaa/tgmedia-indexer/internal/api/middleware"
	"github.com/bigkaa/tgmedia-indexer/internal/config"
)

// Server — HTTP-сервер индексатора.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// Deps — обработчики и middleware, из которых собирается роутер.
type Deps struct {
	// Health — health endpoints и /metrics (без аутентификации)
	Health *handlers.HealthHandler
	// API — обработчик /api/v1; nil — API не монтируется
	API *handlers.APIHandler
	// Auth — JWT middleware для /api/v1; обязателен при заданном API
	Auth *middleware.JWTAuth
}

// New создаёт HTTP-сервер с настроенными маршрутами.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, deps),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "http_server")),
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер.
// Роли: чтение — admin, readonly / files:read; удаление — admin / files:write.
func NewRouter(logger *slog.Logger, deps Deps) http.Handler {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID(),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	router.Get("/health/live", deps.Health.HealthLive)
	router.Get("/health/ready", deps.Health.HealthReady)
	router.Get("/metrics", deps.Health.GetMetrics)

	if deps.API == nil || deps.Auth == nil {
		return router
	}

	read := middleware.RequireRoleOrScope(
		[]string{middleware.RoleAdmin, middleware.RoleReadonly},
		[]string{middleware.ScopeFilesRead, middleware.ScopeFilesWrite},
	)
	write := middleware.RequireRoleOrScope(
		[]string{middleware.RoleAdmin},
		[]string{middleware.ScopeFilesWrite},
	)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.Auth.Middleware())

		r.With(read).Get("/search", deps.API.SearchFiles)
		r.With(read).Get("/files/{file_key}", deps.API.GetFile)
		r.With(write).Delete("/files/{file_key}", deps.API.DeleteFile)
		r.With(write).Get("/admin/bad-files", deps.API.BadFiles)
	})

	return router
}

// Run запускает сервер и блокируется до отмены ctx или ошибки ListenAndServe.
// При отмене ctx выполняется graceful shutdown с таймаутом из конфигурации.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
