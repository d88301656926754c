package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mikasa-gate/internal/config"
	"mikasa-gate/internal/handler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// NewHTTPServer wires the handlers from the container into an http.Server.
func NewHTTPServer(c *config.Container) *http.Server {
	authMiddleware := handler.NewAuthMiddleware(c.AuthService, c.Sessions, c.Logger)

	router := handler.NewRouter(handler.Handlers{
		Auth:         handler.NewAuthHandler(c.AuthService, c.Sessions, c.Logger),
		Usage:        handler.NewUsageHandler(c.Logger),
		Chat:         handler.NewChatHandler(c.ChatService, c.Logger),
		Subscription: handler.NewSubscriptionHandler(c.SubscriptionService, c.Sessions, c.Logger),
		Admin:        handler.NewAdminHandler(c.SubscriptionService, c.Sessions, c.Config.GetAdminSecret(), c.Logger),
		Metrics:      promhttp.HandlerFor(c.MetricsRegistry, promhttp.HandlerOpts{}),
	}, authMiddleware.Middleware, c.Config.GetAllowedOrigins())

	return &http.Server{
		Addr:              ":" + c.Config.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves HTTP and sweeps idle sessions until ctx is cancelled, then
// shuts down gracefully.
func Run(ctx context.Context, c *config.Container) error {
	server := NewHTTPServer(c)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		c.Sessions.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c.Logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	c.Logger.Info("Server exited")
	return err
}
