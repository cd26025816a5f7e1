// Package health serves the liveness, readiness and metrics endpoints.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"susninja-bot/internal/cache"
	"susninja-bot/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AliveText is the body of GET /.
const AliveText = "Sus Ninja Bot is alive and running!"

const shutdownTimeout = 5 * time.Second

// StatsProvider exposes read-only cache statistics.
type StatsProvider interface {
	Stats() cache.Stats
}

// NewRouter builds the gin engine with all health routes.
func NewRouter(stats StatsProvider) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())

	alive := func(c *gin.Context) {
		c.String(http.StatusOK, AliveText)
	}
	r.GET("/", alive)
	r.HEAD("/", alive)

	r.GET("/healthz", func(c *gin.Context) {
		s := stats.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"chats":    s.Chats,
			"messages": s.Messages,
		})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	return r
}

// requestLogger writes one structured access log line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		} else if status >= http.StatusBadRequest {
			ev = log.Warn()
		}
		ev.Str("component", "health").
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Health server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}
	<-errCh
	log.Info().Msg("Health server stopped")
	return nil
}
