package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"

	"github.com/channelfinder/channelfinder-server/internal/api"
	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/config"
	"github.com/channelfinder/channelfinder-server/internal/logger"
	"github.com/channelfinder/channelfinder-server/internal/metrics"
	"github.com/channelfinder/channelfinder-server/internal/ratelimit"
	"github.com/channelfinder/channelfinder-server/internal/service"
)

const shutdownTimeout = 10 * time.Second

// RateLimiterHandle wraps the keyed limiter with Shutdownable. Limiter is
// nil when rate limiting is disabled.
type RateLimiterHandle struct {
	Limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	if h.Limiter != nil {
		h.Limiter.Stop()
	}
	return nil
}

// ProvideRateLimiter provides the per-client mutation limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	if !cfg.RateLimit.Enabled {
		return &RateLimiterHandle{}, nil
	}
	return &RateLimiterHandle{
		Limiter: ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}, nil
}

// ProvideMetricsRegistry provides the Prometheus registry with the directory
// gauges and standard process collectors registered.
func ProvideMetricsRegistry(i do.Injector) (*prometheus.Registry, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*IndexHandle](i)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCollector(storeHandle.Store, indexHandle.ChannelIndex, log.Logger),
	)
	return registry, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server, already listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	handler := api.NewServer(api.Options{
		Name:       cfg.Server.Name,
		Channels:   do.MustInvoke[*service.ChannelService](i),
		Tags:       do.MustInvoke[*service.TagService](i),
		Properties: do.MustInvoke[*service.PropertyService](i),
		Users:      do.MustInvoke[*auth.Users](i),
		Limiter:    do.MustInvoke[*RateLimiterHandle](i).Limiter,
		Registry:   do.MustInvoke[*prometheus.Registry](i),
		Logger:     log.Logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
