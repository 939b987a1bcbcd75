// Package di provides dependency injection configuration for the
// ChannelFinder server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/channelfinder/channelfinder-server/internal/config"
	"github.com/channelfinder/channelfinder-server/internal/di/providers"
	"github.com/channelfinder/channelfinder-server/internal/logger"
	"github.com/channelfinder/channelfinder-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideIndex)

	// Auth layer
	do.Provide(injector, providers.ProvideUsers)
	do.Provide(injector, providers.ProvidePolicy)

	// Engine
	do.Provide(injector, providers.ProvideCore)
	do.Provide(injector, providers.ProvideChannelService)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvidePropertyService)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideMetricsRegistry)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. This triggers lazy initialization in
// dependency order and ends with a listening HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.IndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.Core](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
