// Package main provides the entry point for the ChannelFinder server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/channelfinder/channelfinder-server/internal/di"
	"github.com/channelfinder/channelfinder-server/internal/di/providers"
	"github.com/channelfinder/channelfinder-server/internal/logger"
)

func main() {
	injector := di.NewContainer()

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	// The store and the index use wrapper handles, close them explicitly so
	// badger compacts and the index releases its lock.
	if indexHandle, err := do.Invoke[*providers.IndexHandle](injector); err == nil {
		if err := indexHandle.Shutdown(); err != nil {
			log.Error("Failed to close search index", "error", err)
		}
	}
	if storeHandle, err := do.Invoke[*providers.StoreHandle](injector); err == nil {
		if err := storeHandle.Shutdown(); err != nil {
			log.Error("Failed to close document store", "error", err)
		}
	}

	log.Info("Server stopped")
}
