// Package main provides a tool to fill a directory store with demo channels.
//
// Usage:
//
//	DATA_PATH=~/channelfinder go run ./cmd/populate --cells 10 --channels 1500
//
// The server must not be running against the same data path while this
// tool writes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/channelfinder/channelfinder-server/internal/populate"
	"github.com/channelfinder/channelfinder-server/internal/search"
	"github.com/channelfinder/channelfinder-server/internal/store"
)

var (
	cells    = flag.Int("cells", 10, "Number of cells to generate")
	channels = flag.Int("channels", 1500, "Channels per cell")
)

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot resolve home directory: %v\n", err)
			os.Exit(1)
		}
		dataPath = filepath.Join(home, "channelfinder")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger.Info("Populating directory", "path", dataPath, "cells", *cells, "channels_per_cell", *channels)

	s, err := store.Open(filepath.Join(dataPath, "store"), logger)
	if err != nil {
		logger.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	index, err := search.NewChannelIndex(search.Options{
		DataPath: filepath.Join(dataPath, "index"),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to open search index", "error", err)
		os.Exit(1)
	}
	defer index.Close()
	s.SetChannelIndexer(index)

	p := &populate.Populator{
		Store:  s,
		Logger: logger,
		Rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	start := time.Now()
	if err := p.Create(context.Background(), *cells, *channels); err != nil {
		logger.Error("Populate failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Populate finished", "channels", (*cells)*(*channels), "elapsed", time.Since(start))
}
