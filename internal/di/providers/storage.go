package providers

import (
	"github.com/samber/do/v2"

	"github.com/channelfinder/channelfinder-server/internal/config"
	"github.com/channelfinder/channelfinder-server/internal/logger"
	"github.com/channelfinder/channelfinder-server/internal/search"
	"github.com/channelfinder/channelfinder-server/internal/store"
)

// StoreHandle wraps store.Store with Shutdownable.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the document store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	s, err := store.Open(cfg.StorePath(), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Document store opened", "path", cfg.StorePath())
	return &StoreHandle{Store: s}, nil
}

// IndexHandle wraps search.ChannelIndex with Shutdownable.
type IndexHandle struct {
	*search.ChannelIndex
}

// Shutdown implements do.Shutdownable.
func (h *IndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideIndex provides the channel search index and wires it to the store
// so every channel write is mirrored into it.
func ProvideIndex(i do.Injector) (*IndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	index, err := search.NewChannelIndex(search.Options{
		DataPath: cfg.IndexPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	storeHandle.SetChannelIndexer(index)

	log.Info("Search index ready", "path", cfg.IndexPath())
	return &IndexHandle{ChannelIndex: index}, nil
}
