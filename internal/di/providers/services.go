package providers

import (
	"github.com/samber/do/v2"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/config"
	"github.com/channelfinder/channelfinder-server/internal/logger"
	"github.com/channelfinder/channelfinder-server/internal/service"
	"github.com/channelfinder/channelfinder-server/internal/validation"
)

// ProvideUsers provides the basic-auth credential set. Without a users file
// every mutation is rejected, leaving the directory read-only.
func ProvideUsers(i do.Injector) (*auth.Users, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Auth.UsersFile == "" {
		log.Warn("No users file configured, directory is read-only")
		return auth.EmptyUsers(), nil
	}

	users, err := auth.LoadUsers(cfg.Auth.UsersFile)
	if err != nil {
		return nil, err
	}
	log.Info("Users loaded", "file", cfg.Auth.UsersFile, "count", users.Len())
	return users, nil
}

// ProvidePolicy provides the role policy built from the configured groups.
func ProvidePolicy(i do.Injector) (*auth.Policy, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return auth.NewPolicy(auth.Config{
		AdminGroups:    cfg.Auth.AdminGroups,
		ChannelGroups:  cfg.Auth.ChannelGroups,
		PropertyGroups: cfg.Auth.PropertyGroups,
		TagGroups:      cfg.Auth.TagGroups,
	}), nil
}

// ProvideCore provides the shared engine core.
func ProvideCore(i do.Injector) (*service.Core, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*IndexHandle](i)
	policy := do.MustInvoke[*auth.Policy](i)

	return &service.Core{
		Store:           storeHandle.Store,
		Index:           indexHandle.ChannelIndex,
		Policy:          policy,
		Validator:       validation.New(),
		Logger:          log.Logger,
		DefaultSize:     cfg.Query.DefaultSize,
		MaxResultWindow: cfg.Query.MaxResultWindow,
	}, nil
}

// ProvideChannelService provides the channel engine.
func ProvideChannelService(i do.Injector) (*service.ChannelService, error) {
	return service.NewChannelService(do.MustInvoke[*service.Core](i)), nil
}

// ProvideTagService provides the tag engine.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	return service.NewTagService(do.MustInvoke[*service.Core](i)), nil
}

// ProvidePropertyService provides the property engine.
func ProvidePropertyService(i do.Injector) (*service.PropertyService, error) {
	return service.NewPropertyService(do.MustInvoke[*service.Core](i)), nil
}
