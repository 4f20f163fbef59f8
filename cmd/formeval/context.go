package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/okian/formeval/internal/adapters/remote"
	"github.com/okian/formeval/internal/adapters/repository"
	service "github.com/okian/formeval/internal/app"
	"github.com/okian/formeval/internal/config"
	"github.com/okian/formeval/internal/domain/catalog"
	"github.com/okian/formeval/internal/domain/model"
	"github.com/okian/formeval/pkg/logger"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig(ctx context.Context) (*config.Config, error) {
	c.configOnce.Do(func() {
		path := os.Getenv("FORMEVAL_CONFIG")
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.LoadFrom(ctx, path)
	})
	return c.config, c.configErr
}

// initLogging installs the global logger writing to w and returns it.
func (c *commandContext) initLogging(cfg *config.Config, w io.Writer) (logger.Logger, error) {
	if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat, Writer: w}); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(context.Background(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel),
			logger.Error(err),
		)
		_ = logger.SetLevelString("info")
	}
	return log, nil
}

// newService builds the service and its store from configuration.
func (c *commandContext) newService(ctx context.Context, log logger.Logger) (*service.Service, error) {
	cfg, err := c.ensureConfig(ctx)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return service.New(store, catalogLoader(cfg),
		service.WithLogger(log.Named("service")),
		service.WithAdminMode(cfg.AdminMode),
	), nil
}

// openStore opens the local results table and, when configured, layers the
// remote copy over it.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	local, err := repository.OpenCSVStore(ctx, cfg.ScoresPath, repository.WithLogger(log.Named("store")))
	if err != nil {
		return nil, err
	}
	if !cfg.Remote.Enabled() {
		return local, nil
	}
	rs, err := newRemote(cfg.Remote)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "remote store enabled",
		logger.String("kind", cfg.Remote.Kind),
		logger.String("object", cfg.Remote.Path),
	)
	return repository.NewRemoteSync(local, rs, cfg.Remote.Path,
		repository.WithSyncLogger(log.Named("remote")),
	), nil
}

func newRemote(rc config.Remote) (remote.Store, error) {
	switch rc.Kind {
	case config.RemoteGitHub:
		return remote.NewGitHubStore(rc.Owner, rc.Repo,
			remote.WithAPIURL(rc.APIURL),
			remote.WithBranch(rc.Branch),
			remote.WithToken(rc.Token),
			remote.WithHTTPClient(&http.Client{Timeout: rc.Timeout()}),
		), nil
	case config.RemoteMemory:
		return remote.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown remote.kind %q", config.ErrInvalidConfig, rc.Kind)
	}
}

func catalogLoader(cfg *config.Config) service.CatalogLoader {
	if cfg.CatalogDir != "" {
		dir, base := cfg.CatalogDir, cfg.VideoBaseURL
		return func(ctx context.Context) ([]model.CatalogItem, error) {
			return catalog.FromDirectory(ctx, dir, base)
		}
	}
	path := cfg.CatalogPath
	return func(ctx context.Context) ([]model.CatalogItem, error) {
		return catalog.Load(ctx, path)
	}
}
