package main

import (
	"fmt"
	"time"

	"github.com/tryon-ai/tryon/internal/core/task"
	"github.com/tryon-ai/tryon/internal/crypto"
	"github.com/tryon-ai/tryon/internal/logger"
	"github.com/tryon-ai/tryon/internal/remote"
	"github.com/tryon-ai/tryon/internal/store"
	"github.com/tryon-ai/tryon/pkg/types"
)

// app wires the components shared by the daemon and the CLI commands.
type app struct {
	config   *types.Config
	log      logger.Logger
	store    *store.Store
	settings *store.SettingsStore
	prefs    *store.Namespace
	deriver  *crypto.KeyDeriver
	vault    *crypto.Vault
	assets   *store.AssetStore
	tasks    *store.TaskList
	client   *task.Client
}

func openApp(config *types.Config) (*app, error) {
	log := newLogger(config)

	st := store.NewStore(config.Store.Path, log)
	if err := st.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	settings := store.NewSettingsStore(st)
	prefs := settings.Namespace(store.NamespacePreference)

	deriver := crypto.NewKeyDeriver(crypto.HostSignals{
		Version:   version,
		Overrides: config.Environment,
	})
	vault := crypto.NewVault(deriver, settings.Namespace(store.NamespaceCredential), config.Crypto.WorkFactor, log)

	assets := store.NewAssetStore(st)
	tasks := store.NewTaskList(st)
	rc := remote.NewClient(config.Remote, log)
	client := task.NewClient(rc, vault, prefs, assets, tasks, task.DefaultEndpoints(), log)

	return &app{
		config:   config,
		log:      log,
		store:    st,
		settings: settings,
		prefs:    prefs,
		deriver:  deriver,
		vault:    vault,
		assets:   assets,
		tasks:    tasks,
		client:   client,
	}, nil
}

func (a *app) pollInterval() time.Duration {
	return time.Duration(a.config.Poller.IntervalSeconds) * time.Second
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warnf("failed to close store: %v", err)
	}
}
