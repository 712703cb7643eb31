package bootstrap

import (
	"fmt"

	coreconfig "intakebot/core/config"
	"intakebot/core/logger"
	"intakebot/guard"
	"intakebot/store"
)

// Options control the generic bootstrap pipeline.
type Options struct {
	Config *coreconfig.Config

	LoggerInit   func(*coreconfig.Config) error
	AcquireGuard func(path string) (*guard.Guard, error)
	OpenStore    func(store.Config) (*store.Store, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Guard *guard.Guard
	Store *store.Store
}

// Run initializes the logger, claims the single-instance marker, and opens
// the durable store, in that order. The guard comes before the store so a
// second process never reads files another instance is rewriting.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	acquire := opts.AcquireGuard
	if acquire == nil {
		acquire = guard.Acquire
	}
	g, err := acquire(opts.Config.Storage.LockPath)
	if err != nil {
		// ErrActiveInstance passes through unwrapped so main can exit cleanly.
		return nil, err
	}

	open := opts.OpenStore
	if open == nil {
		open = store.Open
	}
	st, err := open(store.Config{
		Path:       opts.Config.Storage.Path,
		LegacyPath: opts.Config.Storage.LegacyPath,
	})
	if err != nil {
		g.Release()
		return nil, fmt.Errorf("bootstrap: store initialization failed: %w", err)
	}

	return &Result{Guard: g, Store: st}, nil
}
