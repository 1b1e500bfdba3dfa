package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/risuops/risuctl/internal/config"
	"github.com/risuops/risuctl/internal/diag"
	"github.com/risuops/risuctl/internal/jobs"
	"github.com/risuops/risuctl/internal/logging"
)

// openDeps loads config, logging, and the job registry, and wires the
// adapter. The cleanup closes the registry.
func openDeps() (*config.Config, *diag.Adapter, *jobs.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	log := logOrDiscard(cfg)

	store, err := jobs.Open(cfg.Jobs.DBPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open job registry: %w", err)
	}

	adapter := diag.NewAdapter(&diag.ExecRunner{}, store, log, cfg.Jobs.SpoolDir)
	return cfg, adapter, store, func() { store.Close() }, nil
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", errs[0].Error())
	}
	return cfg, nil
}

// logOrDiscard builds a logger, falling back to a silent one so a
// logging misconfiguration never blocks a diagnostic run.
func logOrDiscard(cfg *config.Config) *logrus.Logger {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return logging.Discard()
	}
	return log
}
