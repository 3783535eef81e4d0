package main

import (
	"fmt"

	"github.com/normanking/cortexlipsync/internal/audio"
	"github.com/normanking/cortexlipsync/internal/bus"
	"github.com/normanking/cortexlipsync/internal/config"
	"github.com/normanking/cortexlipsync/internal/lipsync"
	"github.com/normanking/cortexlipsync/internal/logging"
	"github.com/normanking/cortexlipsync/internal/rig"
	"github.com/rs/zerolog"
)

// loadConfig reads the configuration and builds the logger the commands
// share. The caller closes the logger.
func loadConfig() (*config.Loader, *config.Config, *logging.Logger, error) {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}
	return loader, cfg, logger, nil
}

// loadRig opens the configured avatar. No model path yields a nil rig, which
// resolves to a silent engine.
func loadRig(path string, log zerolog.Logger) (rig.Riggable, error) {
	if path == "" {
		log.Warn().Msg("No avatar.model_path configured, mouth output disabled")
		return nil, nil
	}
	r, err := rig.LoadGLTF(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func buildEngine(cfg *config.Config, r rig.Riggable, source audio.Source, eventBus *bus.EventBus, log zerolog.Logger) (*lipsync.Engine, error) {
	engine, err := lipsync.NewEngine(cfg.Lipsync, r, source, eventBus, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	return engine, nil
}
