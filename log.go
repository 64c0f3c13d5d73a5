package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"

	"github.com/dgnsrekt/seitai/internal/config"
)

// logConfig is read from the environment before anything else runs.
type logConfig struct {
	Debug bool   `env:"SEITAI_DEBUG"`
	File  string `env:"SEITAI_LOG_FILE"`
	// Stderr mirrors log output to the terminal.
	Stderr bool `env:"SEITAI_LOG_STDERR"`
}

func getLogFilePath(cfg logConfig) (string, error) {
	if cfg.File != "" {
		return homedir.Expand(cfg.File)
	}
	return config.LogPath()
}

func setupLog() (func() error, error) {
	cfg, err := env.ParseAs[logConfig]()
	if err != nil {
		return nil, fmt.Errorf("error parsing log environment: %w", err)
	}

	logFile, err := getLogFilePath(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to find log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	var w io.Writer = f
	if cfg.Stderr {
		w = io.MultiWriter(f, os.Stderr)
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          config.AppName,
	})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	log.SetDefault(logger)

	return f.Close, nil
}
