// Package commands implements the godetect subcommands.
package commands

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/argus-vision/go-detect/classes"
	"github.com/argus-vision/go-detect/config"
	"github.com/argus-vision/go-detect/fetch"
)

// loadSetup resolves the configuration and logger shared by every
// subcommand from the inherited root flags.
func loadSetup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	level := cfg.Log.Level
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	log, err := buildLogger(level)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

func buildLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "log level %q", level)
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger(), nil
}

func newFetchClient(cfg *config.Config, log zerolog.Logger) (*fetch.Client, error) {
	return fetch.NewClient(fetch.Options{
		CacheDir: cfg.Cache.Dir,
		Region:   cfg.Cache.Region,
		Endpoint: cfg.Cache.Endpoint,
		Logger:   &log,
	})
}

// resolveLabels fetches the configured label table, falling back to the
// built-in COCO table when none is configured.
func resolveLabels(ctx context.Context, cfg *config.Config, fc *fetch.Client) (*classes.Table, error) {
	if cfg.Model.LabelsURL == "" {
		return classes.COCO(), nil
	}
	path, err := fc.Fetch(ctx, cfg.Model.LabelsURL)
	if err != nil {
		return nil, err
	}
	return classes.Load(path)
}
