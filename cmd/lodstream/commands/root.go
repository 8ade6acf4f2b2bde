package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/viant/lodstream"
)

var (
	// Global flags
	logLevel  string
	configURL string
)

var rootCmd = &cobra.Command{
	Use:   "lodstream",
	Short: "Progressive LOD streaming tool",
	Long: `lodstream - stream progressive assets level of detail by level of detail.

Assets are read from any location supported by viant/afs (file://, mem://,
gs:// ...) and from s3:// when fetch.s3.region is configured.

Examples:
  # Write a synthetic mesh and stream it to its highest level
  lodstream synth -o /tmp/grid.slod --kind pop --size 8
  lodstream stream /tmp/grid.slod

  # Show the container headers
  lodstream inspect /tmp/grid.slod`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVarP(&configURL, "config", "c", "", "configuration URL (.yaml, .json or .toml)")
}

func newLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), nil
}

func loadConfig(ctx context.Context, logger zerolog.Logger) (*lodstream.Config, error) {
	if configURL == "" {
		return lodstream.DefaultConfig(), nil
	}
	config, err := lodstream.LoadConfig(ctx, configURL)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("config", configURL).Msg("config loaded")
	return config, nil
}
