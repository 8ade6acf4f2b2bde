package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/viant/lodstream"
	"github.com/viant/lodstream/metrics"
	"github.com/viant/lodstream/parser"
	"github.com/viant/lodstream/service/event"
	"github.com/viant/lodstream/tracing"
)

var (
	streamLod         int
	streamTimeout     time.Duration
	streamMetricsAddr string
	streamTrace       string
)

var streamCmd = &cobra.Command{
	Use:   "stream URL...",
	Short: "Stream assets to a required level of detail",
	Long: `Open every asset and tick the streaming service until all of them reach the
required level (the highest one by default), fail, or the timeout expires.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStream,
}

func init() {
	streamCmd.Flags().IntVar(&streamLod, "lod", -1, "required level of detail, -1 for the highest")
	streamCmd.Flags().DurationVar(&streamTimeout, "timeout", time.Minute, "maximum streaming time")
	streamCmd.Flags().StringVar(&streamMetricsAddr, "metrics-addr", "", "serve Prometheus metrics at /metrics on this address, e.g. :9090")
	streamCmd.Flags().StringVar(&streamTrace, "trace", "", "write OpenTelemetry spans to this file, or \"stdout\"")
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), streamTimeout)
	defer cancel()
	logger, err := newLogger()
	if err != nil {
		return err
	}
	config, err := loadConfig(ctx, logger)
	if err != nil {
		return err
	}
	options := []lodstream.Option{lodstream.WithConfig(config), lodstream.WithLogger(logger)}
	switch streamTrace {
	case "":
	case "stdout":
		options = append(options, lodstream.WithTracing("lodstream", "", ""))
	default:
		options = append(options, lodstream.WithTracing("lodstream", "", streamTrace))
	}
	if streamTrace != "" {
		defer func() {
			if err := tracing.Shutdown(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("failed to flush traces")
			}
		}()
	}
	if streamMetricsAddr != "" {
		registry := prometheus.NewRegistry()
		collector, err := metrics.New(registry)
		if err != nil {
			return err
		}
		options = append(options, lodstream.WithMetrics(collector))
		server := &http.Server{Addr: streamMetricsAddr, Handler: metricsMux(registry)}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer server.Close()
	}
	srv, err := lodstream.New(options...)
	if err != nil {
		return err
	}
	defer srv.Shutdown()

	listener := event.NewListener[lodstream.Update](srv.Events(), func(e *event.Event[lodstream.Update]) {
		entry := logger.Debug()
		if e.Context.EventType == event.TypeError || e.Context.EventType == event.TypeStalled {
			entry = logger.Warn()
		}
		entry.Str("event", string(e.Context.EventType)).Str("asset", e.Context.AssetID).
			Int("lod", e.Data.CurrentLod).Int("maxLod", e.Data.MaxLod).Str("error", e.Data.Error).Msg("stream event")
	}, logger)
	listener.Start()
	defer listener.Stop()

	var assets []*lodstream.Asset
	for _, URL := range args {
		var parserOptions []parser.Option
		if streamLod >= 0 {
			parserOptions = append(parserOptions, parser.WithRequiredLod(streamLod))
		}
		asset, err := srv.Open(ctx, URL, parserOptions...)
		if err != nil {
			return err
		}
		if streamLod < 0 {
			asset.Parser.SetRequiredLod(asset.Parser.MaxLod())
		}
		assets = append(assets, asset)
	}
	started := time.Now()
	runErr := srv.Runtime().Run(ctx)

	out := cmd.OutOrStdout()
	for _, asset := range assets {
		status := asset.Status()
		if asset.Err != nil {
			status += ": " + asset.Err.Error()
		}
		fmt.Fprintf(out, "%s\t%s\tlod %d/%d\t%s\n", asset.Source, asset.Format, asset.Parser.CurrentLod(), asset.Parser.MaxLod(), status)
	}
	stats := srv.Stats()
	fmt.Fprintf(out, "requests %d (completed %d, failed %d, aborted %d), %d bytes, %d lods, %d primitives in %s\n",
		stats.Requests, stats.Completed, stats.Failed, stats.Aborted, stats.Bytes, stats.Lods, stats.Primitives,
		time.Since(started).Round(time.Millisecond))
	return runErr
}

func metricsMux(registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	return mux
}
