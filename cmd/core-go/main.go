package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"healthmap/core-go/internal/config"
	"healthmap/core-go/internal/dataset"
	"healthmap/core-go/internal/db"
	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/httpapi"
	"healthmap/core-go/internal/insight"
	"healthmap/core-go/internal/mapengine"
	"healthmap/core-go/internal/metrics"
	"healthmap/core-go/internal/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "core-go",
		Short:         "HealthMap map composition service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(layersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func layersCmd() *cobra.Command {
	var (
		variant     string
		viewMode    string
		traffic     bool
		areaID      string
		appointment string
	)
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "Print the composed layer set for a variant as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			provider, pool, err := openProvider(ctx, cfg)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}
			d, err := provider.Load(ctx)
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			return printLayers(cmd.OutOrStdout(), d, layersQuery{
				Variant:       variant,
				ViewMode:      viewMode,
				Traffic:       traffic,
				AreaID:        areaID,
				AppointmentID: appointment,
			})
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "standard", "map variant")
	cmd.Flags().StringVar(&viewMode, "view-mode", "standard", "view mode")
	cmd.Flags().BoolVar(&traffic, "traffic", false, "include the traffic layer")
	cmd.Flags().StringVar(&areaID, "area", "", "selected service area id")
	cmd.Flags().StringVar(&appointment, "appointment", "", "appointment id for the journey variant")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openProvider picks the dataset source: Postgres, a YAML file or the
// built-in mock dataset, in that order. The pool is nil unless Postgres is
// configured.
func openProvider(ctx context.Context, cfg *config.Config) (dataset.Provider, *db.Pool, error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return dataset.NewPostgresProvider(pool.Queries()), pool, nil
	case cfg.DatasetPath != "":
		return dataset.YAMLProvider{Path: cfg.DatasetPath}, nil, nil
	default:
		return dataset.Embedded(), nil, nil
	}
}

func newInsightSource(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (insight.Source, func(), error) {
	var src insight.Source = insight.Offline{}
	if cfg.InsightURL != "" {
		src = insight.NewClient(insight.ClientOptions{
			URL:     cfg.InsightURL,
			APIKey:  cfg.InsightAPIKey,
			Model:   cfg.InsightModel,
			Timeout: cfg.InsightTimeout,
		})
	} else {
		logger.Info().Msg("INSIGHT_URL not set; using offline insight summaries")
	}

	if cfg.RedisURL == "" {
		return src, func() {}, nil
	}
	store, err := insight.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis insight cache: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		// The cache degrades to pass-through; the service still starts.
		logger.Warn().Err(err).Msg("redis insight cache unreachable")
	}
	return insight.NewCache(src, store, cfg.InsightCacheTTL, logger), func() { _ = store.Close() }, nil
}

func runServer(cfg *config.Config) error {
	logger := httpapi.NewLogger(cfg.LogLevel)
	if cfg.IsDev() {
		logger = httpapi.NewDevLogger(cfg.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, pool, err := openProvider(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open data provider")
	}
	if pool != nil {
		defer pool.Close()
	}

	store, err := dataset.LoadStore(ctx, provider)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load dataset")
	}
	snap := store.Snapshot()
	logger.Info().
		Int("facilities", len(snap.Facilities)).
		Int("transports", len(snap.Transports)).
		Int("incidents", len(snap.Incidents)).
		Msg("dataset loaded")

	insightSrc, closeInsight, err := newInsightSource(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure insight source")
	}
	defer closeInsight()

	m := metrics.New()
	h := httpapi.NewHandler(logger, httpapi.Options{
		Pool:    pool,
		Data:    store,
		Insight: insightSrc,
		Tiles: mapengine.TileSource{
			URLTemplate: cfg.TileURL,
			Attribution: cfg.TileAttribution,
		},
		Center:         cfg.MapCenter(),
		Zoom:           cfg.MapZoom,
		ScrollZoom:     cfg.MapScrollZoom,
		InsightTimeout: cfg.InsightTimeout,
		DefaultRole:    cfg.DefaultRole(),
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins(),
	})
	defer h.Close()

	if cfg.TelemetryInterval > 0 {
		var src telemetry.PositionSource = telemetry.Simulator{}
		if pool != nil {
			src = telemetry.NewPostgresSource(pool.Queries(), time.Now())
		}
		poller := telemetry.New(logger, src, store, telemetry.Options{
			Interval: cfg.TelemetryInterval,
			OnUpdate: func(int) { h.RefreshSessions() },
		}, m)
		go poller.Run(ctx)
	}

	// SIGHUP reloads the dataset; the previous snapshot stays live on failure.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := store.Reload(ctx, provider); err != nil {
					logger.Error().Err(err).Msg("dataset reload failed")
					continue
				}
				logger.Info().Msg("dataset reloaded")
				h.RefreshSessions()
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("core-go listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
	return nil
}

type layersQuery struct {
	Variant       string
	ViewMode      string
	Traffic       bool
	AreaID        string
	AppointmentID string
}

func printLayers(w io.Writer, d *domain.Dataset, q layersQuery) error {
	variant, ok := mapengine.ParseVariant(q.Variant)
	if !ok {
		return fmt.Errorf("unknown variant %q", q.Variant)
	}
	mode, ok := mapengine.ParseViewMode(q.ViewMode)
	if !ok {
		return fmt.Errorf("unknown view mode %q", q.ViewMode)
	}
	req := mapengine.Request{
		Variant:        variant,
		ViewMode:       mode,
		Toggles:        mapengine.Toggles{Traffic: q.Traffic},
		SelectedAreaID: q.AreaID,
	}
	if q.AppointmentID != "" {
		appt, ok := d.Appointment(q.AppointmentID)
		if !ok {
			return fmt.Errorf("appointment %q not found", q.AppointmentID)
		}
		req.Journey = &appt
	}

	layers := mapengine.SelectLayers(d, req).Ordered()
	if layers == nil {
		layers = []mapengine.Layer{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(layers)
}
