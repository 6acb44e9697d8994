package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/geocatalog/internal/datadir"
	"github.com/geocatalog/internal/loader"
	"github.com/geocatalog/internal/metrics"
	"github.com/geocatalog/internal/record"
	"github.com/geocatalog/internal/resolver"
	"github.com/geocatalog/internal/secret"
	"github.com/geocatalog/internal/storage"
	"github.com/geocatalog/pkg/catalog"
	"github.com/geocatalog/pkg/config"
	apperrors "github.com/geocatalog/pkg/errors"
	"github.com/geocatalog/pkg/telemetry"
	"github.com/geocatalog/pkg/utils"
)

// loadFlags override the catalog section of the configuration.
type loadFlags struct {
	dataDir string
	threads string
	format  string
}

func (f *loadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dataDir, "data-dir", "d", "", "Catalog data directory (overrides catalog.data_dir)")
	cmd.Flags().StringVarP(&f.threads, "threads", "t", "", "Loading threads (overrides catalog.loading_threads)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Record format: xml or yaml (overrides catalog.format)")
}

func (f *loadFlags) apply(cfg *config.Config) {
	if f.dataDir != "" {
		cfg.Catalog.DataDir = f.dataDir
	}
	if f.threads != "" {
		cfg.Catalog.LoadingThreads = f.threads
	}
	if f.format != "" {
		cfg.Catalog.Format = f.format
	}
}

// session holds what the load and export commands share.
type session struct {
	cfg      *config.Config
	logger   utils.Logger
	metrics  *metrics.LoadMetrics
	shutdown telemetry.ShutdownFunc
}

func openSession(cmd *cobra.Command, opts *globalOptions, flags *loadFlags) (*session, error) {
	cfg, err := config.Load(opts.configPath, flags.apply)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to load configuration", err)
	}

	s := &session{cfg: cfg, metrics: metrics.NewLoadMetrics()}

	level := utils.ParseLogLevel(cfg.Log.Level)
	if opts.verbose {
		level = utils.LevelDebug
	}
	if cfg.Log.OutputPath != "" {
		logger, err := utils.NewFileLogger(level, cfg.Log.OutputPath)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to open log file", err)
		}
		s.logger = logger
	} else {
		s.logger = utils.NewDefaultLogger(level, cmd.ErrOrStderr())
	}
	utils.SetGlobalLogger(s.logger)

	telemetry.Configure(func(tc *telemetry.Config) {
		if cfg.Telemetry.Enabled {
			tc.Enabled = true
		}
		if cfg.Telemetry.Endpoint != "" {
			tc.Endpoint = cfg.Telemetry.Endpoint
		}
		if cfg.Telemetry.Protocol != "" {
			tc.Protocol = cfg.Telemetry.Protocol
		}
		if cfg.Telemetry.Insecure {
			tc.Insecure = true
		}
		if tc.ServiceVersion == "unknown" {
			tc.ServiceVersion = Version
		}
		tc.DataDir = cfg.Catalog.DataDir
		tc.RecordFormat = cfg.Catalog.Format
	})
	shutdown, err := telemetry.Init(cmd.Context())
	if err != nil {
		s.logger.Warn("Failed to initialize telemetry: %v", err)
	}
	s.shutdown = shutdown
	return s, nil
}

// Close flushes pending spans.
func (s *session) Close(ctx context.Context) {
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			s.logger.Warn("Failed to flush telemetry: %v", err)
		}
	}
}

// loadCatalog loads the configured data directory into a new catalog. The
// metrics text file is written whether or not the load succeeds.
func (s *session) loadCatalog(ctx context.Context) (*catalog.Catalog, *loader.Report, error) {
	cc := s.cfg.Catalog

	format, err := record.ParseFormat(cc.Format)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeConfigError, "invalid record format", err)
	}
	if info, err := os.Stat(cc.DataDir); err != nil || !info.IsDir() {
		return nil, nil, apperrors.Newf(apperrors.CodeConfigError, "data directory %s does not exist", cc.DataDir)
	}
	fs := osfs.New(cc.DataDir)

	store, err := storage.NewStorage(&s.cfg.Storage, fs)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to open resource store", err)
	}

	var decrypter secret.Decrypter = secret.NoKey{}
	if cc.SecretKey != "" {
		box, err := secret.NewBox(cc.SecretKey)
		if err != nil {
			return nil, nil, apperrors.Wrap(apperrors.CodeConfigError, "invalid secret key", err)
		}
		decrypter = box
	}

	c := catalog.New()
	c.SetExtendedValidation(cc.ExtendedValidation)

	l := loader.New(c, datadir.NewWalker(fs, format, s.logger),
		loader.WithLogger(s.logger),
		loader.WithExecutorFactory(loader.NewExecutorFactory(cc.LoadingThreads, s.logger)),
		loader.WithQueueCapacity(cc.QueueCapacity),
		loader.WithResolverOptions(resolver.WithDecrypter(decrypter)),
		loader.WithResourceStore(store),
		loader.WithRecorder(s.metrics),
	)
	report, err := l.Load(ctx)

	if path := s.cfg.Metrics.Textfile; path != "" {
		if werr := s.metrics.WriteTextfile(path); werr != nil {
			s.logger.Warn("Failed to write metrics: %v", werr)
		} else {
			s.logger.Debug("Wrote load metrics to %s", path)
		}
	}
	if err != nil {
		return c, report, fmt.Errorf("catalog load failed: %w", err)
	}
	return c, report, nil
}
