package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethica-ai/ethica-relay/internal/application"
	appanalysis "github.com/ethica-ai/ethica-relay/internal/application/analysis"
	"github.com/ethica-ai/ethica-relay/internal/config"
	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
	mysqlp "github.com/ethica-ai/ethica-relay/internal/infra/db/mysql"
	postgresp "github.com/ethica-ai/ethica-relay/internal/infra/db/postgres"
	sqlitep "github.com/ethica-ai/ethica-relay/internal/infra/db/sqlite"
	"github.com/ethica-ai/ethica-relay/internal/infra/httpserver"
	minioStore "github.com/ethica-ai/ethica-relay/internal/infra/storage"
	openaiup "github.com/ethica-ai/ethica-relay/internal/infra/upstream/openai"
	"github.com/ethica-ai/ethica-relay/internal/infra/upstream/rest"
	"github.com/ethica-ai/ethica-relay/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		logrus.WithError(err).Fatal("config load error")
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.WithField("level", cfg.Log.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	checks := map[string]middleware.HealthChecker{}

	// init upstream
	var upstream domain.Analyzer
	switch cfg.Upstream.Kind {
	case config.UpstreamKindOpenAI:
		upstream = openaiup.NewClient(openaiup.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
		log.WithField("model", cfg.OpenAI.Model).Info("using openai upstream")
	default:
		if err := middleware.ValidateBaseURL(cfg.Upstream.BaseURL); err != nil {
			return fmt.Errorf("upstream base url: %w", err)
		}
		rc := rest.NewClient(rest.Config{
			BaseURL:          cfg.Upstream.BaseURL,
			Timeout:          cfg.Upstream.Timeout,
			MaxResponseBytes: cfg.Relay.MaxResponseBytes,
		})
		upstream = rc
		checks["upstream"] = middleware.Advisory(middleware.CheckFunc(rc.Check))
		log.WithField("url", rc.BaseURL()).Info("using http upstream")
	}

	// init archive
	archive, closeArchive, err := openArchive(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeArchive.Close()
	if archive != nil {
		checks["archive"] = middleware.CheckFunc(archive.Ping)
	}

	// init minio
	var objects domain.ObjectStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx, minioStore.Config{
			Endpoint:   cfg.Minio.Endpoint,
			Region:     cfg.Minio.Region,
			BucketName: cfg.Minio.BucketName,
			AccessKey:  cfg.Minio.AccessKey,
			SecretKey:  cfg.Minio.SecretKey,
			UseSSL:     cfg.Minio.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		objects = store
		checks["objects"] = middleware.Advisory(middleware.CheckFunc(store.Check))
	}

	// init service
	svc := &appanalysis.Service{
		Upstream: upstream,
		Archive:  archive,
		Objects:  objects,
		Clock:    application.SystemClock{},
		Log:      log,
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Capacity > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec, time.Minute)
		defer limiter.Stop()
	}

	// init router
	handler := httpserver.NewRouter(svc, httpserver.Options{
		ExposeSource:   cfg.ExposesSource(),
		MaxBodyBytes:   cfg.Relay.MaxBodyBytes,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		APIKeys:        cfg.Auth.APIKeys,
		Limiter:        limiter,
		Checks:         checks,
		Log:            log,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openArchive connects the configured archive driver. It returns a nil
// repository when archiving is disabled.
func openArchive(ctx context.Context, cfg *config.Config, log *logrus.Logger) (domain.Repository, io.Closer, error) {
	noop := closerFunc(func() error { return nil })

	switch cfg.Archive.Driver {
	case "":
		return nil, noop, nil
	case "sqlite":
		repo, err := sqlitep.Open(cfg.Archive.Path, log.GetLevel() < logrus.DebugLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite archive: %w", err)
		}
		log.WithField("path", cfg.Archive.Path).Info("archive: sqlite")
		return repo, closerFunc(repo.Close), nil
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect: %w", err)
		}
		repo := mysqlp.NewRecordRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("mysql migrate: %w", err)
		}
		log.WithField("host", cfg.Archive.Host).Info("archive: mysql")
		return repo, db, nil
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		repo := postgresp.NewRecordRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		log.WithField("host", cfg.Archive.Host).Info("archive: postgres")
		return repo, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown archive driver %q", cfg.Archive.Driver)
	}
}
