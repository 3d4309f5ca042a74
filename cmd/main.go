package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MimeLyc/voice-translator/internal/config"
	"github.com/MimeLyc/voice-translator/internal/httpapi"
	"github.com/MimeLyc/voice-translator/internal/jobs"
	"github.com/MimeLyc/voice-translator/internal/media"
	"github.com/MimeLyc/voice-translator/internal/persistence"
	"github.com/MimeLyc/voice-translator/internal/recognizer"
	"github.com/MimeLyc/voice-translator/internal/service"
	"github.com/MimeLyc/voice-translator/internal/storage"
	"github.com/MimeLyc/voice-translator/internal/synth"
	"github.com/MimeLyc/voice-translator/internal/translator"
	"github.com/MimeLyc/voice-translator/pkg/log"
	"github.com/MimeLyc/voice-translator/pkg/proc"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal("voice-translator stopped: %v", err)
	}
}

// loadConfig layers the settings file under DATA_DIR over the environment.
// A missing file is seeded with the effective settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return nil, err
	}

	path := config.RuntimeSettingsFilePath(cfg.Storage.DataDir)
	settings, err := config.LoadRuntimeSettingsFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := config.WriteRuntimeSettingsFile(path, cfg.RuntimeSettings()); err != nil {
			log.Warn("Failed to seed settings file %s: %v", path, err)
		}
		return cfg, nil
	case err != nil:
		return nil, err
	}
	return config.NewFromEnv(config.WithRuntimeSettings(settings))
}

func run(ctx context.Context, cfg *config.Config) error {
	log.InitLogger(log.ParseLevel(cfg.LogLevel))
	if cfg.LogFile != "" {
		fl, err := log.NewFileLogger(cfg.LogFile, log.ParseLevel(cfg.LogLevel))
		if err != nil {
			return err
		}
		defer fl.Close()
		log.SetLogger(fl.Logger)
	}

	store, err := persistence.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	registry := jobs.NewRegistry(store)

	rec, err := recognizer.New(cfg.Recognition)
	if err != nil {
		return err
	}
	tr, err := translator.New(cfg.Translation, cfg.Languages)
	if err != nil {
		return err
	}

	selector := synth.NewSelector(
		synth.Assets{
			ModelPath:   cfg.Synthesis.ModelPath,
			VocoderPath: cfg.Synthesis.VocoderPath,
			ConfigPath:  cfg.Synthesis.ConfigPath,
		},
		cfg.Synthesis.Device,
		synth.CoquiFactory(cfg.Synthesis.Command, proc.ExecRunner{}, ""),
	)
	fallback := synth.NewGoogleTTS(cfg.Synthesis.FallbackURL, &http.Client{Timeout: cfg.Synthesis.Timeout})
	backend := synth.NewBackend(selector, fallback, cfg.Languages, cfg.Storage.OutputDir, cfg.Synthesis.SampleRate)
	sel := backend.Selection()
	log.Info("Synthesis backend: %s (device=%s) %s", sel.Backend, sel.Device, sel.Reason)

	deps := service.Dependencies{
		Normalizer:  media.NewNormalizer(),
		Recognizer:  rec,
		Translator:  tr,
		Synthesizer: backend,
		Registry:    registry,
		Languages:   cfg.Languages,
	}
	if publisher := newPublisher(ctx, cfg.S3); publisher != nil {
		deps.Publisher = publisher
	}
	orch := service.New(deps, service.Options{
		MaxTextLength:      cfg.Limits.MaxTextLength,
		AllowedExtensions:  cfg.Limits.AllowedExtensions,
		MaxConcurrent:      cfg.Limits.MaxConcurrentJobs,
		RecognitionTimeout: cfg.Recognition.Timeout,
		TranslationTimeout: cfg.Translation.Timeout,
		SynthesisTimeout:   cfg.Synthesis.Timeout,
	})

	c := cron.New()
	janitor := service.NewJanitor(cfg.Storage.Retention, registry, cfg.Storage.UploadDir, cfg.Storage.OutputDir)
	cleanup := service.NewCleanupScheduler(c, cfg.Storage.CleanupCron, janitor)

	srv := httpapi.NewServer(orch, cfg.Languages,
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
		httpapi.WithUploads(cfg.Storage.UploadDir, cfg.Limits.MaxFileSize),
		httpapi.WithAllowedExtensions(cfg.Limits.AllowedExtensions),
		httpapi.WithSubmitRateLimit(cfg.HTTP.SubmitRateLimit),
		httpapi.WithHealth(backend, cfg.Storage.CleanupCron),
		httpapi.WithBaseContext(ctx),
	)

	return runWithComponents(ctx, cfg, cleanup, c, srv)
}

// newPublisher returns nil when S3 is not configured or unreachable; the
// pipeline then keeps artifacts local only.
func newPublisher(ctx context.Context, cfg config.S3Config) *storage.S3Publisher {
	if !cfg.Enabled() {
		return nil
	}
	publisher, err := storage.NewS3Publisher(cfg)
	if err != nil {
		log.Warn("S3 mirror disabled: %v", err)
		return nil
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := publisher.CheckBucket(checkCtx); err != nil {
		log.Warn("S3 mirror disabled: %v", err)
		return nil
	}
	log.Info("S3 mirror enabled: bucket=%s", cfg.Bucket)
	return publisher
}

func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, c cronEngine, srv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
