// Package main provides the entry point for the ranking service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/trotrank/internal/api"
	"github.com/yourusername/trotrank/internal/config"
	"github.com/yourusername/trotrank/internal/database"
	"github.com/yourusername/trotrank/internal/evaluation"
	"github.com/yourusername/trotrank/internal/guidance"
	"github.com/yourusername/trotrank/internal/health"
	"github.com/yourusername/trotrank/internal/logger"
	"github.com/yourusername/trotrank/internal/metrics"
	"github.com/yourusername/trotrank/internal/models"
	"github.com/yourusername/trotrank/internal/rating"
	"github.com/yourusername/trotrank/internal/repository"
	"github.com/yourusername/trotrank/internal/scheduler"
)

// Build information - set via ldflags
var (
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			log.Fatalf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			log.Fatalf("Failed to load secrets: %v", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLog := logger.NewLogger(cfg.App.LogLevel)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
		"version":     Version,
	}).Info("TrotRank service starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	appLog.Info("Database connection established")

	repos, err := repository.NewRepositories(db)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to build repositories")
	}

	pipelineCfg := pipelineConfigFrom(&cfg.Rating)
	pipeline, err := rating.NewPipeline(pipelineCfg, repos.Rating, repos.Contest, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to build rating pipeline")
	}

	cacheTTL := time.Duration(cfg.Guidance.CacheTTLSeconds) * time.Second
	guidanceSvc, err := guidance.NewServiceWithTTL(guidanceConfigFrom(&cfg.Guidance), pipelineCfg.Seed, repos.Rating, repos.Contest, appLog, cacheTTL)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to build guidance service")
	}

	horseHarness, err := evaluation.NewHarness(repos.Contest, models.CompetitorHorse, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to build evaluation harness")
	}
	driverHarness, err := evaluation.NewHarness(repos.Contest, models.CompetitorDriver, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to build evaluation harness")
	}

	stepDelay := time.Duration(cfg.Evaluation.StepDelayMillis) * time.Millisecond
	tuner := evaluation.NewManager(horseHarness, stepDelay, appLog)

	handlers := api.NewHandlers(
		guidanceSvc,
		pipeline,
		repos.Rating,
		repos.Contest,
		map[models.CompetitorType]*evaluation.Harness{
			models.CompetitorHorse:  horseHarness,
			models.CompetitorDriver: driverHarness,
		},
		tuner,
		appLog,
	)
	apiServer := api.NewServer(cfg.Server, handlers, appLog)

	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Port:        cfg.Server.HealthPort,
		Logger:      appLog,
		DB:          db,
	})

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(pipeline, repos.Contest, appLog)
		if err := sched.ScheduleRecompute(cfg.Scheduler.RecomputeCron); err != nil {
			appLog.WithError(err).Fatal("Failed to schedule recompute job")
		}
		if cfg.Scheduler.SweepIntervalSeconds > 0 {
			if err := sched.ScheduleIncrementalSweep(cfg.Scheduler.SweepIntervalSeconds); err != nil {
				appLog.WithError(err).Fatal("Failed to schedule incremental sweep job")
			}
		}
		if err := sched.Start(); err != nil {
			appLog.WithError(err).Fatal("Failed to start scheduler")
		}
		healthServer.RegisterCheck("scheduler", func(context.Context) error {
			if !sched.IsRunning() {
				return fmt.Errorf("scheduler stopped")
			}
			return nil
		})
	}

	if err := healthServer.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start health server")
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			appLog.WithField("port", cfg.Metrics.Port).Info("Metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLog.WithError(err).Error("Metrics server error")
			}
		}()
	}

	go func() {
		if err := apiServer.Start(); err != nil {
			appLog.WithError(err).Fatal("API server failed")
		}
	}()

	healthServer.SetReady(true)
	appLog.WithFields(logrus.Fields{
		"api_port":          cfg.Server.Port,
		"health_port":       cfg.Server.HealthPort,
		"scheduler_enabled": cfg.Scheduler.Enabled,
	}).Info("TrotRank service running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	appLog.WithField("signal", sig).Info("Shutdown signal received")

	healthServer.SetReady(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("Error during API server shutdown")
	}
	if sched != nil {
		if err := sched.Stop(); err != nil {
			appLog.WithError(err).Error("Error during scheduler shutdown")
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLog.WithError(err).Error("Error during metrics server shutdown")
		}
	}

	appLog.Info("TrotRank service shut down successfully")
}

// pipelineConfigFrom maps the rating section onto pipeline parameters.
func pipelineConfigFrom(rc *config.RatingConfig) rating.PipelineConfig {
	return rating.PipelineConfig{
		Career:          rating.TrackParams{K: rc.CareerK, DecayDays: rc.CareerDecayDays},
		Form:            rating.TrackParams{K: rc.FormK, DecayDays: rc.FormDecayDays},
		ClassMin:        rc.ClassFactorMin,
		ClassMax:        rc.ClassFactorMax,
		ClassRef:        rc.ClassPurseRef,
		Seed:            rating.SeedParams{Base: rc.SeedBase, Alpha: rc.SeedAlpha, Min: rc.SeedMin, Max: rc.SeedMax},
		PenaltyMaxRaces: rc.PenaltyMaxRaces,
		PenaltyPoints:   rc.PenaltyPoints,
	}
}

// guidanceConfigFrom maps the guidance section onto engine knobs.
func guidanceConfigFrom(gc *config.GuidanceConfig) guidance.Config {
	cfg := guidance.DefaultConfig()
	cfg.EloDivisor = gc.EloDivisor
	cfg.BonusShoe = gc.BonusShoe
	cfg.BonusFavoriteTrack = gc.BonusFavoriteTrack
	cfg.BonusFavoriteSpar = gc.BonusFavoriteSpar
	cfg.BonusTrackFavoriteSpar = gc.BonusTrackFavoriteSpar
	cfg.HandicapDivisor = gc.HandicapDivisor
	cfg.TierBasis = guidance.TierBasis(gc.TierBasis)
	cfg.AWithin = gc.AWithin
	cfg.BWithin = gc.BWithin
	cfg.ClassTopK = gc.ClassTopK
	cfg.FormEloEps = gc.FormEloEps
	cfg.PlusUpgradeMin = gc.PlusUpgradeMin
	cfg.SoftmaxBeta = gc.SoftmaxBeta
	cfg.TopNBase = gc.TopNBase
	cfg.TopNMax = gc.TopNMax
	cfg.ZGapMax = gc.ZGapMax
	cfg.ProbCoverageMin = gc.ProbCoverageMin
	return cfg
}
