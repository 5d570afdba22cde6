// Package main provides a CLI for replaying contest history into ratings.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/trotrank/internal/config"
	"github.com/yourusername/trotrank/internal/database"
	"github.com/yourusername/trotrank/internal/logger"
	"github.com/yourusername/trotrank/internal/models"
	"github.com/yourusername/trotrank/internal/rating"
	"github.com/yourusername/trotrank/internal/repository"
)

// Build information - set via ldflags
var (
	Version = "dev"
)

var (
	configFile     string
	competitorType string
	appLog         *logrus.Logger
	cfg            *config.Config
	db             *database.DB
	repos          *repository.Repositories
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVarP(&competitorType, "type", "t", "", "Competitor type to recompute (horse, driver, or empty for both)")
}

var rootCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Replay the full contest history into fresh ratings",
	Long: `Rebuilds career and form ratings for horses and drivers by replaying
all settled contests strictly in ascending date order.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecompute()
	},
}

func main() {
	defer func() {
		if db != nil {
			db.Close()
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		if err := config.LoadSecretsFromAWS(cfg, os.Getenv("AWS_REGION"), os.Getenv("AWS_SECRET_NAME")); err != nil {
			return err
		}
	}

	return config.Validate(cfg)
}

func setupDependencies() error {
	appLog = logger.NewLogger(cfg.App.LogLevel)

	var err error
	db, err = database.NewDB(context.Background(), &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	repos, err = repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to build repositories: %w", err)
	}

	return nil
}

func targetTypes() ([]models.CompetitorType, error) {
	switch competitorType {
	case "":
		return []models.CompetitorType{models.CompetitorHorse, models.CompetitorDriver}, nil
	case string(models.CompetitorHorse):
		return []models.CompetitorType{models.CompetitorHorse}, nil
	case string(models.CompetitorDriver):
		return []models.CompetitorType{models.CompetitorDriver}, nil
	default:
		return nil, fmt.Errorf("unknown competitor type %q", competitorType)
	}
}

func runRecompute() error {
	types, err := targetTypes()
	if err != nil {
		return err
	}

	pipelineCfg := rating.PipelineConfig{
		Career:          rating.TrackParams{K: cfg.Rating.CareerK, DecayDays: cfg.Rating.CareerDecayDays},
		Form:            rating.TrackParams{K: cfg.Rating.FormK, DecayDays: cfg.Rating.FormDecayDays},
		ClassMin:        cfg.Rating.ClassFactorMin,
		ClassMax:        cfg.Rating.ClassFactorMax,
		ClassRef:        cfg.Rating.ClassPurseRef,
		Seed:            rating.SeedParams{Base: cfg.Rating.SeedBase, Alpha: cfg.Rating.SeedAlpha, Min: cfg.Rating.SeedMin, Max: cfg.Rating.SeedMax},
		PenaltyMaxRaces: cfg.Rating.PenaltyMaxRaces,
		PenaltyPoints:   cfg.Rating.PenaltyPoints,
	}

	pipeline, err := rating.NewPipeline(pipelineCfg, repos.Rating, repos.Contest, appLog)
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, ctype := range types {
		started := time.Now()
		summary, err := pipeline.Recompute(ctx, ctype)
		if err != nil {
			return fmt.Errorf("recompute for %s failed: %w", ctype, err)
		}

		fmt.Printf("%s: %d contests (%d applied, %d skipped), %d competitors rated in %s\n",
			ctype, summary.Contests, summary.Applied, summary.Skipped,
			summary.Competitors, time.Since(started).Round(time.Millisecond))
	}

	return nil
}
