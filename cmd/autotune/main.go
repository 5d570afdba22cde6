// Package main provides a CLI for grid-searching Elo hyperparameters.
package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/trotrank/internal/config"
	"github.com/yourusername/trotrank/internal/database"
	"github.com/yourusername/trotrank/internal/evaluation"
	"github.com/yourusername/trotrank/internal/logger"
	"github.com/yourusername/trotrank/internal/models"
	"github.com/yourusername/trotrank/internal/repository"
)

// Build information - set via ldflags
var (
	Version = "dev"
)

var (
	configFile string
	startDate  string
	endDate    string
	kValues    []float64
	decayDays  []float64
	classMins  []float64
	classMaxs  []float64

	appLog *logrus.Logger
	cfg    *config.Config
	db     *database.DB
	repos  *repository.Repositories
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVar(&startDate, "start", "", "Evaluation window start (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&endDate, "end", "", "Evaluation window end (YYYY-MM-DD)")
	rootCmd.Flags().Float64SliceVar(&kValues, "k", nil, "K factors to sweep")
	rootCmd.Flags().Float64SliceVar(&decayDays, "decay-days", nil, "Recency decay horizons to sweep")
	rootCmd.Flags().Float64SliceVar(&classMins, "class-min", nil, "Class factor minimums to sweep")
	rootCmd.Flags().Float64SliceVar(&classMaxs, "class-max", nil, "Class factor maximums to sweep")
	rootCmd.MarkFlagRequired("start")
	rootCmd.MarkFlagRequired("end")
}

var rootCmd = &cobra.Command{
	Use:   "autotune",
	Short: "Grid-search Elo hyperparameters against historical contests",
	Long: `Sweeps the requested hyperparameter grid, evaluating each cell by
replaying the contest window in memory and scoring predicted finish order
against actual placements.`,
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
		return runAutoTune()
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

func runAutoTune() error {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("end date must not precede start date")
	}

	harness, err := evaluation.NewHarness(repos.Contest, models.CompetitorHorse, appLog)
	if err != nil {
		return err
	}

	grid := evaluation.Grid{
		K:         kValues,
		DecayDays: decayDays,
		ClassMin:  classMins,
		ClassMax:  classMaxs,
	}

	combos := grid.Combinations(evaluation.DefaultHyperparameters())
	if len(combos) == 0 {
		return models.ErrEmptyGrid
	}
	if len(combos) > cfg.Evaluation.MaxGridCells {
		return fmt.Errorf("grid has %d cells, limit is %d", len(combos), cfg.Evaluation.MaxGridCells)
	}

	fmt.Printf("Evaluating %d grid cells over %s..%s\n", len(combos), startDate, endDate)

	ctx := context.Background()
	var best *evaluation.Result
	for i, params := range combos {
		result, err := harness.EvaluateElo(ctx, start, end, params)
		if err != nil {
			appLog.WithError(err).WithField("cell", i+1).Warn("Grid cell failed")
			continue
		}

		fmt.Printf("[%d/%d] k=%.0f decay=%.0f class=[%.2f,%.2f] rmse=%.4f (%d races)\n",
			i+1, len(combos), params.K, params.DecayDays, params.ClassMin, params.ClassMax,
			result.MeanRMSE, result.RacesEvaluated)

		if !math.IsNaN(result.MeanRMSE) && (best == nil || result.MeanRMSE < best.MeanRMSE) {
			best = result
		}
	}

	if best == nil {
		return fmt.Errorf("no grid cell produced a finite score")
	}

	fmt.Printf("\nBest: k=%.0f decay=%.0f class=[%.2f,%.2f] rmse=%.4f\n",
		best.Params.K, best.Params.DecayDays, best.Params.ClassMin, best.Params.ClassMax, best.MeanRMSE)
	return nil
}
