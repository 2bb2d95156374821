package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/app"
	"github.com/valeevte/pricewatch/internal/comparator"
	"github.com/valeevte/pricewatch/internal/config"
	"github.com/valeevte/pricewatch/internal/ingestion"
	"github.com/valeevte/pricewatch/internal/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pricectl",
		Short:        "Operate the price watch service",
		SilenceUsage: true,
	}
	root.AddCommand(newIngestCmd(), newQuotesCmd(time.Now), newVersionCmd())
	return root
}

func newIngestCmd() *cobra.Command {
	var pacing time.Duration

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion cycle over the tracked products and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("pacing") {
				cfg.Scheduler.Pacing = pacing
			}

			zl, err := logger.New(cfg.IsDevelopment(), cfg.Logger.Level)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer func() { _ = zl.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, zl)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				a.Close(closeCtx)
			}()

			s, err := a.Orchestrator.RunCycle(ctx, ingestion.TriggerCLI)
			if err != nil {
				zl.Warn("cycle ended early", zap.Error(err))
			}
			if werr := writeJSON(cmd, s); werr != nil {
				return werr
			}
			if s.Status == ingestion.StatusFailed {
				return fmt.Errorf("ingestion cycle %s failed", s.RunID)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&pacing, "pacing", ingestion.DefaultPacing, "delay between products")
	return cmd
}

func newQuotesCmd(now func() time.Time) *cobra.Command {
	var (
		name      string
		basePrice float64
		category  string
	)

	cmd := &cobra.Command{
		Use:   "quotes",
		Short: "Print today's generated store quotes for a product without storing them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if basePrice <= 0 {
				return fmt.Errorf("--price must be greater than 0")
			}

			quotes := comparator.NewGenerator().WithClock(now).Generate(name, basePrice, category)
			out := struct {
				Name        string                  `json:"name"`
				Category    string                  `json:"category"`
				BasePrice   float64                 `json:"basePrice"`
				StorePrices []comparator.StoreQuote `json:"storePrices"`
				Aggregates  *comparator.Aggregates  `json:"aggregates,omitempty"`
			}{Name: name, Category: category, BasePrice: basePrice, StorePrices: quotes}

			if agg, err := comparator.ComputeAggregates(quotes); err == nil {
				out.Aggregates = &agg
			}
			return writeJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().Float64Var(&basePrice, "price", 0, "base price in EUR")
	cmd.Flags().StringVar(&category, "category", "", "product category")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), app.Version)
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
