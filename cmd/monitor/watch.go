package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	historySize, _ := cmd.Flags().GetInt("history")
	if historySize < 2 {
		historySize = 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, client, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	history := make([]float64, 0, historySize)
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	sample := func() {
		stats, err := service.RefreshStats(ctx)
		if err != nil {
			logger.Warn("poll failed", zap.Error(err))
			return
		}
		history = append(history, stats.SuccessRate)
		if len(history) > historySize {
			history = history[len(history)-historySize:]
		}
		render(history, stats.Snapshot.TxCount, stats.SuccessRate)
	}

	sample()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sample()
		}
	}
}

func render(history []float64, txCount uint64, successRate float64) {
	// Clear the terminal between frames.
	fmt.Print("\033[H\033[2J")

	fmt.Printf("txguard monitor — %d transactions, %.2f%% success\n\n", txCount, successRate)
	if len(history) < 2 {
		fmt.Println("collecting samples...")
		return
	}

	graph := asciigraph.Plot(history,
		asciigraph.Height(12),
		asciigraph.Width(70),
		asciigraph.Caption("success rate %"),
	)
	fmt.Println(graph)
}
