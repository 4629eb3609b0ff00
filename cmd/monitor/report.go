package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"txguardmon/internal/classify"
	"txguardmon/internal/model"
	"txguardmon/internal/monitor"
)

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, client, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := service.RefreshStats(ctx); err != nil {
		return fmt.Errorf("refresh stats: %w", err)
	}

	printReport(service.AnalysisReport())
	return nil
}

func printReport(report monitor.Report) {
	if report.Stats == nil {
		fmt.Println("no stats captured yet")
		return
	}
	snapshot := report.Stats.Snapshot

	fmt.Printf("captured %s\n", snapshot.CapturedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("transactions: %d total, %d succeeded, %d failed (%.2f%% success)\n",
		snapshot.TxCount, snapshot.SuccessCount, snapshot.FailureCount, report.Stats.SuccessRate)
	fmt.Printf("suggested tier: %s\n", report.SuggestedTier)
	if report.Delivery.Enabled {
		fmt.Printf("delivery gateway: enabled (%s)\n", report.Delivery.Endpoint)
	} else {
		fmt.Println("delivery gateway: disabled")
	}
	if report.ErrorCount > 0 {
		fmt.Printf("fetch errors: %d (last: %s)\n", report.ErrorCount, report.LastError)
	}
	fmt.Println()

	if snapshot.FailureCount > 0 {
		fmt.Println("failure breakdown:")
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Category", "Count")
		for _, ft := range model.FailureTypes {
			if count := snapshot.FailureCountFor(ft); count > 0 {
				table.Append(string(ft), fmt.Sprintf("%d", count))
			}
		}
		table.Render()
		fmt.Println()
	}

	if report.TierAnalysis != nil {
		fmt.Printf("tier effectiveness (avg fee %.0f):\n", report.TierAnalysis.AverageFee)
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Tier", "Usage", "Est. Success", "Improvement", "Verdict")

		benefits := make(map[model.Tier]model.CostBenefit, len(report.CostBenefit))
		for _, cb := range report.CostBenefit {
			benefits[cb.Tier] = cb
		}

		tiers := make([]model.Tier, 0, len(report.TierAnalysis.TierEffectiveness))
		for tier := range report.TierAnalysis.TierEffectiveness {
			tiers = append(tiers, tier)
		}
		sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })

		for _, tier := range tiers {
			marker := ""
			if tier == report.TierAnalysis.RecommendedTier {
				marker = " *"
			}
			cb := benefits[tier]
			table.Append(
				tier.String()+marker,
				fmt.Sprintf("%d", snapshot.TierCounts[tier]),
				fmt.Sprintf("%.1f%%", report.TierAnalysis.TierEffectiveness[tier]),
				fmt.Sprintf("%+.1f", cb.Improvement),
				string(cb.Rating),
			)
		}
		table.Render()
	}
}

func runClassify(_ *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	result := classify.Classify(text)

	fmt.Printf("input:      %s\n", result.OriginalInput)
	fmt.Printf("type:       %s\n", result.Type)
	fmt.Printf("confidence: %.2f\n", result.Confidence)
	return nil
}
