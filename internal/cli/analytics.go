package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/syncwatch/internal/analytics"
)

var (
	timeframeFlag string
	metricFlag    string
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics [account_id]",
	Short: "Print a bucketed follower series, or list accounts with history",
	Args:  cobra.MaximumNArgs(1),
	Run:   runAnalytics,
}

func init() {
	analyticsCmd.Flags().StringVar(&timeframeFlag, "timeframe", "week", "day, week or month")
	analyticsCmd.Flags().StringVar(&metricFlag, "metric", "followers", "followers or following")
	rootCmd.AddCommand(analyticsCmd)
}

func runAnalytics(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	ctx := context.Background()

	tf, err := analytics.ParseTimeframe(timeframeFlag)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	metric, err := analytics.ParseMetric(metricFlag)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	loc, err := cfg.Analytics.Location()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	stores := openStores(ctx, cfg)
	defer func() {
		_ = stores.Close()
	}()

	history := analytics.NewHistory(stores.KV, slog.Default())
	if len(args) == 0 {
		ids, err := history.Accounts(ctx)
		if err != nil {
			slog.Error("Failed to list accounts", "error", err)
			os.Exit(1)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return
	}

	svc := analytics.NewService(history, analytics.NewAggregator(loc, nil))
	sum, err := svc.Summary(ctx, args[0], tf, metric)
	if err != nil {
		slog.Error("Failed to build series", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintf(w, "BUCKET\t%s\n", metric.Name)
	for _, p := range sum.Points {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", p.Label, p.Count)
	}
	_ = w.Flush()
	fmt.Printf("growth: %+d (%+.1f%%)\n", sum.Growth, sum.GrowthPercent)
}
