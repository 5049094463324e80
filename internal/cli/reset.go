package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/syncwatch/internal/budget"
	"github.com/vietddude/syncwatch/internal/source"
	"github.com/vietddude/syncwatch/internal/syncer"
)

var clearHistory bool

var resetRateLimitCmd = &cobra.Command{
	Use:   "reset-rate-limit",
	Short: "Clear the rate-limited flag, and optionally the admission history",
	Run:   runResetRateLimit,
}

var clearSyncCmd = &cobra.Command{
	Use:   "clear-sync-data",
	Short: "Forget the last sync time and status",
	Run:   runClearSync,
}

func init() {
	resetRateLimitCmd.Flags().BoolVar(&clearHistory, "history", false, "also clear the admission history")
	rootCmd.AddCommand(resetRateLimitCmd)
	rootCmd.AddCommand(clearSyncCmd)
}

func runResetRateLimit(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	stores := openStores(context.Background(), cfg)
	defer func() {
		_ = stores.Close()
	}()

	gov := budget.NewGovernor(stores.KV, cfg.RateLimit)
	if clearHistory {
		gov.ClearHistory()
		fmt.Println("Rate limit state and admission history cleared")
		return
	}
	gov.Reset()
	fmt.Println("Rate limit flag cleared")
}

func runClearSync(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	ctx := context.Background()
	stores := openStores(ctx, cfg)
	defer func() {
		_ = stores.Close()
	}()

	sched := syncer.New(cfg.Sync, syncer.Deps{
		Source:   source.Unconfigured{},
		Governor: budget.NewGovernor(nil, cfg.RateLimit),
		Store:    stores.KV,
	})
	defer sched.Close()

	if err := sched.ClearSyncData(ctx); err != nil {
		slog.Error("Failed to clear sync data", "error", err)
		os.Exit(1)
	}
	fmt.Println("Sync data cleared")
}
