package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/syncwatch/internal/budget"
	"github.com/vietddude/syncwatch/internal/source"
	"github.com/vietddude/syncwatch/internal/syncer"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the rate-limit allowance and the last sync",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	ctx := context.Background()

	stores := openStores(ctx, cfg)
	defer func() {
		_ = stores.Close()
	}()

	now := time.Now()
	gov := budget.NewGovernor(stores.KV, cfg.RateLimit)
	rl := gov.Status(now)

	sched := syncer.New(cfg.Sync, syncer.Deps{
		Source:   source.Unconfigured{},
		Governor: gov,
		Store:    stores.KV,
	})
	defer sched.Close()
	info := sched.Info(now)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SECTION\tFIELD\tVALUE")
	_, _ = fmt.Fprintf(w, "rate_limit\tstatus\t%s (%s)\n", rl.Message(), rl.Level())
	_, _ = fmt.Fprintf(w, "rate_limit\tper_minute_remaining\t%d/%d\n", rl.PerMinuteRemaining, cfg.RateLimit.PerMinute)
	_, _ = fmt.Fprintf(w, "rate_limit\thourly_remaining\t%d/%d\n", rl.HourlyRemaining, cfg.RateLimit.Hourly)
	_, _ = fmt.Fprintf(w, "rate_limit\tdaily_remaining\t%d/%d\n", rl.DailyRemaining, cfg.RateLimit.Daily)
	_, _ = fmt.Fprintf(w, "rate_limit\tquota_used\t%.1f%%\n", rl.QuotaUsedPercent)
	_, _ = fmt.Fprintf(w, "rate_limit\tnext_admission_in\t%s\n", gov.NextAdmissionDelay(now).Round(time.Second))

	_, _ = fmt.Fprintf(w, "sync\tstatus\t%s\n", info.Message())
	if info.LastSyncAt != nil {
		_, _ = fmt.Fprintf(w, "sync\tlast_sync_at\t%s\n", info.LastSyncAt.Local().Format(time.RFC3339))
		_, _ = fmt.Fprintf(w, "sync\thours_since\t%.1f\n", *info.HoursSinceLastSync)
		_, _ = fmt.Fprintf(w, "sync\tnext_sync_at\t%s\n", info.NextSyncAt.Local().Format(time.RFC3339))
	} else {
		_, _ = fmt.Fprintln(w, "sync\tlast_sync_at\tnever")
	}
	_ = w.Flush()
}
