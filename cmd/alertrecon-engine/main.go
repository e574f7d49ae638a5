// alertrecon-engine is the headless orchestrator binary
//
// Modes:
//
//	run      run the reconciliation loop until SIGINT/SIGTERM
//	once     execute a single cycle and exit
//	rematch  re-score one email (-email, optional -skip-actions)
//	cleanup  apply the retention policy and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alertrecon/internal/app"
	"alertrecon/internal/platform/config"
	"alertrecon/internal/platform/logger"
)

func main() {
	var (
		fMode        = flag.String("mode", "run", "engine mode: run | once | rematch | cleanup")
		fEmail       = flag.Int64("email", 0, "email id for rematch mode")
		fSkipActions = flag.Bool("skip-actions", false, "rematch: do not re-run post-match actions")
		fRetention   = flag.Int("retention-days", 0, "cleanup: override audit retention (0 = configured)")
	)
	flag.Parse()

	root := config.New()
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, root)
	if err != nil {
		l.Panic().Err(err).Msg("wiring failed")
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	switch *fMode {
	case "run":
		if err := a.Engine.Start(ctx); err != nil {
			l.Panic().Err(err).Msg("engine start failed")
		}
		<-ctx.Done()
		a.Engine.Stop()

	case "once":
		rec, err := a.Engine.RunCycle(ctx)
		if err != nil {
			l.Panic().Err(err).Msg("cycle failed")
		}
		l.Info().
			Str("cycle_id", rec.CycleID).
			Str("status", string(rec.Status)).
			Int("emails", rec.EmailStats.Stored).
			Int("transactions", rec.TxStats.Stored).
			Msg("cycle complete")

	case "rematch":
		if *fEmail <= 0 {
			fmt.Fprintln(os.Stderr, "rematch mode requires -email <id>")
			os.Exit(2)
		}
		res, err := a.Engine.Rematch(ctx, *fEmail, *fSkipActions)
		if err != nil {
			l.Panic().Err(err).Int64("email_id", *fEmail).Msg("rematch failed")
		}
		l.Info().
			Int64("email_id", res.EmailID).
			Str("status", string(res.Status)).
			Float64("confidence", res.Confidence).
			Int("candidates", res.Candidates).
			Msg("rematch complete")

	case "cleanup":
		retention := *fRetention
		if retention <= 0 {
			retention = a.Cfg.RetentionAuditDays
		}
		audits, err := a.Actions.CleanupAudits(ctx, retention)
		if err != nil {
			l.Panic().Err(err).Msg("audit cleanup failed")
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -a.Cfg.RetentionEmailDays)
		emails, err := a.Emails.DeleteProcessedBefore(ctx, cutoff)
		if err != nil {
			l.Panic().Err(err).Msg("email cleanup failed")
		}
		l.Info().Int64("audits", audits).Int64("emails", emails).Msg("cleanup complete")

	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *fMode)
		os.Exit(2)
	}
}
