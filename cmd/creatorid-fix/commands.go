package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/symphonyoss/integration-maintenance/internal/config"
	"github.com/symphonyoss/integration-maintenance/internal/report"
	"github.com/symphonyoss/integration-maintenance/pkg/logger"
)

var (
	showSample   int64
	historyLimit int64
	historyLast  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Overwrite non-conforming creatorId values and verify the result",
	Long: `Sets creatorId to the default on every document where it is absent, null,
empty or contains a non-digit character, then re-runs the same query.
Exits 2 when non-conforming documents remain.`,
	Args: cobra.NoArgs,
	RunE: runFix,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the validation query only (read-only)",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backupKey>",
	Short: "Put back creatorId values saved by a previous run --backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous runs against the collection",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "Only count the documents that would change (env FIX_DRY_RUN)")
	runCmd.Flags().Bool("backup", false, "Save pre-fix values to MinIO before updating (env FIX_BACKUP)")
	bind(runCmd.Flags().Lookup("dry-run"), "FIX_DRY_RUN")
	bind(runCmd.Flags().Lookup("backup"), "FIX_BACKUP")

	checkCmd.Flags().Int64Var(&showSample, "show", 0, "Log up to N offending instances")

	historyCmd.Flags().Int64Var(&historyLimit, "limit", 20, "Number of runs to list")
	historyCmd.Flags().BoolVar(&historyLast, "last", false, "Print only the last report cached in Redis")
}

// open loads the config and connects what the command needs. The returned
// context is cancelled on SIGINT/SIGTERM or after --timeout.
func open(n needs) (context.Context, func(), *runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	rt, err := openRuntime(ctx, cfg, n)
	if err != nil {
		cancel()
		stop()
		return nil, nil, nil, err
	}
	return ctx, func() {
		rt.Close(context.Background())
		cancel()
		stop()
	}, rt, nil
}

func runFix(cmd *cobra.Command, args []string) error {
	ctx, done, rt, err := open(needs{})
	if err != nil {
		return err
	}
	defer done()

	rep, err := rt.fixer.Run(ctx)
	rt.pushMetrics()
	if rep != nil {
		if werr := report.Write(cmd.OutOrStdout(), rep); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	if !rep.Response && rep.Mode == report.ModeFix {
		return exitError{code: 2, msg: rep.Message}
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, done, rt, err := open(needs{})
	if err != nil {
		return err
	}
	defer done()

	rep, err := rt.fixer.Check(ctx)
	rt.pushMetrics()
	if err != nil {
		return err
	}
	if showSample > 0 && !rep.Response {
		sample, err := rt.repo.SampleNonConforming(ctx, showSample)
		if err != nil {
			return err
		}
		for _, ci := range sample {
			cur := "<absent or null>"
			if ci.CreatorID != nil {
				cur = fmt.Sprintf("%q", *ci.CreatorID)
			}
			logger.Infof("non-conforming instance %v: configurationId=%s name=%q %s=%s", ci.ID, ci.ConfigurationID, ci.Name, rep.Field, cur)
		}
	}
	if err := report.Write(cmd.OutOrStdout(), rep); err != nil {
		return err
	}
	if !rep.Response {
		return exitError{code: 2, msg: rep.Message}
	}
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx, done, rt, err := open(needs{backups: true})
	if err != nil {
		return err
	}
	defer done()

	rep, err := rt.fixer.Restore(ctx, args[0])
	rt.pushMetrics()
	if rep != nil {
		if werr := report.Write(cmd.OutOrStdout(), rep); werr != nil {
			return werr
		}
	}
	return err
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, done, rt, err := open(needs{})
	if err != nil {
		return err
	}
	defer done()

	out := cmd.OutOrStdout()
	collection := rt.cfg.Fix.Collection
	if historyLast {
		if rt.last == nil {
			return fmt.Errorf("--last needs REDIS_HOST")
		}
		var rep report.Report
		found, err := rt.last.LastReport(ctx, collection, &rep)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintf(out, "no cached report for %s\n", collection)
			return nil
		}
		return report.Write(out, &rep)
	}

	if rt.history == nil {
		return fmt.Errorf("run history disabled (HISTORY_COLLECTION is empty)")
	}
	runs, err := rt.history.Recent(ctx, collection, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "no runs recorded for %s\n", collection)
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %-8s  %-9s  matched=%d modified=%d remaining=%d  %s\n",
			r.StartedAt.Format("2006-01-02T15:04:05Z07:00"), r.Mode, r.Outcome(), r.Matched, r.Modified, r.Remaining, r.RunID)
	}
	return nil
}
