package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/localstore"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/reconcile"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push unsynced local data to the remote store",
		Long: `Push workout records logged offline (up to client.sync_batch_limit per
run), every personal record and your own exercises to the remote store,
then pull exercises added on other devices.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.probe.Invalidate()
			report := a.mgr.PushLocalToRemote(cmd.Context())
			errs := report.Errors()
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			if err := a.render(cmd, map[string]any{"report": report, "errors": msgs}, func(w io.Writer) error {
				writeReport(w, report)
				for _, m := range msgs {
					fmt.Fprintf(w, "  error: %s\n", m)
				}
				return nil
			}); err != nil {
				return err
			}
			if len(errs) > 0 {
				return fmt.Errorf("sync finished with %d failure(s)", len(errs))
			}
			return nil
		},
	}
}

func writeReport(w io.Writer, r reconcile.SyncReport) {
	if r.Skipped != "" {
		fmt.Fprintf(w, "sync skipped: %s\n", r.Skipped)
		return
	}
	fmt.Fprintf(w, "records synced:   %d of %d attempted (%d remaining)\n", r.RecordsSynced, r.RecordsAttempted, r.RecordsRemaining)
	fmt.Fprintf(w, "personal records: %d\n", r.PersonalRecordsSynced)
	fmt.Fprintf(w, "exercises:        %d pushed, %d pulled\n", r.ExercisesPushed, r.ExercisesPulled)
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the history whenever it changes",
		Long: `Follow the workout history until interrupted. Remote changes arrive
through a live subscription when signed in; changes made by other liftlog
processes on this device are picked up from the local store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			changes := make(chan localstore.Change, 16)
			cancel := a.store.Subscribe(func(c localstore.Change) {
				if !c.External {
					return
				}
				select {
				case changes <- c:
				default:
				}
			})
			defer cancel()

			watchDone := make(chan error, 1)
			go func() { watchDone <- a.store.WatchExternal(ctx) }()

			snapshots, err := a.mgr.WatchHistory(ctx)
			switch {
			case errors.Is(err, reconcile.ErrNotSyncing):
				a.log.Info("not signed in to a remote; watching local changes only")
			case err != nil:
				a.log.Warn("live history unavailable; watching local changes only", "error", err)
			}

			a.printSnapshot(cmd, out, "current", nil)
			for {
				select {
				case <-ctx.Done():
					if watchDone != nil {
						<-watchDone
					}
					return nil
				case err := <-watchDone:
					if err != nil {
						return err
					}
					watchDone = nil
				case hist, ok := <-snapshots:
					if !ok {
						snapshots = nil
						continue
					}
					a.printSnapshot(cmd, out, "remote", hist)
				case c := <-changes:
					switch c.Key {
					case models.KeySession:
						if err := a.ident.Reload(); err != nil {
							a.log.Warn("reloading session", "error", err)
						}
						fmt.Fprintf(out, "session changed: %s\n", a.ident.CurrentSession().Label())
					case models.KeyWorkoutHistory:
						a.printSnapshot(cmd, out, "local", nil)
					}
				}
			}
		},
	}
}

// printSnapshot prints a one-line summary of hist, loading the merged
// history when hist is nil.
func (a *app) printSnapshot(cmd *cobra.Command, w io.Writer, source string, hist []models.WorkoutSet) {
	if hist == nil {
		var err error
		if hist, err = a.mgr.ListHistory(cmd.Context()); err != nil {
			a.log.Error("loading history", "error", err)
			return
		}
	}
	if len(hist) == 0 {
		fmt.Fprintf(w, "[%s] no sets logged\n", source)
		return
	}
	latest := hist[0]
	fmt.Fprintf(w, "[%s] %d sets, latest %s %s kg x %d at %s\n",
		source, len(hist), latest.Name, formatWeight(latest.Weight), latest.Reps, formatDate(latest.Date))
}
