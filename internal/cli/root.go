// Package cli implements the liftlog command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/identity"
	"github.com/claude/liftlog/internal/localstore"
	"github.com/claude/liftlog/internal/reconcile"
	"github.com/claude/liftlog/internal/remote"
)

// Version is set at build time via -ldflags.
var Version = "dev"

type globalFlags struct {
	configFile string
	dataDir    string
	output     string
	verbose    bool
}

// app holds what every command needs. It is opened by the root command's
// PersistentPreRunE and closed by Execute.
type app struct {
	flags globalFlags

	cfg    *config.Config
	log    *slog.Logger
	store  *localstore.Store
	remote remote.Store
	probe  *remote.Probe
	ident  *identity.Provider
	mgr    *reconcile.Manager
}

// NewRootCmd creates the liftlog root command.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "liftlog",
		Short: "Local-first strength training log",
		Long: `liftlog records strength training sets on this device and mirrors them
to a remote store when you are signed in.

Every write lands in the local store first. When a session is active and
the remote is reachable, sets, personal records and your own exercises
are mirrored; "liftlog sync" pushes anything that was logged offline.

Examples:
  liftlog log "Barbell Squat" --weight 100 --reps 5,5,5
  liftlog history --exercise "Barbell Squat"
  liftlog progress "Barbell Squat" --days 90
  liftlog login && liftlog sync`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "help", "completion", "version":
				return nil
			}
			return a.open(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.flags.configFile, "config", "c", "", "config file path (default: ~/.liftlog/config.yaml if present)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "local data directory (overrides client.data_dir)")
	root.PersistentFlags().StringVarP(&a.flags.output, "output", "o", "text", "output format: text, json")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newLogCmd(a),
		newHistoryCmd(a),
		newPRsCmd(a),
		newStatsCmd(a),
		newProgressCmd(a),
		newExercisesCmd(a),
		newSyncCmd(a),
		newWatchCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newResetCmd(a),
		newPrefsCmd(a),
		newRoutineCmd(a),
		newStretchCmd(a),
		newImportAlphaCmd(a),
		newMCPCmd(a),
	)
	return root, a
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, a := newRootCmd()
	err := cmd.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errorMessage(err))
		return 1
	}
	return 0
}

func errorMessage(err error) string {
	var ie *identity.Error
	if errors.As(err, &ie) {
		return identity.Message(err)
	}
	return err.Error()
}

func defaultConfigPath() string {
	if p := os.Getenv("LIFTLOG_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, ".liftlog", "config.yaml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func (a *app) open(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.flags.verbose {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	switch a.flags.output {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q", a.flags.output)
	}

	path := a.flags.configFile
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := config.LoadClient(path)
	if err != nil {
		return err
	}
	if a.flags.dataDir != "" {
		cfg.Client.DataDir = a.flags.dataDir
	}
	a.cfg = cfg

	a.store, err = localstore.Open(cfg.Client.DataDir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var auth identity.Authenticator
	var pinger remote.Pinger
	switch cfg.Client.Remote {
	case config.RemoteServer:
		client := remote.NewHTTPClient(cfg.Client.RemoteURL, sessionToken{a})
		a.remote, auth, pinger = client, client, client
	case config.RemoteS3:
		s3, err := remote.NewS3Store(ctx, remote.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
			UsePathStyle:    cfg.S3.UsePathStyle,
			PollInterval:    cfg.S3.PollInterval,
		})
		if err != nil {
			return fmt.Errorf("opening s3 remote: %w", err)
		}
		a.remote, pinger = s3, s3
	}
	a.probe = remote.NewProbe(pinger, cfg.Client.ProbeTTL)

	a.ident, err = identity.New(a.store, auth, a.log)
	if err != nil {
		return err
	}

	a.mgr = reconcile.New(a.store, a.remote, a.ident, reconcile.Options{
		SyncBatchLimit: cfg.Client.SyncBatchLimit,
		AsyncMirror:    cfg.Client.AsyncMirror,
		// An S3 bucket has no auth server, so the local session owns the data.
		SyncAnonymous: cfg.Client.SyncAnonymous || cfg.Client.Remote == config.RemoteS3,
		Connectivity:  a.probe,
		Logger:        a.log,
	})
	return a.mgr.Init(ctx)
}

func (a *app) close() {
	if a.mgr != nil {
		a.mgr.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.log != nil {
			a.log.Error("closing local store", "error", err)
		}
	}
}

// sessionToken reads the bearer token from the identity provider, which is
// created after the HTTP client it authenticates.
type sessionToken struct{ a *app }

func (t sessionToken) Token() string {
	if t.a.ident == nil {
		return ""
	}
	return t.a.ident.Token()
}

func (a *app) jsonOutput() bool { return a.flags.output == "json" }
