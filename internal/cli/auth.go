package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/identity"
	"github.com/claude/liftlog/internal/models"
)

func newLoginCmd(a *app) *cobra.Command {
	var noSync bool
	cmd := &cobra.Command{
		Use:   "login [anonymous|tailscale]",
		Short: "Sign in and push local data",
		Long: `Sign in with the given method (default anonymous). After a successful
sign-in everything logged on this device is pushed to the remote store.

tailscale sign-in needs a liftlog-server reached over its tailnet.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(identity.MethodAnonymous), string(identity.MethodTailscale)},
		RunE: func(cmd *cobra.Command, args []string) error {
			method := identity.MethodAnonymous
			if len(args) == 1 {
				m, err := identity.ParseMethod(args[0])
				if err != nil {
					return err
				}
				method = m
			}
			s, err := a.ident.SignIn(cmd.Context(), method)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "signed in as %s\n", s.Label())
			if noSync {
				return a.render(cmd, s, func(io.Writer) error { return nil })
			}

			report := a.mgr.PushLocalToRemote(cmd.Context())
			for _, e := range report.Errors() {
				a.log.Warn("initial sync", "error", e)
			}
			return a.render(cmd, map[string]any{"session": s, "report": report}, func(w io.Writer) error {
				writeReport(w, report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip the sync after signing in")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; local data stays on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.ident.CurrentSession() == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}
			if err := a.ident.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

type whoami struct {
	Session *models.Session `json:"session"`
	Remote  string          `json:"remote"`
	Online  bool            `json:"online"`
	DataDir string          `json:"dataDir"`
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the session and remote status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			online := a.remote != nil && a.probe.Online()
			if online {
				if err := a.ident.Verify(cmd.Context()); err != nil {
					a.log.Warn("verifying session", "error", err)
				}
			}
			s := a.ident.CurrentSession()
			info := whoami{Remote: a.cfg.Client.Remote, Online: online, DataDir: a.store.Path()}
			if s != nil {
				redacted := *s
				redacted.Token = ""
				info.Session = &redacted
			}
			return a.render(cmd, info, func(w io.Writer) error {
				fmt.Fprintf(w, "session:  %s\n", s.Label())
				if s != nil {
					fmt.Fprintf(w, "uid:      %s\n", s.UID)
					if s.Method != "" {
						fmt.Fprintf(w, "method:   %s\n", s.Method)
					}
				}
				fmt.Fprintf(w, "remote:   %s (online: %s)\n", info.Remote, yesNo(online))
				fmt.Fprintf(w, "data:     %s\n", info.DataDir)
				return nil
			})
		},
	}
}
