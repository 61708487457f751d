// Package cli implements the securetransfer command-line client.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/securetransfer/server/internal/client"
	"github.com/spf13/cobra"
)

// Version is the CLI version, injected at build time:
//
//	go build -ldflags "-X github.com/securetransfer/server/internal/cli.Version=1.2.3"
var Version = "dev"

type app struct {
	out       io.Writer
	jsonOut   bool
	serverURL string

	profile *Profile
	api     *client.Client
	now     func() time.Time
}

// NewRootCommand assembles the command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out, now: time.Now}

	root := &cobra.Command{
		Use:   "securetransfer",
		Short: "Send files securely from the terminal",
		Long: `securetransfer uploads files for a single recipient, lists what you have
sent and received, and fetches files from emailed access links.

Get started:
  securetransfer login --token <jwt>              Store your session token
  securetransfer send report.pdf --to bob@x.com   Send a file
  securetransfer received                         List files sent to you
  securetransfer fetch <access-token>             Download from an access link`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			profile, err := LoadProfile()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if a.serverURL != "" {
				profile.ServerURL = a.serverURL
			}
			a.profile = profile
			a.api = client.New(profile.ServerURL, profile.Token)
			return nil
		},
	}

	root.SetOut(out)
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&a.serverURL, "server", "", "Override server URL (default: from config or "+DefaultURL+")")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newTokenCmd(a),
		newVersionCmd(a),
		newDigestCmd(a),
		newCheckCmd(a),
		newSendCmd(a),
		newListCmd(a, "sent"),
		newListCmd(a, "received"),
		newInfoCmd(a),
		newLinkCmd(a),
		newFetchCmd(a),
	)
	return root
}

// Execute runs the CLI against stdout.
func Execute() error {
	if err := NewRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (a *app) requireAuth() error {
	if a.profile == nil || !a.profile.HasToken() {
		return fmt.Errorf("not authenticated: run \"securetransfer login --token <jwt>\" first")
	}
	return nil
}
