package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/securetransfer/server/internal/client"
	"github.com/securetransfer/server/internal/output"
	"github.com/securetransfer/server/internal/validation"
	"github.com/spf13/cobra"
)

func writeJSON(a *app, v interface{}) {
	output.JSON(a.out, v)
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show CLI and server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, serverErr := a.api.Version(cmd.Context())

			var server *client.VersionInfo
			if serverErr == nil {
				server = &info
			}

			if a.jsonOut {
				type jsonOut struct {
					CLIVersion    string `json:"cliVersion"`
					ServerVersion string `json:"serverVersion,omitempty"`
					APIVersion    string `json:"apiVersion,omitempty"`
					ServerError   string `json:"serverError,omitempty"`
				}
				out := jsonOut{CLIVersion: Version}
				if server != nil {
					out.ServerVersion = server.Version
					out.APIVersion = server.APIVersion
				} else {
					out.ServerError = serverErr.Error()
				}
				writeJSON(a, out)
				return nil
			}

			output.VersionInfo(a.out, Version, server, serverErr)
			return nil
		},
	}
}

func newDigestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "digest <file>...",
		Short: "Print the SHA-256 of local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sums := make(map[string]string, len(args))
			for _, path := range args {
				sum, err := client.FileDigest(path)
				if err != nil {
					return err
				}
				sums[path] = sum
				if !a.jsonOut {
					fmt.Fprintf(a.out, "%s  %s\n", sum, path)
				}
			}
			if a.jsonOut {
				writeJSON(a, sums)
			}
			return nil
		},
	}
}

// newCheckCmd screens a file locally. --remote asks the server instead,
// which applies its configured size ceiling.
func newCheckCmd(a *app) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Check whether a file would be accepted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := describeFile(args[0])
			if err != nil {
				return err
			}

			var valid bool
			var reason string
			if remote {
				res, err := a.api.Check(cmd.Context(), info.Name, info.Size, info.MimeType)
				if err != nil {
					return fmt.Errorf("checking file: %w", err)
				}
				valid, reason = res.Valid, res.Reason
			} else {
				res := validation.ValidateFile(info)
				valid, reason = res.Valid, res.Reason
			}

			if a.jsonOut {
				writeJSON(a, client.CheckResult{Valid: valid, Reason: reason})
			} else if valid {
				fmt.Fprintf(a.out, "OK: %s (%s, %s)\n", info.Name, output.FormatSize(info.Size), info.MimeType)
			} else {
				fmt.Fprintf(a.out, "Rejected: %s\n", reason)
			}
			if !valid {
				return fmt.Errorf("%s would be rejected", info.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Ask the server instead of checking locally")
	return cmd
}

func describeFile(path string) (validation.FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return validation.FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return validation.FileInfo{}, fmt.Errorf("%s is a directory", path)
	}
	info := validation.FileInfo{Name: filepath.Base(path), Size: st.Size()}
	if mtype, err := mimetype.DetectFile(path); err == nil {
		info.MimeType = mtype.String()
	}
	return info, nil
}

func newSendCmd(a *app) *cobra.Command {
	var (
		to        string
		message   string
		expires   string
		appURL    string
		skipCheck bool
		noDigest  bool
	)

	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Send a file to a recipient",
		Long: `Upload a file for one recipient and email them an access link.

  securetransfer send report.pdf --to bob@example.com
  securetransfer send report.pdf --to bob@example.com --expires 2030-01-31 -m "Q4 numbers"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			if to == "" {
				return fmt.Errorf("--to is required")
			}

			if !skipCheck {
				info, err := describeFile(args[0])
				if err != nil {
					return err
				}
				if res := validation.ValidateFile(info); !res.Valid {
					return fmt.Errorf("rejected before upload: %s", res.Reason)
				}
			}

			created, err := a.api.Send(cmd.Context(), client.SendRequest{
				Path:           args[0],
				RecipientEmail: to,
				Message:        message,
				ExpiryDate:     expires,
				AppURL:         appURL,
				SkipDigest:     noDigest,
			})
			if err != nil {
				return fmt.Errorf("sending %s: %w", filepath.Base(args[0]), err)
			}

			if a.jsonOut {
				writeJSON(a, created)
				return nil
			}

			t := created.Transfer
			fmt.Fprintf(a.out, "Sent %s (%s) to %s\n", t.FileName, output.FormatSize(t.FileSize), t.RecipientEmail)
			fmt.Fprintf(a.out, "Transfer: %s\n", t.ID)
			fmt.Fprintf(a.out, "SHA-256:  %s\n", t.FileHash)
			switch {
			case created.NotificationSent:
				fmt.Fprintln(a.out, "Recipient notified by email.")
			case created.NotificationQueued:
				fmt.Fprintln(a.out, "Email delivery failed; a retry is queued.")
			default:
				fmt.Fprintln(a.out, "Recipient was not notified.")
			}
			fmt.Fprintf(a.out, "Access token: %s\n", created.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient email")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message for the recipient")
	cmd.Flags().StringVar(&expires, "expires", "", "Expiry as YYYY-MM-DD or RFC 3339")
	cmd.Flags().StringVar(&appURL, "app-url", "", "Base URL for the emailed download link")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip the local file check")
	cmd.Flags().BoolVar(&noDigest, "no-digest", false, "Do not send the local digest for server comparison")
	return cmd
}

func newListCmd(a *app, which string) *cobra.Command {
	var page, limit int

	short := "List transfers you sent"
	dir := output.Sent
	if which == "received" {
		short = "List transfers sent to you"
		dir = output.Received
	}

	cmd := &cobra.Command{
		Use:   which,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}

			list := a.api.ListSent
			if dir == output.Received {
				list = a.api.ListReceived
			}
			resp, err := list(cmd.Context(), page, limit)
			if err != nil {
				return fmt.Errorf("listing transfers: %w", err)
			}

			if a.jsonOut {
				writeJSON(a, resp)
				return nil
			}
			output.TransferTable(a.out, resp.Data, dir, a.now())
			if p := resp.Pagination; p != nil && p.TotalPages > 1 {
				fmt.Fprintf(a.out, "\nPage %d of %d (%d total)\n", p.Page, p.TotalPages, p.Total)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "Rows per page")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <transfer-id>",
		Short: "Show a transfer you sent or received",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			t, err := a.api.GetTransfer(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching transfer: %w", err)
			}
			if a.jsonOut {
				writeJSON(a, t)
				return nil
			}
			output.TransferDetail(a.out, *t, a.now())
			return nil
		},
	}
}
