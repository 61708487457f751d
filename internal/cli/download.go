package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/securetransfer/server/internal/output"
	"github.com/securetransfer/server/pkg/digest"
	"github.com/spf13/cobra"
)

func newLinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "link <transfer-id>",
		Short: "Print a one-hour download URL for a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			grant, err := a.api.DownloadURL(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("requesting download URL: %w", err)
			}
			if a.jsonOut {
				writeJSON(a, grant)
				return nil
			}
			fmt.Fprintln(a.out, grant.SignedURL)
			return nil
		},
	}
}

// newFetchCmd downloads through an emailed access token. No login needed.
func newFetchCmd(a *app) *cobra.Command {
	var (
		dest   string
		expect string
	)

	cmd := &cobra.Command{
		Use:   "fetch <access-token>",
		Short: "Download a file from an access token",
		Long: `Resolve an access token from a notification email and download the file.

  securetransfer fetch Xk3v9q...                       Save under the original name
  securetransfer fetch Xk3v9q... -o ./out/report.pdf   Save to a specific path
  securetransfer fetch Xk3v9q... --expect <sha256>     Verify the digest`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expect = strings.ToLower(strings.TrimSpace(expect))
			if expect != "" && !digest.Valid(expect) {
				return errors.New("--expect must be a 64-character hex SHA-256")
			}

			res, err := a.api.ResolveToken(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("resolving access token: %w", err)
			}

			path := dest
			if path == "" {
				path = filepath.Base(res.FileName)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("creating directory: %w", err)
			}

			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating %s: %w", path, err)
			}
			n, sum, fetchErr := a.api.Fetch(cmd.Context(), res.SignedURL, f)
			closeErr := f.Close()
			if fetchErr != nil {
				_ = os.Remove(path)
				return fetchErr
			}
			if closeErr != nil {
				return closeErr
			}

			if expect != "" && !digest.Equal(expect, sum) {
				_ = os.Remove(path)
				return fmt.Errorf("digest mismatch: expected %s, got %s", expect, sum)
			}

			if a.jsonOut {
				writeJSON(a, map[string]interface{}{
					"path":        path,
					"bytes":       n,
					"sha256":      sum,
					"senderEmail": res.SenderEmail,
				})
				return nil
			}

			fmt.Fprintf(a.out, "Downloaded %s (%s) from %s to %s\n", res.FileName, output.FormatSize(n), res.SenderEmail, path)
			fmt.Fprintf(a.out, "SHA-256: %s\n", sum)
			if res.Message != nil && *res.Message != "" {
				fmt.Fprintf(a.out, "Message: %s\n", *res.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "output", "o", "", "Output file path (default: original file name)")
	cmd.Flags().StringVar(&expect, "expect", "", "Expected SHA-256; the file is removed on mismatch")
	return cmd
}
