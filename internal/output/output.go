// Package output renders CLI results as tables or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/securetransfer/server/internal/client"
)

// JSON prints v as indented JSON.
func JSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// Direction selects which party the transfer table shows.
type Direction int

const (
	Sent Direction = iota
	Received
)

// TransferTable prints transfers one per row. Sent tables show the
// recipient, received tables the sender.
func TransferTable(w io.Writer, transfers []client.Transfer, dir Direction, now time.Time) {
	if len(transfers) == 0 {
		fmt.Fprintln(w, "No transfers found.")
		return
	}

	party := "TO"
	if dir == Received {
		party = "FROM"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tFILE\tSIZE\tTYPE\t%s\tEXPIRES\tCREATED\n", party)
	for _, t := range transfers {
		who := t.RecipientEmail
		if dir == Received {
			who = t.SenderEmail
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.FileName, FormatSize(t.FileSize), shortMIME(t.MimeType), who,
			Expiry(t.ExpiryDate, now), RelativeTime(t.CreatedAt, now))
	}
	tw.Flush()
}

// TransferDetail prints a single transfer.
func TransferDetail(w io.Writer, t client.Transfer, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", t.ID)
	fmt.Fprintf(tw, "File:\t%s\n", t.FileName)
	fmt.Fprintf(tw, "Size:\t%s\n", FormatSize(t.FileSize))
	fmt.Fprintf(tw, "Type:\t%s\n", t.MimeType)
	fmt.Fprintf(tw, "SHA-256:\t%s\n", t.FileHash)
	fmt.Fprintf(tw, "From:\t%s\n", t.SenderEmail)
	fmt.Fprintf(tw, "To:\t%s\n", t.RecipientEmail)
	if t.Message != nil && *t.Message != "" {
		fmt.Fprintf(tw, "Message:\t%s\n", *t.Message)
	}
	fmt.Fprintf(tw, "Status:\t%s\n", t.Status)
	fmt.Fprintf(tw, "Expires:\t%s\n", Expiry(t.ExpiryDate, now))
	fmt.Fprintf(tw, "Created:\t%s\n", t.CreatedAt.Format(time.RFC3339))
	tw.Flush()
}

// VersionInfo prints CLI and server version details.
func VersionInfo(w io.Writer, cliVersion string, server *client.VersionInfo, serverErr error) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CLI version:\t%s\n", cliVersion)
	if server != nil {
		fmt.Fprintf(tw, "Server version:\t%s\n", server.Version)
		fmt.Fprintf(tw, "API version:\t%s\n", server.APIVersion)
	} else if serverErr != nil {
		fmt.Fprintf(tw, "Server:\tunreachable (%v)\n", serverErr)
	}
	tw.Flush()
}

// FormatSize converts bytes to a human-readable string.
func FormatSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// RelativeTime formats t relative to now (e.g. "2h ago", "3d ago").
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// Expiry renders an optional expiry as "never", "expired" or the remaining time.
func Expiry(expiry *time.Time, now time.Time) string {
	if expiry == nil {
		return "never"
	}
	d := expiry.Sub(now)
	switch {
	case d < 0:
		return "expired"
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("in %dh", int(d.Hours()))
	default:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	}
}

func shortMIME(mime string) string {
	// "application/pdf" -> "pdf", "image/png" -> "png"
	parts := strings.Split(mime, "/")
	if len(parts) == 2 {
		s := parts[1]
		if idx := strings.LastIndex(s, "."); idx >= 0 {
			s = s[idx+1:]
		}
		return s
	}
	if mime == "" {
		return "-"
	}
	return mime
}
