package utils

import "fmt"

// FormatSize renders a byte count in megabytes with two decimals, e.g. "2.00 MB".
func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/1024/1024)
}
