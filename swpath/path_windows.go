//go:build windows

package swpath

import "strings"

// osForm on Windows converts the normalized forward-slash form back to
// backslashes, which is what CreateProcessW and the os package expect.
func osForm(s string) string { return strings.ReplaceAll(s, "/", "\\") }
