// Package diffutil renders compact unified-style diffs for the destructive
// file tools, so proposals and applied entries carry a reviewable preview.
package diffutil

import (
	"fmt"
	"strings"
)

// Unified renders a minimal unified-style diff between two contents. Common
// leading and trailing lines are trimmed; the changed middle is listed as
// removed and added lines. It returns "" when the contents are identical.
func Unified(path, before, after string) string {
	if before == after {
		return ""
	}

	beforeLines := splitLines(before)
	afterLines := splitLines(after)

	prefix := 0
	for prefix < len(beforeLines) && prefix < len(afterLines) && beforeLines[prefix] == afterLines[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(beforeLines)-prefix && suffix < len(afterLines)-prefix &&
		beforeLines[len(beforeLines)-1-suffix] == afterLines[len(afterLines)-1-suffix] {
		suffix++
	}

	var b strings.Builder

	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)
	fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n",
		prefix+1, len(beforeLines)-prefix-suffix,
		prefix+1, len(afterLines)-prefix-suffix)

	for _, line := range beforeLines[prefix : len(beforeLines)-suffix] {
		b.WriteString("-" + line + "\n")
	}

	for _, line := range afterLines[prefix : len(afterLines)-suffix] {
		b.WriteString("+" + line + "\n")
	}

	return b.String()
}

func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}

	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
