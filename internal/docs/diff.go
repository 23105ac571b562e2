package docs

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"snapdocs/internal/model"
)

const (
	// DefaultDiffBudget is the largest diff, in characters, sent with a summary prompt.
	DefaultDiffBudget = 60000
	// TruncationMarker is appended to a diff cut at the budget.
	TruncationMarker = "\n\n... [diff truncated]"

	maxTouchedAreas = 6
)

// FormatDiff renders changed files as a header block followed by the patch,
// files separated by a blank line.
func FormatDiff(files []model.PullRequestFile) string {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "File: %s\nStatus: %s\nChanges: +%d -%d\n\n", f.Path, f.Status, f.Additions, f.Deletions)
		b.WriteString(f.Patch)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// ComputeFileStats aggregates line counts, status counts and the sorted
// top-level directories touched (at most six).
func ComputeFileStats(files []model.PullRequestFile) model.FileStats {
	stats := model.FileStats{TotalFiles: len(files), TouchedAreas: []string{}}
	areas := map[string]bool{}
	for _, f := range files {
		stats.Additions += f.Additions
		stats.Deletions += f.Deletions
		switch f.Status {
		case "added":
			stats.Added++
		case "modified", "changed":
			stats.Modified++
		case "removed":
			stats.Removed++
		case "renamed":
			stats.Renamed++
		}
		if area := topLevel(f.Path); area != "" {
			areas[area] = true
		}
	}

	for area := range areas {
		stats.TouchedAreas = append(stats.TouchedAreas, area)
	}
	sort.Strings(stats.TouchedAreas)
	if len(stats.TouchedAreas) > maxTouchedAreas {
		stats.TouchedAreas = stats.TouchedAreas[:maxTouchedAreas]
	}
	return stats
}

// topLevel returns the first path segment; a file at the root is its own area.
func topLevel(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

// TruncateDiff keeps the first budget characters of diff and appends
// TruncationMarker. Diffs within budget are returned unchanged.
func TruncateDiff(diff string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(diff) <= budget {
		return diff
	}
	n := 0
	for i := range diff {
		if n == budget {
			return diff[:i] + TruncationMarker
		}
		n++
	}
	return diff
}
