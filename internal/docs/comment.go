package docs

import (
	"fmt"
	"strings"

	"snapdocs/internal/github"
	"snapdocs/internal/model"
)

// RenderComment builds the markdown posted on the pull request.
func RenderComment(result model.SummaryResult) string {
	var b strings.Builder
	b.WriteString(github.CommentMarker + "\n")
	b.WriteString("### PR summary\n\n")
	b.WriteString(result.Summary + "\n\n")

	if len(result.KeyChanges) > 0 {
		b.WriteString("**Key changes**\n")
		for _, c := range result.KeyChanges {
			b.WriteString("- " + c + "\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "**Risk:** %s", result.RiskLevel)
	if result.BreakingChanges {
		b.WriteString(" | **Breaking changes**")
	}
	b.WriteString("\n")

	if s := result.FileStats; s != nil {
		fmt.Fprintf(&b, "**Files:** %d changed (+%d -%d): %d added, %d modified, %d removed, %d renamed\n",
			s.TotalFiles, s.Additions, s.Deletions, s.Added, s.Modified, s.Removed, s.Renamed)
		if len(s.TouchedAreas) > 0 {
			b.WriteString("**Touched areas:** `" + strings.Join(s.TouchedAreas, "`, `") + "`\n")
		}
	}
	return b.String()
}
