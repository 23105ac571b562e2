package docs

import (
	"fmt"
	"strings"

	"snapdocs/internal/model"
)

// PullRequestMeta identifies the pull request a prompt is about.
type PullRequestMeta struct {
	Repo   string
	Number int
	Author string
	Title  string
}

func documentationPrompt(meta PullRequestMeta, diff string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are a senior technical documentation writer. Generate comprehensive docs for this merged PR.

PR DETAILS:
- Repository: %s
- PR #%d by @%s
- Title: %s

DIFF CONTENT:
%s

OUTPUT FORMAT (Markdown):
1. **Executive Summary** (2-3 sentences)
2. **What Changed & Why**
3. **File-by-File Minimap**
4. **Code Snippets** (before/after)
5. **Developer Notes** (if breaking changes)
6. **Changelog Entry**
7. **Breaking Changes Alert** (if applicable)
`, meta.Repo, meta.Number, meta.Author, meta.Title, diff))
}

func summaryPrompt(meta PullRequestMeta, stats model.FileStats, diff string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are reviewing a newly opened pull request. Summarize it for reviewers.

PR DETAILS:
- Repository: %s
- PR #%d by @%s
- Title: %s
- Files changed: %d (+%d -%d)
- Touched areas: %s

DIFF CONTENT:
%s

Respond with a single JSON object and nothing else:
{
  "summary": "2-3 sentence overview of the change",
  "keyChanges": ["at most 3 short bullet points"],
  "filesChanged": %d,
  "breakingChanges": false,
  "riskLevel": "low | medium | high"
}
`, meta.Repo, meta.Number, meta.Author, meta.Title,
		stats.TotalFiles, stats.Additions, stats.Deletions, strings.Join(stats.TouchedAreas, ", "),
		diff, stats.TotalFiles))
}
