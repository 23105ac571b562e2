package docs

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"snapdocs/internal/model"
)

const (
	maxSummaryChars = 500
	maxKeyChanges   = 3
	maxDocChanges   = 5
)

// extractJSON returns the body of the first ```json block, or the response with
// any surrounding fence removed.
func extractJSON(responseText string) string {
	lines := strings.Split(responseText, "\n")
	var buf bytes.Buffer
	inBlock, found := false, false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inBlock && trimmed == "```json" {
			inBlock, found = true, true
			continue
		}
		if inBlock && trimmed == "```" {
			break
		}
		if inBlock {
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(line)
		}
	}
	if found {
		return strings.TrimSpace(buf.String())
	}

	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	return strings.TrimSpace(responseText)
}

type rawSummary struct {
	Summary         string   `json:"summary"`
	KeyChanges      []string `json:"keyChanges"`
	BreakingChanges bool     `json:"breakingChanges"`
	RiskLevel       string   `json:"riskLevel"`
}

// ParseSummary decodes a model response into a SummaryResult. When the
// response is not usable JSON it returns a fallback built from the raw text
// and ok=false; it never fails.
func ParseSummary(raw string, stats model.FileStats) (result model.SummaryResult, ok bool) {
	var parsed rawSummary
	err := json.Unmarshal([]byte(extractJSON(raw)), &parsed)
	if err != nil || strings.TrimSpace(parsed.Summary) == "" {
		return fallbackSummary(raw, stats), false
	}

	changes := make([]string, 0, maxKeyChanges)
	for _, c := range parsed.KeyChanges {
		if c = strings.TrimSpace(c); c != "" && len(changes) < maxKeyChanges {
			changes = append(changes, c)
		}
	}
	return model.SummaryResult{
		Summary:         strings.TrimSpace(parsed.Summary),
		KeyChanges:      changes,
		FilesChanged:    stats.TotalFiles,
		BreakingChanges: parsed.BreakingChanges,
		RiskLevel:       normalizeRisk(parsed.RiskLevel),
		FileStats:       &stats,
	}, true
}

func fallbackSummary(raw string, stats model.FileStats) model.SummaryResult {
	summary := truncateRunes(strings.TrimSpace(raw), maxSummaryChars)
	if summary == "" {
		summary = "Summary unavailable: the model returned an empty response."
	}
	return model.SummaryResult{
		Summary:      summary,
		KeyChanges:   []string{},
		FilesChanged: stats.TotalFiles,
		RiskLevel:    model.RiskLow,
		FileStats:    &stats,
	}
}

func normalizeRisk(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case model.RiskHigh:
		return model.RiskHigh
	case model.RiskMedium:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	headingLine     = regexp.MustCompile(`^\s*(#+\s|(\d+\.\s*)?\*\*[^*]+\*\*)`)
	execSummaryHead = regexp.MustCompile(`(?i)^\s*(#+\s*)?(\d+\.\s*)?(\*\*)?executive summary(\*\*)?:?`)
	whatChangedHead = regexp.MustCompile(`(?i)^\s*(#+\s*)?(\d+\.\s*)?(\*\*)?what changed`)
	breakingPattern = regexp.MustCompile(`(?i)breaking change|\*\*breaking`)
	mediumPattern   = regexp.MustCompile(`(?i)major change|significant|refactor|migration`)
	bulletPrefix    = regexp.MustCompile(`^\s*[-*]\s+`)
)

// section returns the lines after the first line matching head, up to the next heading.
func section(lines []string, head *regexp.Regexp) (first string, body []string, found bool) {
	for i, line := range lines {
		loc := head.FindStringIndex(line)
		if loc == nil {
			continue
		}
		first = strings.TrimSpace(line[loc[1]:])
		for _, next := range lines[i+1:] {
			if headingLine.MatchString(next) {
				break
			}
			body = append(body, next)
		}
		return first, body, true
	}
	return "", nil, false
}

// ExtractDocumentationSummary derives a structured result from generated
// markdown documentation.
func ExtractDocumentationSummary(markdown string) model.SummaryResult {
	lines := strings.Split(markdown, "\n")

	var summary string
	if first, body, ok := section(lines, execSummaryHead); ok {
		first = strings.TrimSpace(strings.TrimPrefix(first, "(2-3 sentences)"))
		summary = strings.TrimSpace(first + "\n" + strings.Join(body, "\n"))
	}
	if summary == "" {
		summary = strings.TrimSpace(markdown)
	}
	summary = truncateRunes(summary, maxSummaryChars)

	changes := []string{}
	if _, body, ok := section(lines, whatChangedHead); ok {
		for _, line := range body {
			if !bulletPrefix.MatchString(line) {
				continue
			}
			if c := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, "")); c != "" {
				changes = append(changes, c)
			}
			if len(changes) == maxDocChanges {
				break
			}
		}
	}

	breaking := breakingPattern.MatchString(markdown)
	risk := model.RiskLow
	switch {
	case breaking:
		risk = model.RiskHigh
	case mediumPattern.MatchString(markdown):
		risk = model.RiskMedium
	}

	return model.SummaryResult{
		Summary:         summary,
		KeyChanges:      changes,
		BreakingChanges: breaking,
		RiskLevel:       risk,
	}
}
