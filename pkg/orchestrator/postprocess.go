package orchestrator

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/critique/pkg/config"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/similarity"
)

// PostProcessor cleans the merged issue list before aggregation: restores
// suggested fixes lost across PR versions, corrects line numbers against the
// diff, collapses near-duplicate issues per file, and validates diff hygiene.
//
// It never creates an issue, never changes an id, and never flips a resolved
// issue back to open. Running it twice yields the same output.
type PostProcessor struct {
	cfg *config.Defaults
}

func NewPostProcessor(cfg *config.Defaults) *PostProcessor {
	return &PostProcessor{cfg: cfg}
}

// lineSearchRadius bounds line-number correction to nearby lines.
const lineSearchRadius = 15

// proximityDecayLines is the distance at which line proximity reaches zero in
// the dedup score.
const proximityDecayLines = 50

// noDiffSentinels are strings LLMs emit instead of an empty diff field.
var noDiffSentinels = map[string]bool{
	"": true, "n/a": true, "na": true, "none": true, "null": true,
	"no diff": true, "no fix": true, "-": true,
}

// Process runs all four passes in order. lineMaps is file → new-line-number →
// text from the parsed diff; fileContents (optional) supplies full files for
// line correction.
func (p *PostProcessor) Process(
	issues []models.ReviewIssue,
	lineMaps map[string]map[int]string,
	fileContents map[string]string,
	previous []models.PreviousIssue,
) []models.ReviewIssue {
	out := make([]models.ReviewIssue, len(issues))
	copy(out, issues)

	p.restoreFromPrevious(out, previous)
	p.correctLines(out, lineMaps, fileContents)
	out = p.dedupWithinFiles(out)
	p.validateDiffs(out)
	return out
}

// restoreFromPrevious copies the suggested fix from the previous version of
// an open issue when the current version lost it.
func (p *PostProcessor) restoreFromPrevious(issues []models.ReviewIssue, previous []models.PreviousIssue) {
	if len(previous) == 0 {
		return
	}
	prevByID := make(map[string]models.PreviousIssue, len(previous))
	for _, prev := range previous {
		if prev.ID != "" {
			prevByID[prev.ID] = prev
		}
	}
	for i := range issues {
		issue := &issues[i]
		if issue.ID == "" || issue.IsResolved {
			continue
		}
		prev, ok := prevByID[issue.ID]
		if !ok {
			continue
		}
		if isNoDiff(issue.SuggestedFixDiff) && !isNoDiff(prev.SuggestedFixDiff) {
			issue.SuggestedFixDiff = prev.SuggestedFixDiff
		}
		if strings.TrimSpace(issue.SuggestedFixDescription) == "" && prev.SuggestedFixDescription != "" {
			issue.SuggestedFixDescription = prev.SuggestedFixDescription
		}
	}
}

func isNoDiff(diff string) bool {
	return noDiffSentinels[strings.ToLower(strings.TrimSpace(diff))]
}

// correctLines nudges each issue's line to the nearby line that best matches
// the reason's keywords. Candidates come from the diff map, or the full file
// content when available.
func (p *PostProcessor) correctLines(
	issues []models.ReviewIssue,
	lineMaps map[string]map[int]string,
	fileContents map[string]string,
) {
	contentMaps := make(map[string]map[int]string)
	for i := range issues {
		issue := &issues[i]
		reported := issue.Line.Start()
		if reported <= 0 {
			continue
		}
		keywords := similarity.Keywords(issue.Reason)
		if len(keywords) == 0 {
			continue
		}

		lines := lineMaps[issue.File]
		if lines == nil {
			if content, ok := fileContents[issue.File]; ok {
				if contentMaps[issue.File] == nil {
					contentMaps[issue.File] = contentLineMap(content)
				}
				lines = contentMaps[issue.File]
			}
		}
		if len(lines) == 0 {
			continue
		}

		best, bestScore := reported, 0.0
		for n := reported - lineSearchRadius; n <= reported+lineSearchRadius; n++ {
			text, ok := lines[n]
			if !ok {
				continue
			}
			score := keywordHits(text, keywords)
			dist := n - reported
			if dist < 0 {
				dist = -dist
			}
			score -= 0.1 * float64(dist)
			if score > bestScore {
				bestScore = score
				best = n
			}
		}
		if bestScore > 0 && best != reported {
			slog.Debug("Corrected issue line", "file", issue.File, "from", reported, "to", best)
			issue.Line = models.LineRef(intToLine(best))
		}
	}
}

func contentLineMap(content string) map[int]string {
	lines := strings.Split(content, "\n")
	m := make(map[int]string, len(lines))
	for i, text := range lines {
		m[i+1] = text
	}
	return m
}

func keywordHits(line string, keywords []string) float64 {
	lower := strings.ToLower(line)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return float64(hits)
}

func intToLine(n int) string { return strconv.Itoa(n) }

// dedupWithinFiles clusters near-duplicate issues in the same file and merges
// each cluster into one issue.
func (p *PostProcessor) dedupWithinFiles(issues []models.ReviewIssue) []models.ReviewIssue {
	byFile := make(map[string][]int)
	var fileOrder []string
	for i, issue := range issues {
		if _, seen := byFile[issue.File]; !seen {
			fileOrder = append(fileOrder, issue.File)
		}
		byFile[issue.File] = append(byFile[issue.File], i)
	}

	var out []models.ReviewIssue
	for _, file := range fileOrder {
		idxs := byFile[file]
		used := make([]bool, len(idxs))
		for a := 0; a < len(idxs); a++ {
			if used[a] {
				continue
			}
			cluster := []models.ReviewIssue{issues[idxs[a]]}
			for b := a + 1; b < len(idxs); b++ {
				if used[b] {
					continue
				}
				if p.duplicateScore(issues[idxs[a]], issues[idxs[b]]) >= p.cfg.PostProcessThreshold {
					cluster = append(cluster, issues[idxs[b]])
					used[b] = true
				}
			}
			out = append(out, mergeCluster(cluster))
		}
	}
	return out
}

// duplicateScore is the weighted combination of keyword overlap, sequence
// similarity, line proximity, and category match.
func (p *PostProcessor) duplicateScore(a, b models.ReviewIssue) float64 {
	keyword := similarity.KeywordOverlap(similarity.Keywords(a.Reason), similarity.Keywords(b.Reason))
	sequence := similarity.Ratio(a.Reason, b.Reason)

	proximity := 0.0
	la, lb := a.Line.Start(), b.Line.Start()
	if la > 0 && lb > 0 {
		dist := la - lb
		if dist < 0 {
			dist = -dist
		}
		if dist < proximityDecayLines {
			proximity = 1 - float64(dist)/proximityDecayLines
		}
	}

	category := 0.0
	if a.Category == b.Category {
		category = 1.0
	}

	return 0.4*keyword + 0.3*sequence + 0.2*proximity + 0.1*category
}

// mergeCluster combines duplicates: the issue carrying the best diff is the
// base, severity is the cluster maximum, the line is the cluster minimum, and
// distinct insights from the other reasons are appended.
func mergeCluster(cluster []models.ReviewIssue) models.ReviewIssue {
	if len(cluster) == 1 {
		return cluster[0]
	}

	base := cluster[0]
	for _, issue := range cluster[1:] {
		if isNoDiff(base.SuggestedFixDiff) && !isNoDiff(issue.SuggestedFixDiff) {
			base = issue
		}
	}

	merged := base
	minLine := merged.Line.Start()
	for _, issue := range cluster {
		if issue.Severity.Rank() > merged.Severity.Rank() {
			merged.Severity = issue.Severity
		}
		if n := issue.Line.Start(); n > 0 && (minLine <= 0 || n < minLine) {
			minLine = n
		}
		if issue.IsResolved {
			merged.IsResolved = true
			if merged.ResolutionExplanation == "" {
				merged.ResolutionExplanation = issue.ResolutionExplanation
			}
		}
	}
	if minLine > 0 && minLine != merged.Line.Start() {
		merged.Line = models.LineRef(intToLine(minLine))
	}

	merged.Reason = combineInsights(cluster, base)
	return merged
}

// combineInsights appends reasons from the cluster that add information the
// base reason doesn't already carry.
func combineInsights(cluster []models.ReviewIssue, base models.ReviewIssue) string {
	reason := base.Reason
	baseKeywords := similarity.Keywords(reason)
	for _, issue := range cluster {
		if issue.Reason == base.Reason {
			continue
		}
		if similarity.KeywordOverlap(baseKeywords, similarity.Keywords(issue.Reason)) >= 0.9 {
			continue
		}
		reason += " Also: " + issue.Reason
		baseKeywords = similarity.Keywords(reason)
	}
	return reason
}

// diffMarkers are the unified-diff fragments at least one of which a real
// diff must contain.
var diffMarkers = []string{"---", "+++", "@@", "\n-", "\n+"}

// validateDiffs strips markdown fences from suggested-fix diffs and flags
// texts that don't look like diffs. Flagged diffs are kept, not dropped.
func (p *PostProcessor) validateDiffs(issues []models.ReviewIssue) {
	for i := range issues {
		issue := &issues[i]
		if isNoDiff(issue.SuggestedFixDiff) {
			issue.SuggestedFixDiff = ""
			continue
		}
		cleaned := stripDiffFences(issue.SuggestedFixDiff)
		issue.SuggestedFixDiff = cleaned

		valid := false
		for _, marker := range diffMarkers {
			if strings.Contains(cleaned, marker) {
				valid = true
				break
			}
		}
		if !valid {
			issue.NeedsDiffReview = true
		}
	}
}

func stripDiffFences(diff string) string {
	trimmed := strings.TrimSpace(diff)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	} else {
		return ""
	}
	if end := strings.LastIndex(trimmed, "```"); end >= 0 {
		trimmed = trimmed[:end]
	}
	return strings.TrimSpace(trimmed)
}

// SortForOutput orders the final issue list: open before resolved, then by
// severity descending, then by file and line.
func SortForOutput(issues []models.ReviewIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].IsResolved != issues[j].IsResolved {
			return !issues[i].IsResolved
		}
		if issues[i].Severity.Rank() != issues[j].Severity.Rank() {
			return issues[i].Severity.Rank() > issues[j].Severity.Rank()
		}
		if issues[i].File != issues[j].File {
			return issues[i].File < issues[j].File
		}
		return issues[i].Line.Start() < issues[j].Line.Start()
	})
}
