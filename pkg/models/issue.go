package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LineRef is an issue's line reference: "N", "N-M", or empty. The LLM contract
// says line is a string, but providers routinely emit bare numbers; the custom
// unmarshaler coerces both.
type LineRef string

// UnmarshalJSON accepts a JSON string or number.
func (l *LineRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = LineRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*l = LineRef(n.String())
		return nil
	}
	return fmt.Errorf("line must be a string or number, got %s", string(data))
}

// Start returns the first line number of the reference, or 0 if unparseable.
func (l LineRef) Start() int {
	s := string(l)
	if i := strings.IndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// ReviewIssue is a single finding. The same record flows from the Stage-1
// LLM output through reconciliation and post-processing into the final result.
type ReviewIssue struct {
	ID                      string   `json:"id,omitempty"`
	Severity                Severity `json:"severity"`
	Category                Category `json:"category"`
	File                    string   `json:"file"`
	Line                    LineRef  `json:"line"`
	Reason                  string   `json:"reason"`
	SuggestedFixDescription string   `json:"suggested_fix_description,omitempty"`
	SuggestedFixDiff        string   `json:"suggested_fix_diff,omitempty"`
	IsResolved              bool     `json:"is_resolved"`
	ResolutionExplanation   string   `json:"resolution_explanation,omitempty"`
	ResolvedInCommit        string   `json:"resolved_in_commit,omitempty"`
	FoundInVersion          int      `json:"found_in_version,omitempty"`
	ResolvedInVersion       int      `json:"resolved_in_version,omitempty"`
	Visibility              string   `json:"visibility,omitempty"`
	CodeSnippet             string   `json:"code_snippet,omitempty"`

	// NeedsDiffReview marks issues whose suggested-fix diff failed hygiene
	// validation; the diff is kept but flagged rather than dropped.
	NeedsDiffReview bool `json:"needs_diff_review,omitempty"`
}

// Sanitize normalizes enum fields in place. Applied to every issue arriving
// from an LLM before it enters the pipeline.
func (i *ReviewIssue) Sanitize() {
	i.Severity = NormalizeSeverity(string(i.Severity))
	i.Category = NormalizeCategory(string(i.Category))
	i.File = strings.TrimSpace(i.File)
	i.Reason = strings.TrimSpace(i.Reason)
}

// Fingerprint identifies "the same" issue across PR versions with a ±3-line
// tolerance: file :: floor(line/3) :: severity :: lower(reason[:50]).
func (i *ReviewIssue) Fingerprint() string {
	reason := strings.ToLower(i.Reason)
	if len(reason) > 50 {
		reason = reason[:50]
	}
	return fmt.Sprintf("%s::%d::%s::%s", i.File, i.Line.Start()/3, i.Severity, reason)
}

// FromPrevious converts a previous-version issue into the current record
// shape, preserving all history metadata.
func FromPrevious(p PreviousIssue) ReviewIssue {
	return ReviewIssue{
		ID:                      p.ID,
		Severity:                NormalizeSeverity(string(p.Severity)),
		Category:                NormalizeCategory(string(p.Category)),
		File:                    p.File,
		Line:                    p.Line,
		Reason:                  p.Reason,
		SuggestedFixDescription: p.SuggestedFixDescription,
		SuggestedFixDiff:        p.SuggestedFixDiff,
		IsResolved:              p.Status == StatusResolved,
		ResolutionExplanation:   p.ResolutionExplanation,
		ResolvedInCommit:        p.ResolvedInCommit,
		FoundInVersion:          p.FoundInVersion,
		ResolvedInVersion:       p.ResolvedInVersion,
		Visibility:              p.Visibility,
		CodeSnippet:             p.CodeSnippet,
	}
}

// ReviewResult is the final output: a markdown comment plus the issue list.
type ReviewResult struct {
	Comment string        `json:"comment"`
	Issues  []ReviewIssue `json:"issues"`
}
