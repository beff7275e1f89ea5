package orchestrator

import (
	"log/slog"
	"time"

	"github.com/codeready-toolchain/critique/pkg/config"
	"github.com/codeready-toolchain/critique/pkg/metrics"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/similarity"
)

// Reconciler merges the current review's issues with the previous version's.
// Identity is the issue id; issues the LLM re-reported without an id are
// matched back by same-file reason similarity.
type Reconciler struct {
	cfg *config.Defaults
}

func NewReconciler(cfg *config.Defaults) *Reconciler {
	return &Reconciler{cfg: cfg}
}

// Reconcile returns the merged issue list. Previous issues the new review
// never mentioned are carried forward unchanged, so history is never lost.
func (r *Reconciler) Reconcile(newIssues []models.ReviewIssue, previous []models.PreviousIssue) []models.ReviewIssue {
	if len(previous) == 0 {
		return newIssues
	}
	defer metrics.ObserveStage(StageReconcile, time.Now())

	prevByID := make(map[string]models.PreviousIssue, len(previous))
	for _, p := range previous {
		if p.ID != "" {
			prevByID[p.ID] = p
		}
	}
	processed := make(map[string]bool, len(previous))

	var merged []models.ReviewIssue
	for _, issue := range newIssues {
		if issue.ID == "" {
			issue.ID = r.adoptID(issue, previous, processed)
		}
		prev, known := prevByID[issue.ID]
		if issue.ID == "" || !known {
			merged = append(merged, issue)
			continue
		}
		processed[issue.ID] = true
		merged = append(merged, mergeWithPrevious(issue, prev))
	}

	// Previous issues the LLM never mentioned survive unless a new issue
	// already covers the same file and line.
	reported := make(map[string]bool, len(merged))
	for _, issue := range merged {
		reported[issue.File+"::"+string(issue.Line)] = true
	}
	carried := 0
	for _, prev := range previous {
		if processed[prev.ID] || reported[prev.File+"::"+string(prev.Line)] {
			continue
		}
		merged = append(merged, models.FromPrevious(prev))
		carried++
	}
	if carried > 0 {
		slog.Debug("Carried forward unmatched previous issues", "count", carried)
	}
	return merged
}

// adoptID finds an open previous issue in the same file with a near-identical
// reason and returns its id, or "".
func (r *Reconciler) adoptID(issue models.ReviewIssue, previous []models.PreviousIssue, processed map[string]bool) string {
	bestID := ""
	bestRatio := 0.0
	for _, prev := range previous {
		if prev.Status != models.StatusOpen || prev.File != issue.File || processed[prev.ID] {
			continue
		}
		ratio := similarity.Ratio(issue.Reason, prev.Reason)
		if ratio >= r.cfg.ReconcileAdoptThreshold && ratio > bestRatio {
			bestRatio = ratio
			bestID = prev.ID
		}
	}
	return bestID
}

// mergeWithPrevious combines a re-reported issue with its previous record.
// The previous reason and suggested fix always win over the LLM's rewording,
// and resolved-ness is sticky: once resolved, always resolved.
func mergeWithPrevious(issue models.ReviewIssue, prev models.PreviousIssue) models.ReviewIssue {
	merged := issue

	merged.Reason = prev.Reason
	if prev.SuggestedFixDescription != "" {
		merged.SuggestedFixDescription = prev.SuggestedFixDescription
	}
	if prev.SuggestedFixDiff != "" {
		merged.SuggestedFixDiff = prev.SuggestedFixDiff
	}

	wasResolved := prev.Status == models.StatusResolved
	nowResolved := wasResolved || issue.IsResolved
	merged.IsResolved = nowResolved

	switch {
	case wasResolved:
		merged.ResolutionExplanation = prev.ResolutionExplanation
		if merged.ResolutionExplanation == "" {
			merged.ResolutionExplanation = issue.ResolutionExplanation
		}
		merged.ResolvedInCommit = prev.ResolvedInCommit
		merged.ResolvedInVersion = prev.ResolvedInVersion
	case nowResolved:
		// Freshly resolved in this pass: the LLM's wording explains the fix.
		if issue.ResolutionExplanation != "" {
			merged.ResolutionExplanation = issue.ResolutionExplanation
		} else {
			merged.ResolutionExplanation = issue.Reason
		}
	}

	if merged.FoundInVersion == 0 {
		merged.FoundInVersion = prev.FoundInVersion
	}
	if merged.Visibility == "" {
		merged.Visibility = prev.Visibility
	}
	if merged.CodeSnippet == "" {
		merged.CodeSnippet = prev.CodeSnippet
	}
	return merged
}
