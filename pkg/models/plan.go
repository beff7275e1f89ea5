package models

// ReviewPlan is the Stage-0 output: file groups by priority plus cross-file
// hypotheses for Stage 2.
type ReviewPlan struct {
	Summary           string        `json:"summary"`
	Groups            []FileGroup   `json:"file_groups"`
	SkipFiles         []SkippedFile `json:"skip_files,omitempty"`
	CrossFileConcerns []string      `json:"cross_file_concerns,omitempty"`
}

// FileGroup is a set of files the planner wants reviewed together at one
// priority.
type FileGroup struct {
	Priority  Priority      `json:"priority"`
	Rationale string        `json:"rationale,omitempty"`
	Files     []PlannedFile `json:"files"`
}

// PlannedFile is one file inside a group, with the planner's focus hints.
type PlannedFile struct {
	Path       string   `json:"path"`
	FocusAreas []string `json:"focus_areas,omitempty"`
	RiskLevel  string   `json:"risk_level,omitempty"`
}

// SkippedFile is a file the planner decided not to review.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason,omitempty"`
}

// PlannedPaths returns every path covered by the plan, groups and skips
// combined.
func (p *ReviewPlan) PlannedPaths() map[string]bool {
	covered := make(map[string]bool)
	for _, g := range p.Groups {
		for _, f := range g.Files {
			covered[f.Path] = true
		}
	}
	for _, s := range p.SkipFiles {
		covered[s.Path] = true
	}
	return covered
}

// PriorityOf returns the planned priority for a path, defaulting to MEDIUM
// for files the planner never mentioned.
func (p *ReviewPlan) PriorityOf(path string) Priority {
	for _, g := range p.Groups {
		for _, f := range g.Files {
			if f.Path == path {
				return g.Priority
			}
		}
	}
	return PriorityMedium
}

// CrossFileAnalysis is the Stage-2 output.
type CrossFileAnalysis struct {
	PRRiskLevel            string        `json:"pr_risk_level"`
	CrossFileIssues        []ReviewIssue `json:"cross_file_issues"`
	DataFlowConcerns       []string      `json:"data_flow_concerns,omitempty"`
	ImmutabilityCheck      string        `json:"immutability_check,omitempty"`
	DatabaseIntegrityCheck string        `json:"database_integrity_check,omitempty"`
	PRRecommendation       string        `json:"pr_recommendation,omitempty"`
	Confidence             float64       `json:"confidence,omitempty"`
}
