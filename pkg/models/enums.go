package models

import "strings"

// Severity ranks how serious a review issue is.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
	SeverityInfo   Severity = "INFO"
)

// severityRank orders severities for merge decisions (higher is worse).
var severityRank = map[Severity]int{
	SeverityInfo:   0,
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// Rank returns the numeric ordering of the severity (higher is worse).
func (s Severity) Rank() int { return severityRank[s] }

// NormalizeSeverity maps arbitrary LLM output onto the fixed severity set.
// Unknown values default to MEDIUM.
func NormalizeSeverity(raw string) Severity {
	s := Severity(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return s
	case "CRITICAL":
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Category classifies a review issue.
type Category string

const (
	CategorySecurity      Category = "SECURITY"
	CategoryPerformance   Category = "PERFORMANCE"
	CategoryCodeQuality   Category = "CODE_QUALITY"
	CategoryBugRisk       Category = "BUG_RISK"
	CategoryStyle         Category = "STYLE"
	CategoryDocumentation Category = "DOCUMENTATION"
	CategoryBestPractices Category = "BEST_PRACTICES"
	CategoryErrorHandling Category = "ERROR_HANDLING"
	CategoryTesting       Category = "TESTING"
	CategoryArchitecture  Category = "ARCHITECTURE"
)

// NormalizeCategory maps arbitrary LLM output onto the fixed category set.
// Unknown values default to CODE_QUALITY.
func NormalizeCategory(raw string) Category {
	c := Category(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	switch c {
	case CategorySecurity, CategoryPerformance, CategoryCodeQuality, CategoryBugRisk,
		CategoryStyle, CategoryDocumentation, CategoryBestPractices,
		CategoryErrorHandling, CategoryTesting, CategoryArchitecture:
		return c
	default:
		return CategoryCodeQuality
	}
}

// Priority ranks a planned file group.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Rank returns the numeric ordering of the priority (higher is more urgent).
func (p Priority) Rank() int { return priorityRank[p] }

// NormalizePriority maps arbitrary planner output onto the fixed priority set.
// Unknown values default to MEDIUM.
func NormalizePriority(raw string) Priority {
	p := Priority(strings.ToUpper(strings.TrimSpace(raw)))
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityMedium
	}
}

// AnalysisMode selects full or incremental review.
type AnalysisMode string

const (
	ModeFull        AnalysisMode = "FULL"
	ModeIncremental AnalysisMode = "INCREMENTAL"
)

// ChangeType describes what happened to a file in the diff.
type ChangeType string

const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeModified ChangeType = "MODIFIED"
	ChangeDeleted  ChangeType = "DELETED"
	ChangeRenamed  ChangeType = "RENAMED"
	ChangeBinary   ChangeType = "BINARY"
)

// RelationshipType labels a pairwise relationship in the enrichment graph.
type RelationshipType string

const (
	RelImports     RelationshipType = "IMPORTS"
	RelExtends     RelationshipType = "EXTENDS"
	RelImplements  RelationshipType = "IMPLEMENTS"
	RelCalls       RelationshipType = "CALLS"
	RelSamePackage RelationshipType = "SAME_PACKAGE"
	RelReferences  RelationshipType = "REFERENCES"
)

// IssueStatus is the lifecycle state of a previous-version issue.
type IssueStatus string

const (
	StatusOpen     IssueStatus = "open"
	StatusResolved IssueStatus = "resolved"
	StatusIgnored  IssueStatus = "ignored"
)
