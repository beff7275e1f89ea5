package models

// ReviewRequest is the immutable input for one review run. It is decoded once
// at the API boundary and passed by pointer through every stage.
type ReviewRequest struct {
	// Project identity
	Workspace string `json:"workspace"`
	RepoSlug  string `json:"repo_slug"`
	Namespace string `json:"namespace,omitempty"`

	// PR identity
	PullRequestID string `json:"pull_request_id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	TargetBranch  string `json:"target_branch"`
	SourceBranch  string `json:"source_branch,omitempty"`

	SourceCommit   string `json:"source_commit,omitempty"`
	CurrentCommit  string `json:"current_commit,omitempty"`
	PreviousCommit string `json:"previous_commit,omitempty"`

	// AI binding
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Credential string `json:"credential"`
	MaxTokens  int    `json:"max_tokens,omitempty"`

	// Diff payloads
	Diff      string `json:"diff"`
	DeltaDiff string `json:"delta_diff,omitempty"`

	Mode AnalysisMode `json:"mode,omitempty"`

	PreviousIssues []PreviousIssue `json:"previous_issues,omitempty"`
	Enrichment     *Enrichment     `json:"enrichment,omitempty"`

	// EnableTools allows the LLM to call repository tools in stages 1 and 3.
	EnableTools bool `json:"enable_tools,omitempty"`
}

// PreviousIssue is an issue carried over from an earlier version of the PR.
type PreviousIssue struct {
	ID                      string      `json:"id"`
	Severity                Severity    `json:"severity"`
	Category                Category    `json:"category"`
	File                    string      `json:"file"`
	Line                    LineRef     `json:"line"`
	Reason                  string      `json:"reason"`
	SuggestedFixDescription string      `json:"suggested_fix_description,omitempty"`
	SuggestedFixDiff        string      `json:"suggested_fix_diff,omitempty"`
	Status                  IssueStatus `json:"status"`
	FoundInVersion          int         `json:"found_in_version,omitempty"`
	ResolvedInVersion       int         `json:"resolved_in_version,omitempty"`
	ResolvedInCommit        string      `json:"resolved_in_commit,omitempty"`
	ResolutionExplanation   string      `json:"resolution_explanation,omitempty"`
	Visibility              string      `json:"visibility,omitempty"`
	CodeSnippet             string      `json:"code_snippet,omitempty"`
}

// Enrichment carries the caller's pre-computed per-file metadata and the
// pairwise relationship graph. The core never parses code itself.
type Enrichment struct {
	Files         map[string]*EnrichedFile `json:"files,omitempty"`
	Relationships []FileRelationship       `json:"relationships,omitempty"`
}

// EnrichedFile is the pre-computed view of one changed file.
type EnrichedFile struct {
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FileRelationship is one undirected edge in the enrichment graph.
type FileRelationship struct {
	From string           `json:"from"`
	To   string           `json:"to"`
	Type RelationshipType `json:"type"`
}

// HasFileContents reports whether enrichment carries any file content, which
// gates the Stage-1.5 verifier.
func (e *Enrichment) HasFileContents() bool {
	if e == nil {
		return false
	}
	for _, f := range e.Files {
		if f != nil && f.Content != "" {
			return true
		}
	}
	return false
}

// FileRecord is one file parsed out of the unified diff.
type FileRecord struct {
	Path       string     `json:"path"`
	ChangeType ChangeType `json:"change_type"`
	OldPath    string     `json:"old_path,omitempty"`
	Additions  int        `json:"additions"`
	Deletions  int        `json:"deletions"`

	// DiffText is the per-file slice of the unified diff (headers + hunks).
	// Oversized files carry a one-line placeholder instead.
	DiffText string `json:"diff_text"`

	// Content is the full file content when the caller supplied it.
	Content string `json:"content,omitempty"`

	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}
