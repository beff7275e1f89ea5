// Package retrieval is the client for the external code-retrieval service.
// All calls are advisory: failures surface as errors the pipeline treats as
// empty context, never as request-fatal conditions.
package retrieval

import "context"

// Service is the narrow interface the pipeline consumes. The HTTP client
// implements it; tests substitute fakes.
type Service interface {
	// PRContext runs a semantic query over the indexed codebase.
	PRContext(ctx context.Context, query *PRContextQuery) (*PRContextResult, error)

	// DeterministicContext looks up exact-match context by file path.
	DeterministicContext(ctx context.Context, query *DeterministicQuery) (*DeterministicResult, error)

	// IndexPRFiles pushes in-flight PR file contents under a PR-scoped tag.
	IndexPRFiles(ctx context.Context, req *IndexRequest) (*IndexResult, error)

	// DeletePRFiles removes the PR-scoped index. Must be safe to call on
	// every exit path, including after a failed IndexPRFiles.
	DeletePRFiles(ctx context.Context, workspace, project, prNumber string) error
}

// PRContextQuery is a semantic retrieval request.
type PRContextQuery struct {
	Workspace     string   `json:"workspace"`
	Project       string   `json:"project"`
	Branch        string   `json:"branch"`
	ChangedFiles  []string `json:"changed_files"`
	DiffSnippets  []string `json:"diff_snippets,omitempty"`
	PRTitle       string   `json:"pr_title,omitempty"`
	PRDescription string   `json:"pr_description,omitempty"`
	TopK          int      `json:"top_k"`

	// Hybrid mode: set when the PR's files were indexed so the service can
	// prefer fresh PR data over the stale branch index.
	PRNumber          string   `json:"pr_number,omitempty"`
	AllPRChangedFiles []string `json:"all_pr_changed_files,omitempty"`
}

// PRContextResult is the semantic retrieval response.
type PRContextResult struct {
	RelevantCode []Chunk  `json:"relevant_code"`
	RelatedFiles []string `json:"related_files,omitempty"`
}

// Chunk is one retrieved code snippet with scoring metadata.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
	// Source tags the retrieval path: "semantic", "deterministic", or
	// "pr_indexed" for chunks served from the PR-scoped index.
	Source string `json:"source,omitempty"`
}

// ChunkMetadata describes where a chunk came from.
type ChunkMetadata struct {
	Path          string   `json:"path"`
	Language      string   `json:"language,omitempty"`
	Namespace     string   `json:"namespace,omitempty"`
	PrimaryName   string   `json:"primary_name,omitempty"`
	SemanticNames []string `json:"semantic_names,omitempty"`
	Imports       []string `json:"imports,omitempty"`
	Extends       []string `json:"extends,omitempty"`
	ContentType   string   `json:"content_type,omitempty"`
	ParentContext string   `json:"parent_context,omitempty"`
}

// DeterministicQuery is an exact-match retrieval request.
type DeterministicQuery struct {
	Workspace    string   `json:"workspace"`
	Project      string   `json:"project"`
	Branches     []string `json:"branches"`
	FilePaths    []string `json:"file_paths"`
	LimitPerFile int      `json:"limit_per_file"`
}

// DeterministicResult groups exact-match context by kind.
type DeterministicResult struct {
	ChangedFiles       []Definition `json:"changed_files,omitempty"`
	RelatedDefinitions []Definition `json:"related_definitions,omitempty"`
	ClassContext       []Definition `json:"class_context,omitempty"`
	NamespaceContext   []Definition `json:"namespace_context,omitempty"`
}

// Definition is one exact-match entry.
type Definition struct {
	Path      string   `json:"path"`
	Symbol    string   `json:"symbol,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Content   string   `json:"content,omitempty"`
	Namespace string   `json:"namespace,omitempty"`
	ClassName string   `json:"class_name,omitempty"`
	Imports   []string `json:"imports,omitempty"`
	Extends   []string `json:"extends,omitempty"`
}

// IndexRequest pushes PR file contents into the PR-scoped index.
type IndexRequest struct {
	Workspace string      `json:"workspace"`
	Project   string      `json:"project"`
	PRNumber  string      `json:"pr_number"`
	Branch    string      `json:"branch"`
	Files     []IndexFile `json:"files"`
}

// IndexFile is one file's content for indexing.
type IndexFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// IndexResult reports the indexing outcome.
type IndexResult struct {
	Status        string `json:"status"`
	ChunksIndexed int    `json:"chunks_indexed"`
}
