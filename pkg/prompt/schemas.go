package prompt

// JSON-schema hints embedded in the stage prompts and reused by the repair
// loop. Kept as literal text: the schemas double as documentation for the
// models, which follow examples better than formal schema syntax.

// PlanSchema describes the Stage-0 output.
const PlanSchema = `{
  "summary": "one-paragraph overview of the change",
  "file_groups": [
    {
      "priority": "CRITICAL|HIGH|MEDIUM|LOW",
      "rationale": "why this group has this priority",
      "files": [
        {"path": "src/a.py", "focus_areas": ["security"], "risk_level": "high"}
      ]
    }
  ],
  "skip_files": [{"path": "generated/x.pb.go", "reason": "generated code"}],
  "cross_file_concerns": ["free-text hypothesis"]
}`

// BatchReviewSchema describes the Stage-1 per-batch output.
const BatchReviewSchema = `{
  "reviews": [
    {
      "file": "src/a.py",
      "analysis_summary": "what the change does",
      "issues": [
        {
          "id": "preserve from previous issues when re-reporting, else omit",
          "severity": "HIGH|MEDIUM|LOW|INFO",
          "category": "SECURITY|PERFORMANCE|CODE_QUALITY|BUG_RISK|STYLE|DOCUMENTATION|BEST_PRACTICES|ERROR_HANDLING|TESTING|ARCHITECTURE",
          "file": "src/a.py",
          "line": "42 or 42-45, as a string",
          "reason": "what is wrong",
          "suggested_fix_description": "how to fix it",
          "suggested_fix_diff": "unified diff, optional",
          "is_resolved": false
        }
      ],
      "confidence": 0.9,
      "note": "optional caveat"
    }
  ]
}`

// CrossFileSchema describes the Stage-2 output.
const CrossFileSchema = `{
  "pr_risk_level": "low|medium|high",
  "cross_file_issues": [
    {
      "severity": "HIGH|MEDIUM|LOW|INFO",
      "category": "ARCHITECTURE",
      "file": "src/a.py",
      "line": "0",
      "reason": "cross-file problem",
      "suggested_fix_description": "how to fix it"
    }
  ],
  "data_flow_concerns": ["free text"],
  "immutability_check": "optional finding",
  "database_integrity_check": "optional finding",
  "pr_recommendation": "approve|request_changes|comment",
  "confidence": 0.8
}`

// VerifySchema describes the Stage-1.5 verifier verdict.
const VerifySchema = `{"symbol_exists": true, "evidence": "where it was found or why not"}`
