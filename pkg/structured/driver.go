// Package structured parses LLM output against an expected JSON shape,
// normalizing the malformations providers actually produce and falling back
// to an LLM-driven repair loop.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/critique/pkg/llm"
)

// ParseFailure is returned when raw text cannot be parsed after the repair
// budget is exhausted. Stage-fatal for the caller.
type ParseFailure struct {
	Schema    string
	LastError error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("failed to parse %s output: %v", e.Schema, e.LastError)
}

func (e *ParseFailure) Unwrap() error { return e.LastError }

// repairTextBudget caps how much broken text is echoed back to the LLM per
// repair attempt.
const repairTextBudget = 12_000

// Driver parses raw LLM text into typed values.
type Driver struct {
	client  llm.Client
	retries int
}

// NewDriver creates a driver. retries bounds the LLM repair loop.
func NewDriver(client llm.Client, retries int) *Driver {
	if retries < 0 {
		retries = 0
	}
	return &Driver{client: client, retries: retries}
}

// Parse extracts and decodes JSON from raw text into out. schemaName labels
// errors; schemaHint is the JSON-schema text shown to the LLM during repair.
func (d *Driver) Parse(ctx context.Context, raw, schemaName, schemaHint string, out any) error {
	text := raw
	var lastErr error

	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			repaired, err := d.repair(ctx, text, schemaHint, lastErr)
			if err != nil {
				return &ParseFailure{Schema: schemaName, LastError: fmt.Errorf("repair call failed: %w", err)}
			}
			text = repaired
		}

		if err := Decode(text, out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return &ParseFailure{Schema: schemaName, LastError: lastErr}
}

// Decode runs the non-LLM portion of the pipeline: extraction, then
// progressively more aggressive normalization.
func Decode(raw string, out any) error {
	candidate := ExtractJSON(raw)
	if candidate == "" {
		return fmt.Errorf("no JSON object or array found")
	}

	if err := json.Unmarshal([]byte(candidate), out); err == nil {
		return nil
	}

	escaped := escapeControlChars(candidate)
	firstErr := json.Unmarshal([]byte(escaped), out)
	if firstErr == nil {
		return nil
	}

	if converted, ok := numericKeyedToArray(escaped); ok {
		if err := json.Unmarshal([]byte(converted), out); err == nil {
			return nil
		}
	}

	// Last resort: suggested-fix diffs are the usual source of broken
	// escaping; drop them rather than the whole result.
	nullified := escaped
	for _, field := range []string{"suggested_fix_diff", "suggestedFixDiff"} {
		nullified = nullifyField(nullified, field)
	}
	if nullified != escaped {
		if err := json.Unmarshal([]byte(nullified), out); err == nil {
			return nil
		}
	}

	return firstErr
}

func (d *Driver) repair(ctx context.Context, broken, schemaHint string, parseErr error) (string, error) {
	if d.client == nil {
		return "", fmt.Errorf("no repair client configured")
	}
	text := broken
	if len(text) > repairTextBudget {
		text = text[:repairTextBudget]
	}

	var b strings.Builder
	b.WriteString("The following text was supposed to be a single valid JSON document matching this schema:\n\n")
	b.WriteString(schemaHint)
	b.WriteString("\n\nParsing failed with: ")
	b.WriteString(parseErr.Error())
	b.WriteString("\n\nBroken text:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn ONLY the corrected JSON document. No commentary, no markdown fences.")

	resp, err := d.client.Generate(ctx, &llm.Request{
		System: "You repair malformed JSON. You output only valid JSON.",
		Prompt: b.String(),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// ExtractJSON strips markdown fences and returns the outermost balanced JSON
// object, falling back to the outermost array. Returns "" when neither
// exists.
func ExtractJSON(raw string) string {
	text := stripFences(raw)
	if obj := balanced(text, '{', '}'); obj != "" {
		return obj
	}
	return balanced(text, '[', ']')
}

func stripFences(text string) string {
	out := text
	for {
		start := strings.Index(out, "```")
		if start < 0 {
			return out
		}
		lineEnd := strings.IndexByte(out[start:], '\n')
		if lineEnd < 0 {
			return out[:start]
		}
		rest := out[start+lineEnd+1:]
		end := strings.Index(rest, "```")
		if end < 0 {
			// Unterminated fence: keep the body.
			return out[:start] + rest
		}
		out = out[:start] + rest[:end] + rest[end+3:]
	}
}

// balanced returns the first balanced open..close span, tracking string
// literals and escapes so braces inside strings don't count.
func balanced(text string, open, close byte) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if start >= 0 {
				inString = true
			}
		case open:
			if start < 0 {
				start = i
			}
			depth++
		case close:
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// escapeControlChars re-escapes raw control characters that appear inside
// string literals (LLMs love emitting literal newlines in diff fields).
// Walks character by character tracking string/escape state.
func escapeControlChars(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if !inString {
			if ch == '"' {
				inString = true
			}
			b.WriteByte(ch)
			continue
		}
		if escaped {
			escaped = false
			b.WriteByte(ch)
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
			b.WriteByte(ch)
		case ch == '"':
			inString = false
			b.WriteByte(ch)
		case ch == '\n':
			b.WriteString(`\n`)
		case ch == '\r':
			b.WriteString(`\r`)
		case ch == '\t':
			b.WriteString(`\t`)
		case ch < 0x20:
			fmt.Fprintf(&b, `\u%04x`, ch)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// numericKeyedToArray converts a top-level {"0":...,"1":...} object into an
// array ordered by key. Reports false when the text is not such an object.
func numericKeyedToArray(text string) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil || len(obj) == 0 {
		return "", false
	}
	elems := make([]json.RawMessage, len(obj))
	for key, val := range obj {
		idx := 0
		if _, err := fmt.Sscanf(key, "%d", &idx); err != nil || idx < 0 || idx >= len(obj) || elems[idx] != nil {
			return "", false
		}
		elems[idx] = val
	}
	out, err := json.Marshal(elems)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// nullifyField replaces every string value of the named field with null.
func nullifyField(text, field string) string {
	needle := `"` + field + `"`
	var b strings.Builder
	rest := text
	for {
		idx := strings.Index(rest, needle)
		if idx < 0 {
			b.WriteString(rest)
			return b.String()
		}
		afterKey := idx + len(needle)
		b.WriteString(rest[:afterKey])
		rest = rest[afterKey:]

		// Skip whitespace and the colon.
		j := 0
		for j < len(rest) && (rest[j] == ' ' || rest[j] == '\t' || rest[j] == '\n' || rest[j] == '\r') {
			j++
		}
		if j >= len(rest) || rest[j] != ':' {
			continue
		}
		j++
		for j < len(rest) && (rest[j] == ' ' || rest[j] == '\t' || rest[j] == '\n' || rest[j] == '\r') {
			j++
		}
		if j >= len(rest) || rest[j] != '"' {
			continue
		}
		end := stringEnd(rest, j)
		if end < 0 {
			continue
		}
		b.WriteString(rest[:j])
		b.WriteString("null")
		rest = rest[end+1:]
	}
}

// stringEnd returns the index of the closing quote of the string starting at
// the opening quote position, or -1.
func stringEnd(text string, start int) int {
	escaped := false
	for i := start + 1; i < len(text); i++ {
		switch {
		case escaped:
			escaped = false
		case text[i] == '\\':
			escaped = true
		case text[i] == '"':
			return i
		}
	}
	return -1
}
