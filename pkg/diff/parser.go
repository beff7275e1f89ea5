// Package diff parses unified diff text into per-file records and exposes the
// new-file line map used by post-processing.
package diff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/critique/pkg/models"
)

// Limits controls when a file's diff is replaced by a placeholder and the
// file marked skipped. These must stay consistent with the retrieval
// service's own content filter.
type Limits struct {
	// MaxFileBytes caps the per-file diff text (default 25 KiB).
	MaxFileBytes int
	// MaxHunkLines caps the total hunk line count per file (default 1000).
	MaxHunkLines int
}

// DefaultLimits matches the retrieval collaborator's filter.
func DefaultLimits() Limits {
	return Limits{MaxFileBytes: 25 * 1024, MaxHunkLines: 1000}
}

// placeholder replaces the diff text of an oversized file.
func placeholder(path, reason string) string {
	return fmt.Sprintf("[diff omitted for %s: %s]", path, reason)
}

// Parse splits unified diff text into file records. Deleted and binary files
// are always marked skipped; oversized files keep their record but carry a
// placeholder instead of the diff text.
func Parse(text string, limits Limits) []*models.FileRecord {
	if limits.MaxFileBytes <= 0 || limits.MaxHunkLines <= 0 {
		limits = DefaultLimits()
	}

	var records []*models.FileRecord
	for _, section := range splitFiles(text) {
		rec := parseFile(section)
		if rec == nil {
			continue
		}
		applyLimits(rec, limits)
		records = append(records, rec)
	}
	return records
}

// splitFiles cuts the diff at each "diff --git" header, keeping the header
// line with its section.
func splitFiles(text string) []string {
	lines := strings.Split(text, "\n")
	var sections []string
	var current []string
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			if len(current) > 0 {
				sections = append(sections, strings.Join(current, "\n"))
			}
			current = []string{line}
			continue
		}
		if len(current) > 0 {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}
	return sections
}

func parseFile(section string) *models.FileRecord {
	lines := strings.Split(section, "\n")
	if len(lines) == 0 {
		return nil
	}

	rec := &models.FileRecord{
		ChangeType: models.ChangeModified,
		DiffText:   strings.TrimRight(section, "\n"),
	}

	oldPath, newPath := headerPaths(lines[0])

	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "new file mode"):
			rec.ChangeType = models.ChangeAdded
		case strings.HasPrefix(line, "deleted file mode"):
			rec.ChangeType = models.ChangeDeleted
		case strings.HasPrefix(line, "rename from "):
			rec.ChangeType = models.ChangeRenamed
			oldPath = strings.TrimPrefix(line, "rename from ")
		case strings.HasPrefix(line, "rename to "):
			newPath = strings.TrimPrefix(line, "rename to ")
		case strings.HasPrefix(line, "Binary files ") || strings.HasPrefix(line, "GIT binary patch"):
			rec.ChangeType = models.ChangeBinary
		case strings.HasPrefix(line, "--- a/"):
			if oldPath == "" {
				oldPath = strings.TrimPrefix(line, "--- a/")
			}
		case strings.HasPrefix(line, "+++ b/"):
			if p := strings.TrimPrefix(line, "+++ b/"); p != "" {
				newPath = p
			}
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			rec.Additions++
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			rec.Deletions++
		}
	}

	rec.Path = newPath
	if rec.ChangeType == models.ChangeDeleted || rec.Path == "" || rec.Path == "/dev/null" {
		rec.Path = oldPath
	}
	if rec.Path == "" {
		return nil
	}
	if rec.ChangeType == models.ChangeRenamed && oldPath != rec.Path {
		rec.OldPath = oldPath
	}

	if rec.ChangeType == models.ChangeDeleted {
		rec.Skipped = true
		rec.SkipReason = "file deleted"
	}
	if rec.ChangeType == models.ChangeBinary {
		rec.Skipped = true
		rec.SkipReason = "binary file"
	}
	return rec
}

// headerPaths extracts a/ and b/ paths from a "diff --git a/x b/y" line.
// Paths containing spaces are not disambiguated here; the ---/+++ lines
// override these values when present.
func headerPaths(header string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(header, "diff --git ")
	parts := strings.Fields(rest)
	if len(parts) >= 2 {
		oldPath = strings.TrimPrefix(parts[0], "a/")
		newPath = strings.TrimPrefix(parts[len(parts)-1], "b/")
	}
	return oldPath, newPath
}

func applyLimits(rec *models.FileRecord, limits Limits) {
	if rec.Skipped {
		return
	}
	if len(rec.DiffText) > limits.MaxFileBytes {
		rec.DiffText = placeholder(rec.Path, fmt.Sprintf("diff exceeds %d bytes", limits.MaxFileBytes))
		rec.Skipped = true
		rec.SkipReason = "diff too large"
		return
	}
	if n := hunkLineCount(rec.DiffText); n > limits.MaxHunkLines {
		rec.DiffText = placeholder(rec.Path, fmt.Sprintf("hunks exceed %d lines", limits.MaxHunkLines))
		rec.Skipped = true
		rec.SkipReason = "too many hunk lines"
	}
}

// hunkLineCount counts lines belonging to hunks (everything from the first
// @@ header on).
func hunkLineCount(text string) int {
	count := 0
	inHunk := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "@@") {
			inHunk = true
		}
		if inHunk {
			count++
		}
	}
	return count
}

// NewLineMap walks the hunks of a per-file diff and returns new-file line
// number → line text for every line present on the new side (context and
// added lines).
func NewLineMap(diffText string) map[int]string {
	result := make(map[int]string)
	newLine := 0
	inHunk := false
	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "@@") {
			start, ok := parseHunkNewStart(line)
			if !ok {
				inHunk = false
				continue
			}
			newLine = start
			inHunk = true
			continue
		}
		if !inHunk {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			result[newLine] = line[1:]
			newLine++
		case strings.HasPrefix(line, "-"):
			// old side only
		case strings.HasPrefix(line, `\`):
			// "\ No newline at end of file"
		default:
			text := line
			if strings.HasPrefix(text, " ") {
				text = text[1:]
			}
			result[newLine] = text
			newLine++
		}
	}
	return result
}

// parseHunkNewStart extracts the new-file start line from a hunk header
// "@@ -o,c +n,c @@".
func parseHunkNewStart(header string) (int, bool) {
	plus := strings.Index(header, "+")
	if plus < 0 {
		return 0, false
	}
	rest := header[plus+1:]
	end := strings.IndexAny(rest, ", @")
	if end < 0 {
		end = len(rest)
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// LineMaps builds the per-file new-line map for every non-skipped record.
func LineMaps(records []*models.FileRecord) map[string]map[int]string {
	maps := make(map[string]map[int]string, len(records))
	for _, rec := range records {
		if rec.Skipped {
			continue
		}
		maps[rec.Path] = NewLineMap(rec.DiffText)
	}
	return maps
}
