package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/critique/pkg/models"
)

const sampleDiff = `diff --git a/src/auth.py b/src/auth.py
index 1111111..2222222 100644
--- a/src/auth.py
+++ b/src/auth.py
@@ -10,6 +10,8 @@ def login(user):
 def check(user):
     if user.token:
-        return validate(user.token)
+        if not user.token.expired:
+            return validate(user.token)
+        raise TokenExpired(user)
     return False
diff --git a/src/new.py b/src/new.py
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/src/new.py
@@ -0,0 +1,2 @@
+def fresh():
+    return 1
diff --git a/src/old.py b/src/old.py
deleted file mode 100644
index 4444444..0000000
--- a/src/old.py
+++ /dev/null
@@ -1,2 +0,0 @@
-def gone():
-    return 0
diff --git a/img/logo.png b/img/logo.png
index 5555555..6666666 100644
Binary files a/img/logo.png and b/img/logo.png differ
diff --git a/src/a.py b/src/b.py
similarity index 90%
rename from src/a.py
rename to src/b.py
index 7777777..8888888 100644
--- a/src/a.py
+++ b/src/b.py
@@ -1,3 +1,3 @@
-old_name = True
+new_name = True
 keep = 1
`

func TestParse(t *testing.T) {
	records := Parse(sampleDiff, DefaultLimits())
	require.Len(t, records, 5)

	byPath := make(map[string]*models.FileRecord)
	for _, rec := range records {
		byPath[rec.Path] = rec
	}

	t.Run("modified file", func(t *testing.T) {
		rec := byPath["src/auth.py"]
		require.NotNil(t, rec)
		assert.Equal(t, models.ChangeModified, rec.ChangeType)
		assert.Equal(t, 3, rec.Additions)
		assert.Equal(t, 1, rec.Deletions)
		assert.False(t, rec.Skipped)
	})

	t.Run("added file", func(t *testing.T) {
		rec := byPath["src/new.py"]
		require.NotNil(t, rec)
		assert.Equal(t, models.ChangeAdded, rec.ChangeType)
		assert.Equal(t, 2, rec.Additions)
	})

	t.Run("deleted file is skipped", func(t *testing.T) {
		rec := byPath["src/old.py"]
		require.NotNil(t, rec)
		assert.Equal(t, models.ChangeDeleted, rec.ChangeType)
		assert.True(t, rec.Skipped)
		assert.Equal(t, "file deleted", rec.SkipReason)
	})

	t.Run("binary file is skipped", func(t *testing.T) {
		rec := byPath["img/logo.png"]
		require.NotNil(t, rec)
		assert.Equal(t, models.ChangeBinary, rec.ChangeType)
		assert.True(t, rec.Skipped)
	})

	t.Run("renamed file keeps old path", func(t *testing.T) {
		rec := byPath["src/b.py"]
		require.NotNil(t, rec)
		assert.Equal(t, models.ChangeRenamed, rec.ChangeType)
		assert.Equal(t, "src/a.py", rec.OldPath)
	})
}

func TestParseOversizedFile(t *testing.T) {
	big := "diff --git a/big.py b/big.py\n--- a/big.py\n+++ b/big.py\n@@ -1,1 +1,1 @@\n+" +
		strings.Repeat("x", 2048) + "\n"

	records := Parse(big, Limits{MaxFileBytes: 1024, MaxHunkLines: 1000})
	require.Len(t, records, 1)
	assert.True(t, records[0].Skipped)
	assert.Equal(t, "diff too large", records[0].SkipReason)
	assert.Contains(t, records[0].DiffText, "diff omitted")
}

func TestParseTooManyHunkLines(t *testing.T) {
	var b strings.Builder
	b.WriteString("diff --git a/long.py b/long.py\n--- a/long.py\n+++ b/long.py\n@@ -1,0 +1,20 @@\n")
	for i := 0; i < 20; i++ {
		b.WriteString("+line\n")
	}

	records := Parse(b.String(), Limits{MaxFileBytes: 1 << 20, MaxHunkLines: 10})
	require.Len(t, records, 1)
	assert.True(t, records[0].Skipped)
	assert.Equal(t, "too many hunk lines", records[0].SkipReason)
}

func TestNewLineMap(t *testing.T) {
	records := Parse(sampleDiff, DefaultLimits())
	var auth *models.FileRecord
	for _, rec := range records {
		if rec.Path == "src/auth.py" {
			auth = rec
		}
	}
	require.NotNil(t, auth)

	lines := NewLineMap(auth.DiffText)
	// Hunk starts at new line 10; the first context line is "def check(user):".
	assert.Equal(t, "def check(user):", lines[10])
	assert.Equal(t, "        if not user.token.expired:", lines[12])
	assert.Equal(t, "        raise TokenExpired(user)", lines[14])
	// Removed lines never appear on the new side.
	for _, text := range lines {
		assert.NotEqual(t, "        return validate(user.token)", text)
	}
}

func TestLineMapsSkipsSkippedRecords(t *testing.T) {
	records := Parse(sampleDiff, DefaultLimits())
	maps := LineMaps(records)
	assert.Contains(t, maps, "src/auth.py")
	assert.NotContains(t, maps, "src/old.py")
	assert.NotContains(t, maps, "img/logo.png")
}
