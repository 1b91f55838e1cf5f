package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"importcheck/internal/core/app"
	"importcheck/internal/engine/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"main.py":         "import os\nfrom pkg import helper\nfrom pkg.helper import missing\nimport requests\n",
		"pkg/__init__.py": "",
		"pkg/helper.py":   "def present():\n    pass\n",
		".venv/lib/x.py":  "import nothing_here\n",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCheck_TextReport(t *testing.T) {
	root := writeProject(t)
	code, out, _ := execute(t, "check", root, "--provider", "manifest")

	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "Import Analysis Report: "+root)
	assert.Contains(t, out, "Files analyzed: 3")
	assert.Contains(t, out, "'pkg.helper' does not define 'missing'")
	assert.Contains(t, out, "requests")
	assert.NotContains(t, out, "nothing_here")
}

func TestCheck_JSONAndFailOnIssues(t *testing.T) {
	root := writeProject(t)
	code, out, _ := execute(t, "check", root, "--provider", "manifest", "--format", "json", "--fail-on-issues")
	assert.Equal(t, exitIssues, code)

	var doc struct {
		Summary struct {
			Total     int `json:"total"`
			Undefined int `json:"undefined"`
			External  int `json:"external"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 2, doc.Summary.Total)
	assert.Equal(t, 1, doc.Summary.Undefined)
	assert.Equal(t, 1, doc.Summary.External)
}

func TestCheck_CleanProjectPassesFailOnIssues(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("import json\n"), 0o644))

	code, out, _ := execute(t, "check", root, "--provider", "manifest", "--fail-on-issues")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "No import issues found in "+root+"\n", out)
}

func TestCheck_OutputFile(t *testing.T) {
	root := writeProject(t)
	dest := filepath.Join(t.TempDir(), "reports", "out.sarif")

	code, out, _ := execute(t, "check", root, "--provider", "manifest", "--format", "sarif", "-o", dest)
	require.Equal(t, exitOK, code)
	assert.Empty(t, out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ruleId": "IMP001"`)
}

func TestCheck_ExcludeFlag(t *testing.T) {
	root := writeProject(t)
	code, out, _ := execute(t, "check", root, "--provider", "manifest", "--exclude", "pkg", "--format", "json")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, `"files_analyzed": 1`)
}

func TestCheck_FatalErrors(t *testing.T) {
	code, _, stderr := execute(t, "check", filepath.Join(t.TempDir(), "missing"), "--provider", "manifest")
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr, "NOT_FOUND")

	code, _, stderr = execute(t, "check", t.TempDir(), "--format", "xml")
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr, "--format")

	code, _, stderr = execute(t, "check", t.TempDir(), "--provider", "carrier-pigeon")
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr, "VALIDATION_ERROR")

	code, _, _ = execute(t, "check", "--config", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Equal(t, exitFatal, code)
}

func TestCheck_ConfigFileAndHistory(t *testing.T) {
	root := writeProject(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")
	cfgPath := filepath.Join(t.TempDir(), "importcheck.toml")
	cfg := "[provider]\nkind = \"manifest\"\n\n[history]\nenabled = true\npath = \"" + filepath.ToSlash(dbPath) + "\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	code, _, _ := execute(t, "check", root, "--config", cfgPath)
	require.Equal(t, exitOK, code)
	code, _, _ = execute(t, "check", root, "--config", cfgPath)
	require.Equal(t, exitOK, code)

	code, out, _ := execute(t, "history", root, "--config", cfgPath, "--format", "json")
	require.Equal(t, exitOK, code)
	var points []struct {
		Provider  string `json:"provider"`
		Undefined int    `json:"undefined"`
		External  int    `json:"external"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &points))
	require.Len(t, points, 2)
	assert.Equal(t, "manifest", points[0].Provider)
	assert.Equal(t, 1, points[0].Undefined)

	code, out, _ = execute(t, "history", "--all", "--limit", "1", "--config", cfgPath)
	require.Equal(t, exitOK, code)
	assert.Contains(t, strings.ToLower(out), "run history: all roots")
}

func TestCheck_HelpDescribesSingleFileRoot(t *testing.T) {
	code, out, _ := execute(t, "check", "--help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "resolve against the file's parent directory")
}

func TestVersion(t *testing.T) {
	code, out, _ := execute(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "importcheck dev\n", out)
}

func TestHealthEndpoint(t *testing.T) {
	status := &runStatus{}
	server := NewObservabilityServer("127.0.0.1:0", status, newLogger(&bytes.Buffer{}, false))

	rec := httptest.NewRecorder()
	server.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	status.update(&app.RunResult{
		RunID:     "run-1",
		Root:      "/tmp/proj",
		StartedAt: time.Now(),
		Index:     index.New(nil),
	})
	rec = httptest.NewRecorder()
	server.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body healthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "up", body.Status)
	assert.Equal(t, "run-1", body.RunID)

	rec = httptest.NewRecorder()
	server.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
