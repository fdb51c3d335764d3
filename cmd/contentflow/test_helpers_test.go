package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"contentflow/internal/ingest"
	"contentflow/internal/testsupport"
)

type cliTestEnv struct {
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "contentflow", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, filepath.Join(base, "data"), filepath.Join(base, "logs"))

	return &cliTestEnv{configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path, dataDir, logDir string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[processor]
batch_size = 10
empty_iteration_limit = 1
empty_iteration_delay_ms = 0
skipped_batch_delay_ms = 0

[clustering]
similarity_threshold = 0.5

[logging]
format = "json"
level = "error"
`, dataDir, logDir)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeRecords(t *testing.T, dir string) string {
	t.Helper()
	created := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	path := filepath.Join(dir, "records.jsonl")
	testsupport.WriteJSONLines(t, path,
		ingest.Record{RawContentID: "post-1", SourceID: "forum", CreatedAt: created, Fields: map[string]string{
			"title": "Battery drains overnight",
			"text":  "My phone battery drains completely overnight after the update",
		}},
		ingest.Record{RawContentID: "post-2", SourceID: "forum", CreatedAt: created, Fields: map[string]string{
			"title": "Battery drain overnight",
			"text":  "Phone battery drains completely overnight since the update",
		}},
	)
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
