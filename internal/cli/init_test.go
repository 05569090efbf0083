package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/hnpager/internal/config"
	"github.com/spf13/cobra"
)

func useConfigDir(t *testing.T, dir string) {
	t.Helper()
	oldConfigDir, oldEnvFile := configDir, envFile
	t.Cleanup(func() { configDir, envFile = oldConfigDir, oldEnvFile })
	configDir = dir
	envFile = filepath.Join(dir, "missing.env")
}

func TestInitWritesLoadableConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conf")
	useConfigDir(t, dir)
	t.Setenv("KEYWORD", "")

	out, err := captureStdout(t, func() error { return initAction(nil, nil) })
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	requireContains(t, out, "with 2 config files")

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Search.Keyword != "ChatGPT" || cfg.Schedule.Cron != "33 * * * *" {
		t.Errorf("example config = %+v", cfg.Search)
	}
	if _, err := os.Stat(filepath.Join(dir, ".env.example")); err != nil {
		t.Errorf("env example missing: %v", err)
	}

	out, err = captureStdout(t, func() error { return initAction(nil, nil) })
	if err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	requireContains(t, out, "already initialized")
}

func TestDoctorReportsMissingCredentials(t *testing.T) {
	dir := t.TempDir()
	useConfigDir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte(`
telegram:
  token_env: HNPAGER_DOCTOR_TOKEN
  chat_id_env: HNPAGER_DOCTOR_CHAT
storage:
  path: `+filepath.Join(dir, "journal.db")+`
`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HNPAGER_DOCTOR_TOKEN", "")

	out, err := captureStdout(t, func() error { return doctorAction(&cobra.Command{}, nil) })
	if err == nil {
		t.Fatal("doctor should fail without a token")
	}
	requireContains(t, out, "[FAIL] telegram: telegram bot token is not set")
	requireContains(t, out, "[ OK ] journal")
	requireContains(t, out, `[ OK ] schedule "33 * * * *"`)
}

func TestDoctorAllChecksPass(t *testing.T) {
	dir := t.TempDir()
	useConfigDir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte(`
telegram:
  token_env: HNPAGER_DOCTOR_TOKEN
  chat_id_env: HNPAGER_DOCTOR_CHAT
storage:
  path: none
privacy:
  redact:
    enabled: true
    patterns: ["\\d{3}-\\d{4}"]
`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HNPAGER_DOCTOR_TOKEN", "123:abc")
	t.Setenv("HNPAGER_DOCTOR_CHAT", "not-a-number")

	out, err := captureStdout(t, func() error { return doctorAction(&cobra.Command{}, nil) })
	if err != nil {
		t.Fatalf("doctor failed: %v\n%s", err, out)
	}
	requireContains(t, out, "using default chat 2142063265")
	requireContains(t, out, "redaction (1 patterns)")
	requireContains(t, out, "run journal disabled")
	requireContains(t, out, "All checks passed.")
}
