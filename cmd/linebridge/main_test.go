package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
media_dir = %q
log_dir = %q
`, filepath.Join(base, "data"), filepath.Join(base, "media"), filepath.Join(base, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "linebridge "+version) {
		t.Fatalf("unexpected version output: %q", out)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := executeCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output should mention target path: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, err := executeCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error without --overwrite")
	}
	if _, err := executeCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
}

func TestLinksWithEmptyStore(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := executeCommand(t, "--config", cfgPath, "links")
	if err != nil {
		t.Fatalf("links failed: %v", err)
	}
	if !strings.Contains(out, "No active bindings.") {
		t.Fatalf("unexpected links output: %q", out)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	base := t.TempDir()
	cfgPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
media_dir = %q
log_dir = %q

[discord]
bot_token = "super-secret-token-value"
app_id = "123"
`, filepath.Join(base, "data"), filepath.Join(base, "media"), filepath.Join(base, "logs"))
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := executeCommand(t, "--config", cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if strings.Contains(out, "super-secret-token-value") {
		t.Fatalf("secret leaked in output: %q", out)
	}
	if !strings.Contains(out, "supe...alue") {
		t.Fatalf("expected redacted token in output: %q", out)
	}
}
