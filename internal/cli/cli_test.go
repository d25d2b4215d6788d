package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		configPath = ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigCommandMasksSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
database:
  driver: sqlite
  dsn: file:test.db
stripe:
  secret_key: sk_test_1234567890
  webhook_secret: whsec_abcdefgh
http:
  addr: ":9090"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCLI(t, "config", "--config", path)
	if err != nil {
		t.Fatalf("config command: %v", err)
	}
	if strings.Contains(out, "sk_test_1234567890") || strings.Contains(out, "whsec_abcdefgh") {
		t.Fatalf("secrets leaked:\n%s", out)
	}

	var decoded struct {
		HTTP struct {
			Addr string `yaml:"addr"`
		} `yaml:"http"`
	}
	if err := yaml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not yaml: %v\n%s", err, out)
	}
	if decoded.HTTP.Addr != ":9090" {
		t.Fatalf("expected addr from file, got %q", decoded.HTTP.Addr)
	}
}

func TestConfigCommandRejectsMissingFile(t *testing.T) {
	if _, err := runCLI(t, "config", "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "sweep", "retry", "migrate", "config"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd == nil || cmd.Name() != name {
			t.Fatalf("command %s not registered: %v", name, err)
		}
	}
}
