package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"radreport/internal/config"
	"radreport/internal/registry"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Source.URL = "https://source.example.org"
	cfgVal.Source.Username = "importer"
	cfgVal.Source.Password = "secret"
	cfgVal.Destination.URL = "https://destination.example.org"
	cfgVal.Destination.Username = "exporter"
	cfgVal.Destination.Password = "secret"
	cfgVal.Destination.Project = "REPORTING"

	cfg := &cfgVal
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
	}
}

// openStore opens the registry the CLI under test will read, so tests can
// seed sessions first.
func (env *cliTestEnv) openStore(t *testing.T) *registry.Store {
	t.Helper()
	store, err := registry.Open(env.cfg)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
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

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
staging_dir = %q
log_dir = %q

[source]
url = %q
username = %q
password = %q

[destination]
url = %q
username = %q
password = %q
project = %q
`,
		cfg.Paths.DataDir,
		cfg.Paths.StagingDir,
		cfg.Paths.LogDir,
		cfg.Source.URL,
		cfg.Source.Username,
		cfg.Source.Password,
		cfg.Destination.URL,
		cfg.Destination.Username,
		cfg.Destination.Password,
		cfg.Destination.Project,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
