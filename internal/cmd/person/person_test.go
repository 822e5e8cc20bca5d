package person

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	unsetEnv(t, "PERSONQL_HTTP_ADDR", "PERSONQL_HEALTH_ADDR")

	cfg, err := ParseConfig(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.HealthAddr != ":8081" {
		t.Fatalf("health addr = %q, want %q", cfg.HealthAddr, ":8081")
	}
}

func TestParseConfigEnvAndFlagOverrides(t *testing.T) {
	t.Setenv("PERSONQL_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("PERSONQL_HEALTH_ADDR", "127.0.0.1:9001")

	cfg, err := ParseConfig(newFlagSet(), []string{"-health-addr", ""})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" {
		t.Fatalf("http addr = %q, want env value", cfg.HTTPAddr)
	}
	if cfg.HealthAddr != "" {
		t.Fatalf("health addr = %q, want flag override to disable", cfg.HealthAddr)
	}
}

func TestParseConfigRejectsUnknownFlag(t *testing.T) {
	if _, err := ParseConfig(newFlagSet(), []string{"-port", "1"}); err == nil {
		t.Fatal("expected unknown flag error")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Setenv("PERSONQL_DB_PATH", filepath.Join(t.TempDir(), "person.db"))
	t.Setenv("PERSONQL_OTEL_ENABLED", "false")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{HTTPAddr: "127.0.0.1:0"})
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for run to stop")
	}
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("person", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}
