package config

import (
	"sync"
	"testing"

	"github.com/spf13/pflag"
)

func TestThreadSafeConfigBasics(t *testing.T) {
	isolate(t)

	ts := NewThreadSafeConfig()

	if ts.IsReady() {
		t.Error("Expected config not to be ready before initialization")
	}

	ts = ts.WithVersionInfo(VersionInfo{Version: "test-version", Commit: "test-commit", Date: "test-date"})
	if ts.VersionInfo().Version != "test-version" {
		t.Errorf("Expected version before initialization, got %s", ts.VersionInfo().Version)
	}

	fs := pflag.NewFlagSet("lockdir", pflag.ContinueOnError)
	ts.BindGlobalFlags(fs)
	ts.BindRunFlags(fs)
	ts.BindReapFlags(fs)
	if err := fs.Parse([]string{"--registry", t.TempDir(), "--wait"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	if err := ts.Initialize(fs); err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}

	if !ts.IsReady() {
		t.Error("Expected config to be ready after initialization")
	}

	cfg := ts.Config()
	if cfg.VersionInfo.Version != "test-version" {
		t.Errorf("Expected version to be 'test-version', got '%s'", cfg.VersionInfo.Version)
	}
	if !cfg.Wait {
		t.Error("Expected --wait to be applied")
	}

	if err := ts.Initialize(fs); err == nil {
		t.Error("Expected second Initialize to fail")
	}
}

func TestThreadSafeConfigPanics(t *testing.T) {
	t.Run("ConfigBeforeInitialize", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic when reading config before initialization")
			}
		}()
		NewThreadSafeConfig().Config()
	})

	t.Run("VersionAfterInitialize", func(t *testing.T) {
		isolate(t)
		ts := NewThreadSafeConfig()
		if err := ts.Initialize(nil); err != nil {
			t.Fatalf("Failed to initialize: %v", err)
		}
		defer func() {
			if recover() == nil {
				t.Error("Expected panic when modifying after initialization")
			}
		}()
		ts.WithVersionInfo(VersionInfo{Version: "late"})
	})
}

func TestThreadSafeConfigConcurrency(t *testing.T) {
	isolate(t)

	ts := NewThreadSafeConfig()
	if err := ts.Initialize(nil); err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg := ts.Config()
			cfg.RegistryDir = "mutated"
			if ts.Config().RegistryDir == "mutated" {
				t.Error("Config must return a copy")
			}
		}()
	}
	wg.Wait()
}
