package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoaderLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.rego")
	src := `# example bundle
package deskribe.policies.example

import rego.v1

deny contains "always" if { true }`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	l := NewLoader(silentLogger())
	policies, err := l.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("got %d policies, want 1", len(policies))
	}
	if policies[0].Name != "example" {
		t.Errorf("Name = %q, want %q", policies[0].Name, "example")
	}
	if policies[0].Description != "example bundle" {
		t.Errorf("Description = %q, want %q", policies[0].Description, "example bundle")
	}
}

func TestLoaderLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	files := []string{"a.rego", "b.rego"}
	for _, f := range files {
		src := "package deskribe.policies." + f[:1] + "\n\nimport rego.v1\n\ndeny contains \"x\" if { false }"
		if err := os.WriteFile(filepath.Join(dir, f), []byte(src), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	// non-.rego files must be skipped
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	l := NewLoader(silentLogger())
	policies, err := l.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != len(files) {
		t.Fatalf("got %d policies, want %d", len(policies), len(files))
	}
}

func TestLoaderRejectsMissingPath(t *testing.T) {
	l := NewLoader(silentLogger())
	if _, err := l.LoadFromPaths(context.Background(), []string{"/no/such/path"}); err == nil {
		t.Errorf("expected an error for a missing path")
	}
}

func TestLoaderWatchReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.rego")
	initial := `package deskribe.policies.watched

import rego.v1

deny contains "x" if { false }`
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	l := NewLoader(silentLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 1)
	if err := l.Watch(ctx, []string{dir}, func(policies []Policy) error {
		reloaded <- policies
		return nil
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer l.StopWatching()

	updated := `package deskribe.policies.watched

import rego.v1

deny contains "y" if { true }`
	// give the watcher time to install its fsnotify handles before writing.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("WriteFile (update): %v", err)
	}

	select {
	case policies := <-reloaded:
		if len(policies) != 1 || policies[0].Name != "watched" {
			t.Fatalf("reloaded policies = %+v", policies)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload after file change")
	}
}
