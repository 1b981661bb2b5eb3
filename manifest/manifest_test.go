package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "slotc.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "game"
version = "0.3.0"

[source]
dirs = ["src", "scenes"]

[output]
dir = "build"

[cache]
path = "tmp/rewrites.db"

[dialect]
allow-sharing = false
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "game" {
		t.Errorf("project name = %q, want game", m.Project.Name)
	}
	if m.Project.Version != "0.3.0" {
		t.Errorf("project version = %q, want 0.3.0", m.Project.Version)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if m.Output.Dir != "build" {
		t.Errorf("output dir = %q, want build", m.Output.Dir)
	}
	if m.Cache.Path != "tmp/rewrites.db" {
		t.Errorf("cache path = %q, want tmp/rewrites.db", m.Cache.Path)
	}
	if m.Dialect.AllowSharing {
		t.Error("allow-sharing = true, want false")
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Default source dir should be "src"
	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "src" {
		t.Errorf("default source dirs = %v, want [src]", m.Source.Dirs)
	}
	// Sharing is on unless the document turns it off
	if !m.Dialect.AllowSharing {
		t.Error("default allow-sharing = false, want true")
	}
	if m.Cache.Disable {
		t.Error("default cache disable = true, want false")
	}
	want := filepath.Join(m.Dir, ".slotc", "rewrites.db")
	if got := m.CachePath(); got != want {
		t.Errorf("default CachePath = %q, want %q", got, want)
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find the manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no slotc.toml exists")
	}
}

func TestSourceDirPaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Source: Source{
			Dirs: []string{"src", "scenes"},
		},
	}

	paths := m.SourceDirPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != "/app/src" {
		t.Errorf("paths[0] = %q, want /app/src", paths[0])
	}
	if paths[1] != "/app/scenes" {
		t.Errorf("paths[1] = %q, want /app/scenes", paths[1])
	}
}

func TestSources(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[source]
dirs = ["src", "missing"]
`)
	deep := filepath.Join(dir, "src", "ui")
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"src/main.sjs", "src/ui/panel.sjs", "src/notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x;\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	files, err := m.Sources()
	if err != nil {
		t.Fatalf("Sources failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Sources = %v, want 2 .sjs files", files)
	}
	for _, f := range files {
		if filepath.Ext(f) != SourceExt {
			t.Errorf("Sources picked up %q", f)
		}
	}
}

func TestCachePathRelative(t *testing.T) {
	m := &Manifest{Dir: "/app", Cache: Cache{Path: "tmp/c.db"}}
	if got := m.CachePath(); got != "/app/tmp/c.db" {
		t.Errorf("CachePath = %q, want /app/tmp/c.db", got)
	}

	m.Cache.Path = "/var/cache/c.db"
	if got := m.CachePath(); got != "/var/cache/c.db" {
		t.Errorf("CachePath = %q, want /var/cache/c.db", got)
	}
}

func TestOutputPath(t *testing.T) {
	m := &Manifest{Dir: "/app"}

	// No output dir: sibling .js
	if got := m.OutputPath("/app/src/main.sjs"); got != "/app/src/main.js" {
		t.Errorf("OutputPath = %q, want /app/src/main.js", got)
	}

	// Output dir mirrors the project-relative layout
	m.Output.Dir = "build"
	if got := m.OutputPath("/app/src/main.sjs"); got != "/app/build/src/main.js" {
		t.Errorf("OutputPath = %q, want /app/build/src/main.js", got)
	}

	// Sources outside the project fall back to the base name
	if got := m.OutputPath("/elsewhere/x.sjs"); got != "/app/build/x.js" {
		t.Errorf("OutputPath = %q, want /app/build/x.js", got)
	}
}
