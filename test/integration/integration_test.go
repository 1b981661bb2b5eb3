package integration_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/slotlang/slotc/cache"
	"github.com/slotlang/slotc/compiler"
	"github.com/slotlang/slotc/interp"
	"github.com/slotlang/slotc/manifest"
)

// ---------------------------------------------------------------------------
// Integration test helpers
// ---------------------------------------------------------------------------

// writeFile creates path with the given contents, making parent directories.
func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

// rewriteUnit runs the pipeline on one unit the way a project build does,
// honoring the manifest's sharing dialect, and returns the printed output.
func rewriteUnit(t *testing.T, path, src string, allowSharing bool) (string, compiler.DiagnosticList) {
	t.Helper()
	f, diags := compiler.Parse(path, src)
	if len(diags) > 0 {
		return "", diags
	}
	if diags := compiler.Resolve(f); len(diags) > 0 {
		return "", diags
	}
	if !allowSharing {
		if diags := compiler.CheckSharing(f); len(diags) > 0 {
			return "", diags
		}
	}
	out, diags := compiler.Rewrite(f)
	if len(diags) > 0 {
		return "", diags
	}
	return compiler.Print(out), nil
}

// buildProject rewrites every manifest source and writes the outputs where
// the manifest maps them, returning the written paths in source order.
// Any rejection fails the test.
func buildProject(t *testing.T, m *manifest.Manifest) []string {
	t.Helper()
	files, err := m.Sources()
	if err != nil {
		t.Fatal(err)
	}
	var written []string
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			t.Fatal(err)
		}
		output, diags := rewriteUnit(t, file, string(data), m.Dialect.AllowSharing)
		if len(diags) > 0 {
			t.Fatalf("%s: unexpected diagnostics: %v", file, diags)
		}
		dst := m.OutputPath(file)
		writeFile(t, dst, output)
		written = append(written, dst)
	}
	return written
}

// runFile parses a rewritten output file from disk and evaluates it,
// returning the lines its print calls produced.
func runFile(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	f, diags := compiler.Parse(path, string(data))
	if len(diags) > 0 {
		t.Fatalf("parsing built output: %v\noutput:\n%s", diags, data)
	}

	var lines []string
	in := interp.New()
	in.Define("print", interp.NativeFunc("print", func(args []interp.Value) (interp.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.Display()
		}
		lines = append(lines, strings.Join(parts, " "))
		return interp.Undefined, nil
	}))
	if _, err := in.Run(f); err != nil {
		t.Fatalf("running built output: %v", err)
	}
	return lines
}

// ---------------------------------------------------------------------------
// Project builds
// ---------------------------------------------------------------------------

func TestProjectBuildMirrorsOutputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "slotc.toml"), `
[project]
name = "game"

[output]
dir = "build"
`)
	writeFile(t, filepath.Join(dir, "src", "hud.sjs"),
		"let hp = 10;\nconst bar = &hp;\nbar.poke(bar.peek() - 3);\nprint(hp);\n")
	writeFile(t, filepath.Join(dir, "src", "ui", "label.sjs"),
		"const title = \"hud\";\nconst s = &title;\nprint(s.peek());\n")

	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	written := buildProject(t, m)

	want := []string{
		filepath.Join(dir, "build", "src", "hud.js"),
		filepath.Join(dir, "build", "src", "ui", "label.js"),
	}
	if diff := cmp.Diff(want, written); diff != "" {
		t.Fatalf("written paths (-want +got):\n%s", diff)
	}

	out, err := os.ReadFile(written[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, frag := range []string{"peek:", "poke:"} {
		if !strings.Contains(string(out), frag) {
			t.Errorf("built output missing %q:\n%s", frag, out)
		}
	}
	if strings.Contains(string(out), "&hp") {
		t.Errorf("marker survived the build:\n%s", out)
	}

	// The const slot carries no poke.
	out, err = os.ReadFile(written[1])
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "poke") {
		t.Errorf("immutable slot grew a poke:\n%s", out)
	}
}

func TestBuiltOutputRuns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "slotc.toml"), "[project]\nname = \"demo\"\n")
	writeFile(t, filepath.Join(dir, "src", "main.sjs"), `
let &score = 0;
class Meter {
  #w = 2;
  expose #w;
  static ws() { return &&this.#w; }
}
class Gauge extends Meter {
  import #w;
  scale(n) { return this.#w *= n; }
}
score += 3;
const g = new Gauge();
print(g.scale(5));
const s = Meter.ws();
print(s.peek(g));
print(score);
`)

	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	written := buildProject(t, m)

	// No [output] section: each output sits next to its source.
	want := filepath.Join(dir, "src", "main.js")
	if len(written) != 1 || written[0] != want {
		t.Fatalf("written = %v, want [%s]", written, want)
	}

	lines := runFile(t, written[0])
	if diff := cmp.Diff([]string{"10", "10", "3"}, lines); diff != "" {
		t.Errorf("program output (-want +got):\n%s", diff)
	}
}

func TestRejectionLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "slotc.toml"), "[project]\nname = \"broken\"\n")
	writeFile(t, filepath.Join(dir, "src", "bad.sjs"), "const k = 1;\nk = 2;\nk = 3;\n")

	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	files, err := m.Sources()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("Sources() = %v, want one file", files)
	}

	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	output, diags := rewriteUnit(t, files[0], string(data), true)
	if output != "" {
		t.Errorf("rejected unit produced output:\n%s", output)
	}

	// The whole batch surfaces, position sorted, not just the first find.
	if len(diags) != 2 {
		t.Fatalf("diagnostics = %v, want both const writes", diags)
	}
	if !diags.HasKind(compiler.BadScope) {
		t.Errorf("diagnostic kinds = %v, want scope rejections", diags)
	}
	if diags[0].Pos.Line != 2 || diags[1].Pos.Line != 3 {
		t.Errorf("diagnostic lines = %d, %d, want 2, 3", diags[0].Pos.Line, diags[1].Pos.Line)
	}
}

// ---------------------------------------------------------------------------
// Rewrite cache
// ---------------------------------------------------------------------------

func TestCacheReplaysAcrossBuilds(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.Open(filepath.Join(dir, ".slotc", "rewrites.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	good := "let x = 1;\nconst s = &x;\ns.poke(2);\n"
	bad := "const k = 1;\nk = 2;\n"

	goodOut, diags := rewriteUnit(t, "good.sjs", good, true)
	if len(diags) > 0 {
		t.Fatalf("clean unit rejected: %v", diags)
	}
	_, badDiags := rewriteUnit(t, "bad.sjs", bad, true)
	if len(badDiags) == 0 {
		t.Fatal("const write passed the pipeline")
	}

	// First build populates the cache with both outcomes.
	if err := store.Put(good, goodOut, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(bad, "", badDiags); err != nil {
		t.Fatal(err)
	}

	// Second build replays them without running the pipeline.
	entry, err := store.Get(good)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Rejected() {
		t.Fatal("clean unit replayed as a rejection")
	}
	if entry.Output != goodOut {
		t.Errorf("replayed output = %q, want %q", entry.Output, goodOut)
	}

	entry, err = store.Get(bad)
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Rejected() {
		t.Fatal("rejected unit replayed as clean")
	}
	if diff := cmp.Diff(badDiags, entry.Diagnostics()); diff != "" {
		t.Errorf("replayed diagnostics (-pipeline +cache):\n%s", diff)
	}

	// Unseen sources miss.
	if _, err := store.Get("let y = 2;\n"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("Get(unseen) error = %v, want ErrMiss", err)
	}
}

// ---------------------------------------------------------------------------
// Dialect toggles
// ---------------------------------------------------------------------------

func TestSharingDialectGovernsBuild(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "slotc.toml"), `
[project]
name = "locked"

[dialect]
allow-sharing = false
`)
	writeFile(t, filepath.Join(dir, "src", "b.sjs"), `
class B {
  #hp = 1;
  expose #hp;
}
`)

	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Dialect.AllowSharing {
		t.Fatal("manifest left sharing enabled")
	}

	files, err := m.Sources()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("Sources() = %v, want one file", files)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}

	_, diags := rewriteUnit(t, files[0], string(data), m.Dialect.AllowSharing)
	if !diags.HasKind(compiler.BadScope) {
		t.Fatalf("diagnostics = %v, want a scope rejection", diags)
	}
	if !strings.Contains(diags[0].Msg, "disabled") {
		t.Errorf("diagnostic = %q, want mention of the disabled dialect", diags[0].Msg)
	}

	// The same unit passes once the dialect allows sharing.
	if _, diags := rewriteUnit(t, files[0], string(data), true); len(diags) > 0 {
		t.Errorf("sharing-enabled rewrite rejected: %v", diags)
	}
}
