// slotc CLI - the main entry point for rewriting sugared source files
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/slotlang/slotc/cache"
	"github.com/slotlang/slotc/compiler"
	"github.com/slotlang/slotc/interp"
	"github.com/slotlang/slotc/manifest"
	"github.com/slotlang/slotc/server"
	"github.com/slotlang/slotc/web"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	check := flag.Bool("check", false, "Report diagnostics without writing output")
	runMode := flag.Bool("run", false, "Rewrite and evaluate with the reference evaluator")
	toStdout := flag.Bool("stdout", false, "Write rewritten source to stdout instead of files")
	noCache := flag.Bool("no-cache", false, "Bypass the rewrite cache")
	serveMode := flag.Bool("serve", false, "Start the HTTP rewrite API")
	serveAddr := flag.String("addr", ":7866", "HTTP listen address (used with --serve)")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: slotc [options] [paths...]\n\n")
		fmt.Fprintf(os.Stderr, "Rewrites slot-reification sugar in .sjs files to plain .js.\n")
		fmt.Fprintf(os.Stderr, "Paths may be files, directories, or dir/... for a recursive walk.\n")
		fmt.Fprintf(os.Stderr, "With no paths, sources come from the nearest slotc.toml manifest.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  slotc -i                  # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  slotc ./src/...           # Rewrite every .sjs under src/\n")
		fmt.Fprintf(os.Stderr, "  slotc -check game.sjs     # Diagnostics only, write nothing\n")
		fmt.Fprintf(os.Stderr, "  slotc -run game.sjs       # Rewrite, then evaluate the output\n")
		fmt.Fprintf(os.Stderr, "  slotc -stdout game.sjs    # Rewritten source to stdout\n")
		fmt.Fprintf(os.Stderr, "\nServers:\n")
		fmt.Fprintf(os.Stderr, "  slotc -serve              # HTTP rewrite API on :7866\n")
		fmt.Fprintf(os.Stderr, "  slotc -lsp                # Language server for editors\n")
	}
	flag.Parse()

	// Server modes run until the client goes away and never touch the
	// filesystem here.
	if *lspMode {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	if *serveMode {
		if *verbose {
			fmt.Printf("Listening on %s\n", *serveAddr)
		}
		if err := web.New().Listen(*serveAddr); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// The nearest manifest governs source dirs, output layout, cache and
	// dialect. Without one: sibling outputs, no cache, sharing allowed.
	m, err := loadManifest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m != nil && *verbose {
		fmt.Printf("Project %s (%s)\n", m.Project.Name, m.Dir)
	}

	paths := flag.Args()
	if *interactive || (len(paths) == 0 && m == nil) {
		runREPL()
		return
	}

	var files []string
	if len(paths) > 0 {
		for _, path := range paths {
			found, err := sourcesAt(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			files = append(files, found...)
		}
	} else {
		files, err = m.Sources()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no .sjs sources found")
		os.Exit(1)
	}

	allowSharing := m == nil || m.Dialect.AllowSharing

	// -run needs output trees, which the cache does not store. A project
	// that disables sharing skips the cache too: cache keys do not carry
	// the dialect toggle, so its rejections must not be replayed after a
	// toggle flip.
	var store *cache.Store
	if m != nil && allowSharing && !m.Cache.Disable && !*noCache && !*runMode {
		store, err = cache.Open(m.CachePath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: rewrite cache unavailable: %v\n", err)
			store = nil
		}
	}

	var evaluator *interp.Interp
	if *runMode {
		evaluator = newEvaluator(os.Stdout)
	}

	rejected := 0
	written := 0
	cached := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: reading %q: %v\n", file, err)
			os.Exit(1)
		}
		src := string(data)

		var output string
		var out *compiler.File
		var diags compiler.DiagnosticList
		hit := false
		if store != nil {
			entry, err := store.Get(src)
			switch {
			case err == nil:
				output, diags, hit = entry.Output, entry.Diagnostics(), true
				cached++
			case !errors.Is(err, cache.ErrMiss):
				fmt.Fprintf(os.Stderr, "Warning: rewrite cache: %v\n", err)
			}
		}
		if !hit {
			out, diags = rewriteFile(file, src, allowSharing)
			if out != nil {
				output = compiler.Print(out)
			}
			if store != nil {
				if err := store.Put(src, output, diags); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: rewrite cache: %v\n", err)
				}
			}
		}

		if len(diags) > 0 {
			rejected++
			for _, d := range diags {
				fmt.Fprintf(os.Stderr, "%s:%s\n", file, d.Error())
			}
			continue
		}

		switch {
		case *check:
			if *verbose {
				fmt.Printf("  %s ok\n", file)
			}
		case *runMode:
			if _, err := evaluator.Run(out); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", file, err)
				os.Exit(1)
			}
		case *toStdout:
			fmt.Print(output)
		default:
			dst := outputPathFor(m, file)
			if err := writeOutput(dst, output); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			written++
			if *verbose {
				fmt.Printf("  %s -> %s\n", file, dst)
			}
		}
	}
	if store != nil {
		store.Close()
	}

	if *verbose && written > 0 {
		fmt.Printf("Rewrote %d files (%d cached)\n", written, cached)
	}
	if rejected > 0 {
		os.Exit(1)
	}
}

// loadManifest finds the project manifest governing the working directory,
// if any.
func loadManifest() (*manifest.Manifest, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return manifest.FindAndLoad(cwd)
}

// runREPL reads units interactively. Each complete input is rewritten, the
// rewritten form echoed, and its value printed.
func runREPL() {
	fmt.Printf("slotc %s REPL (type 'exit' to quit)\n\n", compiler.EngineVersion)

	rl, err := readline.New(">> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	in := newEvaluator(os.Stdout)
	for {
		if err := rep(rl, in); err != nil {
			if err == readline.ErrInterrupt {
				fmt.Println(err)
				continue
			}
			break
		}
	}
	fmt.Println()
}

// rep reads one unit, accumulating continuation lines until the buffer
// parses or a blank line gives up, then rewrites and evaluates it.
func rep(rl *readline.Instance, in *interp.Interp) error {
	rl.SetPrompt(">> ")
	line, err := rl.Readline()
	if err != nil {
		return err
	}
	if line == "exit" || line == "quit" {
		return io.EOF
	}
	if strings.TrimSpace(line) == "" {
		return nil
	}

	src := line + "\n"
	f, diags := compiler.Parse("repl", src)
	for diags.HasKind(compiler.BadSyntax) {
		rl.SetPrompt(".. ")
		more, err := rl.Readline()
		if err != nil {
			return err
		}
		if strings.TrimSpace(more) == "" {
			break
		}
		src += more + "\n"
		f, diags = compiler.Parse("repl", src)
	}

	if len(diags) == 0 {
		diags = compiler.Resolve(f)
	}
	var out *compiler.File
	if len(diags) == 0 {
		out, diags = compiler.Rewrite(f)
	}
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.Error())
		}
		return nil
	}

	// Echo the rewrite when it changed anything.
	text := compiler.Print(out)
	if text != src {
		fmt.Print(text)
	}

	last, err := in.Run(out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil
	}
	if last.Tag != interp.TagUndefined {
		fmt.Println(last.String())
	}
	return nil
}

// newEvaluator builds an interpreter with the print builtin bound to w.
func newEvaluator(w io.Writer) *interp.Interp {
	in := interp.New()
	in.Define("print", interp.NativeFunc("print", func(args []interp.Value) (interp.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.Display()
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		return interp.Undefined, nil
	}))
	return in
}

// sourcesAt expands one command line path into .sjs files. A trailing /...
// walks the directory tree; a bare directory takes only its own files.
func sourcesAt(path string) ([]string, error) {
	recursive := false
	if strings.HasSuffix(path, "/...") {
		recursive = true
		path = strings.TrimSuffix(path, "/...")
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access %q: %w", path, err)
	}

	var files []string
	if info.IsDir() {
		if recursive {
			err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && strings.HasSuffix(p, manifest.SourceExt) {
					files = append(files, p)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walking %q: %w", path, err)
			}
		} else {
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, fmt.Errorf("reading %q: %w", path, err)
			}
			for _, e := range entries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), manifest.SourceExt) {
					files = append(files, filepath.Join(path, e.Name()))
				}
			}
		}
	} else {
		if !strings.HasSuffix(path, manifest.SourceExt) {
			return nil, fmt.Errorf("%q is not a %s file", path, manifest.SourceExt)
		}
		files = append(files, path)
	}

	return files, nil
}

// rewriteFile runs the full pipeline on one unit. The returned tree is nil
// when any stage rejects.
func rewriteFile(path, src string, allowSharing bool) (*compiler.File, compiler.DiagnosticList) {
	f, diags := compiler.Parse(path, src)
	if len(diags) > 0 {
		return nil, diags
	}
	if diags := compiler.Resolve(f); len(diags) > 0 {
		return nil, diags
	}
	if !allowSharing {
		if diags := compiler.CheckSharing(f); len(diags) > 0 {
			return nil, diags
		}
	}
	return compiler.Rewrite(f)
}

// outputPathFor maps a source path to its rewritten destination.
func outputPathFor(m *manifest.Manifest, src string) string {
	if m != nil {
		return m.OutputPath(src)
	}
	return strings.TrimSuffix(src, filepath.Ext(src)) + manifest.OutputExt
}

// writeOutput writes the rewritten text, creating parent directories for
// mirrored output layouts.
func writeOutput(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %q: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}
