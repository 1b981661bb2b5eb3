// Package manifest handles slotc.toml project configuration.
package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// SourceExt is the extension of sugared source files.
const SourceExt = ".sjs"

// OutputExt is the extension of rewritten output files.
const OutputExt = ".js"

// Manifest represents a slotc.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Output  Output  `toml:"output"`
	Cache   Cache   `toml:"cache"`
	Dialect Dialect `toml:"dialect"`

	// Dir is the directory containing the slotc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs []string `toml:"dirs"`
}

// Output configures where rewritten files go. An empty dir means each
// output file sits next to its source.
type Output struct {
	Dir string `toml:"dir"`
}

// Cache configures the rewrite cache.
type Cache struct {
	Path    string `toml:"path"`
	Disable bool   `toml:"disable"`
}

// Dialect toggles language surface beyond the core.
type Dialect struct {
	AllowSharing bool `toml:"allow-sharing"`
}

// Load parses a slotc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "slotc.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	// Defaults for fields the document may omit. Decoding only touches
	// keys present in the document.
	m := Manifest{
		Source:  Source{Dirs: []string{"src"}},
		Dialect: Dialect{AllowSharing: true},
	}
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a slotc.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "slotc.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// Sources collects every sugared source file under the configured source
// directories, in walk order. Missing directories are skipped.
func (m *Manifest) Sources() ([]string, error) {
	var files []string
	for _, dir := range m.SourceDirPaths() {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(p, SourceExt) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %q: %w", dir, err)
		}
	}
	return files, nil
}

// CachePath returns the rewrite cache location: the configured path
// (resolved against the manifest directory when relative), or
// .slotc/rewrites.db under the manifest directory.
func (m *Manifest) CachePath() string {
	p := m.Cache.Path
	if p == "" {
		return filepath.Join(m.Dir, ".slotc", "rewrites.db")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.Dir, p)
	}
	return p
}

// OutputPath returns where the rewritten form of src belongs: a sibling
// with the output extension by default, or the source-relative path
// mirrored under the output directory.
func (m *Manifest) OutputPath(src string) string {
	js := strings.TrimSuffix(src, filepath.Ext(src)) + OutputExt
	if m.Output.Dir == "" {
		return js
	}
	rel, err := filepath.Rel(m.Dir, js)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(js)
	}
	return filepath.Join(m.Dir, m.Output.Dir, rel)
}
